package mcp

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sessionClient holds the SDK session shared by the stdio and remote
// clients. Initialize on the concrete client populates it.
type sessionClient struct {
	mu      sync.RWMutex
	session *mcp.ClientSession
}

func (c *sessionClient) setSession(session *mcp.ClientSession) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
}

func (c *sessionClient) currentSession() *mcp.ClientSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *sessionClient) ListTools(ctx context.Context, params *mcp.ListToolsParams) iter.Seq2[*mcp.Tool, error] {
	session := c.currentSession()
	if session == nil {
		return func(yield func(*mcp.Tool, error) bool) {
			yield(nil, fmt.Errorf("session not initialized"))
		}
	}
	return session.Tools(ctx, params)
}

func (c *sessionClient) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	session := c.currentSession()
	if session == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	return session.CallTool(ctx, params)
}

func (c *sessionClient) Close(context.Context) error {
	session := c.currentSession()
	if session == nil {
		return nil
	}
	return session.Close()
}
