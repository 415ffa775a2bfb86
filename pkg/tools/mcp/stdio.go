package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentcore/agentcore/pkg/version"
)

type commandClient struct {
	sessionClient

	command string
	args    []string
	env     []string
	cwd     string
	elicit  elicitationFunc
}

func newCommandClient(command string, args, env []string, cwd string, elicit elicitationFunc) *commandClient {
	return &commandClient{
		command: command,
		args:    args,
		env:     env,
		cwd:     cwd,
		elicit:  elicit,
	}
}

func (c *commandClient) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	cmd := exec.Command(c.command, c.args...)
	cmd.Dir = c.cwd
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "agentcore",
		Version: version.Version,
	}, &mcp.ClientOptions{
		ElicitationHandler: c.elicit,
	})

	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start MCP server %q: %w", c.command, err)
	}

	c.setSession(session)
	return session.InitializeResult(), nil
}
