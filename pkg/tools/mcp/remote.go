package mcp

import (
	"context"
	"fmt"
	"maps"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentcore/agentcore/pkg/httpclient"
	"github.com/agentcore/agentcore/pkg/tools"
	"github.com/agentcore/agentcore/pkg/version"
)

type remoteClient struct {
	sessionClient

	url           string
	transportType string
	headers       map[string]string
	elicit        elicitationFunc
}

func newRemoteClient(url, transportType string, headers map[string]string, elicit elicitationFunc) *remoteClient {
	return &remoteClient{
		url:           url,
		transportType: transportType,
		headers:       maps.Clone(headers),
		elicit:        elicit,
	}
}

func (c *remoteClient) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	httpClient := httpclient.NewHTTPClient()
	httpClient.Transport = &headerRoundTripper{
		base:    httpClient.Transport,
		headers: c.headers,
	}

	var transport mcp.Transport
	switch c.transportType {
	case "sse":
		transport = &mcp.SSEClientTransport{
			Endpoint:   c.url,
			HTTPClient: httpClient,
		}
	case "streamable", "streamable-http":
		transport = &mcp.StreamableClientTransport{
			Endpoint:   c.url,
			HTTPClient: httpClient,
		}
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", c.transportType)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "agentcore",
		Version: version.Version,
	}, &mcp.ClientOptions{
		ElicitationHandler: c.elicit,
	})

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server: %w", err)
	}

	c.setSession(session)
	return session.InitializeResult(), nil
}

// headerRoundTripper sets the configured static headers on every request
// and layers call-scoped headers from the request context on top.
type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}
	for key, value := range tools.HeadersFromContext(req.Context()) {
		req.Header.Set(key, value)
	}
	return t.base.RoundTrip(req)
}
