package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/k3a/html2text"
	"github.com/temoto/robotstxt"

	"github.com/agentcore/agentcore/pkg/httpclient"
	"github.com/agentcore/agentcore/pkg/tools"
	"github.com/agentcore/agentcore/pkg/useragent"
)

const ToolNameFetch = "fetch"

const (
	// maxFetchBody caps how much of a response we read.
	maxFetchBody = 1 << 20
	// maxRobotsBody caps how much of a robots.txt we read.
	maxRobotsBody = 64 * 1024
)

type FetchTool struct {
	timeout time.Duration
}

// Verify interface compliance
var (
	_ tools.ToolSet      = (*FetchTool)(nil)
	_ tools.Instructable = (*FetchTool)(nil)
)

type FetchArgs struct {
	URLs    []string `json:"urls"`
	Timeout int      `json:"timeout,omitempty"`
	Format  string   `json:"format,omitempty"`
}

type FetchResult struct {
	URL           string `json:"url"`
	StatusCode    int    `json:"statusCode"`
	Status        string `json:"status"`
	ContentType   string `json:"contentType,omitempty"`
	ContentLength int    `json:"contentLength"`
	Body          string `json:"body,omitempty"`
	Error         string `json:"error,omitempty"`
}

type FetchToolOption func(*FetchTool)

func WithTimeout(timeout time.Duration) FetchToolOption {
	return func(t *FetchTool) {
		t.timeout = timeout
	}
}

func NewFetchTool(opts ...FetchToolOption) *FetchTool {
	tool := &FetchTool{
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(tool)
	}
	return tool
}

func (t *FetchTool) callTool(ctx context.Context, args FetchArgs) (*tools.ToolCallResult, error) {
	if len(args.URLs) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}

	client := httpclient.NewHTTPClient()
	client.Timeout = t.timeout
	if args.Timeout > 0 {
		client.Timeout = time.Duration(args.Timeout) * time.Second
	}

	// One robots.txt verdict per host, shared across this call.
	gate := newRobotsGate(client)

	results := make([]FetchResult, 0, len(args.URLs))
	for _, urlStr := range args.URLs {
		results = append(results, fetchURL(ctx, client, gate, urlStr, args.Format))
	}

	if len(results) == 1 {
		result := results[0]
		if result.Error != "" {
			return tools.ResultError(fmt.Sprintf("Error fetching %s: %s", result.URL, result.Error)), nil
		}
		return tools.ResultSuccess(fmt.Sprintf("Successfully fetched %s (Status: %d, Length: %d bytes):\n\n%s",
			result.URL, result.StatusCode, result.ContentLength, result.Body)), nil
	}

	output, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}

	return tools.ResultSuccess(string(output)), nil
}

func fetchURL(ctx context.Context, client *http.Client, gate *robotsGate, urlStr, format string) FetchResult {
	result := FetchResult{URL: urlStr}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		result.Error = fmt.Sprintf("invalid URL: %v", err)
		return result
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		result.Error = "invalid URL: missing scheme or host"
		return result
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		result.Error = "only HTTP and HTTPS URLs are supported"
		return result
	}

	if !gate.allowed(ctx, parsedURL) {
		result.Error = "URL blocked by robots.txt"
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result
	}

	switch format {
	case "markdown":
		req.Header.Set("Accept", "text/markdown;q=1.0, text/plain;q=0.9, text/html;q=0.7, */*;q=0.1")
	case "html":
		req.Header.Set("Accept", "text/html;q=1.0, text/plain;q=0.8, */*;q=0.1")
	case "text":
		req.Header.Set("Accept", "text/plain;q=1.0, text/markdown;q=0.9, text/html;q=0.8, */*;q=0.1")
	default:
		req.Header.Set("Accept", "text/plain;q=1.0, */*;q=0.1")
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Status = resp.Status
	result.ContentType = resp.Header.Get("Content-Type")

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		result.Error = fmt.Sprintf("failed to read response body: %v", err)
		return result
	}

	isHTML := strings.Contains(result.ContentType, "text/html")
	switch format {
	case "markdown":
		if isHTML {
			result.Body = htmlToMarkdown(string(body))
		} else {
			result.Body = string(body)
		}
	case "text":
		if isHTML {
			result.Body = htmlToText(string(body))
		} else {
			result.Body = string(body)
		}
	default:
		result.Body = string(body)
	}

	result.ContentLength = len(result.Body)

	return result
}

// robotsGate caches one robots.txt verdict per host for the duration of
// a single fetch call. It is not safe for concurrent use.
type robotsGate struct {
	client   *http.Client
	verdicts map[string]bool
}

func newRobotsGate(client *http.Client) *robotsGate {
	return &robotsGate{
		client:   client,
		verdicts: make(map[string]bool),
	}
}

func (g *robotsGate) allowed(ctx context.Context, target *url.URL) bool {
	verdict, cached := g.verdicts[target.Host]
	if !cached {
		verdict = g.check(ctx, target)
		g.verdicts[target.Host] = verdict
	}
	return verdict
}

func (g *robotsGate) check(ctx context.Context, target *url.URL) bool {
	robotsURL := &url.URL{
		Scheme: target.Scheme,
		Host:   target.Host,
		Path:   "/robots.txt",
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), http.NoBody)
	if err != nil {
		return true
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Unreachable robots.txt does not block the fetch.
		return true
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		return false
	}

	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		return false
	}

	return robots.TestAgent(target.Path, useragent.Header)
}

func htmlToMarkdown(html string) string {
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return html
	}
	return markdown
}

func htmlToText(html string) string {
	return html2text.HTML2Text(html)
}

func (t *FetchTool) Instructions() string {
	return `## "fetch" tool instructions

This tool allows you to fetch content from HTTP and HTTPS URLs.

FEATURES

- Support for multiple URLs in a single call
- Returns response body and metadata (status code, content type, length)
- Specify the output format (text, markdown, html)
- Respects robots.txt restrictions

USAGE TIPS
- Use single URLs for simple content fetching
- Use multiple URLs for batch operations`
}

func (t *FetchTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Name:        ToolNameFetch,
			Category:    "fetch",
			Description: "Fetch content from one or more HTTP/HTTPS URLs. Returns the response body and metadata.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"urls": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "string",
						},
						"description": "Array of URLs to fetch",
						"minItems":    1,
					},
					"format": map[string]any{
						"type":        "string",
						"description": "The format to return the content in (text, markdown, or html)",
						"enum":        []string{"text", "markdown", "html"},
					},
					"timeout": map[string]any{
						"type":        "integer",
						"description": "Request timeout in seconds (default: 30)",
						"minimum":     1,
						"maximum":     300,
					},
				},
				"required": []string{"urls", "format"},
			},
			OutputSchema: tools.MustSchemaFor[string](),
			Handler:      tools.NewHandler(t.callTool),
			Annotations: tools.ToolAnnotations{
				ReadOnlyHint: true,
				Title:        "Fetch URLs",
			},
		},
	}, nil
}
