package httpclient

import (
	"net/http"

	"github.com/agentcore/agentcore/pkg/useragent"
)

type headerTransport struct {
	headers http.Header
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	for key, values := range t.headers {
		for _, value := range values {
			r2.Header.Set(key, value)
		}
	}
	return t.rt.RoundTrip(r2)
}

type Option func(http.Header)

// WithModelName tags outbound requests with the configured model alias.
func WithModelName(name string) Option {
	return func(h http.Header) {
		if name != "" {
			h.Set("X-Agentcore-Model-Name", name)
		}
	}
}

// WithModel tags outbound requests with the resolved model identifier.
func WithModel(model string) Option {
	return func(h http.Header) {
		if model != "" {
			h.Set("X-Agentcore-Model", model)
		}
	}
}

// WithProvider tags outbound requests with the provider type.
func WithProvider(provider string) Option {
	return func(h http.Header) {
		if provider != "" {
			h.Set("X-Agentcore-Provider", provider)
		}
	}
}

// NewHTTPClient returns an http.Client that stamps the product User-Agent
// and any configured identification headers on every request.
func NewHTTPClient(opts ...Option) *http.Client {
	headers := http.Header{}
	headers.Set("User-Agent", useragent.Header)
	for _, opt := range opts {
		opt(headers)
	}
	return &http.Client{
		Transport: &headerTransport{
			headers: headers,
			rt:      http.DefaultTransport,
		},
	}
}
