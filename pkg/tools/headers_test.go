package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderSourcesMerge(t *testing.T) {
	merged := HeaderSources{
		Static:  map[string]string{"X-A": "static", "X-Static": "1"},
		Derived: map[string]string{"X-A": "derived", "X-User-ID": "u1"},
		Task:    map[string]string{"X-A": "task"},
		Tool:    map[string]string{"X-A": "tool"},
		Call:    map[string]string{"X-A": "call"},
	}.Merge()

	assert.Equal(t, "call", merged["X-A"])
	assert.Equal(t, "1", merged["X-Static"])
	assert.Equal(t, "u1", merged["X-User-ID"])
}

func TestDerivedHeaders(t *testing.T) {
	headers := DerivedHeaders("u1", "", "e3")
	assert.Equal(t, map[string]string{
		"X-User-ID":      "u1",
		"X-Execution-ID": "e3",
	}, headers)
}

func TestHeadersContextRoundTrip(t *testing.T) {
	ctx := t.Context()
	assert.Nil(t, HeadersFromContext(ctx))

	ctx = WithHeaders(ctx, map[string]string{"X-Session-ID": "s1"})
	assert.Equal(t, map[string]string{"X-Session-ID": "s1"}, HeadersFromContext(ctx))
}
