package tools

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// MustSchemaFor builds the JSON schema for T from its struct tags.
// It panics on types that cannot be described, which is a programming
// error caught at startup.
func MustSchemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("schema for %T: %v", *new(T), err))
	}
	return schema
}

// ConvertSchema round-trips a schema value through JSON into out. Providers
// use it to translate tool parameter schemas into their SDK shapes.
func ConvertSchema(params, out any) error {
	buf, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

// NewHandler wraps a typed function into a ToolHandler, decoding the call
// arguments into T. Empty arguments decode as the zero value.
func NewHandler[T any](fn func(ctx context.Context, args T) (*ToolCallResult, error)) ToolHandler {
	return func(ctx context.Context, toolCall ToolCall) (*ToolCallResult, error) {
		var args T
		arguments := cmp.Or(toolCall.Function.Arguments, "{}")
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to parse arguments for %s: %w", toolCall.Function.Name, err)
		}
		return fn(ctx, args)
	}
}
