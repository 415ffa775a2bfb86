// Package provider builds model connections from model descriptors.
package provider

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/model/provider/anthropic"
	"github.com/agentcore/agentcore/pkg/model/provider/openai"
	"github.com/agentcore/agentcore/pkg/model/scripted"
)

// Factory creates a connection for one model descriptor. The default
// factory is New; tests substitute scripted connections.
type Factory func(desc api.ModelDescriptor) (model.Connection, error)

// New creates a model connection for the descriptor's provider. A missing
// provider is inferred from the model name prefix, defaulting to openai.
func New(desc api.ModelDescriptor) (model.Connection, error) {
	providerType := desc.Provider
	if providerType == "" {
		providerType = inferProvider(desc.Name)
	}
	slog.Debug("Creating model connection", "provider", providerType, "model", desc.Name)

	switch providerType {
	case "openai":
		return openai.NewClient(desc)
	case "anthropic":
		return anthropic.NewClient(desc)
	case "scripted":
		// An empty scripted connection; tests that need scripted turns
		// inject their own factory instead.
		return scripted.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
}

func inferProvider(modelName string) string {
	if strings.HasPrefix(modelName, "claude") {
		return "anthropic"
	}
	return "openai"
}
