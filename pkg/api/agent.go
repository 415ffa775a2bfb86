package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"sort"
)

// ModelDescriptor names the model a runner talks to. On the wire it is
// either a bare model name or a full object.
type ModelDescriptor struct {
	Provider    string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKeyEnv   string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int64    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

func (d *ModelDescriptor) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &d.Name)
	}
	type plain ModelDescriptor
	return json.Unmarshal(trimmed, (*plain)(d))
}

// AgentConfig is the frozen description an agent is created from. The
// declared tool list never changes after creation.
type AgentConfig struct {
	AgentType    string            `json:"agent_type" yaml:"agent_type"`
	SystemPrompt string            `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Model        ModelDescriptor   `json:"model" yaml:"model"`
	Tools        []string          `json:"tools,omitempty" yaml:"tools,omitempty"`
	Settings     map[string]string `json:"settings,omitempty" yaml:"settings,omitempty"`
}

type fingerprintForm struct {
	AgentType    string            `json:"agent_type"`
	SystemPrompt string            `json:"system_prompt"`
	Model        ModelDescriptor   `json:"model"`
	Tools        []string          `json:"tools"`
	Settings     map[string]string `json:"settings"`
}

// Fingerprint returns a stable digest of the configuration. Two configs
// with the same type, prompt, model, tool set, and settings share a
// fingerprint regardless of tool ordering. Map keys marshal in sorted
// order, so settings need no extra normalization.
func (c *AgentConfig) Fingerprint() string {
	form := fingerprintForm{
		AgentType:    c.AgentType,
		SystemPrompt: c.SystemPrompt,
		Model:        c.Model,
		Tools:        slices.Clone(c.Tools),
		Settings:     c.Settings,
	}
	sort.Strings(form.Tools)

	raw, err := json.Marshal(form)
	if err != nil {
		// The form contains only marshalable types.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Clone returns a deep copy so a stored config cannot be mutated by the
// caller after creation.
func (c *AgentConfig) Clone() *AgentConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Tools = slices.Clone(c.Tools)
	if c.Settings != nil {
		clone.Settings = make(map[string]string, len(c.Settings))
		for key, value := range c.Settings {
			clone.Settings[key] = value
		}
	}
	if c.Model.Temperature != nil {
		temperature := *c.Model.Temperature
		clone.Model.Temperature = &temperature
	}
	return &clone
}
