// Package anthropic implements the model connection contract on top of the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/httpclient"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/tools"
)

const (
	defaultAPIKeyEnv = "ANTHROPIC_API_KEY"

	// defaultMaxTokens is a safe ceiling accepted by every current
	// Anthropic model.
	defaultMaxTokens = 8192
)

type Client struct {
	client anthropic.Client
	desc   api.ModelDescriptor
}

var _ model.Connection = (*Client)(nil)

func NewClient(desc api.ModelDescriptor) (*Client, error) {
	keyEnv := desc.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultAPIKeyEnv
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: environment variable %s is not set", keyEnv)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpclient.NewHTTPClient()),
	}
	if desc.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(desc.BaseURL))
	}

	return &Client{client: anthropic.NewClient(opts...), desc: desc}, nil
}

func (c *Client) CreateChatCompletionStream(ctx context.Context, messages []chat.Message, requestTools []tools.Tool) (model.MessageStream, error) {
	slog.Debug("Creating Anthropic chat completion stream",
		"model", c.desc.Name,
		"message_count", len(messages),
		"tool_count", len(requestTools))

	params, err := c.buildParams(messages, requestTools)
	if err != nil {
		return nil, err
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	return &streamAdapter{stream: stream}, nil
}

func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	params, err := c.buildParams(messages, nil)
	if err != nil {
		return "", err
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if textBlock, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(textBlock.Text)
		}
	}
	return text.String(), nil
}

func (c *Client) buildParams(messages []chat.Message, requestTools []tools.Tool) (anthropic.MessageNewParams, error) {
	converted := convertMessages(messages)
	if len(converted) == 0 {
		return anthropic.MessageNewParams{}, errors.New("anthropic: no messages to send after conversion")
	}

	allTools, err := convertTools(requestTools)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := c.desc.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.desc.Name),
		MaxTokens: maxTokens,
		System:    extractSystemBlocks(messages),
		Messages:  converted,
		Tools:     allTools,
	}
	if c.desc.Temperature != nil {
		params.Temperature = param.NewOpt(*c.desc.Temperature)
	}
	return params, nil
}

func convertMessages(messages []chat.Message) []anthropic.MessageParam {
	var converted []anthropic.MessageParam

	for i := 0; i < len(messages); i++ {
		msg := &messages[i]
		switch msg.Role {
		case chat.MessageRoleSystem:
			// Carried via the top-level System field.

		case chat.MessageRoleUser:
			if blocks := convertUserContent(msg); len(blocks) > 0 {
				converted = append(converted, anthropic.NewUserMessage(blocks...))
			}

		case chat.MessageRoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.ReasoningContent != "" && msg.ThinkingSignature != "" {
				blocks = append(blocks, anthropic.NewThinkingBlock(msg.ThinkingSignature, msg.ReasoningContent))
			}
			if txt := strings.TrimSpace(msg.Content); txt != "" {
				blocks = append(blocks, anthropic.NewTextBlock(txt))
			}
			for _, toolCall := range msg.ToolCalls {
				var input map[string]any
				if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    toolCall.ID,
						Input: input,
						Name:  toolCall.Function.Name,
					},
				})
			}
			if len(blocks) > 0 {
				converted = append(converted, anthropic.NewAssistantMessage(blocks...))
			}

		case chat.MessageRoleTool:
			// Group consecutive tool results into one user message; the API
			// requires tool_use blocks to be answered by a single user turn
			// holding all tool_result blocks.
			var blocks []anthropic.ContentBlockParamUnion
			j := i
			for j < len(messages) && messages[j].Role == chat.MessageRoleTool {
				blocks = append(blocks, anthropic.NewToolResultBlock(
					messages[j].ToolCallID,
					strings.TrimSpace(messages[j].Content),
					messages[j].IsError,
				))
				j++
			}
			converted = append(converted, anthropic.NewUserMessage(blocks...))
			i = j - 1
		}
	}
	return converted
}

func convertUserContent(msg *chat.Message) []anthropic.ContentBlockParamUnion {
	if len(msg.MultiContent) == 0 {
		if txt := strings.TrimSpace(msg.Content); txt != "" {
			return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(txt)}
		}
		return nil
	}

	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range msg.MultiContent {
		switch part.Type {
		case chat.MessagePartTypeText:
			if txt := strings.TrimSpace(part.Text); txt != "" {
				blocks = append(blocks, anthropic.NewTextBlock(txt))
			}
		case chat.MessagePartTypeImageURL:
			if part.ImageURL == nil {
				continue
			}
			if mediaType, data, ok := parseDataURL(part.ImageURL.URL); ok {
				blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, data))
			} else {
				blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: part.ImageURL.URL}))
			}
		}
	}
	return blocks
}

// parseDataURL splits a base64 data URL into its media type and payload.
func parseDataURL(url string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	mediaType, data, found = strings.Cut(rest, ";base64,")
	if !found {
		return "", "", false
	}
	return mediaType, data, true
}

func extractSystemBlocks(messages []chat.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for i := range messages {
		msg := &messages[i]
		if msg.Role != chat.MessageRoleSystem {
			continue
		}
		if txt := strings.TrimSpace(msg.Text()); txt != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: txt})
		}
	}
	return blocks
}

func convertTools(requestTools []tools.Tool) ([]anthropic.ToolUnionParam, error) {
	toolParams := make([]anthropic.ToolParam, len(requestTools))
	for i, tool := range requestTools {
		var inputSchema anthropic.ToolInputSchemaParam
		if err := tools.ConvertSchema(tool.Parameters, &inputSchema); err != nil {
			return nil, fmt.Errorf("converting parameters for tool %s: %w", tool.Name, err)
		}
		toolParams[i] = anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: inputSchema,
		}
	}

	anthropicTools := make([]anthropic.ToolUnionParam, len(toolParams))
	for i := range toolParams {
		anthropicTools[i] = anthropic.ToolUnionParam{OfTool: &toolParams[i]}
	}
	return anthropicTools, nil
}
