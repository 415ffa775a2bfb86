// Package openai implements the model connection contract on top of the
// OpenAI chat completions API. Any OpenAI-compatible endpoint works by
// setting a base URL on the model descriptor.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/httpclient"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/tools"
)

const defaultAPIKeyEnv = "OPENAI_API_KEY"

type Client struct {
	client *openai.Client
	desc   api.ModelDescriptor
}

var _ model.Connection = (*Client)(nil)

func NewClient(desc api.ModelDescriptor) (*Client, error) {
	keyEnv := desc.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultAPIKeyEnv
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" && desc.BaseURL == "" {
		return nil, fmt.Errorf("openai: environment variable %s is not set", keyEnv)
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(httpclient.NewHTTPClient()),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if desc.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(desc.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client, desc: desc}, nil
}

func (c *Client) CreateChatCompletionStream(ctx context.Context, messages []chat.Message, requestTools []tools.Tool) (model.MessageStream, error) {
	slog.Debug("Creating OpenAI chat completion stream",
		"model", c.desc.Name,
		"message_count", len(messages),
		"tool_count", len(requestTools))

	if len(messages) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.desc.Name,
		Messages: convertMessages(messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if c.desc.Temperature != nil {
		params.Temperature = openai.Float(*c.desc.Temperature)
	}
	if c.desc.MaxTokens > 0 {
		params.MaxTokens = openai.Int(c.desc.MaxTokens)
	}

	if len(requestTools) > 0 {
		toolsParam, err := convertTools(requestTools)
		if err != nil {
			return nil, err
		}
		params.Tools = toolsParam
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	return newStreamAdapter(stream), nil
}

func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.desc.Name,
		Messages: convertMessages(messages),
	}
	if c.desc.MaxTokens > 0 {
		params.MaxTokens = openai.Int(c.desc.MaxTokens)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai completion: no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

func convertMessages(messages []chat.Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i := range messages {
		msg := &messages[i]

		// Assistant messages without content or tool calls confuse some
		// OpenAI-compatible backends. Skip them.
		if msg.Role == chat.MessageRoleAssistant && len(msg.ToolCalls) == 0 && strings.TrimSpace(msg.Content) == "" {
			continue
		}

		switch msg.Role {
		case chat.MessageRoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))

		case chat.MessageRoleUser:
			if len(msg.MultiContent) == 0 {
				converted = append(converted, openai.UserMessage(msg.Content))
			} else {
				converted = append(converted, openai.UserMessage(convertMultiContent(msg.MultiContent)))
			}

		case chat.MessageRoleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Function.Name,
							Arguments: call.Function.Arguments,
						},
					},
				})
			}
			converted = append(converted, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case chat.MessageRoleTool:
			converted = append(converted, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}
	return converted
}

func convertMultiContent(parts []chat.MessagePart) []openai.ChatCompletionContentPartUnionParam {
	converted := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case chat.MessagePartTypeText:
			converted = append(converted, openai.TextContentPart(part.Text))
		case chat.MessagePartTypeImageURL:
			if part.ImageURL != nil {
				converted = append(converted, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: part.ImageURL.URL,
				}))
			}
		}
	}
	return converted
}

func convertTools(requestTools []tools.Tool) ([]openai.ChatCompletionToolUnionParam, error) {
	toolsParam := make([]openai.ChatCompletionToolUnionParam, len(requestTools))
	for i, tool := range requestTools {
		parameters, err := tool.ParametersMap()
		if err != nil {
			return nil, fmt.Errorf("converting parameters for tool %s: %w", tool.Name, err)
		}
		toolsParam[i] = openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  shared.FunctionParameters(parameters),
		})
	}
	return toolsParam, nil
}
