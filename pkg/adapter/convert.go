package adapter

import (
	"time"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
)

// toChatMessages converts inbound universal messages into transcript
// entries. Non-text parts are flattened to their textual view; the model
// layer re-expands images where a provider supports them.
func toChatMessages(messages []api.UniversalMessage) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	now := time.Now().Format(time.RFC3339)
	for _, msg := range messages {
		converted := chat.Message{
			Role:      chat.MessageRole(msg.Role),
			CreatedAt: now,
		}
		if len(msg.Parts) > 0 {
			converted.MultiContent = toMessageParts(msg.Parts)
		} else {
			converted.Content = msg.Content
		}
		out = append(out, converted)
	}
	return out
}

func toMessageParts(parts []api.ContentPart) []chat.MessagePart {
	out := make([]chat.MessagePart, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case api.ContentPartTypeImage:
			out = append(out, chat.MessagePart{
				Type:     chat.MessagePartTypeImageURL,
				ImageURL: &chat.MessageImageURL{URL: part.ImageURL},
			})
		default:
			out = append(out, chat.MessagePart{
				Type: chat.MessagePartTypeText,
				Text: part.Text,
			})
		}
	}
	return out
}

// toUniversalMessages converts a run's transcript delta back to the wire
// shape. Tool-role messages are kept so the client sees the full exchange.
func toUniversalMessages(messages []chat.Message) []api.UniversalMessage {
	out := make([]api.UniversalMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, api.UniversalMessage{
			Role:    api.Role(msg.Role),
			Content: msg.Text(),
		})
	}
	return out
}
