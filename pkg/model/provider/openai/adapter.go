package openai

import (
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/model"
)

// streamAdapter converts the OpenAI chunk stream to the connection
// contract.
type streamAdapter struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	// The final usage chunk arrives with an empty choice list after the
	// finish reason; the reason is remembered so usage and finish surface
	// together.
	lastFinishReason chat.FinishReason
}

func newStreamAdapter(stream *ssestream.Stream[openai.ChatCompletionChunk]) *streamAdapter {
	return &streamAdapter{stream: stream}
}

func (a *streamAdapter) Recv() (model.StreamDelta, error) {
	if !a.stream.Next() {
		if err := a.stream.Err(); err != nil {
			return model.StreamDelta{}, err
		}
		return model.StreamDelta{}, io.EOF
	}

	chunk := a.stream.Current()
	delta := model.StreamDelta{}

	if chunk.JSON.Usage.Valid() {
		delta.Usage = &chat.Usage{
			InputTokens:       chunk.Usage.PromptTokens,
			OutputTokens:      chunk.Usage.CompletionTokens,
			CachedInputTokens: chunk.Usage.PromptTokensDetails.CachedTokens,
		}
		delta.FinishReason = a.lastFinishReason
	}

	for i := range chunk.Choices {
		choice := &chunk.Choices[i]
		delta.Content += choice.Delta.Content

		for _, toolCall := range choice.Delta.ToolCalls {
			delta.ToolCalls = append(delta.ToolCalls, model.ToolCallDelta{
				Index:     int(toolCall.Index),
				ID:        toolCall.ID,
				Name:      toolCall.Function.Name,
				Arguments: toolCall.Function.Arguments,
			})
		}

		switch choice.FinishReason {
		case "":
		case "tool_calls":
			a.lastFinishReason = chat.FinishReasonToolCalls
			delta.FinishReason = chat.FinishReasonToolCalls
		default:
			a.lastFinishReason = chat.FinishReasonStop
			delta.FinishReason = chat.FinishReasonStop
		}
	}

	return delta, nil
}

func (a *streamAdapter) Close() error {
	return a.stream.Close()
}
