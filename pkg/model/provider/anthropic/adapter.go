package anthropic

import (
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/model"
)

// streamAdapter converts the Anthropic event stream to the connection
// contract. Tool-call fragments are correlated by content block index.
type streamAdapter struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	// Anthropic block indexes count text and thinking blocks too; they are
	// remapped to a dense tool ordinal for accumulation.
	toolIndex map[int64]int
	usage     *chat.Usage
}

func (a *streamAdapter) Recv() (model.StreamDelta, error) {
	if !a.stream.Next() {
		if err := a.stream.Err(); err != nil {
			return model.StreamDelta{}, err
		}
		return model.StreamDelta{}, io.EOF
	}

	event := a.stream.Current()
	delta := model.StreamDelta{}

	switch eventVariant := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		switch block := eventVariant.ContentBlock.AsAny().(type) {
		case anthropic.ToolUseBlock:
			if a.toolIndex == nil {
				a.toolIndex = make(map[int64]int)
			}
			ordinal := len(a.toolIndex)
			a.toolIndex[eventVariant.Index] = ordinal
			delta.ToolCalls = []model.ToolCallDelta{{
				Index: ordinal,
				ID:    block.ID,
				Name:  block.Name,
			}}
		case anthropic.ThinkingBlock:
			delta.ReasoningContent = block.Thinking
			delta.ThinkingSignature = block.Signature
		}

	case anthropic.ContentBlockDeltaEvent:
		switch deltaVariant := eventVariant.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			delta.Content = deltaVariant.Text
		case anthropic.ThinkingDelta:
			delta.ReasoningContent = deltaVariant.Thinking
		case anthropic.SignatureDelta:
			delta.ThinkingSignature = deltaVariant.Signature
		case anthropic.InputJSONDelta:
			ordinal, ok := a.toolIndex[eventVariant.Index]
			if !ok {
				return delta, fmt.Errorf("anthropic: argument delta for unknown block index %d", eventVariant.Index)
			}
			delta.ToolCalls = []model.ToolCallDelta{{
				Index:     ordinal,
				Arguments: deltaVariant.PartialJSON,
			}}
		default:
			return delta, fmt.Errorf("anthropic: unknown delta type: %T", deltaVariant)
		}

	case anthropic.MessageDeltaEvent:
		a.usage = &chat.Usage{
			InputTokens:       eventVariant.Usage.InputTokens,
			OutputTokens:      eventVariant.Usage.OutputTokens,
			CachedInputTokens: eventVariant.Usage.CacheReadInputTokens,
			CacheWriteTokens:  eventVariant.Usage.CacheCreationInputTokens,
		}

	case anthropic.MessageStopEvent:
		if len(a.toolIndex) > 0 {
			delta.FinishReason = chat.FinishReasonToolCalls
		} else {
			delta.FinishReason = chat.FinishReasonStop
		}
		delta.Usage = a.usage
	}

	return delta, nil
}

func (a *streamAdapter) Close() error {
	return a.stream.Close()
}
