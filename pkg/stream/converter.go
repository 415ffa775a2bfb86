package stream

import (
	"strings"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/runtime"
)

// argumentPreviewLimit caps the argument excerpt carried by tool
// proposal chunks.
const argumentPreviewLimit = 512

// Converter turns the runtime's event stream into chunks. It is not safe
// for concurrent use; a single pump goroutine owns it.
type Converter struct {
	taskID        string
	agentID       string
	chatSessionID string

	sequence     uint64
	plan         strings.Builder
	planFlushed  bool
	usage        chat.Usage
	terminalSent bool
}

func NewConverter(taskID, agentID, chatSessionID string) *Converter {
	return &Converter{
		taskID:        taskID,
		agentID:       agentID,
		chatSessionID: chatSessionID,
	}
}

// Convert maps one runtime event onto zero or more chunks. A reasoning
// burst is buffered so its summary can be flushed once, right before the
// first assistant output that follows it.
func (c *Converter) Convert(event runtime.Event) []*Chunk {
	if c.terminalSent {
		return nil
	}

	switch ev := event.(type) {
	case *runtime.StreamStartedEvent:
		return nil

	case *runtime.ReasoningDeltaEvent:
		if !c.planFlushed {
			c.plan.WriteString(ev.Content)
		}
		return []*Chunk{c.chunk(TypePlanDelta, "", ev.Content, Metadata{Stage: StagePlan})}

	case *runtime.ContentDeltaEvent:
		chunks := c.flushPlan()
		return append(chunks, c.chunk(TypeAssistantText, "", ev.Content, Metadata{Stage: StageAssistant}))

	case *runtime.PartialToolCallEvent:
		// Partial proposals are model-internal; clients only see the
		// completed call.
		return nil

	case *runtime.ToolCallEvent:
		chunks := c.flushPlan()
		meta := c.toolMetadata(ev.ToolCall.ID, ev.FullName)
		meta.RequiresConfirmation = ev.RequiresConfirmation
		preview := ev.ToolCall.Function.Arguments
		if len(preview) > argumentPreviewLimit {
			preview = preview[:argumentPreviewLimit]
		}
		return append(chunks, c.chunk(TypeToolProposal, "", preview, meta))

	case *runtime.ToolCallProgressEvent:
		return []*Chunk{c.chunk(TypeProgress, "", ev.Content, Metadata{
			Stage:         StageTool,
			InteractionID: ev.ToolCallID,
		})}

	case *runtime.ToolCallResponseEvent:
		return []*Chunk{c.toolResponse(ev)}

	case *runtime.ElicitationEvent:
		chunks := c.flushPlan()
		return append(chunks, c.chunk(TypeHITLPrompt, "", ev.Message, Metadata{
			Stage:                StageTool,
			InteractionID:        ev.ID,
			RequiresConfirmation: true,
		}))

	case *runtime.TokenUsageEvent:
		c.usage.Add(ev.Usage)
		return nil

	case *runtime.ErrorEvent:
		chunk := c.chunk(TypeError, string(ev.Error.Code), ev.Error.Message, Metadata{
			Stage: StageError,
			Code:  ev.Error.Code,
		})
		c.finishTerminal(chunk)
		return []*Chunk{chunk}

	case *runtime.StreamStoppedEvent:
		chunk := c.chunk(TypeComplete, "", "", Metadata{Stage: StageControl, IsFinal: true})
		c.finishTerminal(chunk)
		return []*Chunk{chunk}

	case *runtime.StreamCancelledEvent:
		chunk := c.chunk(TypeCancelled, "", ev.Reason, Metadata{Stage: StageControl, IsFinal: true})
		c.finishTerminal(chunk)
		return []*Chunk{chunk}

	default:
		return nil
	}
}

// Finish synthesizes the terminal chunk when the runtime channel closed
// without producing one. Returns nil if a terminal chunk was already
// emitted.
func (c *Converter) Finish() *Chunk {
	if c.terminalSent {
		return nil
	}
	chunk := c.chunk(TypeError, string(api.CodeStreamInterrupted),
		"stream ended without a terminal event", Metadata{
			Stage: StageError,
			Code:  api.CodeStreamInterrupted,
		})
	c.finishTerminal(chunk)
	return chunk
}

// Terminal reports whether the terminal chunk has been produced.
func (c *Converter) Terminal() bool {
	return c.terminalSent
}

// Usage returns the tokens accumulated so far.
func (c *Converter) Usage() chat.Usage {
	return c.usage
}

func (c *Converter) toolResponse(ev *runtime.ToolCallResponseEvent) *Chunk {
	meta := c.toolMetadata(ev.ToolCall.ID, ev.FullName)
	meta.AutoTimeout = ev.AutoTimeout

	result := ev.Result
	if result != nil {
		meta.DurationMS = result.DurationMS
	}
	if result != nil && result.Status == api.StatusSuccess {
		return c.chunk(TypeToolResult, "", result.Output, meta)
	}

	content := "tool call failed"
	if result != nil && result.Error != nil {
		meta.Code = result.Error.Code
		content = result.Error.Message
	}
	if ev.AutoTimeout {
		meta.Code = api.CodeInteractionAutoTimeout
	}
	return c.chunk(TypeError, KindToolError, content, meta)
}

func (c *Converter) toolMetadata(interactionID, fullName string) Metadata {
	namespace, short := splitToolName(fullName)
	return Metadata{
		Stage:         StageTool,
		InteractionID: interactionID,
		ToolFullName:  fullName,
		ToolShortName: short,
		ToolNamespace: namespace,
	}
}

// flushPlan emits the buffered reasoning as a one-time summary. The next
// reasoning burst starts a fresh buffer but never produces a second
// summary for the same task.
func (c *Converter) flushPlan() []*Chunk {
	if c.planFlushed || c.plan.Len() == 0 {
		return nil
	}
	c.planFlushed = true
	summary := c.plan.String()
	c.plan.Reset()
	return []*Chunk{c.chunk(TypePlanSummary, "", summary, Metadata{Stage: StagePlan})}
}

func (c *Converter) finishTerminal(chunk *Chunk) {
	chunk.Metadata.InputTokens = c.usage.InputTokens
	chunk.Metadata.OutputTokens = c.usage.OutputTokens
	c.terminalSent = true
}

func (c *Converter) chunk(chunkType ChunkType, kind, content string, meta Metadata) *Chunk {
	c.sequence++
	meta.AgentID = c.agentID
	meta.ChatSessionID = c.chatSessionID
	return &Chunk{
		TaskID:     c.taskID,
		Type:       chunkType,
		Kind:       kind,
		SequenceID: c.sequence,
		Content:    content,
		Metadata:   meta,
	}
}

func splitToolName(fullName string) (namespace, short string) {
	if idx := strings.LastIndex(fullName, "."); idx >= 0 {
		return fullName[:idx], fullName[idx+1:]
	}
	return "", fullName
}
