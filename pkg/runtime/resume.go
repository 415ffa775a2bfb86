package runtime

// ResumeType is the decision relayed to an execution blocked on a
// confirmable tool call.
type ResumeType string

const (
	ResumeTypeApprove ResumeType = "approve"
	ResumeTypeReject  ResumeType = "reject"
	ResumeTypeEdit    ResumeType = "edit"
	ResumeTypeCancel  ResumeType = "cancel"
)

// ResumeRequest resumes a blocked execution. AutoTimeout marks decisions
// produced by an expired approval deadline rather than a user; CancelRun
// additionally aborts the whole run after the decision is applied.
type ResumeRequest struct {
	ToolCallID string
	Type       ResumeType
	// Reason accompanies rejections and cancellations.
	Reason string
	// EditedArguments replaces the proposed arguments on ResumeTypeEdit.
	EditedArguments string
	// ResponseData, when set on approval, becomes the tool output directly
	// and skips execution. Elicitation-style prompts resolve this way.
	ResponseData string
	AutoTimeout  bool
	CancelRun    bool
}
