package bus

import "time"

// Routing keys of the direct exchange (spec.md §6): "db" addresses the
// orchestrator, "hgpusher" addresses the pusher.
const (
	RoutingKeyOrchestrator = "db"
	RoutingKeyPusher       = "hgpusher"
)

// Meta is the envelope wrapper carried on every message.
type Meta struct {
	SentTime     time.Time `json:"sent_time"`
	RoutingKey   string    `json:"routing_key"`
	Exchange     string    `json:"exchange"`
	ReceivedTime time.Time `json:"received_time,omitempty"`
}

// Envelope wraps a typed payload with delivery metadata.
type Envelope struct {
	Meta    Meta        `json:"_meta"`
	Payload interface{} `json:"payload"`
}

// ResultType enumerates the reply kinds a pusher or classifier emits.
type ResultType string

const (
	ResultSuccess  ResultType = "SUCCESS"
	ResultError    ResultType = "ERROR"
	ResultTimedOut ResultType = "TIMED_OUT"
	ResultFailure  ResultType = "FAILURE"
)

// ResultAction names the operation a Result reports on.
type ResultAction string

const (
	ActionTryPush       ResultAction = "TRY.PUSH"
	ActionBranchPush    ResultAction = "BRANCH.PUSH"
	ActionPatchsetApply ResultAction = "PATCHSET.APPLY"
	ActionTryRun        ResultAction = "TRY.RUN"
)

// PatchPayload is one patch's review/approval metadata as carried on the bus.
type PatchPayload struct {
	ID         int               `json:"id"`
	Author     PersonPayload     `json:"author"`
	Reviews    []ReviewPayload   `json:"reviews"`
	Approvals  []ApprovalPayload `json:"approvals"`
}

type PersonPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ReviewPayload struct {
	Type     string        `json:"type"`
	Reviewer PersonPayload `json:"reviewer"`
	Result   string        `json:"result"`
}

type ApprovalPayload struct {
	Type     string        `json:"type"`
	Approver PersonPayload `json:"approver"`
	Result   string        `json:"result"`
}

// Job is the orchestrator-to-pusher "apply" job payload.
type Job struct {
	JobType      string         `json:"job_type"`
	BugID        int            `json:"bug_id"`
	Branch       string         `json:"branch"`
	BranchURL    string         `json:"branch_url"`
	PushURL      string         `json:"push_url"`
	TryRun       bool           `json:"try_run"`
	TrySyntax    string         `json:"try_syntax"`
	AddTryCommit bool           `json:"add_try_commit"`
	PatchsetID   int64          `json:"patchsetid"`
	User         string         `json:"user"`
	ToBranch     string         `json:"to_branch"`
	Patches      []PatchPayload `json:"patches"`
}

// Result is the pusher/classifier-to-orchestrator reply payload.
type Result struct {
	Type       ResultType   `json:"type"`
	Action     ResultAction `json:"action"`
	BugID      int          `json:"bug_id"`
	PatchsetID int64        `json:"patchsetid,omitempty"`
	Revision   string       `json:"revision,omitempty"`
	Comment    string       `json:"comment,omitempty"`
}
