// Package model holds the plain record types shared by the orchestrator,
// pusher, and classifier: branches, requests, patchsets, patches, and the
// durable comment and revision-cache rows. None of these types carry
// behavior beyond small, pure helpers — validation and state transitions
// live in the packages that own each row (see store, orchestrator, pusher).
package model

import "time"

// RequestStatus is the state-machine position of a Request, per spec.md §4.1.
type RequestStatus string

const (
	RequestPreprocessed  RequestStatus = "preprocessed"
	RequestVerified      RequestStatus = "verified"
	RequestDispatched    RequestStatus = "dispatched"
	RequestSuccess       RequestStatus = "success"
	RequestFailure       RequestStatus = "failure"
	RequestNotVerified   RequestStatus = "not-verified"
	RequestTimedOut      RequestStatus = "timed-out"
)

// Terminal reports whether s is one of the four terminal Request states (I5).
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestSuccess, RequestFailure, RequestNotVerified, RequestTimedOut:
		return true
	default:
		return false
	}
}

// PatchsetStatus is the state-machine position of a Patchset, per spec.md §4.2.
type PatchsetStatus string

const (
	PatchsetQueued     PatchsetStatus = "queued"
	PatchsetInProgress PatchsetStatus = "in-progress"
	PatchsetPushed     PatchsetStatus = "pushed"
	PatchsetPushFailed PatchsetStatus = "push-failed"
)

// Terminal reports whether s is a terminal Patchset state.
func (s PatchsetStatus) Terminal() bool {
	return s == PatchsetPushed || s == PatchsetPushFailed
}

// ReviewKind discriminates the three review flag types Bugzilla reports.
type ReviewKind string

const (
	ReviewPlain ReviewKind = "review"
	ReviewSuper ReviewKind = "superreview"
	ReviewUI    ReviewKind = "ui-review"
)

// FlagResult is the glyph attached to a review or approval flag.
type FlagResult string

const (
	FlagPlus     FlagResult = "+"
	FlagMinus    FlagResult = "-"
	FlagQuestion FlagResult = "?"
)

// Person names a patch author, reviewer, or approver.
type Person struct {
	Name  string
	Email string
}

// Review is one reviewer's verdict on a Patch.
type Review struct {
	Type     ReviewKind
	Reviewer Person
	Result   FlagResult
}

// Approval is one branch-tagged sign-off on a Patch.
type Approval struct {
	Branch   string
	Approver Person
	Result   FlagResult
}

// Patch is a single tracker attachment fetched on demand (spec.md §3).
type Patch struct {
	ID         int
	Author     Person
	Reviews    []Review
	Approvals  []Approval
}

// ApprovalsFor returns the patch's approvals tagged for branch with a '+' result.
func (p Patch) ApprovalsFor(branch string) []Approval {
	var out []Approval
	for _, a := range p.Approvals {
		if a.Branch == branch && a.Result == FlagPlus {
			out = append(out, a)
		}
	}
	return out
}

// Branch is a landing destination; read-only to the core (spec.md §3 Ownership).
type Branch struct {
	Name              string
	PullURL           string
	PushURL           string
	DisplayName       string
	Enabled           bool
	ApprovalRequired  bool
	ReviewRequired    bool
	AddTryCommit      bool
	UseTreeStatus     bool
	ConcurrencyLimit  int
}

// Request is one developer's landing intent across one or more branches.
type Request struct {
	ID             int64
	BugID          int
	SourceTime     time.Time
	Branches       []string
	PatchIDs       []int
	TrySyntax      string
	Status         RequestStatus
	DispatchTaskID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Patchset is the unit of work for one (Request, branch) pair.
type Patchset struct {
	ID         int64
	RequestID  int64
	BugID      int
	SourceTime time.Time
	Branch     string
	PatchIDs   []int
	TrySyntax  string
	Status     PatchsetStatus
	Revision   string
	PushedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PendingComment is a bug comment awaiting retry by the outbox (spec.md §3, I6).
type PendingComment struct {
	ID         int64
	BugID      int
	Body       string
	Attempts   int
	FirstSeen  time.Time
	LastTried  time.Time
}

// RevisionCache is the classifier's durable per-revision observation record.
type RevisionCache struct {
	Revision   string
	FirstSeen  time.Time
	StatusLog  []string
	Terminal   bool
	TerminalAt *time.Time
}
