// Package orchestrator implements the poller + state machine of spec.md
// §4.1: discover() persists and validates landing requests and dispatches
// one job per branch; on_result(msg) aggregates per-branch pusher replies
// into a single terminal Request status. Grounded on the teacher's
// worker/pool.go tick-and-dispatch shape, generalized from a generic job
// queue to the tracker-poll / bus-drain / comment-outbox sweep described in
// spec.md §9's "coroutine-style polling" REDESIGN FLAG.
package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"go.mozilla.org/autoland/model"
	"go.mozilla.org/autoland/outbox"
	"go.mozilla.org/autoland/store"
)

// TrackerClient is the subset of tracker.Client the orchestrator depends on.
type TrackerClient interface {
	GetWaitingBugs() ([]WaitingBug, error)
	GetPatches(bugID int, patchIDs []int) ([]model.Patch, error)
	UpdateAttachmentStatus(status string, patchIDs []int) error
	RemoveFromQueue(patchIDs []int) error
}

// WaitingBug is the subset of tracker.WaitingBug the orchestrator reads,
// re-declared here so this package does not import tracker's wire types
// directly (kept to what discover() actually consumes).
type WaitingBug struct {
	BugID       int
	Branches    string
	TrySyntax   string
	StatusWhen  string
	Attachments []int
}

// DirectoryClient is the subset of directory.Client the orchestrator depends
// on for patch-applicability checks.
type DirectoryClient interface {
	InGroup(ctx context.Context, email, group string) (bool, error)
}

// BranchPermissionsClient resolves the directory group required to land on
// a branch (spec.md §6's branch-permissions HTTP endpoint).
type BranchPermissionsClient interface {
	RequiredGroup(ctx context.Context, branch string) (string, error)
}

// TreeStatusChecker reports whether a branch currently accepts landings.
type TreeStatusChecker interface {
	IsOpen(ctx context.Context, branch string) (bool, error)
}

// Publisher is the subset of bus.Bus the orchestrator depends on for
// dispatching jobs.
type Publisher interface {
	Publish(routingKey string, payload interface{}) error
}

// ResultConsumer is the subset of bus.Bus the orchestrator depends on to
// read pusher/classifier replies off the "db" routing key's queue.
type ResultConsumer interface {
	Consume(queue, consumerTag string) (<-chan amqp.Delivery, error)
}

// Config tunes the orchestrator's bounded-retry and polling behavior.
type Config struct {
	TreeStatusMaxAttempts  int
	TreeStatusRetryInterval time.Duration
	PollInterval            time.Duration
	CommentCeiling          int
}

// DefaultConfig returns the spec.md defaults.
func DefaultConfig() Config {
	return Config{
		TreeStatusMaxAttempts:   5,
		TreeStatusRetryInterval: 30 * time.Second,
		PollInterval:            30 * time.Second,
		CommentCeiling:          outbox.MaxAttempts,
	}
}

// Services bundles every external dependency the orchestrator needs,
// constructed once at process start and threaded through every operation —
// the Services-bundle REDESIGN FLAG of spec.md §9, replacing the source's
// process-level config/tracker/directory/bus singletons.
type Services struct {
	Requests          store.RequestRepository
	Patchsets         store.PatchsetRepository
	Branches          store.BranchRepository
	Bus               Publisher
	Results           ResultConsumer
	ResultsQueue      string
	Tracker           TrackerClient
	Directory         DirectoryClient
	BranchPermissions BranchPermissionsClient
	TreeStatus        TreeStatusChecker
	Outbox            *outbox.Outbox
	Log               *logrus.Logger
	Config            Config
}
