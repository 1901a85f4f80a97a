// Package classifier implements the outcome classifier of spec.md §4.3: on
// a periodic tick, it queries the downstream build store for every
// tracked revision's build-request records, classifies the set, and
// reports terminal outcomes back to the bug tracker.
package classifier

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"go.mozilla.org/autoland/outbox"
	"go.mozilla.org/autoland/store"
)

// BuildStatus is one build-request's reported status, lower-cased per the
// downstream scheduler's result strings.
type BuildStatus string

const (
	StatusSuccess   BuildStatus = "success"
	StatusWarnings  BuildStatus = "warnings"
	StatusFailure   BuildStatus = "failure"
	StatusSkipped   BuildStatus = "skipped"
	StatusException BuildStatus = "exception"
)

// BuildRecord is one build-request row for a revision, generalized from
// eve's ActionRun (single execution record with timing data) to a
// revision-keyed Mercurial build request.
type BuildRecord struct {
	BuildID     string
	Builder     string
	Status      BuildStatus
	Comments    []string
	FinishTime  time.Time
	HasFinished bool
}

// BuildStore reads the downstream build scheduler's data and triggers
// rebuilds, grounded on eve/db/repository/interfaces.go's MetricsRepository
// — generalized from action/run-keyed time-series execution data to
// revision-keyed build requests.
type BuildStore interface {
	// RecordsForRevision returns every build-request record tied to
	// revision, mirroring GetRunHistory's "history for one subject" shape.
	RecordsForRevision(ctx context.Context, branch, revision string) ([]BuildRecord, error)
	// ListRevisionsInRange returns every revision with at least one
	// build-request row in [start, end], mirroring GetRunHistory's
	// windowed-query style generalized from one subject to a branch.
	ListRevisionsInRange(ctx context.Context, branch string, start, end time.Time) ([]string, error)
	// Rebuild retriggers the build identified by buildID, mirroring the
	// downstream self-serve rebuild endpoint.
	Rebuild(ctx context.Context, branch, buildID string) error
}

// Config tunes the thresholds spec.md §4.3 names.
type Config struct {
	CompletionThreshold time.Duration // default 10 minutes
	Timeout             time.Duration // default 12 hours
	MaxOrangeDefault    int           // default 10
	Interval            time.Duration // tick interval, default 4h
	Branch              string
	CacheDir            string
	DryRun              bool
	FlagCheck           bool // require --post-to-bugzilla for TRY push-type detection
	NoMessages          bool
}

// DefaultConfig returns original_source/schedulerDBpoller.py's constants.
func DefaultConfig() Config {
	return Config{
		CompletionThreshold: 10 * time.Minute,
		Timeout:             12 * time.Hour,
		MaxOrangeDefault:    10,
		Interval:            4 * time.Hour,
		FlagCheck:           true,
	}
}

// Services bundles every external dependency the classifier depends on —
// the Services-bundle REDESIGN FLAG, mirroring orchestrator.Services and
// pusher.Services.
type Services struct {
	Builds    BuildStore
	Revisions store.RevisionCacheRepository
	Outbox    *outbox.Outbox
	Log       *logrus.Logger
	Config    Config
}
