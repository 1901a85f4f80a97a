// Package store provides the repository interfaces the orchestrator,
// pusher, and classifier use to read and write their five durable tables.
// This generalizes the teacher's db/repository multi-database Repository
// pattern (document/graph/metrics/cache split across CouchDB, Neo4j,
// PostgreSQL, and Redis) down to a single PostgreSQL-backed store, since
// this system has no document, graph, or ephemeral-cache storage need —
// see DESIGN.md for why DocumentRepository, GraphRepository, and
// CacheRepository were dropped rather than adapted.
package store

import (
	"context"
	"time"

	"go.mozilla.org/autoland/model"
)

// BranchRepository reads the long-lived, out-of-band-maintained branch
// configuration table (spec.md §3 Ownership: core never writes Branch rows).
type BranchRepository interface {
	GetBranch(ctx context.Context, name string) (*model.Branch, error)
	ListEnabledBranches(ctx context.Context) ([]model.Branch, error)
}

// RequestRepository persists Requests and enforces I2: a second discovery
// of the same (bug, source-timestamp) pair is a no-op, not a duplicate row.
type RequestRepository interface {
	// SaveNewRequest inserts req and reports whether it was newly created.
	// created is false when the (bug_id, source_time) pair already existed,
	// in which case no dispatch should follow; the PostgreSQL implementation
	// then overwrites req with the stored row.
	SaveNewRequest(ctx context.Context, req *model.Request) (created bool, err error)
	GetRequest(ctx context.Context, id int64) (*model.Request, error)
	FindRequest(ctx context.Context, bugID int, sourceTime time.Time) (*model.Request, error)
	UpdateStatus(ctx context.Context, id int64, status model.RequestStatus) error
	// UpdateDispatch records the dispatch-task id alongside the dispatched
	// status in a single write, so the generated id is never discarded.
	UpdateDispatch(ctx context.Context, id int64, status model.RequestStatus, dispatchTaskID string) error
	ListByStatus(ctx context.Context, status model.RequestStatus) ([]model.Request, error)
}

// PatchsetRepository persists Patchsets and enforces I1: Patchsets for the
// same (bug, source-timestamp, branch) tuple are deduplicated at the
// database layer.
type PatchsetRepository interface {
	// SaveNewPatchset inserts ps and reports whether it was newly created.
	SaveNewPatchset(ctx context.Context, ps *model.Patchset) (created bool, err error)
	GetPatchset(ctx context.Context, id int64) (*model.Patchset, error)
	ListByRequest(ctx context.Context, requestID int64) ([]model.Patchset, error)
	UpdateStatus(ctx context.Context, id int64, status model.PatchsetStatus) error
	RecordPush(ctx context.Context, id int64, revision string, pushedAt time.Time) error
}

// PendingCommentRepository manages the outbox of bug comments awaiting
// retry, per spec.md §3 and I6 (removed on first success or attempt ceiling).
type PendingCommentRepository interface {
	Enqueue(ctx context.Context, bugID int, body string, seenAt time.Time) (*model.PendingComment, error)
	ListDue(ctx context.Context) ([]model.PendingComment, error)
	RecordAttempt(ctx context.Context, id int64, at time.Time) error
	Remove(ctx context.Context, id int64) error
}

// RevisionCacheRepository persists the classifier's per-revision
// observation records across restarts.
type RevisionCacheRepository interface {
	Get(ctx context.Context, revision string) (*model.RevisionCache, error)
	Upsert(ctx context.Context, rc *model.RevisionCache) error
	ListOpen(ctx context.Context) ([]model.RevisionCache, error)
}
