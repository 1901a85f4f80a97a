// Package store is the durable persistence layer shared by the
// orchestrator, pusher, and classifier. It wraps a PostgreSQL connection
// via GORM, grounded on the teacher's db/postgres.go connection-and-migrate
// pattern, generalized from the teacher's single RabbitLog table to the
// five domain tables named in spec.md §3: branches, autoland_requests,
// patchsets, pending_comments, and revision_cache.
package store

import (
	"encoding/json"
	"time"
)

// BranchRow is the GORM row for model.Branch. Branches are long-lived and
// mutated out of band (spec.md §3 Ownership); the store only reads them.
type BranchRow struct {
	Name             string `gorm:"primaryKey;column:name"`
	PullURL          string `gorm:"column:pull_url"`
	PushURL          string `gorm:"column:push_url"`
	DisplayName      string `gorm:"column:display_name"`
	Enabled          bool   `gorm:"column:enabled"`
	ApprovalRequired bool   `gorm:"column:approval_required"`
	ReviewRequired   bool   `gorm:"column:review_required"`
	AddTryCommit     bool   `gorm:"column:add_try_commit"`
	UseTreeStatus    bool   `gorm:"column:use_tree_status"`
	ConcurrencyLimit int    `gorm:"column:concurrency_limit"`
}

func (BranchRow) TableName() string { return "branches" }

// intCSV stores a []int as a JSON array column, adapted from the teacher's
// repository_postgres.go pattern of marshaling nested run data into a
// single jsonb-ish column rather than a join table.
type intCSV []int

func marshalInts(v []int) ([]byte, error) {
	if v == nil {
		v = []int{}
	}
	return json.Marshal(v)
}

func unmarshalInts(b []byte) ([]int, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v []int
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func marshalStrings(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}

func unmarshalStrings(b []byte) ([]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v []string
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// RequestRow is the GORM row for model.Request. The unique index on
// (bug_id, source_time) grounds I2: a second discovery of the same
// (bug, source-timestamp) pair must not re-dispatch work.
type RequestRow struct {
	ID             int64     `gorm:"primaryKey;autoIncrement;column:id"`
	BugID          int       `gorm:"column:bug_id;uniqueIndex:idx_request_dedup"`
	SourceTime     time.Time `gorm:"column:source_time;uniqueIndex:idx_request_dedup"`
	BranchesJSON   []byte    `gorm:"column:branches_json"`
	PatchIDsJSON   []byte    `gorm:"column:patch_ids_json"`
	TrySyntax      string    `gorm:"column:try_syntax"`
	Status         string    `gorm:"column:status"`
	DispatchTaskID string    `gorm:"column:dispatch_task_id"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (RequestRow) TableName() string { return "autoland_requests" }

// PatchsetRow is the GORM row for model.Patchset. The unique index on
// (bug_id, source_time, branch) grounds I1: Patchsets for the same
// (bug, source-timestamp, branch) tuple are deduplicated at the database
// layer, so a second attempt to persist one is a no-op rather than an error.
type PatchsetRow struct {
	ID           int64      `gorm:"primaryKey;autoIncrement;column:id"`
	RequestID    int64      `gorm:"column:request_id"`
	BugID        int        `gorm:"column:bug_id;uniqueIndex:idx_patchset_dedup"`
	SourceTime   time.Time  `gorm:"column:source_time;uniqueIndex:idx_patchset_dedup"`
	Branch       string     `gorm:"column:branch;uniqueIndex:idx_patchset_dedup"`
	PatchIDsJSON []byte     `gorm:"column:patch_ids_json"`
	TrySyntax    string     `gorm:"column:try_syntax"`
	Status       string     `gorm:"column:status"`
	Revision     string     `gorm:"column:revision"`
	PushedAt     *time.Time `gorm:"column:pushed_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (PatchsetRow) TableName() string { return "patchsets" }

// PendingCommentRow is the GORM row for model.PendingComment (spec.md §3, I6).
type PendingCommentRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	BugID     int       `gorm:"column:bug_id;index"`
	Body      string    `gorm:"column:body"`
	Attempts  int       `gorm:"column:attempts"`
	FirstSeen time.Time `gorm:"column:first_seen"`
	LastTried time.Time `gorm:"column:last_tried"`
}

func (PendingCommentRow) TableName() string { return "pending_comments" }

// RevisionCacheRow is the GORM row for model.RevisionCache, the classifier's
// durable per-revision observation record.
type RevisionCacheRow struct {
	Revision     string     `gorm:"primaryKey;column:revision"`
	FirstSeen    time.Time  `gorm:"column:first_seen"`
	StatusLogCSV []byte     `gorm:"column:status_log_json"`
	Terminal     bool       `gorm:"column:terminal"`
	TerminalAt   *time.Time `gorm:"column:terminal_at"`
}

func (RevisionCacheRow) TableName() string { return "revision_cache" }
