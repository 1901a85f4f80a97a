package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/model"
)

// DB wraps a GORM connection to the shared PostgreSQL store, grounded on
// the teacher's db/postgres.go connection-pool setup (PGInfo), generalized
// from the teacher's single RabbitLog table to the five domain tables.
type DB struct {
	gorm *gorm.DB
}

// Open connects to pgURL and configures the connection pool the way the
// teacher's PGInfo does: bounded idle/open connections and a max lifetime,
// so a stuck connection gets recycled rather than wedging the pool.
func Open(pgURL string) (*DB, error) {
	g, err := gorm.Open(postgres.Open(pgURL), &gorm.Config{})
	if err != nil {
		return nil, faults.New(faults.Transient, "store.Open", err)
	}
	sqlDB, err := g.DB()
	if err != nil {
		return nil, faults.New(faults.Internal, "store.Open", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return &DB{gorm: g}, nil
}

// Migrate creates or updates the five domain tables.
func (d *DB) Migrate() error {
	err := d.gorm.AutoMigrate(
		&BranchRow{},
		&RequestRow{},
		&PatchsetRow{},
		&PendingCommentRow{},
		&RevisionCacheRow{},
	)
	if err != nil {
		return faults.New(faults.Internal, "store.Migrate", err)
	}
	return nil
}

// gormBranchRepository implements BranchRepository.
type gormBranchRepository struct{ db *DB }

func NewBranchRepository(db *DB) BranchRepository { return &gormBranchRepository{db: db} }

func (r *gormBranchRepository) GetBranch(ctx context.Context, name string) (*model.Branch, error) {
	var row BranchRow
	err := r.db.gorm.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.Newf(faults.NotFound, "store.GetBranch", "branch %q not found", name)
	}
	if err != nil {
		return nil, faults.New(faults.Transient, "store.GetBranch", err)
	}
	b := branchFromRow(row)
	return &b, nil
}

func (r *gormBranchRepository) ListEnabledBranches(ctx context.Context) ([]model.Branch, error) {
	var rows []BranchRow
	if err := r.db.gorm.WithContext(ctx).Where("enabled = ?", true).Find(&rows).Error; err != nil {
		return nil, faults.New(faults.Transient, "store.ListEnabledBranches", err)
	}
	out := make([]model.Branch, 0, len(rows))
	for _, row := range rows {
		out = append(out, branchFromRow(row))
	}
	return out, nil
}

func branchFromRow(row BranchRow) model.Branch {
	return model.Branch{
		Name:             row.Name,
		PullURL:          row.PullURL,
		PushURL:          row.PushURL,
		DisplayName:      row.DisplayName,
		Enabled:          row.Enabled,
		ApprovalRequired: row.ApprovalRequired,
		ReviewRequired:   row.ReviewRequired,
		AddTryCommit:     row.AddTryCommit,
		UseTreeStatus:    row.UseTreeStatus,
		ConcurrencyLimit: row.ConcurrencyLimit,
	}
}

// gormRequestRepository implements RequestRepository.
type gormRequestRepository struct{ db *DB }

func NewRequestRepository(db *DB) RequestRepository { return &gormRequestRepository{db: db} }

// SaveNewRequest enforces I2 by relying on the unique index on
// (bug_id, source_time): a conflicting insert is detected and treated as
// "already processed" rather than surfaced as an error.
func (r *gormRequestRepository) SaveNewRequest(ctx context.Context, req *model.Request) (bool, error) {
	existing, err := r.FindRequest(ctx, req.BugID, req.SourceTime)
	if err != nil && faults.KindOf(err) != faults.NotFound {
		return false, err
	}
	if existing != nil {
		*req = *existing
		return false, nil
	}

	branchesJSON, err := marshalStrings(req.Branches)
	if err != nil {
		return false, faults.New(faults.InvalidInput, "store.SaveNewRequest", err)
	}
	patchIDsJSON, err := marshalInts(req.PatchIDs)
	if err != nil {
		return false, faults.New(faults.InvalidInput, "store.SaveNewRequest", err)
	}
	now := time.Now().UTC()
	row := RequestRow{
		BugID:          req.BugID,
		SourceTime:     req.SourceTime,
		BranchesJSON:   branchesJSON,
		PatchIDsJSON:   patchIDsJSON,
		TrySyntax:      req.TrySyntax,
		Status:         string(req.Status),
		DispatchTaskID: req.DispatchTaskID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.db.gorm.WithContext(ctx).Create(&row).Error; err != nil {
		// A concurrent writer may have raced us to the unique index between
		// our lookup and this insert; treat that as the same no-op path.
		again, findErr := r.FindRequest(ctx, req.BugID, req.SourceTime)
		if findErr == nil {
			*req = *again
			return false, nil
		}
		return false, faults.New(faults.Transient, "store.SaveNewRequest", err)
	}
	req.ID = row.ID
	req.CreatedAt = row.CreatedAt
	req.UpdatedAt = row.UpdatedAt
	return true, nil
}

func (r *gormRequestRepository) GetRequest(ctx context.Context, id int64) (*model.Request, error) {
	var row RequestRow
	err := r.db.gorm.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.Newf(faults.NotFound, "store.GetRequest", "request %d not found", id)
	}
	if err != nil {
		return nil, faults.New(faults.Transient, "store.GetRequest", err)
	}
	req, err := requestFromRow(row)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *gormRequestRepository) FindRequest(ctx context.Context, bugID int, sourceTime time.Time) (*model.Request, error) {
	var row RequestRow
	err := r.db.gorm.WithContext(ctx).
		Where("bug_id = ? AND source_time = ?", bugID, sourceTime).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.Newf(faults.NotFound, "store.FindRequest", "no request for bug %d at %s", bugID, sourceTime)
	}
	if err != nil {
		return nil, faults.New(faults.Transient, "store.FindRequest", err)
	}
	req, err := requestFromRow(row)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *gormRequestRepository) UpdateStatus(ctx context.Context, id int64, status model.RequestStatus) error {
	err := r.db.gorm.WithContext(ctx).Model(&RequestRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(status), "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return faults.New(faults.Transient, "store.UpdateStatus", err)
	}
	return nil
}

func (r *gormRequestRepository) UpdateDispatch(ctx context.Context, id int64, status model.RequestStatus, dispatchTaskID string) error {
	err := r.db.gorm.WithContext(ctx).Model(&RequestRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           string(status),
			"dispatch_task_id": dispatchTaskID,
			"updated_at":       time.Now().UTC(),
		}).Error
	if err != nil {
		return faults.New(faults.Transient, "store.UpdateDispatch", err)
	}
	return nil
}

func (r *gormRequestRepository) ListByStatus(ctx context.Context, status model.RequestStatus) ([]model.Request, error) {
	var rows []RequestRow
	if err := r.db.gorm.WithContext(ctx).Where("status = ?", string(status)).Find(&rows).Error; err != nil {
		return nil, faults.New(faults.Transient, "store.ListByStatus", err)
	}
	out := make([]model.Request, 0, len(rows))
	for _, row := range rows {
		req, err := requestFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func requestFromRow(row RequestRow) (model.Request, error) {
	branches, err := unmarshalStrings(row.BranchesJSON)
	if err != nil {
		return model.Request{}, faults.New(faults.Internal, "store.requestFromRow", err)
	}
	patchIDs, err := unmarshalInts(row.PatchIDsJSON)
	if err != nil {
		return model.Request{}, faults.New(faults.Internal, "store.requestFromRow", err)
	}
	return model.Request{
		ID:             row.ID,
		BugID:          row.BugID,
		SourceTime:     row.SourceTime,
		Branches:       branches,
		PatchIDs:       patchIDs,
		TrySyntax:      row.TrySyntax,
		Status:         model.RequestStatus(row.Status),
		DispatchTaskID: row.DispatchTaskID,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

// gormPatchsetRepository implements PatchsetRepository.
type gormPatchsetRepository struct{ db *DB }

func NewPatchsetRepository(db *DB) PatchsetRepository { return &gormPatchsetRepository{db: db} }

// SaveNewPatchset enforces I1 via the unique index on
// (bug_id, source_time, branch).
func (r *gormPatchsetRepository) SaveNewPatchset(ctx context.Context, ps *model.Patchset) (bool, error) {
	var existing PatchsetRow
	err := r.db.gorm.WithContext(ctx).
		Where("bug_id = ? AND source_time = ? AND branch = ?", ps.BugID, ps.SourceTime, ps.Branch).
		First(&existing).Error
	if err == nil {
		*ps = patchsetFromRow(existing)
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, faults.New(faults.Transient, "store.SaveNewPatchset", err)
	}

	patchIDsJSON, err := marshalInts(ps.PatchIDs)
	if err != nil {
		return false, faults.New(faults.InvalidInput, "store.SaveNewPatchset", err)
	}
	now := time.Now().UTC()
	row := PatchsetRow{
		RequestID:    ps.RequestID,
		BugID:        ps.BugID,
		SourceTime:   ps.SourceTime,
		Branch:       ps.Branch,
		PatchIDsJSON: patchIDsJSON,
		TrySyntax:    ps.TrySyntax,
		Status:       string(ps.Status),
		Revision:     ps.Revision,
		PushedAt:     ps.PushedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.db.gorm.WithContext(ctx).Create(&row).Error; err != nil {
		var again PatchsetRow
		findErr := r.db.gorm.WithContext(ctx).
			Where("bug_id = ? AND source_time = ? AND branch = ?", ps.BugID, ps.SourceTime, ps.Branch).
			First(&again).Error
		if findErr == nil {
			*ps = patchsetFromRow(again)
			return false, nil
		}
		return false, faults.New(faults.Transient, "store.SaveNewPatchset", err)
	}
	ps.ID = row.ID
	ps.CreatedAt = row.CreatedAt
	ps.UpdatedAt = row.UpdatedAt
	return true, nil
}

func (r *gormPatchsetRepository) GetPatchset(ctx context.Context, id int64) (*model.Patchset, error) {
	var row PatchsetRow
	err := r.db.gorm.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.Newf(faults.NotFound, "store.GetPatchset", "patchset %d not found", id)
	}
	if err != nil {
		return nil, faults.New(faults.Transient, "store.GetPatchset", err)
	}
	ps := patchsetFromRow(row)
	return &ps, nil
}

func (r *gormPatchsetRepository) ListByRequest(ctx context.Context, requestID int64) ([]model.Patchset, error) {
	var rows []PatchsetRow
	if err := r.db.gorm.WithContext(ctx).Where("request_id = ?", requestID).Find(&rows).Error; err != nil {
		return nil, faults.New(faults.Transient, "store.ListByRequest", err)
	}
	out := make([]model.Patchset, 0, len(rows))
	for _, row := range rows {
		out = append(out, patchsetFromRow(row))
	}
	return out, nil
}

func (r *gormPatchsetRepository) UpdateStatus(ctx context.Context, id int64, status model.PatchsetStatus) error {
	err := r.db.gorm.WithContext(ctx).Model(&PatchsetRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(status), "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return faults.New(faults.Transient, "store.UpdateStatus", err)
	}
	return nil
}

func (r *gormPatchsetRepository) RecordPush(ctx context.Context, id int64, revision string, pushedAt time.Time) error {
	err := r.db.gorm.WithContext(ctx).Model(&PatchsetRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(model.PatchsetPushed),
			"revision":   revision,
			"pushed_at":  pushedAt,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return faults.New(faults.Transient, "store.RecordPush", err)
	}
	return nil
}

func patchsetFromRow(row PatchsetRow) model.Patchset {
	patchIDs, _ := unmarshalInts(row.PatchIDsJSON)
	return model.Patchset{
		ID:         row.ID,
		RequestID:  row.RequestID,
		BugID:      row.BugID,
		SourceTime: row.SourceTime,
		Branch:     row.Branch,
		PatchIDs:   patchIDs,
		TrySyntax:  row.TrySyntax,
		Status:     model.PatchsetStatus(row.Status),
		Revision:   row.Revision,
		PushedAt:   row.PushedAt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

// gormPendingCommentRepository implements PendingCommentRepository.
type gormPendingCommentRepository struct{ db *DB }

func NewPendingCommentRepository(db *DB) PendingCommentRepository {
	return &gormPendingCommentRepository{db: db}
}

func (r *gormPendingCommentRepository) Enqueue(ctx context.Context, bugID int, body string, seenAt time.Time) (*model.PendingComment, error) {
	row := PendingCommentRow{
		BugID:     bugID,
		Body:      body,
		Attempts:  0,
		FirstSeen: seenAt,
		LastTried: seenAt,
	}
	if err := r.db.gorm.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, faults.New(faults.Transient, "store.Enqueue", err)
	}
	pc := pendingCommentFromRow(row)
	return &pc, nil
}

func (r *gormPendingCommentRepository) ListDue(ctx context.Context) ([]model.PendingComment, error) {
	var rows []PendingCommentRow
	if err := r.db.gorm.WithContext(ctx).Order("first_seen asc").Find(&rows).Error; err != nil {
		return nil, faults.New(faults.Transient, "store.ListDue", err)
	}
	out := make([]model.PendingComment, 0, len(rows))
	for _, row := range rows {
		out = append(out, pendingCommentFromRow(row))
	}
	return out, nil
}

func (r *gormPendingCommentRepository) RecordAttempt(ctx context.Context, id int64, at time.Time) error {
	err := r.db.gorm.WithContext(ctx).Model(&PendingCommentRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_tried": at,
		}).Error
	if err != nil {
		return faults.New(faults.Transient, "store.RecordAttempt", err)
	}
	return nil
}

// Remove deletes the row, implementing I6's "removed upon first successful
// post or upon reaching the attempt ceiling" half of the lifecycle; the
// ceiling decision itself belongs to the outbox package.
func (r *gormPendingCommentRepository) Remove(ctx context.Context, id int64) error {
	if err := r.db.gorm.WithContext(ctx).Delete(&PendingCommentRow{}, id).Error; err != nil {
		return faults.New(faults.Transient, "store.Remove", err)
	}
	return nil
}

func pendingCommentFromRow(row PendingCommentRow) model.PendingComment {
	return model.PendingComment{
		ID:        row.ID,
		BugID:     row.BugID,
		Body:      row.Body,
		Attempts:  row.Attempts,
		FirstSeen: row.FirstSeen,
		LastTried: row.LastTried,
	}
}

// gormRevisionCacheRepository implements RevisionCacheRepository.
type gormRevisionCacheRepository struct{ db *DB }

func NewRevisionCacheRepository(db *DB) RevisionCacheRepository {
	return &gormRevisionCacheRepository{db: db}
}

func (r *gormRevisionCacheRepository) Get(ctx context.Context, revision string) (*model.RevisionCache, error) {
	var row RevisionCacheRow
	err := r.db.gorm.WithContext(ctx).Where("revision = ?", revision).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.Newf(faults.NotFound, "store.Get", "revision %s not cached", revision)
	}
	if err != nil {
		return nil, faults.New(faults.Transient, "store.Get", err)
	}
	rc, err := revisionCacheFromRow(row)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *gormRevisionCacheRepository) Upsert(ctx context.Context, rc *model.RevisionCache) error {
	statusLogJSON, err := marshalStrings(rc.StatusLog)
	if err != nil {
		return faults.New(faults.InvalidInput, "store.Upsert", err)
	}
	row := RevisionCacheRow{
		Revision:     rc.Revision,
		FirstSeen:    rc.FirstSeen,
		StatusLogCSV: statusLogJSON,
		Terminal:     rc.Terminal,
		TerminalAt:   rc.TerminalAt,
	}
	err = r.db.gorm.WithContext(ctx).Save(&row).Error
	if err != nil {
		return faults.New(faults.Transient, "store.Upsert", err)
	}
	return nil
}

func (r *gormRevisionCacheRepository) ListOpen(ctx context.Context) ([]model.RevisionCache, error) {
	var rows []RevisionCacheRow
	if err := r.db.gorm.WithContext(ctx).Where("terminal = ?", false).Find(&rows).Error; err != nil {
		return nil, faults.New(faults.Transient, "store.ListOpen", err)
	}
	out := make([]model.RevisionCache, 0, len(rows))
	for _, row := range rows {
		rc, err := revisionCacheFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, nil
}

func revisionCacheFromRow(row RevisionCacheRow) (model.RevisionCache, error) {
	statusLog, err := unmarshalStrings(row.StatusLogCSV)
	if err != nil {
		return model.RevisionCache{}, faults.New(faults.Internal, "store.revisionCacheFromRow", err)
	}
	return model.RevisionCache{
		Revision:   row.Revision,
		FirstSeen:  row.FirstSeen,
		StatusLog:  statusLog,
		Terminal:   row.Terminal,
		TerminalAt: row.TerminalAt,
	}, nil
}
