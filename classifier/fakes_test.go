package classifier

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/model"
	"go.mozilla.org/autoland/outbox"
	"go.mozilla.org/autoland/store"
)

type fakeBuildStore struct {
	records        map[string][]BuildRecord
	revisionsInRange []string
	rebuildErrs    map[string]error
	rebuildCalls   []string
}

func (f *fakeBuildStore) RecordsForRevision(_ context.Context, _ string, revision string) ([]BuildRecord, error) {
	return f.records[revision], nil
}

func (f *fakeBuildStore) ListRevisionsInRange(_ context.Context, _ string, _, _ time.Time) ([]string, error) {
	return f.revisionsInRange, nil
}

func (f *fakeBuildStore) Rebuild(_ context.Context, _ string, buildID string) error {
	f.rebuildCalls = append(f.rebuildCalls, buildID)
	if err, ok := f.rebuildErrs[buildID]; ok {
		return err
	}
	return nil
}

type fakeRevisionCacheRepo struct {
	rows map[string]*model.RevisionCache
}

func newFakeRevisionCacheRepo() *fakeRevisionCacheRepo {
	return &fakeRevisionCacheRepo{rows: map[string]*model.RevisionCache{}}
}

func (f *fakeRevisionCacheRepo) Get(_ context.Context, revision string) (*model.RevisionCache, error) {
	rc, ok := f.rows[revision]
	if !ok {
		return nil, faults.New(faults.NotFound, "fakeRevisionCacheRepo.Get", nil)
	}
	cp := *rc
	return &cp, nil
}

func (f *fakeRevisionCacheRepo) Upsert(_ context.Context, rc *model.RevisionCache) error {
	cp := *rc
	f.rows[rc.Revision] = &cp
	return nil
}

func (f *fakeRevisionCacheRepo) ListOpen(_ context.Context) ([]model.RevisionCache, error) {
	var out []model.RevisionCache
	for _, rc := range f.rows {
		if !rc.Terminal {
			out = append(out, *rc)
		}
	}
	return out, nil
}

var _ store.RevisionCacheRepository = (*fakeRevisionCacheRepo)(nil)

type fakePoster struct {
	posted map[int][]string
}

func newFakePoster() *fakePoster {
	return &fakePoster{posted: map[int][]string{}}
}

func (p *fakePoster) PostComment(bugID int, text string) error {
	p.posted[bugID] = append(p.posted[bugID], text)
	return nil
}

func (p *fakePoster) HasComment(bugID int, text string) (bool, error) {
	for _, t := range p.posted[bugID] {
		if t == text {
			return true, nil
		}
	}
	return false, nil
}

type fakePendingCommentRepo struct{}

func (fakePendingCommentRepo) Enqueue(context.Context, int, string, time.Time) (*model.PendingComment, error) {
	return &model.PendingComment{}, nil
}
func (fakePendingCommentRepo) ListDue(context.Context) ([]model.PendingComment, error) { return nil, nil }
func (fakePendingCommentRepo) RecordAttempt(context.Context, int64, time.Time) error     { return nil }
func (fakePendingCommentRepo) Remove(context.Context, int64) error                       { return nil }

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServices(builds *fakeBuildStore, revisions *fakeRevisionCacheRepo, poster *fakePoster) *Services {
	cfg := DefaultConfig()
	cfg.Branch = "mozilla-central"
	return &Services{
		Builds:    builds,
		Revisions: revisions,
		Outbox:    outbox.New(fakePendingCommentRepo{}, poster, io.Discard, logrus.NewEntry(discardLogger())),
		Log:       discardLogger(),
		Config:    cfg,
	}
}
