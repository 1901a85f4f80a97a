package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/model"
)

type fakeBranchRepo struct {
	branches map[string]model.Branch
}

func newFakeBranchRepo(branches ...model.Branch) *fakeBranchRepo {
	m := make(map[string]model.Branch)
	for _, b := range branches {
		m[b.Name] = b
	}
	return &fakeBranchRepo{branches: m}
}

func (f *fakeBranchRepo) GetBranch(ctx context.Context, name string) (*model.Branch, error) {
	b, ok := f.branches[name]
	if !ok {
		return nil, faults.Newf(faults.NotFound, "fake.GetBranch", "no branch %q", name)
	}
	return &b, nil
}

func (f *fakeBranchRepo) ListEnabledBranches(ctx context.Context) ([]model.Branch, error) {
	var out []model.Branch
	for _, b := range f.branches {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeRequestRepo struct {
	mu       sync.Mutex
	byID     map[int64]*model.Request
	byKey    map[string]int64
	nextID   int64
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{byID: make(map[int64]*model.Request), byKey: make(map[string]int64)}
}

func requestKey(bugID int, t time.Time) string {
	return t.Format(time.RFC3339Nano) + "#" + time.Unix(int64(bugID), 0).String()
}

func (f *fakeRequestRepo) SaveNewRequest(ctx context.Context, req *model.Request) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := requestKey(req.BugID, req.SourceTime)
	if _, exists := f.byKey[key]; exists {
		return false, nil
	}
	f.nextID++
	req.ID = f.nextID
	cp := *req
	f.byID[req.ID] = &cp
	f.byKey[key] = req.ID
	return true, nil
}

func (f *fakeRequestRepo) GetRequest(ctx context.Context, id int64) (*model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, faults.Newf(faults.NotFound, "fake.GetRequest", "no request %d", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRequestRepo) FindRequest(ctx context.Context, bugID int, sourceTime time.Time) (*model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byKey[requestKey(bugID, sourceTime)]
	if !ok {
		return nil, faults.Newf(faults.NotFound, "fake.FindRequest", "no request")
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeRequestRepo) UpdateStatus(ctx context.Context, id int64, status model.RequestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return faults.Newf(faults.NotFound, "fake.UpdateStatus", "no request %d", id)
	}
	r.Status = status
	return nil
}

func (f *fakeRequestRepo) UpdateDispatch(ctx context.Context, id int64, status model.RequestStatus, dispatchTaskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return faults.Newf(faults.NotFound, "fake.UpdateDispatch", "no request %d", id)
	}
	r.Status = status
	r.DispatchTaskID = dispatchTaskID
	return nil
}

func (f *fakeRequestRepo) ListByStatus(ctx context.Context, status model.RequestStatus) ([]model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Request
	for _, r := range f.byID {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakePatchsetRepo struct {
	mu     sync.Mutex
	byID   map[int64]*model.Patchset
	byKey  map[string]int64
	nextID int64
}

func newFakePatchsetRepo() *fakePatchsetRepo {
	return &fakePatchsetRepo{byID: make(map[int64]*model.Patchset), byKey: make(map[string]int64)}
}

func patchsetKey(ps *model.Patchset) string {
	return requestKey(ps.BugID, ps.SourceTime) + "#" + ps.Branch
}

func (f *fakePatchsetRepo) SaveNewPatchset(ctx context.Context, ps *model.Patchset) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := patchsetKey(ps)
	if _, exists := f.byKey[key]; exists {
		return false, nil
	}
	f.nextID++
	ps.ID = f.nextID
	cp := *ps
	f.byID[ps.ID] = &cp
	f.byKey[key] = ps.ID
	return true, nil
}

func (f *fakePatchsetRepo) GetPatchset(ctx context.Context, id int64) (*model.Patchset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps, ok := f.byID[id]
	if !ok {
		return nil, faults.Newf(faults.NotFound, "fake.GetPatchset", "no patchset %d", id)
	}
	cp := *ps
	return &cp, nil
}

func (f *fakePatchsetRepo) ListByRequest(ctx context.Context, requestID int64) ([]model.Patchset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Patchset
	for _, ps := range f.byID {
		if ps.RequestID == requestID {
			out = append(out, *ps)
		}
	}
	return out, nil
}

func (f *fakePatchsetRepo) UpdateStatus(ctx context.Context, id int64, status model.PatchsetStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps, ok := f.byID[id]
	if !ok {
		return faults.Newf(faults.NotFound, "fake.UpdateStatus", "no patchset %d", id)
	}
	ps.Status = status
	return nil
}

func (f *fakePatchsetRepo) RecordPush(ctx context.Context, id int64, revision string, pushedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps, ok := f.byID[id]
	if !ok {
		return faults.Newf(faults.NotFound, "fake.RecordPush", "no patchset %d", id)
	}
	ps.Status = model.PatchsetPushed
	ps.Revision = revision
	t := pushedAt
	ps.PushedAt = &t
	return nil
}

type fakeDirectory struct {
	members map[string]map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{members: make(map[string]map[string]bool)}
}

func (f *fakeDirectory) add(email, group string) {
	if f.members[group] == nil {
		f.members[group] = make(map[string]bool)
	}
	f.members[group][email] = true
}

func (f *fakeDirectory) InGroup(ctx context.Context, email, group string) (bool, error) {
	return f.members[group][email], nil
}

type fakeBranchPermissions struct {
	groups map[string]string
}

func (f *fakeBranchPermissions) RequiredGroup(ctx context.Context, branch string) (string, error) {
	g, ok := f.groups[branch]
	if !ok {
		return "", faults.Newf(faults.NotFound, "fake.RequiredGroup", "no branch %q", branch)
	}
	return g, nil
}

type fakeTreeStatus struct {
	open map[string]bool
}

func (f *fakeTreeStatus) IsOpen(ctx context.Context, branch string) (bool, error) {
	return f.open[branch], nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []publishedMsg
}

type publishedMsg struct {
	routingKey string
	payload    interface{}
}

func (f *fakeBus) Publish(routingKey string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{routingKey, payload})
	return nil
}

type fakeTracker struct {
	waiting        []WaitingBug
	patches        map[int][]model.Patch
	getPatchesErr  error
	removedIDs     []int
	attachmentCall []string
}

func (f *fakeTracker) GetWaitingBugs() ([]WaitingBug, error) {
	return f.waiting, nil
}

func (f *fakeTracker) GetPatches(bugID int, patchIDs []int) ([]model.Patch, error) {
	if f.getPatchesErr != nil {
		return nil, f.getPatchesErr
	}
	got := f.patches[bugID]
	if len(got) != len(patchIDs) {
		// Mirrors tracker.Client.GetPatches's I3 hard failure on a short
		// result set: the fake must enforce the same contract real callers
		// rely on, not defer the check to orchestrator code.
		return nil, faults.Newf(faults.Transient, "fake.GetPatches", "expected %d patches, got %d", len(patchIDs), len(got))
	}
	return got, nil
}

func (f *fakeTracker) UpdateAttachmentStatus(status string, patchIDs []int) error {
	f.attachmentCall = append(f.attachmentCall, status)
	return nil
}

func (f *fakeTracker) RemoveFromQueue(patchIDs []int) error {
	f.removedIDs = append(f.removedIDs, patchIDs...)
	return nil
}

type fakePendingCommentRepo struct {
	mu    sync.Mutex
	items []model.PendingComment
	nextID int64
}

func (f *fakePendingCommentRepo) Enqueue(ctx context.Context, bugID int, body string, seenAt time.Time) (*model.PendingComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	pc := model.PendingComment{ID: f.nextID, BugID: bugID, Body: body, FirstSeen: seenAt}
	f.items = append(f.items, pc)
	return &pc, nil
}

func (f *fakePendingCommentRepo) ListDue(ctx context.Context) ([]model.PendingComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PendingComment(nil), f.items...), nil
}

func (f *fakePendingCommentRepo) RecordAttempt(ctx context.Context, id int64, at time.Time) error {
	return nil
}

func (f *fakePendingCommentRepo) Remove(ctx context.Context, id int64) error {
	return nil
}

type fakePoster struct {
	fail    bool
	posted  []string
}

func (f *fakePoster) PostComment(bugID int, text string) error {
	if f.fail {
		return faults.Newf(faults.Transient, "fake.PostComment", "down")
	}
	f.posted = append(f.posted, text)
	return nil
}

func (f *fakePoster) HasComment(bugID int, text string) (bool, error) {
	return false, nil
}
