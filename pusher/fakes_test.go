package pusher

import (
	"context"

	"go.mozilla.org/autoland/faults"
)

type fakeDirectory struct {
	members map[string]map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{members: map[string]map[string]bool{}}
}

func (d *fakeDirectory) add(email, group string) {
	if d.members[group] == nil {
		d.members[group] = map[string]bool{}
	}
	d.members[group][email] = true
}

func (d *fakeDirectory) InGroup(_ context.Context, email, group string) (bool, error) {
	return d.members[group][email], nil
}

type fakeBranchPermissions struct {
	required map[string]string
}

func (b *fakeBranchPermissions) RequiredGroup(_ context.Context, branch string) (string, error) {
	g, ok := b.required[branch]
	if !ok {
		return "", faults.New(faults.NotFound, "fakeBranchPermissions.RequiredGroup", nil)
	}
	return g, nil
}

type fakePatchFetcher struct {
	bodies  map[int][]byte
	errs    map[int]error
	calls   []int
}

func (f *fakePatchFetcher) DownloadPatch(patchID int) ([]byte, error) {
	f.calls = append(f.calls, patchID)
	if err, ok := f.errs[patchID]; ok {
		return nil, err
	}
	return f.bodies[patchID], nil
}

type fakePublisher struct {
	published []interface{}
}

func (f *fakePublisher) Publish(_ string, payload interface{}) error {
	f.published = append(f.published, payload)
	return nil
}
