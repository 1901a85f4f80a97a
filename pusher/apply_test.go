package pusher

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mozilla.org/autoland/bus"
	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/vcs"
)

func discardLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(ioDiscard{})
	return l
}

type ioDiscard struct{}

func (ioDiscard) Write(p []byte) (int, error) { return len(p), nil }

const validPatch = "# HG changeset patch\n# User Jane Dev <jane@example.com>\nBug 1 - do the thing\n\ndiff --git a/f b/f\n"

func newWorker(t *testing.T, runner vcs.Runner, tracker *fakePatchFetcher) (*Worker, *fakeDirectory, *fakeBranchPermissions) {
	t.Helper()
	root := t.TempDir()
	lock, err := AcquireWorkdirLock(root)
	require.NoError(t, err)
	t.Cleanup(func() { lock.Release() })

	dir := newFakeDirectory()
	dir.add("autoland", "scm_level_3")
	perms := &fakeBranchPermissions{required: map[string]string{
		"mozilla-central": "scm_level_3",
		"try":             "",
	}}

	svc := &Services{
		VCS:               runner,
		Directory:         dir,
		BranchPermissions: perms,
		Tracker:           tracker,
		Bus:               &fakePublisher{},
		Log:               discardLog(),
		Config:            Config{LandingUser: "autoland", MaxAttempts: maxAttempts},
	}
	return NewWorker(lock, svc), dir, perms
}

func baseJob() bus.Job {
	return bus.Job{
		BugID:      1,
		Branch:     "mozilla-central",
		BranchURL:  "https://hg.example/mozilla-central",
		PushURL:    "ssh://hg.example/mozilla-central",
		ToBranch:   "mozilla-central",
		PatchsetID: 42,
		Patches:    []bus.PatchPayload{{ID: 7}},
	}
}

func TestProcessSucceedsOnFirstAttempt(t *testing.T) {
	runner := &vcs.FakeRunner{
		Responses: map[string]string{"parent --template {node}": "deadbeef"},
	}
	tracker := &fakePatchFetcher{bodies: map[int][]byte{7: []byte(validPatch)}}
	w, _, _ := newWorker(t, runner, tracker)

	result := w.Process(context.Background(), baseJob())

	assert.Equal(t, bus.ResultSuccess, result.Type)
	assert.Equal(t, "deadbeef", result.Revision)
	assert.Equal(t, int64(42), result.PatchsetID)
}

func TestProcessFailsImmediatelyOnPermissionDenied(t *testing.T) {
	runner := &vcs.FakeRunner{}
	tracker := &fakePatchFetcher{bodies: map[int][]byte{7: []byte(validPatch)}}
	w, dir, _ := newWorker(t, runner, tracker)
	dir.members["scm_level_3"] = map[string]bool{} // landing user not a member

	result := w.Process(context.Background(), baseJob())

	assert.Equal(t, bus.ResultError, result.Type)
	assert.Empty(t, runner.Calls, "no VCS command should run once permission check fails")
}

func TestProcessFailsImmediatelyOnInvalidAttachment(t *testing.T) {
	runner := &vcs.FakeRunner{}
	tracker := &fakePatchFetcher{errs: map[int]error{
		7: faults.Newf(faults.InvalidInput, "test", "invalid attachment 7"),
	}}
	w, _, _ := newWorker(t, runner, tracker)

	result := w.Process(context.Background(), baseJob())

	assert.Equal(t, bus.ResultError, result.Type)
	assert.Equal(t, 1, len(tracker.calls), "a non-retryable download failure must not be retried")
}

func TestProcessFailsImmediatelyOnMissingHeaderForBranchLanding(t *testing.T) {
	runner := &vcs.FakeRunner{}
	tracker := &fakePatchFetcher{bodies: map[int][]byte{7: []byte("not a real patch body")}}
	w, _, _ := newWorker(t, runner, tracker)

	result := w.Process(context.Background(), baseJob())

	assert.Equal(t, bus.ResultError, result.Type)
}

func TestProcessSubstitutesLandingUserOnTryWhenHeaderMissing(t *testing.T) {
	runner := &vcs.FakeRunner{
		Responses: map[string]string{"parent --template {node}": "cafed00d"},
	}
	tracker := &fakePatchFetcher{bodies: map[int][]byte{7: []byte("no header here, just a diff")}}
	w, _, _ := newWorker(t, runner, tracker)

	job := baseJob()
	job.TryRun = true
	job.ToBranch = "try"
	job.TrySyntax = "-b do -p linux -u all"

	result := w.Process(context.Background(), job)

	assert.Equal(t, bus.ResultSuccess, result.Type)
	assert.Equal(t, "cafed00d", result.Revision)
}

func TestProcessDrivesQueueSubcommandsInOrder(t *testing.T) {
	runner := &vcs.FakeRunner{
		Responses: map[string]string{
			"qheader":                   "Bug 1 - queue header message\n",
			"parent --template {node}": "deadbeef",
		},
	}
	tracker := &fakePatchFetcher{bodies: map[int][]byte{7: []byte(validPatch)}}
	w, _, _ := newWorker(t, runner, tracker)

	result := w.Process(context.Background(), baseJob())
	require.Equal(t, bus.ResultSuccess, result.Type)

	var ops []string
	for _, c := range runner.Calls {
		if len(c.Args) > 0 {
			ops = append(ops, c.Args[0])
		}
	}
	assertContainsInOrder(t, ops, "qimport", "qpush", "qheader", "qrefresh")
}

func assertContainsInOrder(t *testing.T, ops []string, want ...string) {
	t.Helper()
	i := 0
	for _, op := range ops {
		if i < len(want) && op == want[i] {
			i++
		}
	}
	assert.Equal(t, len(want), i, "expected %v in order within %v", want, ops)
}

func TestProcessEscalatesThroughRetryTiersOnTransientFailure(t *testing.T) {
	runner := &vcs.FakeRunner{
		Responses: map[string]string{"parent --template {node}": "f00dbabe"},
		FailFirstN: 2,
		FailOp:     "qimport",
		FailErr:    faults.Newf(faults.Transient, "vcs.Run", "simulated transient clone failure"),
	}
	tracker := &fakePatchFetcher{bodies: map[int][]byte{7: []byte(validPatch)}}
	w, _, _ := newWorker(t, runner, tracker)

	result := w.Process(context.Background(), baseJob())

	assert.Equal(t, bus.ResultSuccess, result.Type, "the third attempt (hard-clean) must succeed")
	assert.Equal(t, "f00dbabe", result.Revision)

	var sawQpop, sawClone bool
	for _, c := range runner.Calls {
		if len(c.Args) > 0 && c.Args[0] == "qpop" {
			sawQpop = true
		}
		if len(c.Args) > 0 && c.Args[0] == "clone" {
			sawClone = true
		}
	}
	assert.True(t, sawQpop, "attempt 2 must soft-clean via qpop before retrying")
	assert.True(t, sawClone, "attempt 3 must hard-clean and re-clone before retrying")
}

func TestProcessGivesUpAfterThreeAttempts(t *testing.T) {
	runner := &vcs.FakeRunner{
		FailFirstN: 3,
		FailOp:     "qimport",
		FailErr:    faults.Newf(faults.Transient, "vcs.Run", "simulated permanent transient failure"),
	}
	tracker := &fakePatchFetcher{bodies: map[int][]byte{7: []byte(validPatch)}}
	w, _, _ := newWorker(t, runner, tracker)

	result := w.Process(context.Background(), baseJob())

	assert.Equal(t, bus.ResultError, result.Type)
	assert.Contains(t, result.Comment, "mozilla-central")
}
