// Package pusher implements the per-branch landing worker of spec.md §4.2:
// given an apply job, it clones/refreshes a working directory, imports and
// pushes each patch with a rewritten commit message, and replies with
// exactly one Result.
package pusher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.mozilla.org/autoland/bus"
	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/model"
	"go.mozilla.org/autoland/rewrite"
)

// maxAttempts is the escalating-retry ladder's fixed bound (spec.md §4.2):
// 1 reuse, 2 soft-clean, 3 hard-clean.
const maxAttempts = 3

// Worker processes jobs against one locked workdir slot. Grounded on the
// teacher's worker/pool.go single-worker-per-slot shape, generalized from
// CouchDB document processing to hg clone/import/push.
type Worker struct {
	Lock *WorkdirLock
	Svc  *Services
}

// NewWorker pairs a held workdir lock with the services a job needs.
func NewWorker(lock *WorkdirLock, svc *Services) *Worker {
	return &Worker{Lock: lock, Svc: svc}
}

// Process runs job to completion, trying up to maxAttempts times with
// escalating cleanup between attempts, and always returns exactly one
// Result (never an error) — fit to be published back on the bus verbatim.
func (w *Worker) Process(ctx context.Context, job bus.Job) bus.Result {
	branch := job.ToBranch
	activeDir := w.Lock.ActiveDir(branch)
	cleanDir := w.Lock.CleanDir(branch)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt == 2 {
			if err := w.softClean(ctx, activeDir); err != nil {
				lastErr = err
				continue
			}
		}
		if attempt == 3 {
			if err := w.hardClean(cleanDir, activeDir); err != nil {
				lastErr = err
				continue
			}
		}

		revision, err := w.attempt(ctx, job, cleanDir, activeDir)
		if err == nil {
			return bus.Result{
				Type:       bus.ResultSuccess,
				Action:     bus.ActionBranchPush,
				BugID:      job.BugID,
				PatchsetID: job.PatchsetID,
				Revision:   revision,
			}
		}
		lastErr = err
		if faults.Fatal(err) {
			break
		}
		w.Svc.Log.WithError(err).WithField("attempt", attempt).WithField("branch", branch).
			Warn("pusher: attempt failed, escalating")
	}

	return bus.Result{
		Type:       bus.ResultError,
		Action:     bus.ActionBranchPush,
		BugID:      job.BugID,
		PatchsetID: job.PatchsetID,
		Comment:    fmt.Sprintf("Autoland failed to push to %s: %v", branch, lastErr),
	}
}

// softClean pops any queued patches and force-updates the working copy,
// the tier-2 escalation of spec.md §4.2.
func (w *Worker) softClean(ctx context.Context, activeDir string) error {
	if _, err := os.Stat(activeDir); os.IsNotExist(err) {
		return nil
	}
	if _, err := w.Svc.VCS.Run(ctx, activeDir, "qpop", "-a"); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(activeDir, ".hg", "patches")); err != nil {
		return faults.New(faults.Internal, "pusher.softClean", err)
	}
	if _, err := w.Svc.VCS.Run(ctx, activeDir, "update", "-C"); err != nil {
		return err
	}
	return nil
}

// hardClean deletes both subtrees so the next attempt re-clones from
// scratch, the tier-3 escalation of spec.md §4.2.
func (w *Worker) hardClean(cleanDir, activeDir string) error {
	if err := os.RemoveAll(cleanDir); err != nil {
		return faults.New(faults.Internal, "pusher.hardClean", err)
	}
	if err := os.RemoveAll(activeDir); err != nil {
		return faults.New(faults.Internal, "pusher.hardClean", err)
	}
	return nil
}

// attempt performs one full pass of the job: permission check, clone/
// refresh, per-patch verify+import+push, optional try commit, finalize,
// and push. Returns the pushed tip revision.
func (w *Worker) attempt(ctx context.Context, job bus.Job, cleanDir, activeDir string) (string, error) {
	if err := w.checkPermission(ctx, job); err != nil {
		return "", err
	}

	if err := w.ensureClean(ctx, job, cleanDir); err != nil {
		return "", err
	}
	if err := w.ensureActive(ctx, cleanDir, activeDir); err != nil {
		return "", err
	}

	for _, p := range job.Patches {
		if err := w.landPatch(ctx, job, activeDir, p); err != nil {
			return "", err
		}
	}

	if job.AddTryCommit && job.TryRun {
		if err := w.addTryCommit(ctx, job, activeDir); err != nil {
			return "", err
		}
	}

	if _, err := w.Svc.VCS.Run(ctx, activeDir, "qfinish", "-a"); err != nil {
		return "", err
	}

	pushArgs := []string{"push", job.PushURL}
	if job.TryRun {
		pushArgs = append(pushArgs, "--force")
	}
	if _, err := w.Svc.VCS.Run(ctx, activeDir, pushArgs...); err != nil {
		return "", err
	}

	out, err := w.Svc.VCS.Run(ctx, activeDir, "parent", "--template", "{node}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// checkPermission verifies the landing user belongs to the directory group
// required for the outgoing destination — the real branch, or try when the
// job is try-bound. Failure is non-retryable (spec.md §4.2).
func (w *Worker) checkPermission(ctx context.Context, job bus.Job) error {
	dest := job.ToBranch
	if job.TryRun {
		dest = "try"
	}
	group, err := w.Svc.BranchPermissions.RequiredGroup(ctx, dest)
	if err != nil {
		return err
	}
	if group == "" {
		return nil
	}
	ok, err := w.Svc.Directory.InGroup(ctx, w.Svc.Config.LandingUser, group)
	if err != nil {
		return err
	}
	if !ok {
		return faults.Newf(faults.PermissionDenied, "pusher.checkPermission",
			"landing user %q is not in required group %q for %s", w.Svc.Config.LandingUser, group, dest)
	}
	return nil
}

// ensureClean brings clean/<branch> up to date, cloning it from branch-URL
// if it does not yet exist.
func (w *Worker) ensureClean(ctx context.Context, job bus.Job, cleanDir string) error {
	if _, err := os.Stat(cleanDir); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(cleanDir), 0o755); err != nil {
			return faults.New(faults.Internal, "pusher.ensureClean", err)
		}
		_, err := w.Svc.VCS.Run(ctx, "", "clone", job.BranchURL, cleanDir)
		return err
	}
	if _, err := w.Svc.VCS.Run(ctx, cleanDir, "pull", job.BranchURL); err != nil {
		return err
	}
	_, err := w.Svc.VCS.Run(ctx, cleanDir, "update", "-C")
	return err
}

// ensureActive clones active/<branch> fresh from clean/<branch> when it is
// not already present (tier-1 reuse skips this entirely).
func (w *Worker) ensureActive(ctx context.Context, cleanDir, activeDir string) error {
	if _, err := os.Stat(activeDir); err == nil {
		_, err := w.Svc.VCS.Run(ctx, activeDir, "pull", cleanDir)
		if err != nil {
			return err
		}
		_, err = w.Svc.VCS.Run(ctx, activeDir, "update", "-C")
		return err
	}
	if err := os.MkdirAll(filepath.Dir(activeDir), 0o755); err != nil {
		return faults.New(faults.Internal, "pusher.ensureActive", err)
	}
	_, err := w.Svc.VCS.Run(ctx, "", "clone", cleanDir, activeDir)
	return err
}

// landPatch downloads, header-checks, imports, and pushes a single patch,
// rewriting its commit message to carry review/approval credits. Mirrors
// import_patch in original_source/autoland/mercurial.py: qimport the patch
// file into the queue, qpush it onto the working copy, qheader to read back
// whatever message the patch itself carried, then qrefresh with the
// recomputed message and -u set to the header's user name (the landing user
// on a try push whose patch has no usable header).
func (w *Worker) landPatch(ctx context.Context, job bus.Job, activeDir string, p bus.PatchPayload) error {
	body, err := w.Svc.Tracker.DownloadPatch(p.ID)
	if err != nil {
		return err
	}

	hdr, ok := ParsePatchHeader(body)
	if !ok {
		if job.TryRun {
			hdr.UserName = w.Svc.Config.LandingUser
			hdr.Email = w.Svc.Config.LandingUser
		} else {
			return faults.Newf(faults.InvalidInput, "pusher.landPatch",
				"patch %d carries no usable header for branch landing", p.ID)
		}
	}

	path, err := w.writePatchFile(activeDir, p.ID, body)
	if err != nil {
		return err
	}

	if _, err := w.Svc.VCS.Run(ctx, activeDir, "qimport", path); err != nil {
		return err
	}
	if _, err := w.Svc.VCS.Run(ctx, activeDir, "qpush"); err != nil {
		return err
	}

	header, err := w.Svc.VCS.Run(ctx, activeDir, "qheader")
	if err != nil {
		return err
	}
	msg := strings.TrimSpace(header)
	if msg == "" {
		msg = hdr.Message
	}
	if msg == "" {
		msg = rewrite.DefaultMessage(job.BugID, "")
	}
	patch := toModelPatch(p)
	final := rewrite.CommitMessage(msg, patch, job.ToBranch, job.TryRun, w.Svc.Config.LandingUser, job.BugID)

	args := []string{"qrefresh", "-u", hdr.UserName, "-m", final}
	_, err = w.Svc.VCS.Run(ctx, activeDir, args...)
	return err
}

// addTryCommit appends a no-op try-syntax queue entry, mirroring the
// optional "try commit" step of spec.md §4.2.
func (w *Worker) addTryCommit(ctx context.Context, job bus.Job, activeDir string) error {
	msg := fmt.Sprintf("try: %s -n --post-to-bugzilla bug %d", job.TrySyntax, job.BugID)
	if _, err := w.Svc.VCS.Run(ctx, activeDir, "qnew", "--message", msg, "try-commit"); err != nil {
		return err
	}
	return nil
}

// writePatchFile persists a downloaded patch body under the active
// checkout so the VCS runner can import it by path.
func (w *Worker) writePatchFile(activeDir string, patchID int, body []byte) (string, error) {
	dir := filepath.Join(activeDir, ".autoland-patches")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", faults.New(faults.Internal, "pusher.writePatchFile", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.patch", patchID))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", faults.New(faults.Internal, "pusher.writePatchFile", err)
	}
	return path, nil
}

// toModelPatch converts a bus.PatchPayload back into model.Patch so
// rewrite.CommitMessage can consume it without a second review/approval
// type set.
func toModelPatch(p bus.PatchPayload) model.Patch {
	reviews := make([]model.Review, 0, len(p.Reviews))
	for _, r := range p.Reviews {
		reviews = append(reviews, model.Review{
			Type:     model.ReviewKind(r.Type),
			Reviewer: model.Person{Name: r.Reviewer.Name, Email: r.Reviewer.Email},
			Result:   model.FlagResult(r.Result),
		})
	}
	approvals := make([]model.Approval, 0, len(p.Approvals))
	for _, a := range p.Approvals {
		approvals = append(approvals, model.Approval{
			Branch:   a.Type,
			Approver: model.Person{Name: a.Approver.Name, Email: a.Approver.Email},
			Result:   model.FlagResult(a.Result),
		})
	}
	return model.Patch{
		ID:        p.ID,
		Author:    model.Person{Name: p.Author.Name, Email: p.Author.Email},
		Reviews:   reviews,
		Approvals: approvals,
	}
}
