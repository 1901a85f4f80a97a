package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go.mozilla.org/autoland/bus"
	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/model"
)

// statusWhenLayout matches Bugzilla's bz_tracking_text timestamp format, as
// read by branch.py's queue parsing.
const statusWhenLayout = "2006-01-02 15:04:05"

// Discover runs one poll cycle: fetch the tracker's waiting-bug queue,
// persist and validate a Request per bug, and dispatch one Patchset and job
// per eligible branch. Implements discover() from spec.md §4.1.
func Discover(ctx context.Context, svc *Services, now time.Time) error {
	waiting, err := svc.Tracker.GetWaitingBugs()
	if err != nil {
		return err
	}

	for _, wb := range waiting {
		if err := discoverOne(ctx, svc, wb, now); err != nil {
			svc.Log.WithError(err).WithField("bug_id", wb.BugID).Warn("discover: bug processing failed")
		}
	}
	return nil
}

func discoverOne(ctx context.Context, svc *Services, wb WaitingBug, now time.Time) error {
	sourceTime, err := time.Parse(statusWhenLayout, wb.StatusWhen)
	if err != nil {
		return faults.New(faults.InvalidInput, "discover", err)
	}

	if existing, err := svc.Requests.FindRequest(ctx, wb.BugID, sourceTime); err != nil {
		if faults.KindOf(err) != faults.NotFound {
			return err
		}
	} else if existing != nil {
		// I2: a second discovery of the same (bug, source-time) is a no-op.
		return nil
	}

	branches := ParseBranches(wb.Branches)
	req := &model.Request{
		BugID:      wb.BugID,
		SourceTime: sourceTime,
		Branches:   branches,
		PatchIDs:   wb.Attachments,
		TrySyntax:  wb.TrySyntax,
		Status:     model.RequestPreprocessed,
	}
	created, err := svc.Requests.SaveNewRequest(ctx, req)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	patches, err := svc.Tracker.GetPatches(wb.BugID, wb.Attachments)
	if err != nil {
		// I3: partial patch retrieval is a hard failure, never a partial set.
		return failRequest(ctx, svc, req, now, fmt.Sprintf("Autoland could not retrieve all attachments for bug %d: %v", wb.BugID, err))
	}

	valid, err := Validate(ctx, svc, req, patches)
	if err != nil {
		return err
	}
	if !valid {
		return failRequest(ctx, svc, req, now, fmt.Sprintf("Bug %d is not ready to land: review/approval requirements are not satisfied.", wb.BugID))
	}

	if err := svc.Requests.UpdateStatus(ctx, req.ID, model.RequestVerified); err != nil {
		return err
	}

	return dispatch(ctx, svc, req, patches, now)
}

func failRequest(ctx context.Context, svc *Services, req *model.Request, now time.Time, comment string) error {
	if err := svc.Requests.UpdateStatus(ctx, req.ID, model.RequestNotVerified); err != nil {
		return err
	}
	if err := svc.Tracker.RemoveFromQueue(req.PatchIDs); err != nil {
		svc.Log.WithError(err).WithField("bug_id", req.BugID).Warn("discover: remove from queue failed")
	}
	return svc.Outbox.Enqueue(ctx, req.BugID, comment, now)
}

func dispatch(ctx context.Context, svc *Services, req *model.Request, patches []model.Patch, now time.Time) error {
	payload := make([]bus.PatchPayload, 0, len(patches))
	for _, p := range patches {
		payload = append(payload, toPatchPayload(p))
	}

	for _, name := range req.Branches {
		branch, err := svc.Branches.GetBranch(ctx, name)
		if err != nil {
			return err
		}

		ps := &model.Patchset{
			RequestID:  req.ID,
			BugID:      req.BugID,
			SourceTime: req.SourceTime,
			Branch:     name,
			PatchIDs:   req.PatchIDs,
			TrySyntax:  req.TrySyntax,
			Status:     model.PatchsetQueued,
		}
		created, err := svc.Patchsets.SaveNewPatchset(ctx, ps)
		if err != nil {
			return err
		}
		if !created {
			continue
		}

		if branch.UseTreeStatus {
			open, err := awaitTreeOpen(ctx, svc, branch.Name)
			if err != nil {
				return err
			}
			if !open {
				if err := svc.Patchsets.UpdateStatus(ctx, ps.ID, model.PatchsetPushFailed); err != nil {
					return err
				}
				continue
			}
		}

		job := bus.Job{
			JobType:      string(bus.ActionBranchPush),
			BugID:        req.BugID,
			Branch:       branch.Name,
			BranchURL:    branch.PullURL,
			PushURL:      branch.PushURL,
			TryRun:       false,
			TrySyntax:    req.TrySyntax,
			AddTryCommit: branch.AddTryCommit,
			PatchsetID:   ps.ID,
			ToBranch:     branch.Name,
			Patches:      payload,
		}
		if err := svc.Bus.Publish(bus.RoutingKeyPusher, job); err != nil {
			return err
		}
		if err := svc.Patchsets.UpdateStatus(ctx, ps.ID, model.PatchsetInProgress); err != nil {
			return err
		}
	}

	req.DispatchTaskID = uuid.NewString()
	if err := svc.Requests.UpdateDispatch(ctx, req.ID, model.RequestDispatched, req.DispatchTaskID); err != nil {
		return err
	}

	// Every branch may already be terminal (e.g. all tree-status gates
	// exhausted their retries), so check aggregation immediately instead of
	// waiting on bus results that will never arrive.
	return checkAggregate(ctx, svc, req.ID, now)
}

func awaitTreeOpen(ctx context.Context, svc *Services, branch string) (bool, error) {
	attempts := svc.Config.TreeStatusMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		open, err := svc.TreeStatus.IsOpen(ctx, branch)
		if err != nil {
			return false, err
		}
		if open {
			return true, nil
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(svc.Config.TreeStatusRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return false, nil
}

func toPatchPayload(p model.Patch) bus.PatchPayload {
	reviews := make([]bus.ReviewPayload, 0, len(p.Reviews))
	for _, r := range p.Reviews {
		reviews = append(reviews, bus.ReviewPayload{
			Type:     string(r.Type),
			Reviewer: bus.PersonPayload{Name: r.Reviewer.Name, Email: r.Reviewer.Email},
			Result:   string(r.Result),
		})
	}
	approvals := make([]bus.ApprovalPayload, 0, len(p.Approvals))
	for _, a := range p.Approvals {
		approvals = append(approvals, bus.ApprovalPayload{
			Type:     a.Branch,
			Approver: bus.PersonPayload{Name: a.Approver.Name, Email: a.Approver.Email},
			Result:   string(a.Result),
		})
	}
	return bus.PatchPayload{
		ID:        p.ID,
		Author:    bus.PersonPayload{Name: p.Author.Name, Email: p.Author.Email},
		Reviews:   reviews,
		Approvals: approvals,
	}
}
