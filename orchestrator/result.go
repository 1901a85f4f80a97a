package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mozilla.org/autoland/bus"
	"go.mozilla.org/autoland/model"
)

// OnResult implements on_result(msg) from spec.md §4.1: record one branch's
// outcome against its Patchset, then — once every Patchset belonging to the
// Patchset's Request has reached a terminal state — compute the Request's
// final status and post a single summary comment.
//
// Redelivery of a result for a Patchset that is already terminal is a
// deliberate no-op, since the bus offers at-least-once delivery and a
// pusher crash between publishing and acking can replay a result.
func OnResult(ctx context.Context, svc *Services, result bus.Result, now time.Time) error {
	ps, err := svc.Patchsets.GetPatchset(ctx, result.PatchsetID)
	if err != nil {
		return err
	}
	if ps.Status.Terminal() {
		return nil
	}

	switch result.Type {
	case bus.ResultSuccess:
		if err := svc.Patchsets.RecordPush(ctx, ps.ID, result.Revision, now); err != nil {
			return err
		}
	default:
		if err := svc.Patchsets.UpdateStatus(ctx, ps.ID, model.PatchsetPushFailed); err != nil {
			return err
		}
	}

	return checkAggregate(ctx, svc, ps.RequestID, now)
}

// checkAggregate recomputes a Request's status once all of its Patchsets
// have reached a terminal state. The aggregate is commutative: a single
// push-failed Patchset fails the whole Request even if every other branch
// succeeded, since a landing is reported to the bug as one event.
func checkAggregate(ctx context.Context, svc *Services, requestID int64, now time.Time) error {
	patchsets, err := svc.Patchsets.ListByRequest(ctx, requestID)
	if err != nil {
		return err
	}
	for _, ps := range patchsets {
		if !ps.Status.Terminal() {
			return nil
		}
	}

	req, err := svc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		return nil
	}

	allPushed := true
	for _, ps := range patchsets {
		if ps.Status != model.PatchsetPushed {
			allPushed = false
			break
		}
	}

	finalStatus := model.RequestFailure
	if allPushed {
		finalStatus = model.RequestSuccess
	}
	if err := svc.Requests.UpdateStatus(ctx, requestID, finalStatus); err != nil {
		return err
	}

	attachmentStatus := "checked-in-failed"
	if allPushed {
		attachmentStatus = "checked-in"
	}
	if err := svc.Tracker.UpdateAttachmentStatus(attachmentStatus, req.PatchIDs); err != nil {
		svc.Log.WithError(err).WithField("bug_id", req.BugID).Warn("on_result: attachment status update failed")
	}
	if err := svc.Tracker.RemoveFromQueue(req.PatchIDs); err != nil {
		svc.Log.WithError(err).WithField("bug_id", req.BugID).Warn("on_result: remove from queue failed")
	}

	return svc.Outbox.Enqueue(ctx, req.BugID, summaryComment(req, patchsets, allPushed), now)
}

func summaryComment(req *model.Request, patchsets []model.Patchset, allPushed bool) string {
	var b strings.Builder
	if allPushed {
		fmt.Fprintf(&b, "Bug %d: all patches landed successfully:\n", req.BugID)
	} else {
		fmt.Fprintf(&b, "Bug %d: landing did not complete successfully:\n", req.BugID)
	}
	for _, ps := range patchsets {
		switch ps.Status {
		case model.PatchsetPushed:
			fmt.Fprintf(&b, "%s: %s\n", ps.Branch, ps.Revision)
		default:
			fmt.Fprintf(&b, "%s: failed to land\n", ps.Branch)
		}
	}
	return b.String()
}
