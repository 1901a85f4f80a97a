package classifier

import (
	"context"
	"strconv"
	"time"

	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/model"
)

// Tick runs one classifier poll cycle over every open (incomplete) cached
// revision plus every revision with build-request activity in [start, end],
// per spec.md §4.3's periodic-tick/window contract.
func Tick(ctx context.Context, svc *Services, start, end, now time.Time) error {
	revisions := make(map[string]bool)

	open, err := svc.Revisions.ListOpen(ctx)
	if err != nil {
		return err
	}
	for _, rc := range open {
		revisions[rc.Revision] = true
	}

	discovered, err := svc.Builds.ListRevisionsInRange(ctx, svc.Config.Branch, start, end)
	if err != nil {
		return err
	}
	for _, rev := range discovered {
		revisions[rev] = true
	}

	for rev := range revisions {
		if err := processRevision(ctx, svc, rev, now); err != nil {
			svc.Log.WithError(err).WithField("revision", rev).Warn("classifier: revision processing failed")
		}
	}
	return nil
}

// PollRevision runs the same processing as one Tick iteration for a single
// named revision, used by the --revision single-shot CLI mode.
func PollRevision(ctx context.Context, svc *Services, revision string, now time.Time) error {
	return processRevision(ctx, svc, revision, now)
}

func processRevision(ctx context.Context, svc *Services, revision string, now time.Time) error {
	cached, err := svc.Revisions.Get(ctx, revision)
	if err != nil {
		if faults.KindOf(err) != faults.NotFound {
			return err
		}
		cached = nil
	}
	if cached != nil && cached.Terminal {
		return nil
	}

	firstSeen := now
	if cached != nil {
		firstSeen = cached.FirstSeen
	}

	records, err := svc.Builds.RecordsForRevision(ctx, svc.Config.Branch, revision)
	if err != nil {
		return err
	}

	pushType, maxOrange := ProcessPushType(records, svc.Config.FlagCheck, svc.Config.MaxOrangeDefault)
	bugs := ExtractBugIDs(records)
	rc := CalculateResults(records)

	if TimedOut(firstSeen, svc.Config.Timeout, now) {
		return finalize(ctx, svc, revision, firstSeen, cached, OutcomeTimedOut, bugs, rc, now)
	}

	if pushType == PushNone {
		// Not tracked by autoland: silently discard on completion, never
		// cached past this tick.
		if !IsComplete(records, svc.Config.CompletionThreshold, now) {
			return nil
		}
		return svc.Revisions.Upsert(ctx, &model.RevisionCache{
			Revision:   revision,
			FirstSeen:  firstSeen,
			Terminal:   true,
			TerminalAt: &now,
		})
	}

	if !IsComplete(records, svc.Config.CompletionThreshold, now) {
		return recordIncomplete(ctx, svc, revision, firstSeen, cached, records, now)
	}

	outcome := Classify(ctx, svc.Builds, svc.Config.Branch, records, maxOrange)
	if outcome == OutcomeRetrying {
		return recordIncomplete(ctx, svc, revision, firstSeen, cached, records, now)
	}

	return finalize(ctx, svc, revision, firstSeen, cached, outcome, bugs, rc, now)
}

func recordIncomplete(ctx context.Context, svc *Services, revision string, firstSeen time.Time, cached *model.RevisionCache, records []BuildRecord, now time.Time) error {
	rc := CalculateResults(records)
	return svc.Revisions.Upsert(ctx, &model.RevisionCache{
		Revision:  revision,
		FirstSeen: firstSeen,
		StatusLog: appendStatusLine(cached, rc, now),
		Terminal:  false,
	})
}

func finalize(ctx context.Context, svc *Services, revision string, firstSeen time.Time, cached *model.RevisionCache, outcome Outcome, bugs []int, rc ResultCounts, now time.Time) error {
	entry := &model.RevisionCache{
		Revision:   revision,
		FirstSeen:  firstSeen,
		StatusLog:  appendStatusLine(cached, rc, now, string(outcome)),
		Terminal:   true,
		TerminalAt: &now,
	}
	if err := svc.Revisions.Upsert(ctx, entry); err != nil {
		return err
	}

	if svc.Config.NoMessages || len(bugs) == 0 {
		return nil
	}
	message := GenerateReportMessage(revision, svc.Config.Branch, outcome, rc)
	for _, bug := range bugs {
		if err := svc.Outbox.Enqueue(ctx, bug, message, now); err != nil {
			svc.Log.WithError(err).WithField("bug_id", bug).Warn("classifier: comment enqueue failed")
		}
	}
	return nil
}

func appendStatusLine(cached *model.RevisionCache, rc ResultCounts, now time.Time, extra ...string) []string {
	var log []string
	if cached != nil {
		log = append(log, cached.StatusLog...)
	}
	line := now.Format(time.RFC3339) + " " + statusSummary(rc)
	if len(extra) > 0 {
		line += " " + extra[0]
	}
	return append(log, line)
}

func statusSummary(rc ResultCounts) string {
	return "success=" + strconv.Itoa(rc.Success) + " warnings=" + strconv.Itoa(rc.Warnings) +
		" failure=" + strconv.Itoa(rc.Failure) + " skipped=" + strconv.Itoa(rc.Skipped) +
		" exception=" + strconv.Itoa(rc.Exception) + " other=" + strconv.Itoa(rc.Other)
}
