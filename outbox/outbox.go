// Package outbox retries posting PendingComment rows to the bug tracker
// (spec.md §3, I6) and, for comments that exhaust the retry ceiling,
// writes them to a dead-letter writer instead of dropping them — the
// same stream-splitting idea as obslog.OutputSplitter (route by outcome,
// not by severity), generalized from log lines to abandoned comments.
package outbox

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/model"
	"go.mozilla.org/autoland/store"
)

// MaxAttempts is the retry ceiling referenced by I6: a PendingComment is
// removed once either a post succeeds or this many attempts have failed.
const MaxAttempts = 5

// Poster posts and checks comments against the bug tracker. tracker.Client
// satisfies this with PostComment/HasComment.
type Poster interface {
	PostComment(bugID int, text string) error
	HasComment(bugID int, text string) (bool, error)
}

// Outbox drains due PendingComment rows each tick, posting them through
// poster and removing them on success or ceiling, and writing abandoned
// comments to deadLetter.
type Outbox struct {
	repo       store.PendingCommentRepository
	poster     Poster
	deadLetter io.Writer
	log        *logrus.Entry
}

// New builds an Outbox. deadLetter receives one line per abandoned comment;
// the orchestrator and classifier commands pass os.Stderr.
func New(repo store.PendingCommentRepository, poster Poster, deadLetter io.Writer, log *logrus.Entry) *Outbox {
	return &Outbox{repo: repo, poster: poster, deadLetter: deadLetter, log: log}
}

// Enqueue adds a comment to the outbox, mirroring post_comment's "add it if
// posting fails" framing: the first attempt happens inline, and only a
// failure creates a durable row for later retry.
func (o *Outbox) Enqueue(ctx context.Context, bugID int, text string, now time.Time) error {
	if err := o.poster.PostComment(bugID, text); err == nil {
		return nil
	}
	_, err := o.repo.Enqueue(ctx, bugID, text, now)
	return err
}

// Tick drains every due PendingComment, attempting one post each. Rows are
// removed on success or once they reach MaxAttempts; rows that reach the
// ceiling are written to the dead-letter writer before removal, so an
// operator can recover and manually replay them.
func (o *Outbox) Tick(ctx context.Context, now time.Time) error {
	due, err := o.repo.ListDue(ctx)
	if err != nil {
		return err
	}
	for _, pc := range due {
		if err := o.attempt(ctx, pc, now); err != nil {
			if faults.Fatal(err) {
				return err
			}
			o.log.WithError(err).WithField("bug_id", pc.BugID).Warn("outbox attempt failed")
		}
	}
	return nil
}

func (o *Outbox) attempt(ctx context.Context, pc model.PendingComment, now time.Time) error {
	// Skip work already visible on the tracker, e.g. if a prior attempt
	// actually succeeded but the reply was lost before the row was removed.
	posted, err := o.poster.HasComment(pc.BugID, pc.Body)
	if err != nil {
		return err
	}
	if posted {
		return o.repo.Remove(ctx, pc.ID)
	}

	postErr := o.poster.PostComment(pc.BugID, pc.Body)
	if postErr == nil {
		return o.repo.Remove(ctx, pc.ID)
	}

	if err := o.repo.RecordAttempt(ctx, pc.ID, now); err != nil {
		return err
	}
	if pc.Attempts+1 >= MaxAttempts {
		fmt.Fprintf(o.deadLetter, "%s bug=%d attempts=%d: %s\n", now.Format(time.RFC3339), pc.BugID, pc.Attempts+1, pc.Body)
		return o.repo.Remove(ctx, pc.ID)
	}
	return postErr
}
