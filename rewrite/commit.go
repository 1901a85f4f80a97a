// Package rewrite computes the landed commit message for a patch, grounded
// on original_source/autoland/mercurial.py's generate_commit_message /
// strip_reviews / add_reviews / add_approvals. The algorithm is strip-then-
// append: take the first line of the patch's own message, strip any
// existing r=/sr=/ui-r=/a= tokens, then append freshly computed review and
// approval tags for the landing branch.
package rewrite

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.mozilla.org/autoland/model"
)

// reviewTag maps a model.ReviewKind to the hg commit-message tag letter,
// mirroring add_reviews's review_types table.
var reviewTag = map[model.ReviewKind]string{
	model.ReviewPlain: "r",
	model.ReviewSuper: "sr",
	model.ReviewUI:    "ui-r",
}

var reviewTokenRe = regexp.MustCompile(`\b(r|sr|ui-r)=\S+\s*`)
var approvalTokenRe = regexp.MustCompile(`\ba=\S+\s*`)
var landingSuffixRe = regexp.MustCompile(`\s*\(al=\S+; Bug \d+\)\s*$`)

// DefaultMessage builds the fallback commit message used when a patch
// carries no header of its own, mirroring generate_default_commit_message.
func DefaultMessage(bugID int, summary string) string {
	return "Bug " + strconv.Itoa(bugID) + " - " + summary
}

// CommitMessage computes the rewritten commit message for patch landing on
// branch, given the patch's own header message msg, the bug the patch
// closes, and the user performing the landing.
//
// Only the first line of msg is used (multi-line headers are not
// supported, matching the original's msg.split("\n", 1)[0]). Approval
// credits are appended only for a real branch landing; a try push carries
// no a= tag since try has no approval gate.
//
// CommitMessage is idempotent: a prior landing suffix is stripped before
// recomputing, so CommitMessage(CommitMessage(m, ...), ...) == CommitMessage(m, ...).
func CommitMessage(msg string, patch model.Patch, branch string, isTry bool, landingUser string, bugID int) string {
	msg = firstLine(msg)
	msg = landingSuffixRe.ReplaceAllString(msg, "")
	msg = StripTags(msg)
	msg = addReviews(msg, patch.Reviews)
	if !isTry {
		msg = addApprovals(msg, branch, patch.Approvals)
	}
	return appendLandingSuffix(msg, landingUser, bugID)
}

// appendLandingSuffix appends the "(al=<landing-user>; Bug <id>)" marker
// every rewritten commit message ends with, landed or try.
func appendLandingSuffix(msg, landingUser string, bugID int) string {
	return fmt.Sprintf("%s (al=%s; Bug %d)", msg, landingUser, bugID)
}

// StripTags removes any existing r=/sr=/ui-r=/a= tokens from msg. It is
// idempotent: StripTags(StripTags(m)) == StripTags(m).
func StripTags(msg string) string {
	msg = reviewTokenRe.ReplaceAllString(msg, "")
	msg = approvalTokenRe.ReplaceAllString(msg, "")
	return strings.TrimSpace(msg)
}

// addReviews appends one r=/sr=/ui-r= tag per review, in order, regardless
// of the review's result — the original does not filter by "+" here,
// trusting that only passing reviews reached this point via the
// applicability check upstream.
func addReviews(msg string, reviews []model.Review) string {
	if len(reviews) == 0 {
		return msg
	}
	tags := make([]string, 0, len(reviews))
	for _, r := range reviews {
		letter, ok := reviewTag[r.Type]
		if !ok {
			continue
		}
		tags = append(tags, letter+"="+r.Reviewer.Email)
	}
	if len(tags) == 0 {
		return msg
	}
	return msg + " " + strings.Join(tags, " ")
}

// addApprovals appends a single a=e1,e2,... tag listing every branch-tagged
// '+' approval's approver, mirroring add_approvals.
func addApprovals(msg, branch string, approvals []model.Approval) string {
	var emails []string
	for _, a := range approvals {
		if a.Branch == branch && a.Result == model.FlagPlus {
			emails = append(emails, a.Approver.Email)
		}
	}
	if len(emails) == 0 {
		return msg
	}
	return msg + " a=" + strings.Join(emails, ",")
}

func firstLine(msg string) string {
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		return msg[:idx]
	}
	return msg
}

