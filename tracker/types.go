// Package tracker is the bug-tracker HTTP client (spec.md §7 "Bug tracker
// (HTTP + JSON)"), grounded on original_source/autoland/bugzilla.py's
// Bugzilla class and generalized onto the teacher's dependency-injected
// HTTPClient pattern (hr/client.go).
package tracker

import (
	"strings"

	"go.mozilla.org/autoland/model"
)

// Bug is the subset of the tracker's bug JSON this system reads.
type Bug struct {
	ID          int          `json:"id"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is one tracker attachment: a patch plus its flags.
type Attachment struct {
	ID         int    `json:"id"`
	IsPatch    bool   `json:"is_patch"`
	IsObsolete bool   `json:"is_obsolete"`
	Attacher   Person `json:"attacher"`
	Flags      []Flag `json:"flags"`
}

// Flag is a single review or approval flag on an attachment, mirroring
// get_reviews/get_approvals's flag-name dispatch ("review", "superreview",
// "ui-review", or "approval-<branch>").
type Flag struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Setter Person `json:"setter"`
}

// Person names a tracker "setter" or "attacher".
type Person struct {
	Name string `json:"name"`
}

// UserInfo is the tracker's per-user lookup response, mirroring
// get_user_info's name/email extraction.
type UserInfo struct {
	RealName string `json:"real_name"`
	Email    string `json:"email"`
}

// WaitingBug is one row of the private autoland RPC's getBugs result.
type WaitingBug struct {
	BugID      int                  `json:"bug_id"`
	Branches   string               `json:"branches"`
	TrySyntax  string               `json:"try_syntax"`
	StatusWhen string               `json:"status_when"`
	Attachments []WaitingAttachment `json:"attachments"`
}

// WaitingAttachment is one attachment entry inside a WaitingBug.
type WaitingAttachment struct {
	ID         int    `json:"id"`
	Who        string `json:"who"`
	Status     string `json:"status"`
	StatusWhen string `json:"status_when"`
}

// commentsPage is the tracker's GET /bug/<id>/comment response shape.
type commentsPage struct {
	Comments []struct {
		Text string `json:"text"`
	} `json:"comments"`
}

// reviewsFromFlags converts tracker flags into model.Review rows, mirroring
// get_reviews's flag.name-in-(review,superreview,ui-review) filter.
func reviewsFromFlags(flags []Flag, resolve func(name string) model.Person) []model.Review {
	var out []model.Review
	for _, f := range flags {
		var kind model.ReviewKind
		switch f.Name {
		case "review":
			kind = model.ReviewPlain
		case "superreview":
			kind = model.ReviewSuper
		case "ui-review":
			kind = model.ReviewUI
		default:
			continue
		}
		out = append(out, model.Review{
			Type:     kind,
			Reviewer: resolve(f.Setter.Name),
			Result:   model.FlagResult(f.Status),
		})
	}
	return out
}

// approvalsFromFlags converts "approval-<branch>" flags into model.Approval
// rows, mirroring get_approvals's "approval-" prefix strip.
func approvalsFromFlags(flags []Flag, resolve func(name string) model.Person) []model.Approval {
	var out []model.Approval
	const prefix = "approval-"
	for _, f := range flags {
		if !strings.HasPrefix(f.Name, prefix) || f.Name == prefix {
			continue
		}
		out = append(out, model.Approval{
			Branch:   strings.TrimPrefix(f.Name, prefix),
			Approver: resolve(f.Setter.Name),
			Result:   model.FlagResult(f.Status),
		})
	}
	return out
}
