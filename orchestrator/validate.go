package orchestrator

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/model"
)

// ParseBranches splits a tracker-supplied branches field into a
// deduplicated, sorted slice, discarding blanks produced by
// trailing or doubled separators. Grounded on branch.py's parse_branches,
// which splits on whitespace as well as commas (re.split(r"[\s,]", line)),
// so a space-only-separated field doesn't collapse into one bogus name.
func ParseBranches(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	}) {
		b := strings.TrimSpace(part)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// PatchApplicable implements P(patch, branch) from spec.md §4.1: a patch may
// land on branch when its review and approval state satisfies the branch's
// requirements. Short-circuits true when branch requires neither.
//
// Review requirement: if branch.ReviewRequired, every Review on the patch
// must carry FlagPlus AND its reviewer's email must belong to requiredGroup
// (mirrors branch.py's patch_has_proper_reviews, minus its self.scm_leve
// typo which made the review gate silently inert).
//
// Approval requirement: if branch.ApprovalRequired, every Approval tagged
// for this branch must carry FlagPlus (a '-' or '?' branch-tagged approval
// always disqualifies), and at least one such '+' approval's approver must
// belong to requiredGroup. This follows the specification's literal wording
// over branch.py's patch_has_proper_approvals, which instead rejects on the
// first '+' approval whose approver fails the group check even when a later
// approval in the same list would have satisfied it — see DESIGN.md.
//
// dir.InGroup is expected to consult both the person's primary email and
// their registered tracker email, either suffice (directory.Client.InGroup
// already does this).
func PatchApplicable(ctx context.Context, dir DirectoryClient, patch model.Patch, branch model.Branch, requiredGroup string) (bool, error) {
	if branch.ReviewRequired {
		for _, r := range patch.Reviews {
			if r.Result != model.FlagPlus {
				return false, nil
			}
			member, err := dir.InGroup(ctx, r.Reviewer.Email, requiredGroup)
			if err != nil {
				return false, err
			}
			if !member {
				return false, nil
			}
		}
	}

	if !branch.ApprovalRequired {
		return true, nil
	}

	var branchApprovals []model.Approval
	for _, a := range patch.Approvals {
		if a.Branch != branch.Name {
			continue
		}
		branchApprovals = append(branchApprovals, a)
		if a.Result != model.FlagPlus {
			return false, nil
		}
	}
	if len(branchApprovals) == 0 {
		return false, nil
	}

	for _, a := range branchApprovals {
		member, err := dir.InGroup(ctx, a.Approver.Email, requiredGroup)
		if err != nil {
			return false, err
		}
		if member {
			return true, nil
		}
	}
	return false, nil
}

// Validate implements V(bug, branches) from spec.md §4.1: a Request is
// verified only when every named branch is enabled and every (patch,
// branch) pair is applicable. Full retrieval of the patch list (I3) is
// enforced by Tracker.GetPatches before Validate is ever called.
func Validate(ctx context.Context, svc *Services, req *model.Request, patches []model.Patch) (bool, error) {
	if len(req.Branches) == 0 {
		return false, nil
	}

	branches := make([]model.Branch, 0, len(req.Branches))
	for _, name := range req.Branches {
		b, err := svc.Branches.GetBranch(ctx, name)
		if err != nil {
			if faults.KindOf(err) == faults.NotFound {
				return false, nil
			}
			return false, err
		}
		if !b.Enabled {
			return false, nil
		}
		branches = append(branches, *b)
	}

	for _, branch := range branches {
		requiredGroup := ""
		if branch.ReviewRequired || branch.ApprovalRequired {
			group, err := svc.BranchPermissions.RequiredGroup(ctx, branch.Name)
			if err != nil {
				if faults.KindOf(err) == faults.NotFound {
					return false, nil
				}
				return false, err
			}
			requiredGroup = group
		}
		for _, patch := range patches {
			ok, err := PatchApplicable(ctx, svc.Directory, patch, branch, requiredGroup)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}

	return true, nil
}
