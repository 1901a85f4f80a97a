package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mozilla.org/autoland/model"
)

func TestParseBranchesDedupsAndTrims(t *testing.T) {
	got := ParseBranches(" mozilla-central, mozilla-central,autoland ,")
	assert.Equal(t, []string{"autoland", "mozilla-central"}, got)
}

func TestParseBranchesEmpty(t *testing.T) {
	assert.Nil(t, ParseBranches(""))
}

func TestParseBranchesWhitespaceOnlySeparators(t *testing.T) {
	got := ParseBranches("mozilla-central autoland\tmozilla-beta\n mozilla-central")
	assert.Equal(t, []string{"autoland", "mozilla-beta", "mozilla-central"}, got)
}

func reviewedPlusPatch() model.Patch {
	return model.Patch{
		ID:     1,
		Author: model.Person{Name: "Dev", Email: "dev@example.com"},
		Reviews: []model.Review{
			{Type: model.ReviewPlain, Reviewer: model.Person{Email: "r@example.com"}, Result: model.FlagPlus},
		},
	}
}

func TestPatchApplicableRejectsUnreviewedPatch(t *testing.T) {
	patch := reviewedPlusPatch()
	patch.Reviews[0].Result = model.FlagMinus
	branch := model.Branch{Name: "mozilla-central", ReviewRequired: true}

	ok, err := PatchApplicable(context.Background(), newFakeDirectory(), patch, branch, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPatchApplicableAllowsReviewedPatchWithNoApprovalNeeded(t *testing.T) {
	patch := reviewedPlusPatch()
	branch := model.Branch{Name: "mozilla-central", ReviewRequired: true}
	dir := newFakeDirectory()
	dir.add("r@example.com", "scm_level_1")

	ok, err := PatchApplicable(context.Background(), dir, patch, branch, "scm_level_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPatchApplicableRejectsWhenReviewerNotInRequiredGroup(t *testing.T) {
	patch := reviewedPlusPatch()
	branch := model.Branch{Name: "mozilla-central", ReviewRequired: true}

	ok, err := PatchApplicable(context.Background(), newFakeDirectory(), patch, branch, "scm_level_1")
	require.NoError(t, err)
	assert.False(t, ok, "a + review from a reviewer outside the required group must not pass")
}

func TestPatchApplicableRequiresGroupApprovalOnBranch(t *testing.T) {
	patch := reviewedPlusPatch()
	patch.Approvals = []model.Approval{
		{Branch: "mozilla-release", Approver: model.Person{Email: "approver@example.com"}, Result: model.FlagPlus},
	}
	branch := model.Branch{Name: "mozilla-release", ApprovalRequired: true}
	dir := newFakeDirectory()

	ok, err := PatchApplicable(context.Background(), dir, patch, branch, "scm_level_3")
	require.NoError(t, err)
	assert.False(t, ok, "approver is not a member of the required group")

	dir.add("approver@example.com", "scm_level_3")
	ok, err = PatchApplicable(context.Background(), dir, patch, branch, "scm_level_3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPatchApplicableAnyBranchTaggedMinusRejects(t *testing.T) {
	patch := reviewedPlusPatch()
	patch.Approvals = []model.Approval{
		{Branch: "mozilla-release", Approver: model.Person{Email: "a@example.com"}, Result: model.FlagPlus},
		{Branch: "mozilla-release", Approver: model.Person{Email: "b@example.com"}, Result: model.FlagMinus},
	}
	branch := model.Branch{Name: "mozilla-release", ApprovalRequired: true}
	dir := newFakeDirectory()
	dir.add("a@example.com", "scm_level_3")

	ok, err := PatchApplicable(context.Background(), dir, patch, branch, "scm_level_3")
	require.NoError(t, err)
	assert.False(t, ok, "a branch-tagged minus approval must reject even when another approval is a valid plus")
}

func TestPatchApplicableOneValidPlusAmongSeveralSuffices(t *testing.T) {
	patch := reviewedPlusPatch()
	patch.Approvals = []model.Approval{
		{Branch: "mozilla-release", Approver: model.Person{Email: "notmember@example.com"}, Result: model.FlagPlus},
		{Branch: "mozilla-release", Approver: model.Person{Email: "member@example.com"}, Result: model.FlagPlus},
	}
	branch := model.Branch{Name: "mozilla-release", ApprovalRequired: true}
	dir := newFakeDirectory()
	dir.add("member@example.com", "scm_level_3")

	ok, err := PatchApplicable(context.Background(), dir, patch, branch, "scm_level_3")
	require.NoError(t, err)
	assert.True(t, ok, "only one branch-tagged plus approval needs to be group-valid")
}

func TestValidateRejectsWhenBranchDisabled(t *testing.T) {
	svc := &Services{
		Branches:  newFakeBranchRepo(model.Branch{Name: "mozilla-central", Enabled: false}),
		Directory: newFakeDirectory(),
	}
	req := &model.Request{Branches: []string{"mozilla-central"}, PatchIDs: []int{1}}
	ok, err := Validate(context.Background(), svc, req, []model.Patch{reviewedPlusPatch()})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidatePassesWhenEverythingSatisfied(t *testing.T) {
	dir := newFakeDirectory()
	dir.add("r@example.com", "scm_level_1")
	svc := &Services{
		Branches:          newFakeBranchRepo(model.Branch{Name: "mozilla-central", Enabled: true, ReviewRequired: true}),
		Directory:         dir,
		BranchPermissions: &fakeBranchPermissions{groups: map[string]string{"mozilla-central": "scm_level_1"}},
	}
	req := &model.Request{Branches: []string{"mozilla-central"}, PatchIDs: []int{1}}
	ok, err := Validate(context.Background(), svc, req, []model.Patch{reviewedPlusPatch()})
	require.NoError(t, err)
	assert.True(t, ok)
}
