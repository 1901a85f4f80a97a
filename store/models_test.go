package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mozilla.org/autoland/model"
)

func TestMarshalUnmarshalInts(t *testing.T) {
	b, err := marshalInts([]int{1, 2, 3})
	require.NoError(t, err)
	got, err := unmarshalInts(b)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestMarshalIntsNil(t *testing.T) {
	b, err := marshalInts(nil)
	require.NoError(t, err)
	got, err := unmarshalInts(b)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarshalUnmarshalStrings(t *testing.T) {
	b, err := marshalStrings([]string{"mozilla-central", "try"})
	require.NoError(t, err)
	got, err := unmarshalStrings(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"mozilla-central", "try"}, got)
}

func TestBranchFromRowRoundTrip(t *testing.T) {
	row := BranchRow{
		Name:             "mozilla-central",
		PullURL:          "https://hg.mozilla.org/mozilla-central",
		PushURL:          "ssh://hg.mozilla.org/mozilla-central",
		DisplayName:      "mozilla-central",
		Enabled:          true,
		ApprovalRequired: false,
		ReviewRequired:   true,
		AddTryCommit:     true,
		UseTreeStatus:    true,
		ConcurrencyLimit: 4,
	}
	b := branchFromRow(row)
	assert.Equal(t, row.Name, b.Name)
	assert.True(t, b.Enabled)
	assert.True(t, b.ReviewRequired)
	assert.Equal(t, 4, b.ConcurrencyLimit)
}

func TestRequestFromRowRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	branchesJSON, err := marshalStrings([]string{"try", "mozilla-central"})
	require.NoError(t, err)
	patchIDsJSON, err := marshalInts([]int{101, 102})
	require.NoError(t, err)
	row := RequestRow{
		ID:         7,
		BugID:      12345,
		SourceTime: now,
		BranchesJSON: branchesJSON,
		PatchIDsJSON: patchIDsJSON,
		TrySyntax:  "-b do -p all",
		Status:     string(model.RequestDispatched),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	req, err := requestFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, int64(7), req.ID)
	assert.Equal(t, 12345, req.BugID)
	assert.Equal(t, []string{"try", "mozilla-central"}, req.Branches)
	assert.Equal(t, []int{101, 102}, req.PatchIDs)
	assert.Equal(t, model.RequestDispatched, req.Status)
}

func TestPatchsetFromRowRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	patchIDsJSON, err := marshalInts([]int{55})
	require.NoError(t, err)
	row := PatchsetRow{
		ID:           3,
		RequestID:    7,
		BugID:        12345,
		SourceTime:   now,
		Branch:       "try",
		PatchIDsJSON: patchIDsJSON,
		Status:       string(model.PatchsetPushed),
		Revision:     "abcdef0123456",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	ps := patchsetFromRow(row)
	assert.Equal(t, int64(3), ps.ID)
	assert.Equal(t, "try", ps.Branch)
	assert.Equal(t, []int{55}, ps.PatchIDs)
	assert.True(t, ps.Status.Terminal())
}

func TestRevisionCacheFromRowRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	statusLogJSON, err := marshalStrings([]string{"success", "success"})
	require.NoError(t, err)
	row := RevisionCacheRow{
		Revision:     "abcdef0123456",
		FirstSeen:    now,
		StatusLogCSV: statusLogJSON,
		Terminal:     true,
		TerminalAt:   &now,
	}
	rc, err := revisionCacheFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456", rc.Revision)
	assert.Equal(t, []string{"success", "success"}, rc.StatusLog)
	assert.True(t, rc.Terminal)
}
