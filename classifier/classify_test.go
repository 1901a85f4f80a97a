package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func rec(status BuildStatus, builder string) BuildRecord {
	return BuildRecord{BuildID: builder + "-1", Builder: builder, Status: status}
}

func TestClassifyAnyFailureIsFailure(t *testing.T) {
	records := []BuildRecord{rec(StatusSuccess, "a"), rec(StatusFailure, "b")}
	outcome := Classify(context.Background(), &fakeBuildStore{}, "branch", records, 10)
	assert.Equal(t, OutcomeFailure, outcome)
}

func TestClassifyAllSuccessIsSuccess(t *testing.T) {
	records := []BuildRecord{rec(StatusSuccess, "a"), rec(StatusSuccess, "b")}
	outcome := Classify(context.Background(), &fakeBuildStore{}, "branch", records, 10)
	assert.Equal(t, OutcomeSuccess, outcome)
}

func TestClassifyWarningsWithinToleranceIsSuccess(t *testing.T) {
	records := []BuildRecord{rec(StatusSuccess, "a"), rec(StatusWarnings, "b")}
	outcome := Classify(context.Background(), &fakeBuildStore{}, "branch", records, 5)
	assert.Equal(t, OutcomeSuccess, outcome)
}

func TestClassifyResolvedRetryWithinToleranceIsSuccess(t *testing.T) {
	// 4 warnings, builder "b" retried (2 records), builder "c" retried (2
	// records): retry_count=2, 2*2=4 >= warnings(4); warnings-retry=2 <= maxOrange(2).
	records := []BuildRecord{
		rec(StatusSuccess, "a"),
		rec(StatusWarnings, "b"), rec(StatusWarnings, "b"),
		rec(StatusWarnings, "c"), rec(StatusWarnings, "c"),
	}
	outcome := Classify(context.Background(), &fakeBuildStore{}, "branch", records, 2)
	assert.Equal(t, OutcomeSuccess, outcome)
}

func TestClassifyResolvedRetryOverToleranceIsFailure(t *testing.T) {
	records := []BuildRecord{
		rec(StatusSuccess, "a"),
		rec(StatusWarnings, "b"), rec(StatusWarnings, "b"),
		rec(StatusWarnings, "c"), rec(StatusWarnings, "c"),
	}
	outcome := Classify(context.Background(), &fakeBuildStore{}, "branch", records, 1)
	assert.Equal(t, OutcomeFailure, outcome)
}

func TestClassifyUnresolvedWarningsTriggersRetryAndReportsRetrying(t *testing.T) {
	// 3 warnings, no duplicate builder names: retry_count=0, 0 < warnings(3).
	records := []BuildRecord{
		rec(StatusSuccess, "a"),
		rec(StatusWarnings, "b"),
		rec(StatusWarnings, "c"),
		rec(StatusWarnings, "d"),
	}
	builds := &fakeBuildStore{}
	outcome := Classify(context.Background(), builds, "branch", records, 1)
	assert.Equal(t, OutcomeRetrying, outcome)
	assert.ElementsMatch(t, []string{"b-1", "c-1", "d-1"}, builds.rebuildCalls)
}

func TestClassifyRebuildFailureForcesFailure(t *testing.T) {
	records := []BuildRecord{
		rec(StatusSuccess, "a"),
		rec(StatusWarnings, "b"),
		rec(StatusWarnings, "c"),
	}
	builds := &fakeBuildStore{rebuildErrs: map[string]error{"b-1": assertErr{}}}
	outcome := Classify(context.Background(), builds, "branch", records, 0)
	assert.Equal(t, OutcomeFailure, outcome)
}

type assertErr struct{}

func (assertErr) Error() string { return "rebuild failed" }
