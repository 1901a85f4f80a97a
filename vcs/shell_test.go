package vcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mozilla.org/autoland/faults"
)

func TestRealRunnerSuccess(t *testing.T) {
	r := NewRealRunner("echo", "", nil)
	out, err := r.Run(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestRealRunnerFailureIsTransient(t *testing.T) {
	r := NewRealRunner("false", "", nil)
	_, err := r.Run(context.Background(), "", "x")
	require.Error(t, err)
	assert.Equal(t, faults.Transient, faults.KindOf(err))
}

func TestFakeRunnerFailFirstN(t *testing.T) {
	f := &FakeRunner{FailFirstN: 2, FailOp: "clone"}
	for i := 0; i < 2; i++ {
		_, err := f.Run(context.Background(), "", "clone", "url")
		require.Error(t, err)
	}
	_, err := f.Run(context.Background(), "", "clone", "url")
	require.NoError(t, err)
	assert.Len(t, f.Calls, 3)
}
