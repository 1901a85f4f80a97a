package directory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHTTPClient struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func resp(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestRequiredGroupReturnsGroupName(t *testing.T) {
	client := &fakeHTTPClient{fn: func(req *http.Request) (*http.Response, error) {
		assert.Contains(t, req.URL.String(), "/mozilla-release")
		return resp(200, "scm_level_3\n"), nil
	}}
	bp := NewBranchPermissions("https://branches.example/perm", client)
	group, err := bp.RequiredGroup(context.Background(), "mozilla-release")
	require.NoError(t, err)
	assert.Equal(t, "scm_level_3", group)
}

func TestRequiredGroupUnknownBranchSentinel(t *testing.T) {
	client := &fakeHTTPClient{fn: func(req *http.Request) (*http.Response, error) {
		return resp(200, "is not an hg repository"), nil
	}}
	bp := NewBranchPermissions("https://branches.example/perm", client)
	_, err := bp.RequiredGroup(context.Background(), "nonexistent")
	require.Error(t, err)
}

func TestRequiredGroupTransportError(t *testing.T) {
	client := &fakeHTTPClient{fn: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("boom")
	}}
	bp := NewBranchPermissions("https://branches.example/perm", client)
	_, err := bp.RequiredGroup(context.Background(), "main")
	require.Error(t, err)
}
