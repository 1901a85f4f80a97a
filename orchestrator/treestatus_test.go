package orchestrator

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

type fakeTreeStatusHTTP struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f *fakeTreeStatusHTTP) Do(req *http.Request) (*http.Response, error) { return f.fn(req) }

func treeResp(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestHTTPTreeStatusOpen(t *testing.T) {
	client := &fakeTreeStatusHTTP{fn: func(req *http.Request) (*http.Response, error) {
		assert.Contains(t, req.URL.String(), "mozilla-central")
		return treeResp(200, `{"status":"open"}`), nil
	}}
	ts := NewHTTPTreeStatus("https://treestatus.example/", client)
	open, err := ts.IsOpen(context.Background(), "mozilla-central")
	require.NoError(t, err)
	assert.True(t, open)
}

func TestHTTPTreeStatusClosed(t *testing.T) {
	client := &fakeTreeStatusHTTP{fn: func(req *http.Request) (*http.Response, error) {
		return treeResp(200, `{"status":"closed"}`), nil
	}}
	ts := NewHTTPTreeStatus("https://treestatus.example/", client)
	open, err := ts.IsOpen(context.Background(), "mozilla-central")
	require.NoError(t, err)
	assert.False(t, open)
}

func TestHTTPTreeStatusUnlistedBranchTreatedAsOpen(t *testing.T) {
	client := &fakeTreeStatusHTTP{fn: func(req *http.Request) (*http.Response, error) {
		return treeResp(404, ""), nil
	}}
	ts := NewHTTPTreeStatus("https://treestatus.example/", client)
	open, err := ts.IsOpen(context.Background(), "some-unlisted-branch")
	require.NoError(t, err)
	assert.True(t, open)
}

func TestHTTPTreeStatusTransportError(t *testing.T) {
	client := &fakeTreeStatusHTTP{fn: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("boom")
	}}
	ts := NewHTTPTreeStatus("https://treestatus.example/", client)
	_, err := ts.IsOpen(context.Background(), "mozilla-central")
	require.Error(t, err)
}
