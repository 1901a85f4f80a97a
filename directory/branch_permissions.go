package directory

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.mozilla.org/autoland/faults"
)

// HTTPClient is the one HTTP method BranchPermissions needs, mirroring
// tracker.HTTPClient so both packages can share *http.Client in production
// and an independent fake in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BranchPermissions resolves the directory group required to land on a
// branch, mirroring spec.md §6's branch-permissions HTTP endpoint: a GET
// whose body is either the group name (e.g. "scm_level_3") or the sentinel
// string "is not an hg repository" for an unknown branch.
type BranchPermissions struct {
	baseURL string
	http    HTTPClient
}

// NewBranchPermissions builds a BranchPermissions client against baseURL
// (the branch name is appended as a path segment per request).
func NewBranchPermissions(baseURL string, httpClient HTTPClient) *BranchPermissions {
	return &BranchPermissions{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// RequiredGroup returns the directory group name required to land on branch.
func (b *BranchPermissions) RequiredGroup(ctx context.Context, branch string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/"+branch, nil)
	if err != nil {
		return "", faults.New(faults.Internal, "directory.RequiredGroup", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return "", faults.New(faults.Transient, "directory.RequiredGroup", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", faults.New(faults.Transient, "directory.RequiredGroup", err)
	}
	text := strings.TrimSpace(string(body))
	if strings.Contains(text, "is not an hg repository") {
		return "", faults.Newf(faults.NotFound, "directory.RequiredGroup", "branch %q is unknown", branch)
	}
	if resp.StatusCode >= 500 {
		return "", faults.Newf(faults.Transient, "directory.RequiredGroup", "status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return "", faults.Newf(faults.InvalidInput, "directory.RequiredGroup", "status %d", resp.StatusCode)
	}
	return text, nil
}
