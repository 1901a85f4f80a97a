package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.mozilla.org/autoland/faults"
)

// HTTPClient is the one HTTP method HTTPTreeStatus needs, mirroring
// tracker.HTTPClient and directory.HTTPClient so all three packages share
// *http.Client in production and independent fakes in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTreeStatus checks a branch's tree-status endpoint, grounded on
// branch.py's get_tree_status: GET {baseURL}{branch}?format=json and read
// the "status" field of the JSON body.
type HTTPTreeStatus struct {
	baseURL string
	http    HTTPClient
}

// NewHTTPTreeStatus builds an HTTPTreeStatus client against baseURL (the
// branch name plus "?format=json" is appended per request).
func NewHTTPTreeStatus(baseURL string, httpClient HTTPClient) *HTTPTreeStatus {
	return &HTTPTreeStatus{baseURL: baseURL, http: httpClient}
}

type treeStatusBody struct {
	Status string `json:"status"`
}

// IsOpen reports whether branch currently accepts pushes.
func (t *HTTPTreeStatus) IsOpen(ctx context.Context, branch string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+branch+"?format=json", nil)
	if err != nil {
		return false, faults.New(faults.Internal, "treestatus.IsOpen", err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return false, faults.New(faults.Transient, "treestatus.IsOpen", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, faults.Newf(faults.Transient, "treestatus.IsOpen", "status %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		// An unlisted branch is treated as open, matching branch.py's
		// fallback when the tree-status service has no record for it.
		return true, nil
	}
	if resp.StatusCode >= 400 {
		return false, faults.Newf(faults.InvalidInput, "treestatus.IsOpen", "status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, faults.New(faults.Transient, "treestatus.IsOpen", err)
	}
	var body treeStatusBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return false, faults.New(faults.Internal, "treestatus.IsOpen", err)
	}
	return body.Status == "open" || body.Status == "approval required", nil
}
