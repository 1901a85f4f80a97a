package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.mozilla.org/autoland/faults"
)

// HTTPClient is the one method BuildAPI needs, mirroring tracker.HTTPClient
// and directory.HTTPClient so the three clients share the same fake-in-tests
// shape.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BuildAPIConfig points BuildAPI at the self-serve build API.
type BuildAPIConfig struct {
	BaseURL  string
	Username string
	Password string
	DryRun   bool
}

// BuildAPI implements BuildStore against the self-serve build API,
// grounded on original_source/schedulerDBpoller.py's SelfServeRebuild (a
// POST to "<self_serve_api_url>/<branch>/build" with a build_id form
// value) for Rebuild, and generalized to a revision-keyed read endpoint for
// RecordsForRevision/ListRevisionsInRange in place of the original's direct
// scheduler-database query (no SQL driver is part of this pack's stack; see
// DESIGN.md).
type BuildAPI struct {
	cfg  BuildAPIConfig
	http HTTPClient
}

// NewBuildAPI builds a BuildAPI using the real http.DefaultClient.
func NewBuildAPI(cfg BuildAPIConfig) *BuildAPI {
	return &BuildAPI{cfg: cfg, http: http.DefaultClient}
}

// NewBuildAPIWithHTTP builds a BuildAPI over a caller-supplied HTTPClient,
// for tests.
func NewBuildAPIWithHTTP(cfg BuildAPIConfig, httpClient HTTPClient) *BuildAPI {
	return &BuildAPI{cfg: cfg, http: httpClient}
}

type buildRequestWire struct {
	BuildID     string    `json:"build_id"`
	Builder     string    `json:"buildername"`
	Status      string    `json:"status"`
	Comments    []string  `json:"comments"`
	FinishTime  int64     `json:"endtime"`
	HasFinished bool      `json:"complete"`
}

func (c *BuildAPI) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	full := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if form != nil {
		if method == http.MethodGet {
			full += "?" + form.Encode()
		} else {
			body = bytes.NewBufferString(form.Encode())
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return faults.New(faults.Internal, "classifier.BuildAPI.do", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return faults.New(faults.Transient, "classifier.BuildAPI.do", err)
	}
	defer res.Body.Close()
	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return faults.New(faults.Transient, "classifier.BuildAPI.do", err)
	}
	if res.StatusCode >= 500 {
		return faults.Newf(faults.Transient, "classifier.BuildAPI.do", "build api returned %d: %s", res.StatusCode, respBody)
	}
	if res.StatusCode >= 400 {
		return faults.Newf(faults.InvalidInput, "classifier.BuildAPI.do", "build api returned %d: %s", res.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return faults.New(faults.Internal, "classifier.BuildAPI.do", err)
	}
	return nil
}

// RecordsForRevision fetches every build record for a revision on branch.
func (c *BuildAPI) RecordsForRevision(ctx context.Context, branch, revision string) ([]BuildRecord, error) {
	var wire []buildRequestWire
	path := fmt.Sprintf("/%s/rev/%s", branch, revision)
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	return toBuildRecords(wire), nil
}

// ListRevisionsInRange lists revisions on branch with activity between
// start and end.
func (c *BuildAPI) ListRevisionsInRange(ctx context.Context, branch string, start, end time.Time) ([]string, error) {
	var revisions []string
	form := url.Values{
		"starttime": {strconv.FormatInt(start.Unix(), 10)},
		"endtime":   {strconv.FormatInt(end.Unix(), 10)},
	}
	path := fmt.Sprintf("/%s/revisions", branch)
	if err := c.do(ctx, http.MethodGet, path, form, &revisions); err != nil {
		return nil, err
	}
	return revisions, nil
}

// Rebuild retriggers buildID on branch, mirroring SelfServeRebuild. A
// DryRun config short-circuits to a no-op, matching the original's
// dry_run-gated log-only behavior.
func (c *BuildAPI) Rebuild(ctx context.Context, branch, buildID string) error {
	if c.cfg.DryRun {
		return nil
	}
	path := fmt.Sprintf("/%s/build", branch)
	form := url.Values{"build_id": {buildID}}
	return c.do(ctx, http.MethodPost, path, form, nil)
}

func toBuildRecords(wire []buildRequestWire) []BuildRecord {
	out := make([]BuildRecord, 0, len(wire))
	for _, w := range wire {
		out = append(out, BuildRecord{
			BuildID:     w.BuildID,
			Builder:     w.Builder,
			Status:      BuildStatus(w.Status),
			Comments:    w.Comments,
			FinishTime:  time.Unix(w.FinishTime, 0).UTC(),
			HasFinished: w.HasFinished,
		})
	}
	return out
}

var _ BuildStore = (*BuildAPI)(nil)
