package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.mozilla.org/autoland/faults"
	"go.mozilla.org/autoland/model"
)

// HTTPClient is an interface for making HTTP requests, allowing the real
// *http.Client to be swapped for a fake in tests — grounded on the
// teacher's hr.HTTPClient dependency-injection pattern (hr/client.go).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the tracker credentials and endpoints (spec.md §7).
type Config struct {
	APIURL        string
	AttachmentURL string
	Username      string
	Password      string
	RPCURL        string
	RPCLogin      string
	RPCPassword   string
}

// Client is the bug-tracker HTTP client.
type Client struct {
	cfg        Config
	httpClient HTTPClient
}

// New builds a Client using the real http.DefaultClient.
func New(cfg Config) *Client {
	return &Client{cfg: cfg, httpClient: http.DefaultClient}
}

// NewWithHTTP builds a Client over a caller-supplied HTTPClient, for tests.
func NewWithHTTP(cfg Config, httpClient HTTPClient) *Client {
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) doJSON(method, url string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return faults.New(faults.InvalidInput, "tracker.doJSON", err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return faults.New(faults.InvalidInput, "tracker.doJSON", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return faults.New(faults.Transient, "tracker.doJSON", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return faults.New(faults.Transient, "tracker.doJSON", err)
	}
	if res.StatusCode >= 500 {
		return faults.Newf(faults.Transient, "tracker.doJSON", "tracker returned %d: %s", res.StatusCode, respBody)
	}
	if res.StatusCode >= 400 {
		return faults.Newf(faults.InvalidInput, "tracker.doJSON", "tracker returned %d: %s", res.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return faults.New(faults.Internal, "tracker.doJSON", err)
	}
	return nil
}

// GetBug fetches a bug's JSON, mirroring get_bug.
func (c *Client) GetBug(bugID int) (*Bug, error) {
	var bug Bug
	url := fmt.Sprintf("%s/bug/%d", strings.TrimRight(c.cfg.APIURL, "/"), bugID)
	if err := c.doJSON(http.MethodGet, url, nil, &bug); err != nil {
		return nil, err
	}
	return &bug, nil
}

// GetUserInfo looks up a user's display name and email, mirroring
// get_user_info's strip-off-bracket-suffix name parsing.
func (c *Client) GetUserInfo(email string) (*model.Person, error) {
	var raw UserInfo
	url := fmt.Sprintf("%s/user/%s", strings.TrimRight(c.cfg.APIURL, "/"), email)
	if err := c.doJSON(http.MethodGet, url, nil, &raw); err != nil {
		return nil, err
	}
	if raw.RealName == "" {
		return nil, faults.Newf(faults.NotFound, "tracker.GetUserInfo", "no real_name for %s", email)
	}
	name := raw.RealName
	if idx := strings.Index(name, "["); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}
	person := model.Person{Name: name, Email: email}
	if raw.Email != "" {
		person.Email = raw.Email
	}
	return &person, nil
}

// DownloadPatch fetches a patch's raw bytes, mirroring download_patch's
// invalid-attachment detection (an "invalid attachment" error body is not
// an HTTP error — the tracker returns 200 with an error message body).
func (c *Client) DownloadPatch(patchID int) ([]byte, error) {
	url := c.cfg.AttachmentURL + strconv.Itoa(patchID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, faults.New(faults.InvalidInput, "tracker.DownloadPatch", err)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.New(faults.Transient, "tracker.DownloadPatch", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, faults.New(faults.Transient, "tracker.DownloadPatch", err)
	}
	if res.StatusCode >= 400 {
		return nil, faults.Newf(faults.Transient, "tracker.DownloadPatch", "tracker returned %d", res.StatusCode)
	}
	if bytes.Contains(body, []byte(fmt.Sprintf("The attachment id %d is invalid", patchID))) {
		return nil, faults.Newf(faults.InvalidInput, "tracker.DownloadPatch", "invalid attachment %d", patchID)
	}
	return body, nil
}

// PostComment posts a public comment, mirroring notify_bug.
func (c *Client) PostComment(bugID int, text string) error {
	url := fmt.Sprintf("%s/bug/%d/comment", strings.TrimRight(c.cfg.APIURL, "/"), bugID)
	payload := map[string]interface{}{"text": text, "is_private": false}
	return c.doJSON(http.MethodPost, url, payload, nil)
}

// HasComment reports whether bugID already carries a comment with exactly
// this text, mirroring has_comment — used to dedup outbox retries.
func (c *Client) HasComment(bugID int, text string) (bool, error) {
	var page commentsPage
	url := fmt.Sprintf("%s/bug/%d/comment", strings.TrimRight(c.cfg.APIURL, "/"), bugID)
	if err := c.doJSON(http.MethodGet, url, nil, &page); err != nil {
		return false, err
	}
	for _, comment := range page.Comments {
		if comment.Text == text {
			return true, nil
		}
	}
	return false, nil
}

// GetPatches fetches every requested patch's review/approval metadata from
// bugID. This hard-fails (I3) when fewer patches come back than requested
// rather than returning a partial set, mirroring get_patches's "Not all
// patch_ids could be picked up from bug" failure.
func (c *Client) GetPatches(bugID int, patchIDs []int) ([]model.Patch, error) {
	bug, err := c.GetBug(bugID)
	if err != nil {
		return nil, err
	}
	wanted := make(map[int]bool, len(patchIDs))
	for _, id := range patchIDs {
		wanted[id] = true
	}

	var matched []Attachment
	for _, a := range bug.Attachments {
		if wanted[a.ID] && a.IsPatch && !a.IsObsolete {
			matched = append(matched, a)
		}
	}
	if len(matched) != len(patchIDs) {
		return nil, faults.Newf(faults.InvalidInput, "tracker.GetPatches",
			"not all patch ids could be picked up from bug %d: wanted %d, got %d", bugID, len(patchIDs), len(matched))
	}

	resolveCache := map[string]model.Person{}
	resolve := func(name string) model.Person {
		if p, ok := resolveCache[name]; ok {
			return p
		}
		p, err := c.GetUserInfo(name)
		if err != nil {
			p = &model.Person{Name: name, Email: name}
		}
		resolveCache[name] = *p
		return *p
	}

	patches := make([]model.Patch, 0, len(matched))
	for _, a := range matched {
		author := resolve(a.Attacher.Name)
		patches = append(patches, model.Patch{
			ID:        a.ID,
			Author:    author,
			Reviews:   reviewsFromFlags(a.Flags, resolve),
			Approvals: approvalsFromFlags(a.Flags, resolve),
		})
	}
	return patches, nil
}

// bugsFromCommentsRe mirrors bugs_from_comments's regex: "Bug NNN",
// "Bugs NNN, NNN", or "bNNN".
var bugsFromCommentsRe = regexp.MustCompile(`(?i)\bb(?:ug(?:s)?)?\s*((?:\d+[, ]*)+)\b`)
var digitsRe = regexp.MustCompile(`\d+`)

// BugsFromComments extracts bug numbers mentioned in free-form comment text.
func BugsFromComments(comment string) []int {
	m := bugsFromCommentsRe.FindStringSubmatch(comment)
	if m == nil {
		return nil
	}
	var out []int
	for _, d := range digitsRe.FindAllString(m[1], -1) {
		n, err := strconv.Atoi(d)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// GetWaitingBugs polls the private autoland RPC for queued requests,
// mirroring get_wating_auoland_bugs (its "status_when" hoist from the
// first attachment is preserved so callers see one representative
// timestamp per bug, per the original's TODO-flagged but relied-upon
// behavior).
func (c *Client) GetWaitingBugs() ([]WaitingBug, error) {
	params := map[string]interface{}{
		"method":            "TryAutoLand.getBugs",
		"Bugzilla_login":    c.cfg.RPCLogin,
		"Bugzilla_password": c.cfg.RPCPassword,
	}
	var raw struct {
		Error  string       `json:"error"`
		Result []WaitingBug `json:"result"`
	}
	if err := c.doJSON(http.MethodGet, c.rpcURLWithParams(params), nil, &raw); err != nil {
		return nil, err
	}
	if raw.Error != "" {
		return nil, faults.Newf(faults.Transient, "tracker.GetWaitingBugs", "autoland rpc error: %s", raw.Error)
	}
	for i := range raw.Result {
		if len(raw.Result[i].Attachments) > 0 {
			raw.Result[i].StatusWhen = raw.Result[i].Attachments[0].StatusWhen
		}
	}
	return raw.Result, nil
}

func (c *Client) rpcURLWithParams(params map[string]interface{}) string {
	q := ""
	for k, v := range params {
		if q != "" {
			q += "&"
		}
		q += fmt.Sprintf("%s=%v", k, v)
	}
	return c.cfg.RPCURL + "?" + q
}

// UpdateAttachmentStatus reports per-attachment status back through the
// autoland RPC, mirroring update_autoland_status.
func (c *Client) UpdateAttachmentStatus(status string, patchIDs []int) error {
	for _, id := range patchIDs {
		params := map[string]interface{}{
			"action":             "status",
			"status":             status,
			"attach_id":          id,
			"Bugzilla_login":     c.cfg.RPCLogin,
			"Bugzilla_password":  c.cfg.RPCPassword,
		}
		payload := map[string]interface{}{"method": "TryAutoLand.update", "version": 1.1, "params": params}
		if err := c.doJSON(http.MethodPost, c.cfg.RPCURL, payload, nil); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFromQueue removes attachments from the autoland queue, mirroring
// remove_from_autoland_queue.
func (c *Client) RemoveFromQueue(patchIDs []int) error {
	for _, id := range patchIDs {
		params := map[string]interface{}{
			"action":             "remove",
			"attach_id":          id,
			"Bugzilla_login":     c.cfg.RPCLogin,
			"Bugzilla_password":  c.cfg.RPCPassword,
		}
		payload := map[string]interface{}{"method": "TryAutoLand.update", "version": 1.1, "params": params}
		if err := c.doJSON(http.MethodPost, c.cfg.RPCURL, payload, nil); err != nil {
			return err
		}
	}
	return nil
}
