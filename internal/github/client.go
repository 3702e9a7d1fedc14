package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/metrics"
)

const (
	defaultBaseURL = "https://api.github.com"
	userAgent      = "docs-admin/0.1.0"

	// GitHub's secondary rate limits punish bursts hard. ~5 requests/s
	// sustained keeps a full docs mirror well inside the budget.
	requestsPerSecond = 5
	requestBurst      = 5

	listPageSize = 50
)

// compile-time check that *Client implements ContentClient
var _ ContentClient = (*Client)(nil)

// Client talks to the GitHub REST v3 API with a bearer token.
//
// One Client is built per request from the user's vaulted token — it is
// cheap (no connection state of its own; the http.Client is shared).
// All calls go through the rate limiter, so a multi-path mirror cannot
// stampede the API even when fanned out across goroutines.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Collector
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (httptest servers
// in tests, GitHub Enterprise installs in production).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a Client authenticated with the given bearer token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is GitHub's error response body.
type apiError struct {
	Message string `json:"message"`
}

// do performs one API request: wait for the limiter, send, map the status
// code to the error taxonomy, decode the body into out (when non-nil).
//
// STATUS MAPPING (decided here, once, for every operation):
//
//	404      → ErrNotFound      path/ref absent
//	401, 403 → ErrUnauthorized  bad or expired token
//	409, 422 → ErrConflict      ref exists / sha mismatch / validation
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("github: waiting for rate limiter: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("github: encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("github: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall(operation, "error")
		return fmt.Errorf("github: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var ae apiError
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&ae)

		switch resp.StatusCode {
		case http.StatusNotFound:
			c.metrics.RecordRemoteCall(operation, "not_found")
			return apperror.NotFound("remote path", path)
		case http.StatusUnauthorized, http.StatusForbidden:
			c.metrics.RecordRemoteCall(operation, "unauthorized")
			return apperror.Unauthorized("remote platform rejected the access token")
		case http.StatusConflict, http.StatusUnprocessableEntity:
			c.metrics.RecordRemoteCall(operation, "conflict")
			return apperror.Conflict("remote operation", ae.Message)
		default:
			c.metrics.RecordRemoteCall(operation, "error")
			return fmt.Errorf("github: %s %s: unexpected status %d", method, path, resp.StatusCode)
		}
	}

	c.metrics.RecordRemoteCall(operation, "ok")

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("github: decoding %s response: %w", path, err)
		}
	}
	return nil
}

// escapePath escapes each segment of a repo-relative path so it can be
// embedded in a URL while keeping the separating slashes.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// contentItem is the raw contents-API shape for one file or listing entry.
type contentItem struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// GetContent fetches path at ref and resolves the file-vs-directory
// ambiguity: the API returns a JSON array for a directory and an object
// for a file, distinguishable only by shape. This is the single place
// that inspects it.
func (c *Client) GetContent(ctx context.Context, owner, repo, path, ref string) (*Content, error) {
	u := fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}

	var raw json.RawMessage
	if err := c.do(ctx, "get_content", http.MethodGet, u, nil, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []contentItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("github: decoding directory listing for %s: %w", path, err)
		}
		entries := make([]TreeEntry, 0, len(items))
		for _, it := range items {
			entries = append(entries, TreeEntry{
				Name: it.Name,
				Path: it.Path,
				Type: EntryType(it.Type),
			})
		}
		return &Content{Entries: entries}, nil
	}

	var it contentItem
	if err := json.Unmarshal(trimmed, &it); err != nil {
		return nil, fmt.Errorf("github: decoding file content for %s: %w", path, err)
	}
	return &Content{File: &File{Path: it.Path, SHA: it.SHA, Content: it.Content}}, nil
}

// GetRef resolves branch ref to its head commit sha.
func (c *Client) GetRef(ctx context.Context, owner, repo, ref string) (string, error) {
	u := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s",
		url.PathEscape(owner), url.PathEscape(repo), escapePath(ref))

	var out struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := c.do(ctx, "get_ref", http.MethodGet, u, nil, &out); err != nil {
		return "", err
	}
	if out.Object.SHA == "" {
		return "", fmt.Errorf("github: ref %s resolved to an empty sha", ref)
	}
	return out.Object.SHA, nil
}

// CreateRef creates branch newRef pointing at fromSHA. An already-existing
// ref comes back from the API as 422 and surfaces as ErrConflict.
func (c *Client) CreateRef(ctx context.Context, owner, repo, newRef, fromSHA string) error {
	u := fmt.Sprintf("/repos/%s/%s/git/refs", url.PathEscape(owner), url.PathEscape(repo))

	body := map[string]string{
		"ref": "refs/heads/" + newRef,
		"sha": fromSHA,
	}
	return c.do(ctx, "create_ref", http.MethodPost, u, body, nil)
}

// CreateOrUpdateFile writes content to path on branch.
//
// OPTIMISTIC CONCURRENCY:
// priorSHA is the content-addressed token GitHub requires to update an
// existing file. Omitting it on update, or supplying a stale one, makes
// the API refuse with 409/422 — surfaced as ErrConflict so the caller can
// re-run the whole submission.
func (c *Client) CreateOrUpdateFile(ctx context.Context, owner, repo, path, message string, content []byte, branch, priorSHA string) error {
	u := fmt.Sprintf("/repos/%s/%s/contents/%s",
		url.PathEscape(owner), url.PathEscape(repo), escapePath(path))

	body := map[string]string{
		"message": message,
		"content": base64Encode(content),
		"branch":  branch,
	}
	if priorSHA != "" {
		body["sha"] = priorSHA
	}
	return c.do(ctx, "put_file", http.MethodPut, u, body, nil)
}

// CreatePullRequest opens a PR from head into base and returns its URL.
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo, head, base, title string) (string, error) {
	u := fmt.Sprintf("/repos/%s/%s/pulls", url.PathEscape(owner), url.PathEscape(repo))

	body := map[string]string{
		"title": title,
		"head":  head,
		"base":  base,
	}
	var out struct {
		HTMLURL string `json:"html_url"`
	}
	if err := c.do(ctx, "create_pr", http.MethodPost, u, body, &out); err != nil {
		return "", err
	}
	if out.HTMLURL == "" {
		return "", fmt.Errorf("github: pull request created but response carried no URL")
	}
	return out.HTMLURL, nil
}

// ListRepositories returns a lazy iterator over the authenticated user's
// repositories (owned, collaborator, and org-member), page by page.
func (c *Client) ListRepositories() RepoIterator {
	first := fmt.Sprintf("/user/repos?per_page=%d&affiliation=owner,collaborator,organization_member", listPageSize)
	return &repoIterator{client: c, nextURL: first}
}

// repoIterator implements RepoIterator over Link-header pagination.
type repoIterator struct {
	client  *Client
	nextURL string // path+query of the next page; "" when exhausted
	page    []Repo
	idx     int
	current Repo
	err     error
}

// listRepoItem is the raw listing shape.
type listRepoItem struct {
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

func (it *repoIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for it.idx >= len(it.page) {
		if it.nextURL == "" {
			return false
		}
		if !it.fetchPage(ctx) {
			return false
		}
	}
	it.current = it.page[it.idx]
	it.idx++
	return true
}

func (it *repoIterator) Repo() Repo { return it.current }
func (it *repoIterator) Err() error { return it.err }

// fetchPage loads the next page and advances nextURL from the Link header.
func (it *repoIterator) fetchPage(ctx context.Context) bool {
	c := it.client

	if err := c.limiter.Wait(ctx); err != nil {
		it.err = fmt.Errorf("github: waiting for rate limiter: %w", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+it.nextURL, nil)
	if err != nil {
		it.err = fmt.Errorf("github: building listing request: %w", err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall("list_repos", "error")
		it.err = fmt.Errorf("github: listing repositories: %w", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			c.metrics.RecordRemoteCall("list_repos", "unauthorized")
			it.err = apperror.Unauthorized("remote platform rejected the access token")
		} else {
			c.metrics.RecordRemoteCall("list_repos", "error")
			it.err = fmt.Errorf("github: listing repositories: unexpected status %d", resp.StatusCode)
		}
		return false
	}
	c.metrics.RecordRemoteCall("list_repos", "ok")

	var items []listRepoItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		it.err = fmt.Errorf("github: decoding repository listing: %w", err)
		return false
	}

	page := make([]Repo, 0, len(items))
	for _, item := range items {
		page = append(page, Repo{
			Owner:         item.Owner.Login,
			Name:          item.Name,
			DefaultBranch: item.DefaultBranch,
			HTMLURL:       item.HTMLURL,
		})
	}
	it.page = page
	it.idx = 0
	it.nextURL = nextLink(resp.Header.Get("Link"), c.baseURL)
	return true
}

// nextLink extracts the rel="next" target from a Link header, relative to
// base. Returns "" when there is no next page.
//
// Header shape: <https://api.github.com/user/repos?page=2>; rel="next",
// <https://api.github.com/user/repos?page=5>; rel="last"
func nextLink(header, base string) string {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		if !strings.Contains(section[1], `rel="next"`) {
			continue
		}
		u := strings.Trim(strings.TrimSpace(section[0]), "<>")
		return strings.TrimPrefix(u, base)
	}
	return ""
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
