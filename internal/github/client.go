// Package github is a thin client for the repository security alert endpoints
// of the GitHub REST API.
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v73/github"

	"github.com/linnemanlabs/ghtriage/internal/alert"
)

// DefaultBaseURL is the public GitHub API root.
const DefaultBaseURL = "https://api.github.com/"

// StatusError is returned when the API answers with a non-success status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string // remote error message or raw body
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

// IsForbidden reports whether err is a 403 from the API.
func IsForbidden(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusForbidden
}

// Client talks to one GitHub API endpoint with one bearer token.
type Client struct {
	gh *gh.Client
}

// New creates a client for the API rooted at baseURL, authenticating every
// request with token. An empty baseURL means DefaultBaseURL.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}
	// go-github resolves relative paths against BaseURL and requires the trailing slash
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := gh.NewClient(&http.Client{
		Timeout:   timeout,
		Transport: newTransport(token, http.DefaultTransport),
	})
	c.BaseURL = u

	return &Client{gh: c}, nil
}

// ListAlerts issues a single GET for the first page of the repository's
// alerts of the given kind.
func (c *Client) ListAlerts(ctx context.Context, owner, repo string, kind alert.Kind) ([]alert.Alert, error) {
	path := kind.Path(owner, repo)

	req, err := c.gh.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// io.Writer target: go-github hands us the raw body, decoding is ours
	var body bytes.Buffer
	resp, err := c.gh.Do(ctx, req, &body)
	if err != nil {
		return nil, statusError(http.MethodGet, path, resp, err)
	}

	return alert.ParseList(kind, body.Bytes())
}

// DismissAlert transitions one dependency alert to dismissed with the given
// reason and comment.
func (c *Client) DismissAlert(ctx context.Context, owner, repo string, number int, d alert.Dismissal) error {
	state := &gh.DependabotAlertState{
		State:            string(alert.StateDismissed),
		DismissedReason:  gh.Ptr(d.Reason),
		DismissedComment: gh.Ptr(d.Comment),
	}

	_, resp, err := c.gh.Dependabot.UpdateAlert(ctx, owner, repo, number, state)
	if err != nil {
		path := fmt.Sprintf("repos/%s/%s/dependabot/alerts/%d", owner, repo, number)
		return statusError(http.MethodPatch, path, resp, err)
	}
	return nil
}

// statusError converts a go-github error into a *StatusError when the server
// answered, or wraps the transport error otherwise.
func statusError(method, path string, resp *gh.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    remoteMessage(resp, err),
		Err:        err,
	}
}

// maxErrorBody caps how much of a non-JSON error body is quoted back.
const maxErrorBody = 1024

// remoteMessage prefers the API's JSON message and falls back to the raw
// response body. go-github re-populates resp.Body after CheckResponse reads it.
func remoteMessage(resp *gh.Response, err error) string {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Message != "" {
		return er.Message
	}
	var rl *gh.RateLimitError
	if errors.As(err, &rl) && rl.Message != "" {
		return rl.Message
	}
	var ab *gh.AbuseRateLimitError
	if errors.As(err, &ab) && ab.Message != "" {
		return ab.Message
	}
	if resp.Body != nil {
		body, rerr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if rerr == nil {
			if msg := strings.TrimSpace(string(body)); msg != "" {
				return msg
			}
		}
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return err.Error()
}
