// Package api is the HTTP client for the ticket-watch backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticketwatch/internal/model"
)

const maxResponseSize = 5 * 1024 * 1024

// Listing modes understood by the concerts endpoint.
const (
	ModePrimary    = "primary"
	ModeExhaustive = "exhaustive"
)

// Limits applied to the concerts page size.
const (
	MinLimit = 1
	MaxLimit = 50
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns an http.Client with a cookie jar so session cookies
// set by the backend are sent on later requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Timeout: timeout, Jar: jar}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// UserMessage returns the server-supplied error text, or the status code.
func (e *StatusError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// UserMessage returns text suitable for showing the user for any request error.
func UserMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.UserMessage()
	}
	return err.Error()
}

// Client talks to the backend's JSON API.
type Client struct {
	root      string
	statusURL string
	client    HTTPClient
	cookie    string
}

// Option configures a Client.
type Option func(*Client)

// WithSessionCookie sends raw as the Cookie header on every request.
func WithSessionCookie(raw string) Option {
	return func(c *Client) { c.cookie = raw }
}

// New creates a Client rooted at apiRoot. statusURL is the bulk status
// endpoint; when empty it defaults to apiRoot + "/status".
func New(apiRoot, statusURL string, client HTTPClient, opts ...Option) *Client {
	root := strings.TrimRight(apiRoot, "/")
	if statusURL == "" {
		statusURL = root + "/status"
	}
	c := &Client{root: root, statusURL: statusURL, client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClampLimit bounds n to [MinLimit, MaxLimit].
func ClampLimit(n int) int {
	return max(MinLimit, min(n, MaxLimit))
}

// ListParams selects a page of listings.
type ListParams struct {
	Mode        string
	Limit       int
	Keyword     string
	OnlyConcert bool
}

// ListResult is the concerts endpoint response.
type ListResult struct {
	OK    *bool           `json:"ok,omitempty"`
	Items []model.Listing `json:"items"`
	Mode  string          `json:"mode"`
	Error string          `json:"error,omitempty"`
}

// List fetches listings.
func (c *Client) List(ctx context.Context, p ListParams) (*ListResult, error) {
	q := url.Values{}
	q.Set("mode", p.Mode)
	q.Set("limit", strconv.Itoa(ClampLimit(p.Limit)))
	if p.Keyword != "" {
		q.Set("q", p.Keyword)
	}
	if p.OnlyConcert {
		q.Set("onlyConcert", "1")
	}

	var res ListResult
	if err := c.do(ctx, http.MethodGet, c.root+"/concerts?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	if res.OK != nil && !*res.OK {
		msg := res.Error
		if msg == "" {
			msg = "listing request rejected"
		}
		return nil, fmt.Errorf("list concerts: %s", msg)
	}
	return &res, nil
}

// Detail is the availability probe a backend may attach to action replies.
type Detail struct {
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	Remain     *int   `json:"remain,omitempty"`
	Remaining  *int   `json:"remaining,omitempty"`
	StatusText string `json:"status_text,omitempty"`
	Msg        string `json:"msg,omitempty"`
}

// Reply is the common shape of watch, unwatch and quick-check responses.
type Reply struct {
	OK         bool    `json:"ok"`
	TaskID     string  `json:"taskId,omitempty"`
	TaskIDAlt  string  `json:"task_id,omitempty"`
	Created    bool    `json:"created,omitempty"`
	Period     int     `json:"period,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
	Remain     *int    `json:"remain,omitempty"`
	StatusText string  `json:"status_text,omitempty"`
	Detail     *Detail `json:"detail,omitempty"`
}

// ReasonNoWatch marks an unwatch of a listing that has no task.
const ReasonNoWatch = "no_watch"

// Task returns the task identifier under either key.
func (r *Reply) Task() string {
	if r.TaskID != "" {
		return r.TaskID
	}
	return r.TaskIDAlt
}

// Failure returns the server's error text, falling back to fallback.
func (r *Reply) Failure(fallback string) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Message != "":
		return r.Message
	default:
		return fallback
	}
}

// Availability returns the remaining count or status text carried by the
// reply or its detail. ok is false when the reply says nothing about
// availability.
func (r *Reply) Availability() (remain *int, text string, ok bool) {
	remain = r.Remain
	text = r.StatusText
	if d := r.Detail; d != nil {
		if remain == nil {
			remain = d.Remain
		}
		if remain == nil {
			remain = d.Remaining
		}
		if text == "" {
			text = d.StatusText
		}
		if text == "" {
			text = d.Msg
		}
	}
	return remain, text, remain != nil || text != ""
}

// WatchRequest starts or re-enables a watch task.
type WatchRequest struct {
	ChatID string `json:"chatId"`
	URL    string `json:"url"`
	Period int    `json:"period"`
}

// Watch creates or enables a watch task.
func (c *Client) Watch(ctx context.Context, req WatchRequest) (*Reply, error) {
	var res Reply
	if err := c.do(ctx, http.MethodPost, c.root+"/watch", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UnwatchRequest stops a watch task. TaskCode is a hint; the server falls
// back to the URL.
type UnwatchRequest struct {
	ChatID   string `json:"chatId"`
	URL      string `json:"url"`
	TaskCode string `json:"taskCode,omitempty"`
}

// Unwatch disables a watch task.
func (c *Client) Unwatch(ctx context.Context, req UnwatchRequest) (*Reply, error) {
	var res Reply
	if err := c.do(ctx, http.MethodPost, c.root+"/unwatch", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// QuickCheck runs a one-off availability check of url.
func (c *Client) QuickCheck(ctx context.Context, listingURL string) (*Reply, error) {
	var res Reply
	body := struct {
		URL string `json:"url"`
	}{URL: listingURL}
	if err := c.do(ctx, http.MethodPost, c.root+"/quick-check", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type statusRequest struct {
	ChatID string   `json:"chatId"`
	URLs   []string `json:"urls"`
}

type statusResponse struct {
	Results map[string]model.WatchPatch `json:"results"`
}

// Statuses fetches the watch state of urls for chatID, keyed by the URLs as
// the server reports them.
func (c *Client) Statuses(ctx context.Context, chatID string, urls []string) (map[string]model.WatchPatch, error) {
	var res statusResponse
	if err := c.do(ctx, http.MethodPost, c.statusURL, statusRequest{ChatID: chatID, URLs: urls}, &res); err != nil {
		return nil, err
	}
	if res.Results == nil {
		res.Results = map[string]model.WatchPatch{}
	}
	return res.Results, nil
}

func (c *Client) do(ctx context.Context, method, target string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ticketwatch/1.0")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorText(data)}
	}

	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorText(data []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if len(bytes.TrimSpace(data)) == 0 || json.Unmarshal(data, &payload) != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
