package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WakeConfig tunes the best-effort backend wake-up probe issued before
// wake-sensitive requests (cold-start mitigation for idle backends).
type WakeConfig struct {
	Attempts int
	Timeout  time.Duration
	Delay    time.Duration
}

// DefaultWakeConfig returns the standard probe tuning.
func DefaultWakeConfig() WakeConfig {
	return WakeConfig{
		Attempts: 3,
		Timeout:  5 * time.Second,
		Delay:    2 * time.Second,
	}
}

// Client presents a uniform request/response contract to callers
// regardless of transient backend unavailability. Every failure is
// normalized to *APIError; transient failures on idempotent requests
// are retried with exponential backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     RetryPolicy
	wake       WakeConfig

	wakeMu sync.Mutex
	wakeCh chan struct{} // non-nil while a probe is in flight
}

// NewClient creates a REST client. baseURL is the API root, e.g.
// "http://localhost:5000/api".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		policy:     DefaultRetryPolicy(),
		wake:       DefaultWakeConfig(),
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// SetRetryPolicy overrides the retry tuning.
func (c *Client) SetRetryPolicy(p RetryPolicy) {
	c.policy = p
}

// SetWakeConfig overrides the wake-up probe tuning. Attempts = 0
// disables probing.
func (c *Client) SetWakeConfig(w WakeConfig) {
	c.wake = w
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, nil, &out, requestOpts{}); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversations fetches all conversations. A transient network or
// timeout failure degrades to an empty list rather than an error, so a
// chat list view can render "no data yet" instead of crashing.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, nil, &out, requestOpts{wakeSensitive: true})
	if err != nil {
		if IsNetworkError(err) || IsTimeoutError(err) {
			return []Conversation{}, nil
		}
		return nil, err
	}
	if out == nil {
		out = []Conversation{}
	}
	return out, nil
}

// GetMessages fetches one page of a conversation's history. Transient
// network/timeout failures degrade to an empty page echoing the
// requested page and limit.
func (c *Client) GetMessages(ctx context.Context, waID string, page, limit int) (*MessagesResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out MessagesResponse
	err := c.doJSON(ctx, http.MethodGet, "/conversations/"+url.PathEscape(waID)+"/messages", q, nil, &out, requestOpts{})
	if err != nil {
		if IsNetworkError(err) || IsTimeoutError(err) {
			return &MessagesResponse{
				Messages:   []Message{},
				Pagination: Pagination{Page: page, Limit: limit},
			}, nil
		}
		return nil, err
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return &out, nil
}

// SendMessage posts a new outgoing message. Failures always propagate:
// silent loss on writes is unacceptable. The request carries an
// idempotency key so a retry of a request whose response was lost
// cannot deliver the message twice on a backend that honors the key.
func (c *Client) SendMessage(ctx context.Context, waID string, req SendMessageRequest) (*Message, error) {
	var out Message
	opts := requestOpts{idempotencyKey: uuid.NewString()}
	err := c.doJSON(ctx, http.MethodPost, "/conversations/"+url.PathEscape(waID)+"/messages", nil, req, &out, opts)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, waID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(waID), nil, nil, nil, requestOpts{})
}

// MarkRead marks every message in a conversation as read.
func (c *Client) MarkRead(ctx context.Context, waID string) error {
	return c.doJSON(ctx, http.MethodPatch, "/conversations/"+url.PathEscape(waID)+"/read", nil, nil, nil, requestOpts{})
}

// SearchMessages searches message bodies. waID is optional; empty
// searches across all conversations.
func (c *Client) SearchMessages(ctx context.Context, query, waID string) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	if waID != "" {
		q.Set("wa_id", waID)
	}
	var out SearchResponse
	if err := c.doJSON(ctx, http.MethodGet, "/messages/search", q, nil, &out, requestOpts{}); err != nil {
		return nil, err
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return &out, nil
}

// GetConversationStats fetches per-conversation summary counters.
func (c *Client) GetConversationStats(ctx context.Context, waID string) (*ConversationStats, error) {
	var out ConversationStats
	if err := c.doJSON(ctx, http.MethodGet, "/conversations/"+url.PathEscape(waID)+"/stats", nil, nil, &out, requestOpts{}); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProcessFile uploads a payload file for backend ingestion. The body
// stream cannot be replayed, so this call is never retried.
func (c *Client) ProcessFile(ctx context.Context, filename string, r io.Reader) (*ProcessFileResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, &APIError{Message: "build multipart body", Cause: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, &APIError{Message: "read upload payload", Cause: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &APIError{Message: "build multipart body", Cause: err}
	}

	reqCtx := ctx
	if c.policy.MaxTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.policy.MaxTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/process-file", &buf)
	if err != nil {
		return nil, &APIError{Message: "create request", Cause: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, normalizeTransportError(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, normalizeTransportError(err)
	}
	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, body)
	}
	var out ProcessFileResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &APIError{Message: "undecodable response", Cause: err}
	}
	return &out, nil
}

// WakeBackend issues a bounded series of short-timeout health probes.
// Concurrent callers coalesce onto the single in-flight probe rather
// than issuing duplicates. Best effort: gives up silently.
func (c *Client) WakeBackend(ctx context.Context) {
	if c.wake.Attempts <= 0 {
		return
	}
	c.wakeMu.Lock()
	if c.wakeCh != nil {
		ch := c.wakeCh
		c.wakeMu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
		}
		return
	}
	ch := make(chan struct{})
	c.wakeCh = ch
	c.wakeMu.Unlock()

	defer func() {
		c.wakeMu.Lock()
		c.wakeCh = nil
		c.wakeMu.Unlock()
		close(ch)
	}()

	for i := 0; i < c.wake.Attempts; i++ {
		if c.probeHealth(ctx) {
			return
		}
		select {
		case <-time.After(c.wake.Delay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) probeHealth(ctx context.Context) bool {
	if c.wake.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.wake.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

type requestOpts struct {
	wakeSensitive  bool
	idempotencyKey string
}

// doJSON dispatches a JSON request with the full retry policy: bounded
// attempts, exponential inter-attempt delay, and a per-attempt timeout
// that grows on each retry.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, dest any, opts requestOpts) error {
	if opts.wakeSensitive {
		c.WakeBackend(ctx)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &APIError{Message: "marshal request", Cause: err}
		}
	}

	var lastErr *APIError
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		apiErr := c.attempt(ctx, method, path, query, payload, dest, opts, attempt)
		if apiErr == nil {
			return nil
		}
		lastErr = apiErr
		if !c.policy.retryable(apiErr) || attempt == c.policy.MaxAttempts {
			break
		}
		select {
		case <-time.After(c.policy.delay(attempt)):
		case <-ctx.Done():
			return normalizeTransportError(ctx.Err())
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, payload []byte, dest any, opts requestOpts, attempt int) *APIError {
	reqCtx := ctx
	if t := c.policy.attemptTimeout(attempt); t > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	if method == http.MethodGet {
		// Cache buster: free-tier proxies are known to serve stale reads.
		q.Set("_t", strconv.FormatInt(time.Now().UnixNano(), 10))
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, u, rdr)
	if err != nil {
		return &APIError{Message: "create request", Cause: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", opts.idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return normalizeTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return normalizeTransportError(err)
	}
	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, body)
	}
	if dest != nil && len(body) > 0 {
		if err := json.Unmarshal(body, dest); err != nil {
			return &APIError{Message: "undecodable response", Cause: err}
		}
	}
	return nil
}

func statusError(status int, body []byte) *APIError {
	var er ErrorResponse
	msg := ""
	if json.Unmarshal(body, &er) == nil {
		msg = er.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}
	return normalizeStatusError(status, http.StatusText(status), msg)
}
