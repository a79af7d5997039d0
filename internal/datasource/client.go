// Package datasource fetches the agent's status, spatial snapshot and event
// history from the Clawvival API and tracks the state of each polled feed.
package datasource

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

	"github.com/google/uuid"

	"github.com/daviddao/clawvival_viewer/internal/model"
)

const (
	// DefaultBaseURL is the public Clawvival API.
	DefaultBaseURL     = "https://api.clawvival.app"
	defaultTimeout     = 10 * time.Second
	headerAgentID      = "X-Agent-ID"
	headerRequestID    = "X-Request-ID"
	maxErrorBodyLength = 4096
)

// Client talks to the agent API. The zero value is not usable; use New or
// NewWithClient.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// New returns a client for baseURL using a default http.Client.
func New(baseURL string) *Client {
	return NewWithClient(baseURL, nil)
}

// NewWithClient returns a client for baseURL using hc for transport.
func NewWithClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  hc,
		timeout: defaultTimeout,
	}
}

// WithTimeout returns a copy of c with a different per-request timeout.
// A timeout <= 0 disables the per-request deadline.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if c == nil {
		return nil
	}
	clone := *c
	clone.timeout = timeout
	return &clone
}

// BaseURL returns the normalized API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestError is a non-2xx API response.
type RequestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.TrimSpace(e.Code)
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("API %d: %s", e.StatusCode, msg)
}

// NotFound reports whether the API did not know the agent.
func (e *RequestError) NotFound() bool {
	return e != nil && e.StatusCode == http.StatusNotFound
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type agentRequest struct {
	AgentID string `json:"agent_id"`
}

// FetchStatus returns the agent's current state and world clock.
func (c *Client) FetchStatus(ctx context.Context, agentID string) (*model.StatusResponse, error) {
	var out model.StatusResponse
	if err := c.request(ctx, http.MethodPost, "/api/agent/status", agentID, nil, agentRequest{AgentID: agentID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchObserve returns the agent's state plus the tiles, resources and
// objects around it.
func (c *Client) FetchObserve(ctx context.Context, agentID string) (*model.ObserveResponse, error) {
	var out model.ObserveResponse
	if err := c.request(ctx, http.MethodPost, "/api/agent/observe", agentID, nil, agentRequest{AgentID: agentID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplayOptions selects one page of the event log.
type ReplayOptions struct {
	// Limit is the page size; <= 0 uses the server default of 200.
	Limit int
	// OccurredTo is an epoch-seconds cursor requesting strictly older
	// events. Zero requests the newest page.
	OccurredTo int64
}

// FetchReplay returns one page of domain events, most recent first.
func (c *Client) FetchReplay(ctx context.Context, agentID string, opts ReplayOptions) (*model.ReplayResponse, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultReplayLimit
	}
	query := url.Values{}
	query.Set("agent_id", agentID)
	query.Set("limit", strconv.Itoa(limit))
	if opts.OccurredTo > 0 {
		query.Set("occurred_to", strconv.FormatInt(opts.OccurredTo, 10))
	}
	var out model.ReplayResponse
	if err := c.request(ctx, http.MethodGet, "/api/agent/replay", agentID, query, nil, &out); err != nil {
		return nil, err
	}
	if out.Events == nil {
		out.Events = []model.DomainEvent{}
	}
	return &out, nil
}

func (c *Client) request(ctx context.Context, method, path, agentID string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	reqCtx := ctx
	if c.timeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > c.timeout {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
	}

	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = buf
	}
	req, err := http.NewRequestWithContext(reqCtx, method, u, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if agentID != "" {
		req.Header.Set(headerAgentID, agentID)
	}
	req.Header.Set(headerRequestID, requestIDFrom(ctx))

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeRequestError(resp.StatusCode, payload)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeRequestError(status int, payload []byte) *RequestError {
	var env errorEnvelope
	if err := json.Unmarshal(payload, &env); err == nil && (env.Error.Code != "" || env.Error.Message != "") {
		return &RequestError{StatusCode: status, Code: env.Error.Code, Message: env.Error.Message}
	}
	text := strings.TrimSpace(string(payload))
	if len(text) > maxErrorBodyLength {
		text = text[:maxErrorBodyLength]
	}
	return &RequestError{
		StatusCode: status,
		Code:       fmt.Sprintf("HTTP_%d", status),
		Message:    text,
	}
}

type requestIDKey struct{}

// WithRequestID attaches a logical request id to ctx. It is sent as
// X-Request-ID so server logs can be matched to feed tickets.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
