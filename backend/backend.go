// Package backend talks to the PostPilot enrichment service. It issues a
// single logical request per call, classifying failures and retrying
// rate limits and transport errors with exponential backoff.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "http://localhost:8787"
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// Mode selects which enrichment endpoint and result shape to use.
type Mode string

const (
	ModeSummarize Mode = "summarize"
	ModeContext   Mode = "context"
	ModeReplies   Mode = "replies"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSummarize, ModeContext, ModeReplies:
		return true
	}
	return false
}

// Persona is a named response style forwarded for replies mode.
type Persona string

const (
	PersonaHuman    Persona = "human"
	PersonaHardcore Persona = "hardcore"
	PersonaCurator  Persona = "curator"
)

// Valid reports whether p names a known persona.
func (p Persona) Valid() bool {
	switch p {
	case PersonaHuman, PersonaHardcore, PersonaCurator:
		return true
	}
	return false
}

// Request carries the raw item data sent to the service. Text is sent
// exactly as extracted, never normalized.
type Request struct {
	Text    string
	Author  string
	URL     string
	Persona string
}

// Result is the service's response for one request. Raw preserves the
// exact payload; the typed fields cover the per-mode shapes plus the
// generic text fallback.
type Result struct {
	Summary string          `json:"summary"`
	Context string          `json:"context"`
	Replies []string        `json:"replies"`
	Text    string          `json:"text"`
	Raw     json.RawMessage `json:"-"`
}

// Primary returns the field matching mode, falling back to the generic
// text field when it is empty.
func (r *Result) Primary(mode Mode) string {
	var s string
	switch mode {
	case ModeSummarize:
		s = r.Summary
	case ModeContext:
		s = r.Context
	case ModeReplies:
		s = strings.Join(r.Replies, "\n")
	}
	if s == "" {
		s = r.Text
	}
	return s
}

// ErrRateLimited marks a request abandoned after repeated 429 responses.
var ErrRateLimited = errors.New("rate limited by backend")

// APIError is a terminal non-2xx response from the service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error: status %d: %s", e.Status, e.Body)
}

// TransportError marks a request that never got a response after
// exhausting all attempts.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client issues requests against the enrichment service.
type Client struct {
	baseURL     string
	apiKey      string
	maxAttempts int
	baseDelay   time.Duration
	httpClient  *http.Client

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the service base URL (also used for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithAPIKey sets the x-api-key header value.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithMaxAttempts sets the retry ceiling.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the backoff base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the enrichment service.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wirePayload struct {
	Text    string  `json:"text"`
	Author  *string `json:"author"`
	URL     *string `json:"url"`
	Persona string  `json:"persona"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Call posts the request to the mode's endpoint with retries. A 429 at
// attempt n waits baseDelay*2^n before retrying; a transport failure at
// attempt n waits baseDelay*2^(n-1). Any other non-2xx status is terminal.
func (c *Client) Call(ctx context.Context, mode Mode, req Request) (*Result, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	body, err := json.Marshal(wirePayload{
		Text:    req.Text,
		Author:  nullable(req.Author),
		URL:     nullable(req.URL),
		Persona: req.Persona,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, mode)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, respBody, err := c.post(ctx, url, body)
		if err != nil {
			lastErr = err
			if attempt == c.maxAttempts {
				return nil, &TransportError{Attempts: attempt, Err: err}
			}
			c.sleep(c.baseDelay * time.Duration(1<<(attempt-1)))
			continue
		}

		switch {
		case status >= 200 && status < 300:
			return parseResult(respBody)
		case status == http.StatusTooManyRequests:
			if attempt == c.maxAttempts {
				return nil, fmt.Errorf("max retries exceeded: %w", ErrRateLimited)
			}
			c.sleep(c.baseDelay * time.Duration(1<<attempt))
		default:
			return nil, &APIError{Status: status, Body: strings.TrimSpace(string(respBody))}
		}
	}

	// Unreachable when maxAttempts >= 1; kept for the compiler.
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func parseResult(body []byte) (*Result, error) {
	result := &Result{}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	result.Raw = json.RawMessage(bytes.Clone(body))
	return result, nil
}

// Health probes the service's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health probe: status %d", resp.StatusCode)
	}
	return nil
}
