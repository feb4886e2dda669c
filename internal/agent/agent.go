// Package agent talks to the assistant's agent runtime.
//
// Client is the HTTP invoker the webhook controller uses; Runtime is a local
// implementation of the same invocation contract, built on OpenAI chat
// completions with calendar, mail, place and web-search tools.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hisho-bot/hisho/internal/auth"
)

// invokeTimeout bounds a single agent invocation. It matches the delivery
// layer's reply-token deadline so a slow agent degrades to push, not to a
// dangling request.
const invokeTimeout = 55 * time.Second

const invocationsPath = "/invocations"

// Invoker is the surface the controller depends on.
type Invoker interface {
	Invoke(ctx context.Context, prompt, userID string, creds *auth.GoogleCredentials) (string, error)
}

type invokeRequest struct {
	Prompt            string                  `json:"prompt"`
	UserID            string                  `json:"user_id,omitempty"`
	GoogleCredentials *auth.GoogleCredentials `json:"google_credentials,omitempty"`
}

type invokeResponse struct {
	Result string `json:"result"`
	Status string `json:"status,omitempty"`
}

// Opts holds configuration for the HTTP invoker.
type Opts struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Option configures the HTTP invoker.
type Option func(*Opts)

// WithHTTPClient overrides the HTTP client used for invocations.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = hc
	}
}

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// Client invokes a remote agent runtime over HTTP.
type Client struct {
	endpoint string
	httpc    *http.Client
}

// NewClient creates an invoker for the runtime at endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	cfg := Opts{Timeout: invokeTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpc:    hc,
	}
}

// Invoke sends the prompt to the runtime and returns the raw result text.
// The result is agent output as-is; sanitizing and decoding it is the
// caller's concern.
func (c *Client) Invoke(ctx context.Context, prompt, userID string, creds *auth.GoogleCredentials) (string, error) {
	payload, err := json.Marshal(invokeRequest{
		Prompt:            prompt,
		UserID:            userID,
		GoogleCredentials: creds,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal invocation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+invocationsPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	res, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent invocation failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agent invocation returned status %d", res.StatusCode)
	}

	var out invokeResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode agent response: %w", err)
	}
	slog.Debug("agent invocation completed",
		"userID", userID,
		"promptLength", len(prompt),
		"resultLength", len(out.Result),
		"elapsed", time.Since(started))
	return out.Result, nil
}
