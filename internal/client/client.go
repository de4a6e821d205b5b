// Package client is a signed HTTP client for the reserve service API.
//
// Every mutating call is signed with the caller's keypair and carries an
// Idempotency-Key. Transport failures are retried with the same key, so a
// retried deposit is applied at most once.
package client

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
	"github.com/stellar/go/keypair"

	"github.com/ederziomek/real-digital-token/internal/auth"
	"github.com/ederziomek/real-digital-token/internal/middleware"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// Client talks to one reserve service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	signer       *keypair.Full
	maxRetries   int
	retryBackoff time.Duration
	now          func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout (default: 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithMaxRetries sets how often a request is retried after a transport error (default: 3).
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryBackoff sets the base duration for exponential backoff.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) { c.retryBackoff = d }
}

// New creates a client for the service at baseURL acting as signer. A nil
// signer is allowed for read-only use.
func New(baseURL string, signer *keypair.Full, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultTimeout},
		signer:       signer,
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultBackoff,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("reserve api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("reserve api: %s: %s", e.Code, e.Message)
}

// do sends method to path with body encoded as JSON and decodes the reply into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	key := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := c.newRequest(ctx, method, target, path, key, payload)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		return decode(resp, out)
	}
	return fmt.Errorf("%s %s failed after %d attempts: %w", method, path, c.maxRetries+1, lastErr)
}

func (c *Client) newRequest(ctx context.Context, method, target, path, key string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if method == http.MethodGet {
		return req, nil
	}

	req.Header.Set(auth.HeaderIdempotencyKey, key)
	if c.signer == nil {
		return req, nil
	}
	h, err := auth.Sign(c.signer, auth.Request{Method: method, Path: path, IdempotencyKey: key, Body: payload}, c.now())
	if err != nil {
		return nil, err
	}
	req.Header.Set(auth.HeaderSigner, h.Signer)
	req.Header.Set(auth.HeaderTimestamp, h.Timestamp)
	req.Header.Set(auth.HeaderSignature, h.Signature)
	return req, nil
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var body middleware.ErrorBody
		if json.Unmarshal(raw, &body) == nil && body.Error.Code != "" {
			apiErr.Code = body.Error.Code
			apiErr.Message = body.Error.Message
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": []string{strconv.Itoa(limit)}}
}
