package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Outbound provider calls use a fixed timeout; there is no streaming and a
// hung provider should surface as a failure, not a stuck request.
const requestTimeout = 30 * time.Second

// GET retries: idempotent reads get a couple of attempts with backoff.
// Mutating calls are never retried here; callers attach provider
// idempotency keys instead.
const (
	getMaxRetries   = 2
	getRetryBackoff = 250 * time.Millisecond
)

// Result is the normalized outcome of a provider API call. Transport
// failures are returned as errors; HTTP-level failures come back as a
// Result with Success=false and the message extracted from the provider's
// error envelope.
type Result struct {
	Data         json.RawMessage
	ErrorMessage string
	StatusCode   int
	Success      bool
}

// Decode unmarshals the response payload into v.
func (r *Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("empty response payload")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response payload: %w", err)
	}
	return nil
}

// ErrorParser extracts a human-readable message from a provider's non-2xx
// error envelope. Each provider supplies its own.
type ErrorParser func(statusCode int, body []byte) string

// Client is the shared REST client provider packages build on: one base URL
// per (sandbox|live) mode, JSON bodies, provider-convention auth headers,
// normalized error envelopes.
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	errorParser ErrorParser
	baseURL     string
}

// NewClient creates a client for one provider API. A nil httpClient gets
// the default 30s-timeout client; a nil errorParser falls back to the raw
// body.
func NewClient(baseURL string, httpClient *http.Client, errorParser ErrorParser, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if errorParser == nil {
		errorParser = func(_ int, body []byte) string { return strings.TrimSpace(string(body)) }
	}
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		errorParser: errorParser,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
	}
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type requestOptions struct {
	headers  http.Header
	form     url.Values
	username string
	password string
	bearer   string
	useBasic bool
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

// WithBearer attaches a bearer token.
func WithBearer(token string) RequestOption {
	return func(o *requestOptions) { o.bearer = token }
}

// WithBasicAuth attaches basic credentials (OAuth token endpoints).
func WithBasicAuth(username, password string) RequestOption {
	return func(o *requestOptions) {
		o.username, o.password, o.useBasic = username, password, true
	}
}

// WithHeader attaches an extra header, e.g. a provider idempotency key.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = http.Header{}
		}
		o.headers.Set(key, value)
	}
}

// WithForm sends the request body form-encoded instead of JSON.
func WithForm(form url.Values) RequestOption {
	return func(o *requestOptions) { o.form = form }
}

// Request performs an API call against the provider. body is JSON-encoded
// when non-nil (unless WithForm is given). Non-2xx responses are normalized
// into a failed Result; only transport-level problems return an error.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Result, error) {
	options := &requestOptions{}
	for _, opt := range opts {
		opt(options)
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += getMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(getRetryBackoff << (attempt - 1)):
			}
		}

		result, err := c.do(ctx, method, path, body, options)
		if err != nil {
			lastErr = err
			c.logger.Warn("provider request failed",
				"method", method,
				"path", path,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}
		return result, nil
	}

	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method, path string, body any, options *requestOptions) (*Result, error) {
	var reader io.Reader
	contentType := ""

	switch {
	case options.form != nil:
		reader = strings.NewReader(options.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case body != nil:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	switch {
	case options.useBasic:
		req.SetBasicAuth(options.username, options.password)
	case options.bearer != "":
		req.Header.Set("Authorization", "Bearer "+options.bearer)
	}
	for key, values := range options.headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // close error is not actionable

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Data:       responseBody,
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
		return result, nil
	}

	result.ErrorMessage = c.errorParser(resp.StatusCode, responseBody)
	if result.ErrorMessage == "" {
		result.ErrorMessage = fmt.Sprintf("provider returned status %d", resp.StatusCode)
	}

	c.logger.Warn("provider returned error",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"message", result.ErrorMessage,
	)

	return result, nil
}
