package api

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

const (
	userAgent       = "freta-go/0.1"
	monitorInterval = time.Second
)

// TokenSource provides bearer tokens. An empty token means the request is
// sent without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is an HTTP client for the freta service. It performs no retries;
// the only recovery is the credential refresh done by the TokenSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger

	// sleepFunc waits between monitor polls. Tests override it.
	sleepFunc    func(ctx context.Context, d time.Duration) error
	pollInterval time.Duration
}

// NewClient creates a service client. baseURL is the service origin, for
// example "https://freta.microsoft.com/". token may be nil for an
// unauthenticated backend.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   httpClient,
		token:        token,
		logger:       logger,
		sleepFunc:    timeSleep,
		pollInterval: monitorInterval,
	}
}

// timeSleep waits for d or until ctx is done.
func timeSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute sends one request and returns the raw 2xx body. query is attached
// only when it encodes to a non-empty string; body, when non-nil, is sent
// as JSON. A 451 response yields *TermsError, any other non-2xx status a
// *RequestError.
func (c *Client) Execute(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	target := c.baseURL + path
	if q := query.Encode(); q != "" {
		target += "?" + q
	}

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encoding %s %s request: %w", method, path, err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	} else {
		req.ContentLength = 0
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	if c.token != nil {
		tok, tokErr := c.token.Token(ctx)
		if tokErr != nil {
			return nil, fmt.Errorf("api: obtaining token: %w", tokErr)
		}

		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: reading %s %s response: %w", method, path, err)
	}

	if resp.StatusCode == StatusUnavailableForLegalReasons {
		c.logger.Debug("terms of service not accepted",
			slog.String("method", method),
			slog.String("path", path),
		)

		return nil, &TermsError{Terms: string(data)}
	}

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return nil, &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Err:        sentinel,
		}
	}

	c.logger.Debug("request succeeded",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return data, nil
}

// ExecuteJSON is Execute followed by decoding the body into T.
func ExecuteJSON[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	var out T

	data, err := c.Execute(ctx, method, path, query, body)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("api: decoding %s %s response: %w", method, path, err)
	}

	return out, nil
}

// executeObject is ExecuteJSON for endpoints that answer with one object.
// A null body is reported as ErrEmptyResponse rather than a nil result.
func executeObject[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (*T, error) {
	out, err := ExecuteJSON[*T](ctx, c, method, path, query, body)
	if err != nil {
		return nil, err
	}

	if out == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrEmptyResponse, method, path)
	}

	return out, nil
}
