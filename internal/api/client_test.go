package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticToken is a TokenSource that counts how often it is asked.
type staticToken struct {
	tok   string
	err   error
	calls atomic.Int32
}

func (s *staticToken) Token(context.Context) (string, error) {
	s.calls.Add(1)

	return s.tok, s.err
}

// noopSleep records nothing and returns immediately.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *staticToken) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tok := &staticToken{tok: "test-token"}
	c := NewClient(srv.URL+"/", srv.Client(), tok, slog.Default())
	c.sleepFunc = noopSleep

	return c, tok
}

func TestExecute_SendsBearerAndUserAgent(t *testing.T) {
	c, tok := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/info", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		assert.Empty(t, r.Header.Get("Content-Type"))

		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	body, err := c.Execute(context.Background(), http.MethodGet, "/api/info", url.Values{}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(1), tok.calls.Load())
}

func TestExecute_EmptyTokenSendsNoAuthorization(t *testing.T) {
	c, tok := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		assert.False(t, present)
		w.WriteHeader(http.StatusNoContent)
	})
	tok.tok = ""

	_, err := c.Execute(context.Background(), http.MethodGet, "/api/info", nil, nil)
	require.NoError(t, err)
}

func TestExecute_QueryAndJSONBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a=1&b=two", r.URL.RawQuery)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"name":"x"}`, string(data))

		_, _ = w.Write([]byte(`{}`))
	})

	q := url.Values{"a": {"1"}, "b": {"two"}}
	_, err := c.Execute(context.Background(), http.MethodPost, "/api/thing", q, map[string]string{"name": "x"})
	require.NoError(t, err)
}

func TestExecute_NoBodySendsZeroLength(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, int64(0), r.ContentLength)
		_, _ = w.Write([]byte(`true`))
	})

	_, err := c.Execute(context.Background(), http.MethodPatch, "/api/images/x", nil, nil)
	require.NoError(t, err)
}

func TestExecute_451IsTermsError(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnavailableForLegalReasons)
				_, _ = w.Write([]byte("You must accept these terms."))
			})

			_, err := c.Execute(context.Background(), method, "/api/images", nil, nil)
			require.ErrorIs(t, err, ErrTermsNotAccepted)

			var terms *TermsError
			require.ErrorAs(t, err, &terms)
			assert.Equal(t, "You must accept these terms.", terms.Terms)

			var reqErr *RequestError
			assert.False(t, errors.As(err, &reqErr))
		})
	}
}

func TestExecute_StatusErrors(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusServiceUnavailable, ErrServerError},
		{http.StatusTeapot, ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, tok := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("detail"))
			})

			_, err := c.Execute(context.Background(), http.MethodGet, "/api/info", nil, nil)
			require.ErrorIs(t, err, tt.sentinel)

			var reqErr *RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, tt.status, reqErr.StatusCode)
			assert.Equal(t, "detail", reqErr.Body)
			assert.NotErrorIs(t, err, ErrTermsNotAccepted)

			// No retry: one token and one request.
			assert.Equal(t, int32(1), tok.calls.Load())
		})
	}
}

func TestExecute_TokenErrorSendsNothing(t *testing.T) {
	var hits atomic.Int32

	c, tok := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	})
	tok.err = errors.New("no credentials")

	_, err := c.Execute(context.Background(), http.MethodGet, "/api/info", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "obtaining token")
	assert.Zero(t, hits.Load())
}

func TestExecute_NilTokenSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, nil, nil, nil)

	_, err := c.Execute(context.Background(), http.MethodGet, "/api/info", nil, nil)
	require.NoError(t, err)
}

func TestExecuteJSON_DecodeError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := ExecuteJSON[Info](context.Background(), c, http.MethodGet, "/api/info", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")

	var syntaxErr *json.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestExecute_EncodeError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request should not be sent")
	})

	_, err := c.Execute(context.Background(), http.MethodPost, "/api/x", nil, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding")
}
