package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const monitorImageID = "5d3c1f0e-8a2b-4c6d-9e8f-0a1b2c3d4e5f"

// recordingHandler keeps every log record for inspection.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, r.Clone())

	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

// states returns the "state" attribute of every record with message msg.
func (h *recordingHandler) states(msg string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []string

	for _, r := range h.records {
		if r.Message != msg {
			continue
		}

		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "state" {
				out = append(out, a.Value.String())
			}

			return true
		})
	}

	return out
}

// scriptedImageServer answers GET /api/images/{id} with the given states in
// order, repeating the last one.
func scriptedImageServer(t *testing.T, states []ImageState, errMsg string) (*Client, *recordingHandler, *atomic.Int32, *[]time.Duration) {
	t.Helper()

	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/images/"+monitorImageID, r.URL.Path)

		n := int(polls.Add(1)) - 1
		st := states[min(n, len(states)-1)]

		errField := ""
		if st == StateFailed && errMsg != "" {
			errField = fmt.Sprintf(`,"error":%q`, errMsg)
		}

		fmt.Fprintf(w, `{"image_id":%q,"owner_id":"00000000-0000-0000-0000-000000000000_00000000-0000-0000-0000-000000000000","state":%q,"format":"lime"%s}`,
			monitorImageID, st, errField)
	}))
	t.Cleanup(srv.Close)

	rec := &recordingHandler{}
	c := NewClient(srv.URL, srv.Client(), nil, slog.New(rec))

	var sleeps []time.Duration

	c.sleepFunc = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)

		return nil
	}

	return c, rec, &polls, &sleeps
}

func mustImageID(t *testing.T, s string) ImageID {
	t.Helper()

	id, err := ParseImageID(s)
	require.NoError(t, err)

	return id
}

func TestMonitorImage_CompletesAfterTransitions(t *testing.T) {
	c, rec, polls, sleeps := scriptedImageServer(t,
		[]ImageState{StateQueued, StateRunning, StateRunning, StateCompleted}, "")

	img, err := c.MonitorImage(context.Background(), mustImageID(t, monitorImageID))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, img.State)
	assert.Equal(t, int32(4), polls.Load())
	assert.Equal(t, []string{"queued", "running", "completed"}, rec.states("image state changed"))
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, *sleeps)
}

func TestMonitorImage_FailedCarriesServiceMessage(t *testing.T) {
	c, _, polls, _ := scriptedImageServer(t, []ImageState{StateQueued, StateFailed}, "boom")

	_, err := c.MonitorImage(context.Background(), mustImageID(t, monitorImageID))
	require.ErrorIs(t, err, ErrAnalysisFailed)

	var failed *AnalysisFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "boom", failed.Message)
	assert.Equal(t, int32(2), polls.Load())
}

func TestMonitorImage_FailedWithoutMessage(t *testing.T) {
	c, _, _, _ := scriptedImageServer(t, []ImageState{StateFailed}, "")

	_, err := c.MonitorImage(context.Background(), mustImageID(t, monitorImageID))

	var failed *AnalysisFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "unknown error", failed.Message)
}

func TestMonitorImage_AlreadyCompletedDoesNotSleep(t *testing.T) {
	c, rec, polls, sleeps := scriptedImageServer(t, []ImageState{StateCompleted}, "")

	_, err := c.MonitorImage(context.Background(), mustImageID(t, monitorImageID))
	require.NoError(t, err)
	assert.Equal(t, int32(1), polls.Load())
	assert.Empty(t, *sleeps)
	assert.Equal(t, []string{"completed"}, rec.states("image state changed"))
}

func TestMonitorImage_ReentrantStatesAreLogged(t *testing.T) {
	c, rec, _, _ := scriptedImageServer(t,
		[]ImageState{StateRunning, StateFinalizing, StateQueued, StateRunning, StateCompleted}, "")

	_, err := c.MonitorImage(context.Background(), mustImageID(t, monitorImageID))
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"running", "finalizing", "queued", "running", "completed"},
		rec.states("image state changed"))
}

func TestMonitorImage_PollErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, srv.Client(), nil, nil)

	_, err := c.MonitorImage(context.Background(), mustImageID(t, monitorImageID))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMonitorImage_CancelDuringWait(t *testing.T) {
	c, _, polls, _ := scriptedImageServer(t, []ImageState{StateRunning}, "")
	c.sleepFunc = timeSleep
	c.pollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for polls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}

		cancel()
	}()

	_, err := c.MonitorImage(ctx, mustImageID(t, monitorImageID))
	require.True(t, errors.Is(err, context.Canceled))
}

func TestMonitorImage_NullBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("null"))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, srv.Client(), nil, nil)

	img, err := c.MonitorImage(context.Background(), mustImageID(t, monitorImageID))
	require.ErrorIs(t, err, ErrEmptyResponse)
	assert.Nil(t, img)
}
