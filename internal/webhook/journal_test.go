package webhook

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/freta/internal/api"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := OpenJournal(context.Background(), filepath.Join(t.TempDir(), "events.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j
}

func testEvent(t *testing.T, id string, image string) api.WebhookEvent {
	t.Helper()

	eid, err := api.ParseWebhookEventID(id)
	require.NoError(t, err)

	ev := api.WebhookEvent{
		EventID:   eid,
		EventType: api.EventImageCreated,
		Timestamp: time.Date(2023, 1, 12, 0, 36, 54, 0, time.UTC),
	}

	if image != "" {
		img, err := api.ParseImageID(image)
		require.NoError(t, err)

		ev.Image = &img
	}

	return ev
}

func TestJournal_RecordDeduplicates(t *testing.T) {
	j := openTestJournal(t)
	ev := testEvent(t, "0185a368-8470-7201-8304-05060708090a", "5d3c1f0e-8a2b-4c6d-9e8f-0a1b2c3d4e5f")

	isNew, err := j.Record(context.Background(), ev, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = j.Record(context.Background(), ev, []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.False(t, isNew)

	entries, err := j.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ev.EventID, entries[0].Event.EventID)
	assert.Equal(t, []byte(`{"a":1}`), entries[0].Payload)
	require.NotNil(t, entries[0].Event.Image)
	assert.Equal(t, *ev.Image, *entries[0].Event.Image)
	assert.True(t, ev.Timestamp.Equal(entries[0].Event.Timestamp))
}

func TestJournal_ListInArrivalOrder(t *testing.T) {
	j := openTestJournal(t)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	j.nowFunc = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	second := testEvent(t, "0185a368-8858-7c0b-8d0e-0f1011121314", "")
	first := testEvent(t, "0185a368-8470-7201-8304-05060708090a", "")

	for _, ev := range []api.WebhookEvent{second, first} {
		_, err := j.Record(context.Background(), ev, []byte(`{}`))
		require.NoError(t, err)
	}

	entries, err := j.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.EventID, entries[0].Event.EventID)
	assert.Equal(t, first.EventID, entries[1].Event.EventID)
	assert.Nil(t, entries[0].Event.Image)
	assert.True(t, entries[0].ReceivedAt.Equal(base.Add(time.Second)))
}

func TestJournal_ReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	j, err := OpenJournal(context.Background(), path, nil)
	require.NoError(t, err)

	_, err = j.Record(context.Background(), testEvent(t, "0185a368-8470-7201-8304-05060708090a", ""), []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = OpenJournal(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	entries, err := j.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJournal_ForgetAllowsRerecord(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	ev := testEvent(t, "0185a368-8470-7201-8304-05060708090a", "")

	isNew, err := j.Record(ctx, ev, []byte(`{}`))
	require.NoError(t, err)
	require.True(t, isNew)

	require.NoError(t, j.Forget(ctx, ev.EventID))
	require.NoError(t, j.Forget(ctx, ev.EventID))

	isNew, err = j.Record(ctx, ev, []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, isNew)
}
