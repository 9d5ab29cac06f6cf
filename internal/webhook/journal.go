package webhook

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/tonimelisma/freta/internal/api"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	sqlInsertEvent = `INSERT INTO webhook_events
		(event_id, event_type, image_id, event_time, received_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`

	sqlListEvents = `SELECT event_id, event_type, image_id, event_time, received_at, payload
		FROM webhook_events
		ORDER BY received_at, event_id`

	sqlDeleteEvent = `DELETE FROM webhook_events WHERE event_id = ?`
)

// Entry is one journaled delivery.
type Entry struct {
	Event      api.WebhookEvent
	ReceivedAt time.Time
	Payload    []byte
}

// Journal records received deliveries in SQLite so that a replayed event
// (same event id) is recognised and processed once.
type Journal struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// OpenJournal opens or creates the journal database at path and applies
// pending migrations.
func OpenJournal(ctx context.Context, path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("webhook: opening journal %s: %w", path, err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("webhook journal ready", slog.String("path", path))

	return &Journal{db: db, logger: logger, nowFunc: time.Now}, nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("webhook: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("webhook: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("webhook: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Record stores ev and reports whether it was seen for the first time.
func (j *Journal) Record(ctx context.Context, ev api.WebhookEvent, payload []byte) (bool, error) {
	var image sql.NullString
	if ev.Image != nil {
		image = sql.NullString{String: ev.Image.String(), Valid: true}
	}

	res, err := j.db.ExecContext(ctx, sqlInsertEvent,
		ev.EventID.String(),
		string(ev.EventType),
		image,
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		j.nowFunc().UnixNano(),
		payload,
	)
	if err != nil {
		return false, fmt.Errorf("webhook: recording event %s: %w", ev.EventID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("webhook: recording event %s: %w", ev.EventID, err)
	}

	return n == 1, nil
}

// Forget removes the event with id, so a redelivery is treated as new.
func (j *Journal) Forget(ctx context.Context, id api.WebhookEventID) error {
	if _, err := j.db.ExecContext(ctx, sqlDeleteEvent, id.String()); err != nil {
		return fmt.Errorf("webhook: forgetting event %s: %w", id, err)
	}

	return nil
}

// List returns every journaled delivery in arrival order.
func (j *Journal) List(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, sqlListEvents)
	if err != nil {
		return nil, fmt.Errorf("webhook: listing events: %w", err)
	}
	defer rows.Close()

	var out []Entry

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("webhook: listing events: %w", err)
	}

	return out, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		eventID, eventType, eventTime string
		image                         sql.NullString
		receivedAt                    int64
		payload                       []byte
	)

	if err := rows.Scan(&eventID, &eventType, &image, &eventTime, &receivedAt, &payload); err != nil {
		return Entry{}, fmt.Errorf("webhook: scanning event: %w", err)
	}

	id, err := api.ParseWebhookEventID(eventID)
	if err != nil {
		return Entry{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, eventTime)
	if err != nil {
		return Entry{}, fmt.Errorf("webhook: event %s: %w", eventID, err)
	}

	e := Entry{
		Event: api.WebhookEvent{
			EventID:   id,
			EventType: api.WebhookEventType(eventType),
			Timestamp: ts,
		},
		ReceivedAt: time.Unix(0, receivedAt),
		Payload:    payload,
	}

	if image.Valid {
		img, err := api.ParseImageID(image.String)
		if err != nil {
			return Entry{}, err
		}

		e.Event.Image = &img
	}

	return e, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("webhook: closing journal: %w", err)
	}

	return nil
}
