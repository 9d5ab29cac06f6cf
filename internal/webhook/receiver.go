package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tonimelisma/freta/internal/api"
)

const defaultMaxBody = 1 << 20

// Sink consumes a verified, first-seen delivery. An error makes the
// receiver answer 500 so the service records a failed delivery, and the
// event is dropped from the journal so its redelivery reaches Sink again.
type Sink func(ctx context.Context, ev api.WebhookEvent, payload []byte) error

// ReceiverOptions configures NewReceiver. With an empty Secret deliveries
// are accepted unsigned; with a nil Journal every delivery reaches Sink.
type ReceiverOptions struct {
	Secret       string
	Journal      *Journal
	Sink         Sink
	Logger       *slog.Logger
	MaxBodyBytes int64
}

type receiver struct {
	opts   ReceiverOptions
	logger *slog.Logger
}

// NewReceiver returns a handler accepting deliveries with POST on "/".
func NewReceiver(opts ReceiverOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}

	if opts.Sink == nil {
		opts.Sink = func(context.Context, api.WebhookEvent, []byte) error { return nil }
	}

	rc := &receiver{opts: opts, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/", rc.handle)

	return r
}

func (rc *receiver) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rc.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}

		http.Error(w, "reading body", http.StatusBadRequest)

		return
	}

	if rc.opts.Secret != "" {
		if err := Verify(r.Header, body, rc.opts.Secret); err != nil {
			rc.logger.Warn("rejected webhook delivery", slog.String("error", err.Error()))
			http.Error(w, "invalid signature", http.StatusUnauthorized)

			return
		}
	}

	ev, err := ParseEvent(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if rc.opts.Journal != nil {
		isNew, err := rc.opts.Journal.Record(ctx, ev, body)
		if err != nil {
			rc.logger.Error("journaling webhook event failed",
				slog.String("event_id", ev.EventID.String()),
				slog.String("error", err.Error()),
			)
			http.Error(w, "journal failure", http.StatusInternalServerError)

			return
		}

		if !isNew {
			rc.logger.Info("duplicate webhook event ignored", slog.String("event_id", ev.EventID.String()))
			w.WriteHeader(http.StatusOK)

			return
		}
	}

	if err := rc.opts.Sink(ctx, ev, body); err != nil {
		rc.logger.Error("handling webhook event failed",
			slog.String("event_id", ev.EventID.String()),
			slog.String("error", err.Error()),
		)

		if rc.opts.Journal != nil {
			// The service redelivers after a 500; the retry must reach the sink.
			if fErr := rc.opts.Journal.Forget(context.WithoutCancel(ctx), ev.EventID); fErr != nil {
				rc.logger.Error("unjournaling failed webhook event",
					slog.String("event_id", ev.EventID.String()),
					slog.String("error", fErr.Error()),
				)
			}
		}

		http.Error(w, "handler failure", http.StatusInternalServerError)

		return
	}

	rc.logger.Debug("webhook event accepted",
		slog.String("event_id", ev.EventID.String()),
		slog.String("event_type", string(ev.EventType)),
	)
	w.WriteHeader(http.StatusOK)
}
