package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/freta/internal/api"
	"github.com/tonimelisma/freta/internal/webhook"
)

const (
	defaultListenAddr = "127.0.0.1:8080"
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func newWebhooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Manage webhooks",
	}

	cmd.AddCommand(newWebhooksListCmd())
	cmd.AddCommand(newWebhooksGetCmd())
	cmd.AddCommand(newWebhooksCreateCmd())
	cmd.AddCommand(newWebhooksUpdateCmd())
	cmd.AddCommand(newWebhooksDeleteCmd())
	cmd.AddCommand(newWebhooksPingCmd())
	cmd.AddCommand(newWebhooksLogsCmd())
	cmd.AddCommand(newWebhooksResendCmd())
	cmd.AddCommand(newWebhooksListenCmd())
	cmd.AddCommand(newWebhooksJournalCmd())

	return cmd
}

func parseEventTypes(args []string) ([]api.WebhookEventType, error) {
	types := make([]api.WebhookEventType, 0, len(args))

	for _, a := range args {
		t, err := api.ParseWebhookEventType(a)
		if err != nil {
			return nil, err
		}

		types = append(types, t)
	}

	return types, nil
}

func eventTypeNames() string {
	names := make([]string, len(api.WebhookEventTypes))
	for i, t := range api.WebhookEventTypes {
		names[i] = string(t)
	}

	return fmt.Sprint(names)
}

func newWebhooksListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List webhooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			return writeListing(cmd.OutOrStdout(), format, "webhooks", nil,
				client.ListWebhooks().All(cmd.Context()))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(outputJSON), "json, table or csv")

	return cmd
}

func newWebhooksGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <webhook-id>",
		Short: "Show one webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseWebhookID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			hook, err := client.GetWebhook(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), hook)
		},
	}
}

func newWebhooksCreateCmd() *cobra.Command {
	var hmacToken string

	cmd := &cobra.Command{
		Use:   "create <url> <event-type>...",
		Short: "Register a webhook",
		Long:  "Register a webhook. Event types: " + eventTypeNames(),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseEventTypes(args[1:])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			hook, err := client.CreateWebhook(cmd.Context(), api.WebhookRequest{
				URL:        args[0],
				EventTypes: types,
				HMACToken:  hmacToken,
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), hook)
		},
	}

	cmd.Flags().StringVar(&hmacToken, "hmac-token", "", "shared secret used to sign deliveries")

	return cmd
}

func newWebhooksUpdateCmd() *cobra.Command {
	var hmacToken string

	cmd := &cobra.Command{
		Use:   "update <webhook-id> <url> <event-type>...",
		Short: "Replace the url, event types and secret of a webhook",
		Long: `Replace the url, event types and secret of a webhook. Omitting
--hmac-token makes deliveries unsigned. Event types: ` + eventTypeNames(),
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseWebhookID(args[0])
			if err != nil {
				return err
			}

			types, err := parseEventTypes(args[2:])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			hook, err := client.UpdateWebhook(cmd.Context(), id, api.WebhookRequest{
				URL:        args[1],
				EventTypes: types,
				HMACToken:  hmacToken,
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), hook)
		},
	}

	cmd.Flags().StringVar(&hmacToken, "hmac-token", "", "shared secret used to sign deliveries")

	return cmd
}

func newWebhooksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <webhook-id>",
		Short: "Remove a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseWebhookID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			ok, err := client.DeleteWebhook(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), ok)
		},
	}
}

func newWebhooksPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping <webhook-id>",
		Short: "Send a test event to a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseWebhookID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			resp, err := client.PingWebhook(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printRaw(cmd.OutOrStdout(), resp)
		},
	}
}

func newWebhooksLogsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "logs <webhook-id>",
		Short: "List the delivery log of a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			id, err := api.ParseWebhookID(args[0])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			return writeListing(cmd.OutOrStdout(), format, "webhook_events", nil,
				client.ListWebhookLogs(id).All(cmd.Context()))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(outputJSON), "json, table or csv")

	return cmd
}

func newWebhooksResendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend <webhook-id> <event-id>",
		Short: "Deliver a past event again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseWebhookID(args[0])
			if err != nil {
				return err
			}

			eventID, err := api.ParseWebhookEventID(args[1])
			if err != nil {
				return err
			}

			client, err := newClient(buildLogger())
			if err != nil {
				return err
			}

			ev, err := client.ResendWebhookEvent(cmd.Context(), id, eventID)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), ev)
		},
	}
}

func newWebhooksListenCmd() *cobra.Command {
	var (
		addr        string
		hmacToken   string
		journalPath string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Receive webhook deliveries locally",
		Long: `Receive webhook deliveries on a local address and print each new
event as a JSON line. With --hmac-token, unsigned or mis-signed deliveries
are rejected. With --journal, events are stored in a SQLite file and
redeliveries of a stored event are acknowledged without printing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()
			ctx := shutdownContext(cmd.Context(), logger)

			var journal *webhook.Journal

			if journalPath != "" {
				release, err := lockJournal(journalPath)
				if err != nil {
					return err
				}
				defer release()

				if journal, err = webhook.OpenJournal(ctx, journalPath, logger); err != nil {
					return err
				}
				defer journal.Close()
			}

			handler := webhook.NewReceiver(webhook.ReceiverOptions{
				Secret:  hmacToken,
				Journal: journal,
				Sink:    jsonLineSink(cmd.OutOrStdout()),
				Logger:  logger,
			})

			statusf("Listening on %s\n", addr)

			return serve(ctx, addr, handler, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultListenAddr, "listen address")
	cmd.Flags().StringVar(&hmacToken, "hmac-token", "", "shared secret deliveries must be signed with")
	cmd.Flags().StringVar(&journalPath, "journal", "", "SQLite file recording received events")

	return cmd
}

// jsonLineSink writes each event as one JSON line.
func jsonLineSink(w io.Writer) webhook.Sink {
	var mu sync.Mutex

	return func(_ context.Context, ev api.WebhookEvent, _ []byte) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()

		_, err = fmt.Fprintf(w, "%s\n", data)

		return err
	}
}

// serve runs an HTTP server until ctx is cancelled, then drains it.
func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook listener: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down webhook listener")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook listener shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// journalRow is the printed form of a journaled event.
type journalRow struct {
	EventID    api.WebhookEventID   `json:"event_id"`
	EventType  api.WebhookEventType `json:"event_type"`
	Image      *api.ImageID         `json:"image,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
	ReceivedAt time.Time            `json:"received_at"`
}

func newWebhooksJournalCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "journal <path>",
		Short: "List the events recorded by \"webhooks listen --journal\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			journal, err := webhook.OpenJournal(cmd.Context(), args[0], buildLogger())
			if err != nil {
				return err
			}
			defer journal.Close()

			entries, err := journal.List(cmd.Context())
			if err != nil {
				return err
			}

			var rows iter.Seq2[journalRow, error] = func(yield func(journalRow, error) bool) {
				for _, e := range entries {
					row := journalRow{
						EventID:    e.Event.EventID,
						EventType:  e.Event.EventType,
						Image:      e.Event.Image,
						Timestamp:  e.Event.Timestamp,
						ReceivedAt: e.ReceivedAt,
					}

					if !yield(row, nil) {
						return
					}
				}
			}

			return writeListing(cmd.OutOrStdout(), format, "webhook_events", nil, rows)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(outputJSON), "json, table or csv")

	return cmd
}
