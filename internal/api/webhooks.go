package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"
)

// WebhookEventType selects which events a webhook receives.
type WebhookEventType string

// Event types, in their canonical order.
const (
	EventPing                   WebhookEventType = "ping"
	EventImageCreated           WebhookEventType = "image_created"
	EventImageDeleted           WebhookEventType = "image_deleted"
	EventImageAnalysisCompleted WebhookEventType = "image_analysis_completed"
	EventImageAnalysisFailed    WebhookEventType = "image_analysis_failed"
	EventImageStateUpdated      WebhookEventType = "image_state_updated"
)

// WebhookEventTypes lists every event type in canonical order.
var WebhookEventTypes = []WebhookEventType{
	EventPing,
	EventImageCreated,
	EventImageDeleted,
	EventImageAnalysisCompleted,
	EventImageAnalysisFailed,
	EventImageStateUpdated,
}

// ParseWebhookEventType accepts the wire form of an event type.
func ParseWebhookEventType(s string) (WebhookEventType, error) {
	t := WebhookEventType(s)
	if !slices.Contains(WebhookEventTypes, t) {
		return "", fmt.Errorf("api: unknown webhook event type %q", s)
	}

	return t, nil
}

// normalizeEventTypes sorts into canonical order and removes duplicates;
// the service treats the list as a set.
func normalizeEventTypes(types []WebhookEventType) []WebhookEventType {
	out := slices.Clone(types)
	slices.SortFunc(out, func(a, b WebhookEventType) int {
		return slices.Index(WebhookEventTypes, a) - slices.Index(WebhookEventTypes, b)
	})

	return slices.Compact(out)
}

// WebhookEventState is the delivery state of one event.
type WebhookEventState string

// Delivery states.
const (
	EventStatePending WebhookEventState = "Pending"
	EventStateSuccess WebhookEventState = "Success"
	EventStateFailure WebhookEventState = "Failure"
)

// Webhook is a registered notification endpoint. HMACToken is the shared
// secret used to sign deliveries.
type Webhook struct {
	LastUpdated *time.Time         `json:"last_updated,omitempty"`
	OwnerID     OwnerID            `json:"owner_id"`
	WebhookID   WebhookID          `json:"webhook_id"`
	URL         string             `json:"url"`
	EventTypes  []WebhookEventType `json:"event_types"`
	HMACToken   *string            `json:"hmac_token"`
}

// UnmarshalJSON accepts both the plain and the storage-table field names.
func (w *Webhook) UnmarshalJSON(data []byte) error {
	type plain Webhook

	var aux struct {
		plain
		tableKeys[OwnerID, WebhookID]
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*w = Webhook(aux.plain)

	if w.LastUpdated == nil {
		w.LastUpdated = aux.Timestamp
	}

	if aux.PartitionKey != nil {
		w.OwnerID = *aux.PartitionKey
	}

	if aux.RowKey != nil {
		w.WebhookID = *aux.RowKey
	}

	return nil
}

// WebhookEvent is the payload delivered to a webhook.
type WebhookEvent struct {
	EventID   WebhookEventID   `json:"event_id"`
	EventType WebhookEventType `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Image     *ImageID         `json:"image,omitempty"`
}

// WebhookLog is the delivery record of one event.
type WebhookLog struct {
	LastUpdated *time.Time        `json:"last_updated,omitempty"`
	WebhookID   WebhookID         `json:"webhook_id"`
	EventID     WebhookEventID    `json:"event_id"`
	Event       WebhookEvent      `json:"event"`
	State       WebhookEventState `json:"state"`
	Error       string            `json:"error,omitempty"`
}

// UnmarshalJSON accepts both the plain and the storage-table field names.
func (l *WebhookLog) UnmarshalJSON(data []byte) error {
	type plain WebhookLog

	var aux struct {
		plain
		tableKeys[WebhookID, WebhookEventID]
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*l = WebhookLog(aux.plain)

	if l.LastUpdated == nil {
		l.LastUpdated = aux.Timestamp
	}

	if aux.PartitionKey != nil {
		l.WebhookID = *aux.PartitionKey
	}

	if aux.RowKey != nil {
		l.EventID = *aux.RowKey
	}

	return nil
}

// WebhookRequest creates or replaces a webhook. An empty HMACToken sends
// unsigned deliveries.
type WebhookRequest struct {
	URL        string
	EventTypes []WebhookEventType
	HMACToken  string
}

type webhookSubmit struct {
	URL        string             `json:"url"`
	HMACToken  *string            `json:"hmac_token"`
	EventTypes []WebhookEventType `json:"event_types"`
}

func (r WebhookRequest) submit() (webhookSubmit, error) {
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return webhookSubmit{}, fmt.Errorf("api: webhook url %q is not absolute", r.URL)
	}

	s := webhookSubmit{URL: u.String(), EventTypes: normalizeEventTypes(r.EventTypes)}
	if s.EventTypes == nil {
		s.EventTypes = []WebhookEventType{}
	}

	if r.HMACToken != "" {
		tok := r.HMACToken
		s.HMACToken = &tok
	}

	return s, nil
}

type webhooksPage struct {
	Webhooks     []Webhook `json:"webhooks"`
	Continuation string    `json:"continuation"`
}

type webhookLogsPage struct {
	WebhookEvents []WebhookLog `json:"webhook_events"`
	Continuation  string       `json:"continuation"`
}

type webhookEventReplay struct {
	WebhookEventID WebhookEventID `json:"webhook_event_id"`
}

const webhooksPath = "/api/webhooks"

func webhookPath(id WebhookID) string {
	return webhooksPath + "/" + id.String()
}

func continuationQuery(continuation string) url.Values {
	if continuation == "" {
		return nil
	}

	return url.Values{"continuation": {continuation}}
}

// ListWebhooks returns a lazy listing of the caller's webhooks.
func (c *Client) ListWebhooks() *Pager[Webhook] {
	return NewPager(func(ctx context.Context, continuation string) (Page[Webhook], error) {
		resp, err := ExecuteJSON[webhooksPage](ctx, c, http.MethodGet, webhooksPath, continuationQuery(continuation), nil)
		if err != nil {
			return Page[Webhook]{}, err
		}

		return Page[Webhook]{Items: resp.Webhooks, Continuation: resp.Continuation}, nil
	})
}

// CreateWebhook registers a webhook.
func (c *Client) CreateWebhook(ctx context.Context, req WebhookRequest) (*Webhook, error) {
	body, err := req.submit()
	if err != nil {
		return nil, err
	}

	return executeObject[Webhook](ctx, c, http.MethodPost, webhooksPath, nil, body)
}

// GetWebhook fetches one webhook.
func (c *Client) GetWebhook(ctx context.Context, id WebhookID) (*Webhook, error) {
	return executeObject[Webhook](ctx, c, http.MethodGet, webhookPath(id), nil, nil)
}

// UpdateWebhook replaces url, event types and token of a webhook.
func (c *Client) UpdateWebhook(ctx context.Context, id WebhookID, req WebhookRequest) (*Webhook, error) {
	body, err := req.submit()
	if err != nil {
		return nil, err
	}

	return executeObject[Webhook](ctx, c, http.MethodPost, webhookPath(id), nil, body)
}

// DeleteWebhook removes a webhook.
func (c *Client) DeleteWebhook(ctx context.Context, id WebhookID) (bool, error) {
	return ExecuteJSON[bool](ctx, c, http.MethodDelete, webhookPath(id), nil, nil)
}

// PingWebhook asks the service to send a test event and returns the raw
// response.
func (c *Client) PingWebhook(ctx context.Context, id WebhookID) ([]byte, error) {
	return c.Execute(ctx, http.MethodPatch, webhookPath(id), nil, nil)
}

// ListWebhookLogs returns a lazy listing of the delivery log of a webhook.
func (c *Client) ListWebhookLogs(id WebhookID) *Pager[WebhookLog] {
	path := webhookPath(id) + "/logs"

	return NewPager(func(ctx context.Context, continuation string) (Page[WebhookLog], error) {
		resp, err := ExecuteJSON[webhookLogsPage](ctx, c, http.MethodGet, path, continuationQuery(continuation), nil)
		if err != nil {
			return Page[WebhookLog]{}, err
		}

		return Page[WebhookLog]{Items: resp.WebhookEvents, Continuation: resp.Continuation}, nil
	})
}

// ResendWebhookEvent replays a past delivery.
func (c *Client) ResendWebhookEvent(ctx context.Context, id WebhookID, eventID WebhookEventID) (*WebhookEvent, error) {
	return executeObject[WebhookEvent](ctx, c, http.MethodPost, webhookPath(id)+"/logs", nil,
		webhookEventReplay{WebhookEventID: eventID})
}
