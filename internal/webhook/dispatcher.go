package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/observability"
	"github.com/benardelia/fcm-notification-server/internal/store"
	"github.com/benardelia/fcm-notification-server/internal/util"
)

// MaxFailureCount is the consecutive-failure threshold after which a
// subscription is permanently disabled.
const MaxFailureCount = 10

const deliverTimeout = 10 * time.Second

const (
	signatureHeader = "X-Webhook-Signature"
	eventHeader     = "X-Webhook-Event"
)

type Store interface {
	ActiveSubscriptions(ctx context.Context, tenantID string) ([]store.WebhookSubscription, error)
	UpdateWebhookDelivery(ctx context.Context, in store.WebhookDeliveryResult) (store.WebhookSubscriptionState, error)
}

type Dispatcher struct {
	Store Store
	HTTP  *http.Client
}

func NewDispatcher(st Store) *Dispatcher {
	return &Dispatcher{
		Store: st,
		HTTP:  &http.Client{Timeout: deliverTimeout},
	}
}

// envelope is the wire format: {"event": ..., "timestamp": ISO-8601, "data": ...}.
type envelope struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// Dispatch delivers the event to every active subscription of the tenant that
// subscribes to the event type. Endpoints are delivered concurrently and
// independently; one endpoint failing never affects the others.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, data any, tenantID string) error {
	subs, err := d.Store.ActiveSubscriptions(ctx, tenantID)
	if err != nil {
		return err
	}

	var matching []store.WebhookSubscription
	for _, sub := range subs {
		if subscribes(sub, event) {
			matching = append(matching, sub)
		}
	}
	if len(matching) == 0 {
		return nil
	}

	body, err := json.Marshal(envelope{
		Event:     event,
		Timestamp: util.NowUTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, sub := range matching {
		wg.Add(1)
		go func(sub store.WebhookSubscription) {
			defer wg.Done()
			d.deliver(ctx, sub, event, body)
		}(sub)
	}
	wg.Wait()
	return nil
}

// DispatchAsync fires the dispatch without blocking the caller.
func (d *Dispatcher) DispatchAsync(event string, data any, tenantID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*deliverTimeout)
		defer cancel()
		if err := d.Dispatch(ctx, event, data, tenantID); err != nil {
			slog.Error("webhook dispatch failed", "err", err, "event", event, "tenant", tenantID)
		}
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, sub store.WebhookSubscription, event string, body []byte) {
	err := d.post(ctx, sub, event, body)

	// The store increments the failure counter so concurrent deliveries to
	// the same endpoint never undercount.
	state, uerr := d.Store.UpdateWebhookDelivery(ctx, store.WebhookDeliveryResult{
		ID: sub.ID, Success: err == nil, Threshold: MaxFailureCount, Now: util.NowUTC(),
	})
	if uerr != nil {
		slog.Error("webhook delivery update failed", "err", uerr, "url", sub.URL)
	}

	if err == nil {
		observability.WebhookDeliveries.WithLabelValues(event, "ok").Inc()
		return
	}

	observability.WebhookDeliveries.WithLabelValues(event, "error").Inc()
	if uerr == nil && !state.IsActive {
		slog.Warn("webhook disabled after consecutive failures", "url", sub.URL, "failures", state.FailureCount)
	}
	slog.Error("webhook delivery failed", "err", err, "url", sub.URL, "event", event)
}

func (d *Dispatcher) post(ctx context.Context, sub store.WebhookSubscription, event string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return &domain.WebhookDeliveryError{URL: sub.URL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, Sign(body, sub.Secret))
	req.Header.Set(eventHeader, event)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return &domain.WebhookDeliveryError{URL: sub.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.WebhookDeliveryError{URL: sub.URL, StatusCode: resp.StatusCode}
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of the exact body bytes with the
// subscription secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func subscribes(sub store.WebhookSubscription, event string) bool {
	for _, e := range sub.Events {
		if e == event {
			return true
		}
	}
	return false
}
