package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/fcm"
	"github.com/benardelia/fcm-notification-server/internal/observability"
	sqsqueue "github.com/benardelia/fcm-notification-server/internal/queue/sqs"
	"github.com/benardelia/fcm-notification-server/internal/store"
	"github.com/benardelia/fcm-notification-server/internal/util"
)

// MaxAttempts caps the async retry pipeline. The fifth failed attempt is
// terminal: the notification is marked failed and never re-enqueued.
const MaxAttempts = 5

type Store interface {
	GetNotification(ctx context.Context, id string) (store.Notification, bool, error)
	DevicesForPhone(ctx context.Context, phone string) ([]store.Device, error)
	UpdateNotificationStatus(ctx context.Context, in store.NotificationStatusUpdate) error
	UpsertOutcome(ctx context.Context, in store.OutcomeUpsert) error
}

type ClientPool interface {
	Get(ctx context.Context, tenantID string) (fcm.Sender, error)
}

type Events interface {
	DispatchAsync(event string, data any, tenantID string)
}

type Queue interface {
	Enqueue(ctx context.Context, job sqsqueue.PushJob, delay time.Duration) error
}

// Processor executes async send jobs: resolve targets, send through the
// tenant client, reconcile outcomes, and decide between re-enqueue with
// backoff and terminal failure.
type Processor struct {
	Store   Store
	Pool    ClientPool
	Events  Events
	Queue   Queue
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
	Now     func() time.Time
}

type attemptResult struct {
	success   int
	failure   int
	retryable bool
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return util.NowUTC()
}

func (p *Processor) Process(ctx context.Context, job sqsqueue.PushJob) error {
	n, found, err := p.Store.GetNotification(ctx, job.NotificationID)
	if err != nil {
		return err
	}
	if !found {
		slog.Warn("push job for unknown notification", "notification_id", job.NotificationID)
		return nil
	}

	// Idempotent consumer: terminal records are done.
	if n.Status == string(domain.NotificationSent) || n.Status == string(domain.NotificationFailed) {
		return nil
	}

	// Rate limit before touching the provider.
	if p.Limiter != nil {
		waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
		err := p.Limiter.Wait(waitCtx)
		cancelWait()
		if err != nil {
			// Could not acquire a token; transient, let the queue redrive.
			return err
		}
	}

	res, err := p.attempt(ctx, job, n)

	// Breaker open is provider protection, not a delivery verdict.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return err
	}
	if err != nil {
		return err
	}

	if res.success > 0 {
		t := p.now()
		if err := p.Store.UpdateNotificationStatus(ctx, store.NotificationStatusUpdate{
			ID: n.ID, Status: string(domain.NotificationSent), RetryCount: job.Attempt, SentAt: &t, Now: t,
		}); err != nil {
			return err
		}
		if p.Events != nil {
			p.Events.DispatchAsync(domain.EventNotificationSent, map[string]any{
				"notification_id": n.ID,
				"success_count":   res.success,
				"failure_count":   res.failure,
			}, n.TenantID)
		}
		return nil
	}

	nextAttempt := job.Attempt + 1
	if res.retryable && nextAttempt < MaxAttempts {
		delay := fcm.Backoff(job.Attempt)
		job.Attempt = nextAttempt
		if err := p.Queue.Enqueue(ctx, job, delay); err != nil {
			return err
		}
		observability.Retries.WithLabelValues("false").Inc()
		return p.Store.UpdateNotificationStatus(ctx, store.NotificationStatusUpdate{
			ID: n.ID, Status: string(domain.NotificationPending), RetryCount: nextAttempt, Now: p.now(),
		})
	}

	// Terminal: attempts exhausted or the failure cannot recover.
	observability.Retries.WithLabelValues("true").Inc()
	if err := p.Store.UpdateNotificationStatus(ctx, store.NotificationStatusUpdate{
		ID: n.ID, Status: string(domain.NotificationFailed), RetryCount: nextAttempt, Now: p.now(),
	}); err != nil {
		return err
	}
	if p.Events != nil {
		p.Events.DispatchAsync(domain.EventNotificationFailed, map[string]any{
			"notification_id": n.ID,
			"attempts":        nextAttempt,
		}, n.TenantID)
	}
	return nil
}

// attempt performs one delivery attempt and writes every recipient's ledger
// row, so partial progress survives across retries.
func (p *Processor) attempt(ctx context.Context, job sqsqueue.PushJob, n store.Notification) (attemptResult, error) {
	client, err := p.Pool.Get(ctx, job.TenantID)
	if err != nil {
		// Credential problems are fatal, not retryable.
		var ce *domain.ConfigurationError
		if errors.As(err, &ce) {
			return attemptResult{retryable: false}, nil
		}
		return attemptResult{}, err
	}

	content := fcm.Content{
		Title:       n.Title,
		Body:        n.Body,
		Data:        n.Data,
		ImageURL:    n.ImageURL,
		Priority:    n.Priority,
		Silent:      n.Silent,
		ClickAction: n.ClickAction,
	}

	if job.Topic != "" {
		_, err := p.execute(func() (any, error) {
			return fcm.SendTopic(ctx, client, job.Topic, content)
		})
		return p.addressedResult(err)
	}
	if job.Condition != "" {
		_, err := p.execute(func() (any, error) {
			return fcm.SendCondition(ctx, client, job.Condition, content)
		})
		return p.addressedResult(err)
	}

	var devices []store.Device
	for _, phone := range job.PhoneNumbers {
		ds, err := p.Store.DevicesForPhone(ctx, util.NormalizePhone(phone))
		if err != nil {
			return attemptResult{}, err
		}
		devices = append(devices, ds...)
	}
	if len(devices) == 0 {
		// Nothing to deliver to; not recoverable by retrying.
		return attemptResult{retryable: false}, nil
	}

	if len(devices) == 1 {
		resAny, err := p.execute(func() (any, error) {
			return fcm.SendSingle(ctx, client, devices[0].PushToken, content)
		})
		if isBreakerErr(err) {
			return attemptResult{}, err
		}
		if err != nil {
			p.writeOutcome(ctx, n.ID, devices[0].ID, fcm.Outcome{Err: err})
			return attemptResult{failure: 1, retryable: domain.IsRetryable(err)}, nil
		}
		p.writeOutcome(ctx, n.ID, devices[0].ID, fcm.Outcome{MessageID: resAny.(string)})
		return attemptResult{success: 1}, nil
	}

	tokens := make([]string, len(devices))
	for i, d := range devices {
		tokens[i] = d.PushToken
	}
	resAny, err := p.execute(func() (any, error) {
		return fcm.SendMulticast(ctx, client, tokens, content)
	})
	if isBreakerErr(err) {
		return attemptResult{}, err
	}
	if err != nil {
		for _, d := range devices {
			p.writeOutcome(ctx, n.ID, d.ID, fcm.Outcome{Err: err})
		}
		return attemptResult{failure: len(devices), retryable: domain.IsRetryable(err)}, nil
	}

	res := resAny.(fcm.MulticastResult)
	retryable := false
	for i, out := range res.Outcomes {
		p.writeOutcome(ctx, n.ID, devices[i].ID, out)
		if out.Err != nil && fcm.Retryable(out.Err) {
			retryable = true
		}
	}
	return attemptResult{success: res.SuccessCount, failure: res.FailureCount, retryable: retryable}, nil
}

func (p *Processor) addressedResult(err error) (attemptResult, error) {
	if isBreakerErr(err) {
		return attemptResult{}, err
	}
	if err != nil {
		return attemptResult{failure: 1, retryable: domain.IsRetryable(err)}, nil
	}
	return attemptResult{success: 1}, nil
}

func (p *Processor) execute(call func() (any, error)) (any, error) {
	if p.Breaker == nil {
		return call()
	}
	return p.Breaker.Execute(call)
}

func isBreakerErr(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (p *Processor) writeOutcome(ctx context.Context, notificationID, deviceID string, out fcm.Outcome) {
	up := store.OutcomeUpsert{
		NotificationID: notificationID,
		DeviceID:       deviceID,
	}
	if out.Success() {
		t := p.now()
		up.Status = string(domain.OutcomeSent)
		up.DeliveredAt = &t
	} else {
		up.Status = string(domain.OutcomeFailed)
		up.ErrorMessage = out.Err.Error()
	}
	if err := p.Store.UpsertOutcome(ctx, up); err != nil {
		slog.Error("outcome upsert failed", "err", err, "notification_id", notificationID, "device_id", deviceID)
	}
}
