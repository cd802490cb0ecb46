package service

import (
	"context"
	"time"

	sqsqueue "github.com/benardelia/fcm-notification-server/internal/queue/sqs"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/observability"
	"github.com/benardelia/fcm-notification-server/internal/store"
)

type Queue interface {
	Enqueue(ctx context.Context, job sqsqueue.PushJob, delay time.Duration) error
}

// AsyncDispatcher wraps the dispatch engine with a durable task queue for
// asynchronous sends.
type AsyncDispatcher struct {
	*Dispatcher
	Queue Queue
}

// SendToPhoneAsync persists the pending record and enqueues the send. Target
// resolution and delivery happen in the worker.
func (a *AsyncDispatcher) SendToPhoneAsync(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	id := a.IDGen()
	now := a.Now()
	if err := a.Store.InsertNotification(ctx, store.NotificationInsert{
		ID:          id,
		TenantID:    req.TenantID,
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		ImageURL:    req.ImageURL,
		Priority:    string(req.Priority),
		Silent:      req.Silent,
		ClickAction: req.ClickAction,
		Status:      string(domain.NotificationPending),
		Now:         now,
	}); err != nil {
		return domain.SendResult{}, err
	}

	job := sqsqueue.PushJob{
		NotificationID: id,
		TenantID:       req.TenantID,
		PhoneNumbers:   []string{req.PhoneNumber},
	}
	if err := a.Queue.Enqueue(ctx, job, 0); err != nil {
		observability.Enqueues.WithLabelValues("error").Inc()
		a.recordFailure(ctx, id, nil, err)
		return domain.SendResult{}, err
	}
	observability.Enqueues.WithLabelValues("ok").Inc()
	return domain.SendResult{NotificationID: id, Status: string(domain.NotificationPending)}, nil
}

// SendBulkAsync enqueues one multicast job for many phone numbers.
func (a *AsyncDispatcher) SendBulkAsync(ctx context.Context, req domain.BulkSendRequest) (domain.SendResult, error) {
	id := a.IDGen()
	now := a.Now()
	if err := a.Store.InsertNotification(ctx, store.NotificationInsert{
		ID:          id,
		TenantID:    req.TenantID,
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		ImageURL:    req.ImageURL,
		Priority:    string(req.Priority),
		Silent:      req.Silent,
		ClickAction: req.ClickAction,
		Status:      string(domain.NotificationPending),
		Now:         now,
	}); err != nil {
		return domain.SendResult{}, err
	}

	job := sqsqueue.PushJob{
		NotificationID: id,
		TenantID:       req.TenantID,
		PhoneNumbers:   req.PhoneNumbers,
	}
	if err := a.Queue.Enqueue(ctx, job, 0); err != nil {
		observability.Enqueues.WithLabelValues("error").Inc()
		a.recordFailure(ctx, id, nil, err)
		return domain.SendResult{}, err
	}
	observability.Enqueues.WithLabelValues("ok").Inc()
	return domain.SendResult{NotificationID: id, Status: string(domain.NotificationPending)}, nil
}

// SendToTopicAsync persists the pending record and enqueues a topic send.
func (a *AsyncDispatcher) SendToTopicAsync(ctx context.Context, req domain.TopicSendRequest) (domain.SendResult, error) {
	id := a.IDGen()
	now := a.Now()
	if err := a.Store.InsertNotification(ctx, store.NotificationInsert{
		ID:       id,
		TenantID: req.TenantID,
		Title:    req.Title,
		Body:     req.Body,
		Data:     req.Data,
		ImageURL: req.ImageURL,
		Status:   string(domain.NotificationPending),
		Now:      now,
	}); err != nil {
		return domain.SendResult{}, err
	}

	job := sqsqueue.PushJob{
		NotificationID: id,
		TenantID:       req.TenantID,
		Topic:          req.Topic,
	}
	if err := a.Queue.Enqueue(ctx, job, 0); err != nil {
		observability.Enqueues.WithLabelValues("error").Inc()
		a.recordFailure(ctx, id, nil, err)
		return domain.SendResult{}, err
	}
	observability.Enqueues.WithLabelValues("ok").Inc()
	return domain.SendResult{NotificationID: id, Status: string(domain.NotificationPending)}, nil
}

// SendToConditionAsync persists the pending record and enqueues a condition send.
func (a *AsyncDispatcher) SendToConditionAsync(ctx context.Context, req domain.ConditionSendRequest) (domain.SendResult, error) {
	id := a.IDGen()
	now := a.Now()
	if err := a.Store.InsertNotification(ctx, store.NotificationInsert{
		ID:       id,
		TenantID: req.TenantID,
		Title:    req.Title,
		Body:     req.Body,
		Data:     req.Data,
		ImageURL: req.ImageURL,
		Status:   string(domain.NotificationPending),
		Now:      now,
	}); err != nil {
		return domain.SendResult{}, err
	}

	job := sqsqueue.PushJob{
		NotificationID: id,
		TenantID:       req.TenantID,
		Condition:      req.Condition,
	}
	if err := a.Queue.Enqueue(ctx, job, 0); err != nil {
		observability.Enqueues.WithLabelValues("error").Inc()
		a.recordFailure(ctx, id, nil, err)
		return domain.SendResult{}, err
	}
	observability.Enqueues.WithLabelValues("ok").Inc()
	return domain.SendResult{NotificationID: id, Status: string(domain.NotificationPending)}, nil
}

// MarkRead records a read receipt on an existing ledger row and fires the
// read webhook.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, deviceID, tenantID string) error {
	updated, err := d.Store.MarkOutcomeRead(ctx, notificationID, deviceID)
	if err != nil {
		return err
	}
	if !updated {
		return &domain.ResolutionError{Kind: "delivery", Key: notificationID + "/" + deviceID}
	}
	if d.Events != nil {
		d.Events.DispatchAsync(domain.EventNotificationRead, map[string]any{
			"notification_id": notificationID,
			"device_id":       deviceID,
		}, tenantID)
	}
	return nil
}
