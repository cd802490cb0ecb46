package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/fcm"
	"github.com/benardelia/fcm-notification-server/internal/observability"
	"github.com/benardelia/fcm-notification-server/internal/store"
	"github.com/benardelia/fcm-notification-server/internal/util"
)

type Store interface {
	DevicesForPhone(ctx context.Context, phone string) ([]store.Device, error)
	InsertNotification(ctx context.Context, in store.NotificationInsert) error
	UpdateNotificationStatus(ctx context.Context, in store.NotificationStatusUpdate) error
	GetNotification(ctx context.Context, id string) (store.Notification, bool, error)
	UpsertOutcome(ctx context.Context, in store.OutcomeUpsert) error
	GetTemplate(ctx context.Context, name string) (store.Template, bool, error)
	MarkOutcomeRead(ctx context.Context, notificationID, deviceID string) (bool, error)
	RegisterDevice(ctx context.Context, in store.DeviceRegistration) (store.Device, error)
}

type ClientPool interface {
	Get(ctx context.Context, tenantID string) (fcm.Sender, error)
}

type Events interface {
	DispatchAsync(event string, data any, tenantID string)
}

// Dispatcher is the dispatch engine: it resolves targets, sends through the
// tenant's messaging client and reconciles per-recipient outcomes into the
// delivery ledger before returning.
type Dispatcher struct {
	Store  Store
	Pool   ClientPool
	Events Events
	IDGen  func() string
	Now    func() time.Time
}

func NewDispatcher(st Store, pool ClientPool, events Events) *Dispatcher {
	return &Dispatcher{
		Store:  st,
		Pool:   pool,
		Events: events,
		IDGen:  util.NewNotificationID,
		Now:    util.NowUTC,
	}
}

// SendToPhone delivers one logical notification to every active device of the
// profile. Exactly one device gets a direct send; two or more are multicast.
// Zero active devices is a not-found failure and creates no record.
func (d *Dispatcher) SendToPhone(ctx context.Context, req domain.SendRequest) (domain.BulkSendResult, error) {
	devices, err := d.resolveDevices(ctx, []string{req.PhoneNumber})
	if err != nil {
		return domain.BulkSendResult{}, err
	}

	content := fcm.Content{
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		ImageURL:    req.ImageURL,
		Priority:    string(req.Priority),
		Silent:      req.Silent,
		ClickAction: req.ClickAction,
	}
	return d.deliver(ctx, req.TenantID, devices, content)
}

// SendBulk fans one notification out to the active devices of many profiles.
func (d *Dispatcher) SendBulk(ctx context.Context, req domain.BulkSendRequest) (domain.BulkSendResult, error) {
	devices, err := d.resolveDevices(ctx, req.PhoneNumbers)
	if err != nil {
		return domain.BulkSendResult{}, err
	}

	content := fcm.Content{
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		ImageURL:    req.ImageURL,
		Priority:    string(req.Priority),
		Silent:      req.Silent,
		ClickAction: req.ClickAction,
	}
	return d.deliver(ctx, req.TenantID, devices, content)
}

func (d *Dispatcher) SendToTopic(ctx context.Context, req domain.TopicSendRequest) (domain.SendResult, error) {
	content := fcm.Content{Title: req.Title, Body: req.Body, Data: req.Data, ImageURL: req.ImageURL}
	return d.sendAddressed(ctx, req.TenantID, content, func(ctx context.Context, client fcm.Sender) (string, error) {
		return fcm.SendTopic(ctx, client, req.Topic, content)
	}, "topic")
}

func (d *Dispatcher) SendToCondition(ctx context.Context, req domain.ConditionSendRequest) (domain.SendResult, error) {
	content := fcm.Content{Title: req.Title, Body: req.Body, Data: req.Data, ImageURL: req.ImageURL}
	return d.sendAddressed(ctx, req.TenantID, content, func(ctx context.Context, client fcm.Sender) (string, error) {
		return fcm.SendCondition(ctx, client, req.Condition, content)
	}, "condition")
}

// resolveDevices collects the active devices behind the given phone numbers.
// No devices at all is a resolution failure, surfaced before any record is
// created.
func (d *Dispatcher) resolveDevices(ctx context.Context, phones []string) ([]store.Device, error) {
	var devices []store.Device
	for _, phone := range phones {
		phone = util.NormalizePhone(phone)
		ds, err := d.Store.DevicesForPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		devices = append(devices, ds...)
	}
	if len(devices) == 0 {
		key := "?"
		if len(phones) > 0 {
			key = phones[0]
		}
		return nil, &domain.ResolutionError{Kind: "device", Key: key}
	}
	return devices, nil
}

// deliver creates the notification record, sends, and writes one ledger row
// per device before returning. A failure never leaves the ledger pending.
func (d *Dispatcher) deliver(ctx context.Context, tenantID string, devices []store.Device, content fcm.Content) (domain.BulkSendResult, error) {
	now := d.Now()
	id := d.IDGen()
	if err := d.Store.InsertNotification(ctx, store.NotificationInsert{
		ID:          id,
		TenantID:    tenantID,
		Title:       content.Title,
		Body:        content.Body,
		Data:        content.Data,
		ImageURL:    content.ImageURL,
		Priority:    content.Priority,
		Silent:      content.Silent,
		ClickAction: content.ClickAction,
		Status:      string(domain.NotificationPending),
		Now:         now,
	}); err != nil {
		return domain.BulkSendResult{}, err
	}

	client, err := d.Pool.Get(ctx, tenantID)
	if err != nil {
		d.recordFailure(ctx, id, devices, err)
		return domain.BulkSendResult{NotificationID: id}, err
	}

	success, failure := d.fanOut(ctx, client, id, devices, content)

	status := domain.NotificationSent
	event := domain.EventNotificationSent
	var sentAt *time.Time
	if success == 0 {
		status = domain.NotificationFailed
		event = domain.EventNotificationFailed
	} else {
		t := d.Now()
		sentAt = &t
	}
	if err := d.Store.UpdateNotificationStatus(ctx, store.NotificationStatusUpdate{
		ID: id, Status: string(status), SentAt: sentAt, Now: d.Now(),
	}); err != nil {
		slog.Error("notification status update failed", "err", err, "notification_id", id)
	}

	if d.Events != nil {
		d.Events.DispatchAsync(event, map[string]any{
			"notification_id": id,
			"success_count":   success,
			"failure_count":   failure,
		}, tenantID)
	}

	res := domain.BulkSendResult{NotificationID: id, SuccessCount: success, FailureCount: failure}
	if success == 0 {
		return res, &domain.DeliveryError{Op: "fanout", Retryable: false, Err: errAllRecipientsFailed}
	}
	return res, nil
}

// fanOut applies the selection rule: one device sends direct, more multicast.
// Every device gets exactly one ledger row, in input order.
func (d *Dispatcher) fanOut(ctx context.Context, client fcm.Sender, notificationID string, devices []store.Device, content fcm.Content) (success, failure int) {
	start := time.Now()
	if len(devices) == 1 {
		msgID, err := fcm.SendSingle(ctx, client, devices[0].PushToken, content)
		observability.FCMLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			observability.FCMSend.WithLabelValues("single", "error").Inc()
			d.writeOutcome(ctx, notificationID, devices[0].ID, fcm.Outcome{Err: err})
			return 0, 1
		}
		observability.FCMSend.WithLabelValues("single", "ok").Inc()
		d.writeOutcome(ctx, notificationID, devices[0].ID, fcm.Outcome{MessageID: msgID})
		return 1, 0
	}

	tokens := make([]string, len(devices))
	for i, dev := range devices {
		tokens[i] = dev.PushToken
	}
	res, err := fcm.SendMulticast(ctx, client, tokens, content)
	observability.FCMLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		// Batch-level failure: every recipient gets a failed row.
		observability.FCMSend.WithLabelValues("multicast", "error").Inc()
		for _, dev := range devices {
			d.writeOutcome(ctx, notificationID, dev.ID, fcm.Outcome{Err: err})
		}
		return 0, len(devices)
	}

	observability.FCMSend.WithLabelValues("multicast", "ok").Inc()
	for i, out := range res.Outcomes {
		d.writeOutcome(ctx, notificationID, devices[i].ID, out)
	}
	return res.SuccessCount, res.FailureCount
}

func (d *Dispatcher) writeOutcome(ctx context.Context, notificationID, deviceID string, out fcm.Outcome) {
	up := store.OutcomeUpsert{
		NotificationID: notificationID,
		DeviceID:       deviceID,
	}
	if out.Success() {
		t := d.Now()
		up.Status = string(domain.OutcomeSent)
		up.DeliveredAt = &t
	} else {
		up.Status = string(domain.OutcomeFailed)
		up.ErrorMessage = out.Err.Error()
	}
	if err := d.Store.UpsertOutcome(ctx, up); err != nil {
		slog.Error("outcome upsert failed", "err", err, "notification_id", notificationID, "device_id", deviceID)
	}
}

func (d *Dispatcher) recordFailure(ctx context.Context, notificationID string, devices []store.Device, cause error) {
	for _, dev := range devices {
		if err := d.Store.UpsertOutcome(ctx, store.OutcomeUpsert{
			NotificationID: notificationID,
			DeviceID:       dev.ID,
			Status:         string(domain.OutcomeFailed),
			ErrorMessage:   cause.Error(),
		}); err != nil {
			slog.Error("outcome upsert failed", "err", err, "notification_id", notificationID, "device_id", dev.ID)
		}
	}
	if err := d.Store.UpdateNotificationStatus(ctx, store.NotificationStatusUpdate{
		ID: notificationID, Status: string(domain.NotificationFailed), Now: d.Now(),
	}); err != nil {
		slog.Error("notification status update failed", "err", err, "notification_id", notificationID)
	}
}

// sendAddressed handles topic and condition sends, which have no per-device
// ledger rows.
func (d *Dispatcher) sendAddressed(ctx context.Context, tenantID string, content fcm.Content, send func(context.Context, fcm.Sender) (string, error), kind string) (domain.SendResult, error) {
	now := d.Now()
	id := d.IDGen()
	if err := d.Store.InsertNotification(ctx, store.NotificationInsert{
		ID:       id,
		TenantID: tenantID,
		Title:    content.Title,
		Body:     content.Body,
		Data:     content.Data,
		ImageURL: content.ImageURL,
		Priority: content.Priority,
		Status:   string(domain.NotificationPending),
		Now:      now,
	}); err != nil {
		return domain.SendResult{}, err
	}

	client, err := d.Pool.Get(ctx, tenantID)
	if err != nil {
		d.recordFailure(ctx, id, nil, err)
		return domain.SendResult{NotificationID: id}, err
	}

	msgID, err := send(ctx, client)
	if err != nil {
		observability.FCMSend.WithLabelValues(kind, "error").Inc()
		d.recordFailure(ctx, id, nil, err)
		if d.Events != nil {
			d.Events.DispatchAsync(domain.EventNotificationFailed, map[string]any{"notification_id": id}, tenantID)
		}
		return domain.SendResult{NotificationID: id, Status: string(domain.NotificationFailed)}, err
	}

	observability.FCMSend.WithLabelValues(kind, "ok").Inc()
	t := d.Now()
	if err := d.Store.UpdateNotificationStatus(ctx, store.NotificationStatusUpdate{
		ID: id, Status: string(domain.NotificationSent), SentAt: &t, Now: t,
	}); err != nil {
		slog.Error("notification status update failed", "err", err, "notification_id", id)
	}
	if d.Events != nil {
		d.Events.DispatchAsync(domain.EventNotificationSent, map[string]any{
			"notification_id": id,
			"message_id":      msgID,
		}, tenantID)
	}
	return domain.SendResult{NotificationID: id, MessageID: msgID, Status: string(domain.NotificationSent)}, nil
}
