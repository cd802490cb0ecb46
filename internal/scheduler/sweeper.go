package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/observability"
	"github.com/benardelia/fcm-notification-server/internal/store"
	"github.com/benardelia/fcm-notification-server/internal/template"
	"github.com/benardelia/fcm-notification-server/internal/util"
)

// DefaultStaleAfter is how long a device may go unseen before a sweep
// deactivates its token.
const DefaultStaleAfter = 90 * 24 * time.Hour

type Store interface {
	DueSchedules(ctx context.Context, now time.Time) ([]store.ScheduledNotification, error)
	AdvanceSchedule(ctx context.Context, in store.ScheduleAdvance) error
	SetScheduleStatus(ctx context.Context, id, status string) error
	DeactivateStaleDevices(ctx context.Context, cutoff time.Time) ([]string, error)
}

type Sender interface {
	SendBulk(ctx context.Context, req domain.BulkSendRequest) (domain.BulkSendResult, error)
	SendToTopic(ctx context.Context, req domain.TopicSendRequest) (domain.SendResult, error)
	RenderNotificationTemplate(ctx context.Context, name string, vars map[string]string) (template.Rendered, error)
}

type Events interface {
	DispatchAsync(event string, data any, tenantID string)
}

// Sweeper runs the periodic maintenance passes: firing due scheduled
// notifications and retiring stale device tokens.
type Sweeper struct {
	Store      Store
	Sender     Sender
	Events     Events
	StaleAfter time.Duration
	Now        func() time.Time
}

func NewSweeper(st Store, sender Sender, events Events) *Sweeper {
	return &Sweeper{
		Store:      st,
		Sender:     sender,
		Events:     events,
		StaleAfter: DefaultStaleAfter,
		Now:        util.NowUTC,
	}
}

// ProcessScheduledNotifications fires every due schedule. A row that fails to
// send is paused and skipped; the sweep keeps going so one bad schedule never
// blocks the rest.
func (s *Sweeper) ProcessScheduledNotifications(ctx context.Context) error {
	now := s.Now()
	due, err := s.Store.DueSchedules(ctx, now)
	if err != nil {
		observability.SweepResults.WithLabelValues("schedules", "error").Inc()
		return err
	}

	for _, sn := range due {
		if err := s.fire(ctx, sn); err != nil {
			slog.Error("scheduled notification failed, pausing", "err", err, "schedule_id", sn.ID)
			observability.SweepResults.WithLabelValues("schedules", "error").Inc()
			if serr := s.Store.SetScheduleStatus(ctx, sn.ID, string(domain.SchedulePaused)); serr != nil {
				slog.Error("schedule pause failed", "err", serr, "schedule_id", sn.ID)
			}
			continue
		}
		observability.SweepResults.WithLabelValues("schedules", "ok").Inc()
		if err := s.advance(ctx, sn, now); err != nil {
			slog.Error("schedule advance failed", "err", err, "schedule_id", sn.ID)
		}
	}
	return nil
}

// fire sends one occurrence. Template content is rendered first and the row's
// own data is laid over the template defaults.
func (s *Sweeper) fire(ctx context.Context, sn store.ScheduledNotification) error {
	title, body := sn.Title, sn.Body
	data := sn.Data

	if sn.TemplateName != "" {
		rendered, err := s.Sender.RenderNotificationTemplate(ctx, sn.TemplateName, sn.Variables)
		if err != nil {
			return err
		}
		title, body = rendered.Title, rendered.Body
		merged := make(map[string]any, len(rendered.Data)+len(sn.Data))
		for k, v := range rendered.Data {
			merged[k] = v
		}
		for k, v := range sn.Data {
			merged[k] = v
		}
		data = merged
	}

	if sn.Topic != "" {
		_, err := s.Sender.SendToTopic(ctx, domain.TopicSendRequest{
			TenantID: sn.TenantID,
			Topic:    sn.Topic,
			Title:    title,
			Body:     body,
			Data:     data,
		})
		return err
	}

	_, err := s.Sender.SendBulk(ctx, domain.BulkSendRequest{
		TenantID:     sn.TenantID,
		PhoneNumbers: sn.PhoneNumbers,
		Title:        title,
		Body:         body,
		Data:         data,
	})
	return err
}

// advance moves the schedule to its next occurrence, or completes it when the
// repeat is exhausted.
func (s *Sweeper) advance(ctx context.Context, sn store.ScheduledNotification, now time.Time) error {
	occurrences := sn.OccurrenceCount + 1
	adv := store.ScheduleAdvance{
		ID:              sn.ID,
		LastSentAt:      now,
		OccurrenceCount: occurrences,
	}

	next := NextRun(domain.RepeatInterval(sn.RepeatInterval), now)
	capped := sn.MaxOccurrences > 0 && occurrences >= sn.MaxOccurrences
	if next == nil || capped {
		adv.Status = string(domain.ScheduleCompleted)
	} else {
		adv.Status = string(domain.ScheduleActive)
		adv.NextRunAt = next
	}
	return s.Store.AdvanceSchedule(ctx, adv)
}

// NextRun computes the following occurrence for a repeat interval, or nil for
// one-shot schedules.
func NextRun(interval domain.RepeatInterval, from time.Time) *time.Time {
	var d time.Duration
	switch interval {
	case domain.RepeatDaily:
		d = 24 * time.Hour
	case domain.RepeatWeekly:
		d = 7 * 24 * time.Hour
	case domain.RepeatMonthly:
		d = 30 * 24 * time.Hour
	default:
		return nil
	}
	t := from.Add(d)
	return &t
}

// CleanupStaleTokens deactivates devices unseen past the stale window and
// fires a deactivation event for each. Re-running is a no-op.
func (s *Sweeper) CleanupStaleTokens(ctx context.Context) error {
	cutoff := s.Now().Add(-s.StaleAfter)
	ids, err := s.Store.DeactivateStaleDevices(ctx, cutoff)
	if err != nil {
		observability.SweepResults.WithLabelValues("stale_tokens", "error").Inc()
		return err
	}
	observability.SweepResults.WithLabelValues("stale_tokens", "ok").Inc()
	if len(ids) == 0 {
		return nil
	}

	slog.Info("deactivated stale devices", "count", len(ids))
	if s.Events != nil {
		for _, id := range ids {
			s.Events.DispatchAsync(domain.EventDeviceDeactivated, map[string]any{"device_id": id}, "")
		}
	}
	return nil
}

// Run loops both sweeps on the given interval until the context ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.ProcessScheduledNotifications(ctx); err != nil {
			slog.Error("schedule sweep failed", "err", err)
		}
		if err := s.CleanupStaleTokens(ctx); err != nil {
			slog.Error("stale token sweep failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
