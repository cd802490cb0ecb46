package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/store"
	"github.com/benardelia/fcm-notification-server/internal/template"
)

type fakeScheduleStore struct {
	due       []store.ScheduledNotification
	advances  []store.ScheduleAdvance
	statuses  map[string]string
	staleIDs  []string
	staleErr  error
	cutoffArg time.Time
}

func (f *fakeScheduleStore) DueSchedules(ctx context.Context, now time.Time) ([]store.ScheduledNotification, error) {
	return f.due, nil
}

func (f *fakeScheduleStore) AdvanceSchedule(ctx context.Context, in store.ScheduleAdvance) error {
	f.advances = append(f.advances, in)
	return nil
}

func (f *fakeScheduleStore) SetScheduleStatus(ctx context.Context, id, status string) error {
	if f.statuses == nil {
		f.statuses = map[string]string{}
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeScheduleStore) DeactivateStaleDevices(ctx context.Context, cutoff time.Time) ([]string, error) {
	f.cutoffArg = cutoff
	return f.staleIDs, f.staleErr
}

type fakeSender struct {
	bulkReqs  []domain.BulkSendRequest
	topicReqs []domain.TopicSendRequest
	failIDs   map[string]bool
	rendered  template.Rendered
	renderErr error
}

func (f *fakeSender) SendBulk(ctx context.Context, req domain.BulkSendRequest) (domain.BulkSendResult, error) {
	f.bulkReqs = append(f.bulkReqs, req)
	if f.failIDs[req.Title] {
		return domain.BulkSendResult{}, errors.New("send failed")
	}
	return domain.BulkSendResult{SuccessCount: 1}, nil
}

func (f *fakeSender) SendToTopic(ctx context.Context, req domain.TopicSendRequest) (domain.SendResult, error) {
	f.topicReqs = append(f.topicReqs, req)
	return domain.SendResult{Status: "sent"}, nil
}

func (f *fakeSender) RenderNotificationTemplate(ctx context.Context, name string, vars map[string]string) (template.Rendered, error) {
	if f.renderErr != nil {
		return template.Rendered{}, f.renderErr
	}
	return f.rendered, nil
}

type fakeSweepEvents struct{ fired []string }

func (f *fakeSweepEvents) DispatchAsync(event string, data any, tenantID string) {
	f.fired = append(f.fired, event)
}

var sweepNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestSweeper(st *fakeScheduleStore, sender *fakeSender) (*Sweeper, *fakeSweepEvents) {
	events := &fakeSweepEvents{}
	s := NewSweeper(st, sender, events)
	s.Now = func() time.Time { return sweepNow }
	return s, events
}

func schedule(id, interval string) store.ScheduledNotification {
	runAt := sweepNow.Add(-time.Minute)
	return store.ScheduledNotification{
		ID:             id,
		Title:          "t-" + id,
		Body:           "b",
		PhoneNumbers:   []string{"+15550000001"},
		RepeatInterval: interval,
		Status:         "active",
		NextRunAt:      &runAt,
	}
}

func TestDailyScheduleAdvances(t *testing.T) {
	st := &fakeScheduleStore{due: []store.ScheduledNotification{schedule("s1", "daily")}}
	sender := &fakeSender{}
	s, _ := newTestSweeper(st, sender)

	if err := s.ProcessScheduledNotifications(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(sender.bulkReqs) != 1 {
		t.Fatalf("expected one send, got %d", len(sender.bulkReqs))
	}
	if len(st.advances) != 1 {
		t.Fatalf("advances: %+v", st.advances)
	}
	adv := st.advances[0]
	if adv.Status != "active" || adv.OccurrenceCount != 1 {
		t.Fatalf("advance: %+v", adv)
	}
	want := sweepNow.Add(24 * time.Hour)
	if adv.NextRunAt == nil || !adv.NextRunAt.Equal(want) {
		t.Fatalf("next run: %v, want %v", adv.NextRunAt, want)
	}
}

func TestOneShotScheduleCompletes(t *testing.T) {
	st := &fakeScheduleStore{due: []store.ScheduledNotification{schedule("s1", "none")}}
	s, _ := newTestSweeper(st, &fakeSender{})

	if err := s.ProcessScheduledNotifications(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	adv := st.advances[0]
	if adv.Status != "completed" {
		t.Fatalf("one-shot must complete: %+v", adv)
	}
	if adv.NextRunAt != nil {
		t.Fatalf("completed schedule must clear next_run_at: %v", adv.NextRunAt)
	}
}

func TestMaxOccurrencesCompletes(t *testing.T) {
	sn := schedule("s1", "daily")
	sn.OccurrenceCount = 4
	sn.MaxOccurrences = 5
	st := &fakeScheduleStore{due: []store.ScheduledNotification{sn}}
	s, _ := newTestSweeper(st, &fakeSender{})

	if err := s.ProcessScheduledNotifications(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	adv := st.advances[0]
	if adv.Status != "completed" || adv.OccurrenceCount != 5 {
		t.Fatalf("occurrence cap must complete the schedule: %+v", adv)
	}
}

func TestFailedSchedulePausedOthersContinue(t *testing.T) {
	st := &fakeScheduleStore{due: []store.ScheduledNotification{
		schedule("bad", "daily"),
		schedule("good", "daily"),
	}}
	sender := &fakeSender{failIDs: map[string]bool{"t-bad": true}}
	s, _ := newTestSweeper(st, sender)

	if err := s.ProcessScheduledNotifications(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if st.statuses["bad"] != "paused" {
		t.Fatalf("failed schedule must pause: %v", st.statuses)
	}
	if len(st.advances) != 1 || st.advances[0].ID != "good" {
		t.Fatalf("healthy schedule must still advance: %+v", st.advances)
	}
}

func TestScheduleWithTemplate(t *testing.T) {
	sn := schedule("s1", "none")
	sn.TemplateName = "order_shipped"
	sn.Data = map[string]any{"own": "1"}
	st := &fakeScheduleStore{due: []store.ScheduledNotification{sn}}
	sender := &fakeSender{rendered: template.Rendered{
		Title: "Rendered title",
		Body:  "Rendered body",
		Data:  map[string]any{"deeplink": "app://x"},
	}}
	s, _ := newTestSweeper(st, sender)

	if err := s.ProcessScheduledNotifications(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	req := sender.bulkReqs[0]
	if req.Title != "Rendered title" {
		t.Fatalf("title: %q", req.Title)
	}
	if req.Data["deeplink"] != "app://x" || req.Data["own"] != "1" {
		t.Fatalf("row data must overlay template data: %v", req.Data)
	}
}

func TestScheduleTopicSend(t *testing.T) {
	sn := schedule("s1", "weekly")
	sn.Topic = "news"
	sn.PhoneNumbers = nil
	st := &fakeScheduleStore{due: []store.ScheduledNotification{sn}}
	sender := &fakeSender{}
	s, _ := newTestSweeper(st, sender)

	if err := s.ProcessScheduledNotifications(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(sender.topicReqs) != 1 || len(sender.bulkReqs) != 0 {
		t.Fatalf("topic schedule must use the topic path")
	}
	adv := st.advances[0]
	want := sweepNow.Add(7 * 24 * time.Hour)
	if adv.NextRunAt == nil || !adv.NextRunAt.Equal(want) {
		t.Fatalf("weekly next run: %v", adv.NextRunAt)
	}
}

func TestCleanupStaleTokens(t *testing.T) {
	st := &fakeScheduleStore{staleIDs: []string{"d1", "d2"}}
	s, events := newTestSweeper(st, &fakeSender{})

	if err := s.CleanupStaleTokens(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	wantCutoff := sweepNow.Add(-DefaultStaleAfter)
	if !st.cutoffArg.Equal(wantCutoff) {
		t.Fatalf("cutoff: %v, want %v", st.cutoffArg, wantCutoff)
	}
	if len(events.fired) != 2 {
		t.Fatalf("one event per deactivated device: %v", events.fired)
	}
	for _, e := range events.fired {
		if e != domain.EventDeviceDeactivated {
			t.Fatalf("event: %q", e)
		}
	}
}

func TestCleanupStaleTokensNothingToDo(t *testing.T) {
	st := &fakeScheduleStore{}
	s, events := newTestSweeper(st, &fakeSender{})

	if err := s.CleanupStaleTokens(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(events.fired) != 0 {
		t.Fatalf("no devices means no events: %v", events.fired)
	}
}
