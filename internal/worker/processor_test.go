package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"

	"github.com/benardelia/fcm-notification-server/internal/fcm"
	sqsqueue "github.com/benardelia/fcm-notification-server/internal/queue/sqs"
	"github.com/benardelia/fcm-notification-server/internal/store"
)

type fakeStore struct {
	notif    store.Notification
	found    bool
	devices  map[string][]store.Device
	statuses []store.NotificationStatusUpdate
	outcomes []store.OutcomeUpsert
}

func (f *fakeStore) GetNotification(ctx context.Context, id string) (store.Notification, bool, error) {
	return f.notif, f.found, nil
}

func (f *fakeStore) DevicesForPhone(ctx context.Context, phone string) ([]store.Device, error) {
	return f.devices[phone], nil
}

func (f *fakeStore) UpdateNotificationStatus(ctx context.Context, in store.NotificationStatusUpdate) error {
	f.statuses = append(f.statuses, in)
	return nil
}

func (f *fakeStore) UpsertOutcome(ctx context.Context, in store.OutcomeUpsert) error {
	f.outcomes = append(f.outcomes, in)
	return nil
}

type fakeClient struct {
	sendErr error
}

func (f *fakeClient) Send(ctx context.Context, m *messaging.Message) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "mid-1", nil
}

func (f *fakeClient) SendEachForMulticast(ctx context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	resp := &messaging.BatchResponse{}
	for range m.Tokens {
		if f.sendErr != nil {
			resp.FailureCount++
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: f.sendErr})
			continue
		}
		resp.SuccessCount++
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "mid"})
	}
	return resp, nil
}

func (f *fakeClient) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error) {
	return &messaging.TopicManagementResponse{}, nil
}

func (f *fakeClient) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error) {
	return &messaging.TopicManagementResponse{}, nil
}

type fakePool struct{ client fcm.Sender }

func (f *fakePool) Get(ctx context.Context, tenantID string) (fcm.Sender, error) {
	return f.client, nil
}

type fakeQueue struct {
	jobs   []sqsqueue.PushJob
	delays []time.Duration
}

func (f *fakeQueue) Enqueue(ctx context.Context, job sqsqueue.PushJob, delay time.Duration) error {
	f.jobs = append(f.jobs, job)
	f.delays = append(f.delays, delay)
	return nil
}

type fakeEvents struct{ fired []string }

func (f *fakeEvents) DispatchAsync(event string, data any, tenantID string) {
	f.fired = append(f.fired, event)
}

func newTestProcessor(st *fakeStore, client *fakeClient) (*Processor, *fakeQueue, *fakeEvents) {
	q := &fakeQueue{}
	ev := &fakeEvents{}
	p := &Processor{
		Store:  st,
		Pool:   &fakePool{client: client},
		Events: ev,
		Queue:  q,
		Now:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return p, q, ev
}

func pendingStore() *fakeStore {
	return &fakeStore{
		notif: store.Notification{ID: "ntf_1", Status: "pending", Title: "t", Body: "b"},
		found: true,
		devices: map[string][]store.Device{
			"+15550000001": {{ID: "d1", PushToken: "tok1", IsActive: true}},
		},
	}
}

func job(attempt int) sqsqueue.PushJob {
	return sqsqueue.PushJob{
		NotificationID: "ntf_1",
		PhoneNumbers:   []string{"+15550000001"},
		Attempt:        attempt,
	}
}

func TestProcessSuccess(t *testing.T) {
	st := pendingStore()
	p, q, ev := newTestProcessor(st, &fakeClient{})

	if err := p.Process(context.Background(), job(0)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("success must not re-enqueue")
	}
	if len(st.statuses) != 1 || st.statuses[0].Status != "sent" {
		t.Fatalf("statuses: %+v", st.statuses)
	}
	if len(st.outcomes) != 1 || st.outcomes[0].Status != "sent" {
		t.Fatalf("outcomes: %+v", st.outcomes)
	}
	if len(ev.fired) != 1 || ev.fired[0] != "notification.sent" {
		t.Fatalf("events: %v", ev.fired)
	}
}

func TestProcessRetryableFailureReenqueues(t *testing.T) {
	st := pendingStore()
	// Deadline errors classify as transient.
	p, q, _ := newTestProcessor(st, &fakeClient{sendErr: context.DeadlineExceeded})

	if err := p.Process(context.Background(), job(1)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("expected re-enqueue, got %d jobs", len(q.jobs))
	}
	if q.jobs[0].Attempt != 2 {
		t.Fatalf("attempt: %d", q.jobs[0].Attempt)
	}
	if q.delays[0] != fcm.Backoff(1) {
		t.Fatalf("delay: %v, want %v", q.delays[0], fcm.Backoff(1))
	}
	if len(st.statuses) != 1 || st.statuses[0].Status != "pending" || st.statuses[0].RetryCount != 2 {
		t.Fatalf("retry must keep the record pending: %+v", st.statuses)
	}
	if len(st.outcomes) != 1 || st.outcomes[0].Status != "failed" {
		t.Fatalf("every attempt writes the ledger row: %+v", st.outcomes)
	}
}

func TestProcessExhaustionTerminal(t *testing.T) {
	st := pendingStore()
	p, q, ev := newTestProcessor(st, &fakeClient{sendErr: context.DeadlineExceeded})

	// Attempt index 4 is the fifth and final try.
	if err := p.Process(context.Background(), job(4)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("exhausted job must not re-enqueue")
	}
	if len(st.statuses) != 1 || st.statuses[0].Status != "failed" || st.statuses[0].RetryCount != 5 {
		t.Fatalf("statuses: %+v", st.statuses)
	}
	if len(ev.fired) != 1 || ev.fired[0] != "notification.failed" {
		t.Fatalf("events: %v", ev.fired)
	}
}

func TestProcessNonRetryableFailureTerminal(t *testing.T) {
	st := pendingStore()
	p, q, _ := newTestProcessor(st, &fakeClient{sendErr: errors.New("invalid registration token")})

	if err := p.Process(context.Background(), job(0)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("non-retryable failure must not re-enqueue")
	}
	if len(st.statuses) != 1 || st.statuses[0].Status != "failed" {
		t.Fatalf("statuses: %+v", st.statuses)
	}
}

func TestProcessTerminalRecordSkipped(t *testing.T) {
	st := pendingStore()
	st.notif.Status = "sent"
	p, q, _ := newTestProcessor(st, &fakeClient{})

	if err := p.Process(context.Background(), job(0)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(st.statuses) != 0 || len(st.outcomes) != 0 || len(q.jobs) != 0 {
		t.Fatalf("terminal record must be a no-op")
	}
}

func TestProcessUnknownNotificationDropped(t *testing.T) {
	st := &fakeStore{found: false}
	p, _, _ := newTestProcessor(st, &fakeClient{})

	if err := p.Process(context.Background(), job(0)); err != nil {
		t.Fatalf("unknown notification must be dropped, got %v", err)
	}
}

func TestProcessTopicJob(t *testing.T) {
	st := &fakeStore{
		notif: store.Notification{ID: "ntf_1", Status: "pending", Title: "t", Body: "b"},
		found: true,
	}
	p, q, ev := newTestProcessor(st, &fakeClient{})

	err := p.Process(context.Background(), sqsqueue.PushJob{
		NotificationID: "ntf_1",
		Topic:          "news",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("success must not re-enqueue")
	}
	if len(st.statuses) != 1 || st.statuses[0].Status != "sent" {
		t.Fatalf("statuses: %+v", st.statuses)
	}
	if len(st.outcomes) != 0 {
		t.Fatalf("topic sends have no per-device rows: %+v", st.outcomes)
	}
	if len(ev.fired) != 1 || ev.fired[0] != "notification.sent" {
		t.Fatalf("events: %v", ev.fired)
	}
}

func TestProcessConditionJobRetryable(t *testing.T) {
	st := &fakeStore{
		notif: store.Notification{ID: "ntf_1", Status: "pending", Title: "t", Body: "b"},
		found: true,
	}
	p, q, _ := newTestProcessor(st, &fakeClient{sendErr: context.DeadlineExceeded})

	err := p.Process(context.Background(), sqsqueue.PushJob{
		NotificationID: "ntf_1",
		Condition:      "'a' in topics",
		Attempt:        1,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(q.jobs) != 1 || q.jobs[0].Condition != "'a' in topics" || q.jobs[0].Attempt != 2 {
		t.Fatalf("re-enqueued job must carry the condition: %+v", q.jobs)
	}
	if len(st.statuses) != 1 || st.statuses[0].Status != "pending" {
		t.Fatalf("statuses: %+v", st.statuses)
	}
}

func TestProcessNoDevicesTerminal(t *testing.T) {
	st := pendingStore()
	st.devices = nil
	p, q, _ := newTestProcessor(st, &fakeClient{})

	if err := p.Process(context.Background(), job(0)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("no devices is not recoverable by retrying")
	}
	if len(st.statuses) != 1 || st.statuses[0].Status != "failed" {
		t.Fatalf("statuses: %+v", st.statuses)
	}
}
