package service

import (
	"context"
	"testing"
	"time"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	sqsqueue "github.com/benardelia/fcm-notification-server/internal/queue/sqs"
)

type fakeQueue struct {
	jobs   []sqsqueue.PushJob
	delays []time.Duration
	err    error
}

func (f *fakeQueue) Enqueue(ctx context.Context, job sqsqueue.PushJob, delay time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	f.delays = append(f.delays, delay)
	return nil
}

func newTestAsyncDispatcher(st *fakeStore) (*AsyncDispatcher, *fakeQueue) {
	d, _ := newTestDispatcher(st, &fakeClient{})
	q := &fakeQueue{}
	return &AsyncDispatcher{Dispatcher: d, Queue: q}, q
}

func TestSendToPhoneAsyncEnqueues(t *testing.T) {
	st := &fakeStore{}
	a, q := newTestAsyncDispatcher(st)

	res, err := a.SendToPhoneAsync(context.Background(), domain.SendRequest{
		PhoneNumber: "+15550000001", Title: "t", Body: "b",
	})
	if err != nil {
		t.Fatalf("send async: %v", err)
	}
	if res.Status != "pending" {
		t.Fatalf("result: %+v", res)
	}
	if len(st.inserted) != 1 || st.inserted[0].Status != "pending" {
		t.Fatalf("inserted: %+v", st.inserted)
	}
	if len(q.jobs) != 1 || q.jobs[0].NotificationID != res.NotificationID {
		t.Fatalf("jobs: %+v", q.jobs)
	}
	if got := q.jobs[0].PhoneNumbers; len(got) != 1 || got[0] != "+15550000001" {
		t.Fatalf("phones: %v", got)
	}
}

func TestSendToTopicAsyncEnqueues(t *testing.T) {
	st := &fakeStore{}
	a, q := newTestAsyncDispatcher(st)

	res, err := a.SendToTopicAsync(context.Background(), domain.TopicSendRequest{
		Topic: "news", Title: "t", Body: "b",
	})
	if err != nil {
		t.Fatalf("topic async: %v", err)
	}
	if len(st.inserted) != 1 || st.inserted[0].Status != "pending" {
		t.Fatalf("inserted: %+v", st.inserted)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("jobs: %+v", q.jobs)
	}
	job := q.jobs[0]
	if job.Topic != "news" || job.NotificationID != res.NotificationID {
		t.Fatalf("job: %+v", job)
	}
	if len(job.PhoneNumbers) != 0 || job.Condition != "" {
		t.Fatalf("topic job must carry only the topic: %+v", job)
	}
}

func TestSendToConditionAsyncEnqueues(t *testing.T) {
	st := &fakeStore{}
	a, q := newTestAsyncDispatcher(st)

	res, err := a.SendToConditionAsync(context.Background(), domain.ConditionSendRequest{
		Condition: "'a' in topics && 'b' in topics", Title: "t", Body: "b",
	})
	if err != nil {
		t.Fatalf("condition async: %v", err)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("jobs: %+v", q.jobs)
	}
	job := q.jobs[0]
	if job.Condition != "'a' in topics && 'b' in topics" || job.NotificationID != res.NotificationID {
		t.Fatalf("job: %+v", job)
	}
	if job.Topic != "" || len(job.PhoneNumbers) != 0 {
		t.Fatalf("condition job must carry only the condition: %+v", job)
	}
}
