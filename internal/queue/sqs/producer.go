package sqsqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// PushJob is one async send task. Content lives on the notification record;
// the worker resolves targets at processing time.
type PushJob struct {
	NotificationID string   `json:"notificationId"`
	TenantID       string   `json:"tenantId,omitempty"`
	PhoneNumbers   []string `json:"phoneNumbers,omitempty"`
	Topic          string   `json:"topic,omitempty"`
	Condition      string   `json:"condition,omitempty"`
	Attempt        int      `json:"attempt"`
}

type Producer struct {
	SQS      *sqs.Client
	QueueURL string
}

// Enqueue submits the job, optionally delayed. SQS caps DelaySeconds at 15
// minutes, which bounds the retry backoff.
func (p *Producer) Enqueue(ctx context.Context, job PushJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	}
	if delay > 0 {
		in.DelaySeconds = delaySeconds(delay)
	}
	_, err = p.SQS.SendMessage(ctx, in)
	return err
}

func delaySeconds(d time.Duration) int32 {
	s := int32(d / time.Second)
	if s > 900 {
		s = 900
	}
	if s < 0 {
		s = 0
	}
	return s
}

func str(s string) *string { return &s }
