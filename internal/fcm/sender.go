package fcm

import (
	"context"
	"time"

	"firebase.google.com/go/v4/messaging"

	"github.com/benardelia/fcm-notification-server/internal/domain"
)

const sendTimeout = 10 * time.Second

// Outcome is the per-recipient result of a fan-out send, built immediately
// from the provider response.
type Outcome struct {
	Token     string
	MessageID string
	Err       error
}

func (o Outcome) Success() bool { return o.Err == nil }

type MulticastResult struct {
	SuccessCount int
	FailureCount int
	Outcomes     []Outcome // same order as the input tokens
}

// SendSingle delivers to one device token and returns the provider message id.
func SendSingle(ctx context.Context, client Sender, token string, c Content) (string, error) {
	msg := BuildMessage(c)
	msg.Token = token
	return send(ctx, client, msg, "single")
}

// SendMulticast delivers to a batch of tokens in one provider call. A partial
// failure never aborts the batch; every token gets an outcome.
func SendMulticast(ctx context.Context, client Sender, tokens []string, c Content) (MulticastResult, error) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := client.SendEachForMulticast(sendCtx, BuildMulticastMessage(c, tokens))
	if err != nil {
		return MulticastResult{}, &domain.DeliveryError{Op: "multicast", Retryable: Retryable(err), Err: err}
	}

	res := MulticastResult{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
		Outcomes:     make([]Outcome, len(tokens)),
	}
	for i, r := range resp.Responses {
		res.Outcomes[i] = Outcome{Token: tokens[i], MessageID: r.MessageID, Err: r.Error}
	}
	return res, nil
}

func SendTopic(ctx context.Context, client Sender, topic string, c Content) (string, error) {
	msg := BuildMessage(c)
	msg.Topic = topic
	return send(ctx, client, msg, "topic")
}

func SendCondition(ctx context.Context, client Sender, condition string, c Content) (string, error) {
	msg := BuildMessage(c)
	msg.Condition = condition
	return send(ctx, client, msg, "condition")
}

func send(ctx context.Context, client Sender, msg *messaging.Message, op string) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	id, err := client.Send(sendCtx, msg)
	if err != nil {
		return "", &domain.DeliveryError{Op: op, Retryable: Retryable(err), Err: err}
	}
	return id, nil
}

// TopicResult normalizes FCM topic management responses.
type TopicResult struct {
	SuccessCount int
	FailureCount int
}

func SubscribeToTopic(ctx context.Context, client Sender, tokens []string, topic string) (TopicResult, error) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := client.SubscribeToTopic(sendCtx, tokens, topic)
	if err != nil {
		return TopicResult{}, &domain.DeliveryError{Op: "subscribe", Retryable: Retryable(err), Err: err}
	}
	return TopicResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}, nil
}

func UnsubscribeFromTopic(ctx context.Context, client Sender, tokens []string, topic string) (TopicResult, error) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := client.UnsubscribeFromTopic(sendCtx, tokens, topic)
	if err != nil {
		return TopicResult{}, &domain.DeliveryError{Op: "unsubscribe", Retryable: Retryable(err), Err: err}
	}
	return TopicResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}, nil
}
