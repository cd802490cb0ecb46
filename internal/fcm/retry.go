package fcm

import (
	"context"
	"errors"
	"net"
	"time"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
)

// Retryable reports whether a provider error is transient. Unregistered or
// malformed tokens never recover; backend unavailability and quota pressure do.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err) {
		return false
	}
	if messaging.IsQuotaExceeded(err) {
		return true
	}
	if errorutils.IsUnavailable(err) || errorutils.IsInternal(err) || errorutils.IsResourceExhausted(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

const backoffBase = time.Minute

// Backoff returns the delay before the next attempt: base * 2^attempt,
// capped to fit the SQS 15-minute delay limit.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := backoffBase << uint(attempt)
	if d > 15*time.Minute {
		d = 15 * time.Minute
	}
	return d
}
