package domain

import (
	"errors"
	"fmt"
)

var ErrMissingFields = errors.New("missing required fields")

// ConfigurationError means the tenant credential setup is missing or broken.
// Fatal for the request; never retried.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Msg, e.Err)
	}
	return "configuration: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResolutionError means the referenced profile, device or template does not
// exist. Surfaced as not-found; never retried.
type ResolutionError struct {
	Kind string // "profile", "device", "template", "schedule"
	Key  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// DeliveryError wraps a provider rejection or transport failure for a send.
// Retryable failures are retried by the async pipeline up to the attempt cap.
type DeliveryError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery %s failed: %v", e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// WebhookDeliveryError is a transport failure or non-2xx response from a
// webhook endpoint. Counted toward the auto-disable threshold.
type WebhookDeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *WebhookDeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook delivery to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("webhook delivery to %s failed: status %d", e.URL, e.StatusCode)
}

func (e *WebhookDeliveryError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a DeliveryError the async pipeline
// should re-enqueue.
func IsRetryable(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Retryable
}
