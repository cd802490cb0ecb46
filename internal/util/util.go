package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

func NormalizePhone(p string) string {
	return strings.ReplaceAll(strings.TrimSpace(p), " ", "")
}

// NewNotificationID returns a sortable ULID-based id.
func NewNotificationID() string {
	t := time.Now().UTC()
	return "ntf_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// NewDeviceID returns a sortable ULID-based device id.
func NewDeviceID() string {
	t := time.Now().UTC()
	return "dev_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// NewProfileID returns a sortable ULID-based profile id.
func NewProfileID() string {
	t := time.Now().UTC()
	return "prf_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
