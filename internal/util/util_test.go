package util

import (
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone(" +1 555 000 0001 "); got != "+15550000001" {
		t.Fatalf("got %q", got)
	}
}

func TestNewNotificationID(t *testing.T) {
	a := NewNotificationID()
	b := NewNotificationID()
	if !strings.HasPrefix(a, "ntf_") {
		t.Fatalf("missing prefix: %q", a)
	}
	if a == b {
		t.Fatalf("ids must be unique")
	}
}
