package fcm

import "testing"

func TestBuildMessageVisible(t *testing.T) {
	msg := BuildMessage(Content{
		Title:    "Hello",
		Body:     "World",
		ImageURL: "https://img.example/x.png",
		Priority: "high",
	})

	if msg.Notification == nil || msg.Notification.Title != "Hello" {
		t.Fatalf("expected visible notification, got %+v", msg.Notification)
	}
	if msg.Android == nil || msg.Android.Priority != "high" {
		t.Fatalf("android priority: %+v", msg.Android)
	}
	if msg.Android.Notification.Icon != androidIcon || msg.Android.Notification.Color != androidColor {
		t.Fatalf("android notification defaults: %+v", msg.Android.Notification)
	}
	if msg.APNS.Headers["apns-priority"] != "10" {
		t.Fatalf("apns priority: %v", msg.APNS.Headers)
	}
	if msg.Webpush == nil {
		t.Fatalf("expected webpush config for visible send")
	}
}

func TestBuildMessageSilent(t *testing.T) {
	msg := BuildMessage(Content{
		Data:   map[string]any{"kind": "sync"},
		Silent: true,
	})

	if msg.Notification != nil {
		t.Fatalf("silent send must omit notification, got %+v", msg.Notification)
	}
	if msg.Webpush != nil {
		t.Fatalf("silent send must omit webpush")
	}
	if msg.Android.Notification != nil {
		t.Fatalf("silent send must omit android notification")
	}
	if msg.APNS.Headers["apns-priority"] != "5" || msg.APNS.Headers["apns-push-type"] != "background" {
		t.Fatalf("apns background headers: %v", msg.APNS.Headers)
	}
	if !msg.APNS.Payload.Aps.ContentAvailable {
		t.Fatalf("expected content-available for silent send")
	}
	if msg.Data["kind"] != "sync" {
		t.Fatalf("data payload lost: %v", msg.Data)
	}
}

func TestDataPayloadCoercion(t *testing.T) {
	c := Content{
		Data: map[string]any{
			"s": "str",
			"i": 42,
			"b": true,
		},
		ClickAction: "OPEN_ORDERS",
	}
	data := c.dataPayload()

	if data["s"] != "str" || data["i"] != "42" || data["b"] != "true" {
		t.Fatalf("coercion: %v", data)
	}
	if data["click_action"] != "OPEN_ORDERS" {
		t.Fatalf("click_action must ride in data: %v", data)
	}
}

func TestBuildMulticastMessage(t *testing.T) {
	tokens := []string{"tok-a", "tok-b"}
	msg := BuildMulticastMessage(Content{Title: "t", Body: "b", Priority: "normal"}, tokens)

	if len(msg.Tokens) != 2 {
		t.Fatalf("tokens: %v", msg.Tokens)
	}
	if msg.Android.Priority != "normal" {
		t.Fatalf("android priority: %q", msg.Android.Priority)
	}
	if msg.APNS.Headers["apns-priority"] != "5" {
		t.Fatalf("normal priority must map to apns 5: %v", msg.APNS.Headers)
	}
}
