package fcm

import (
	"fmt"
	"time"

	"firebase.google.com/go/v4/messaging"
)

// Content is the provider-agnostic payload of one logical notification.
type Content struct {
	Title       string
	Body        string
	Data        map[string]any
	ImageURL    string
	Priority    string // "high" or "normal"
	Silent      bool
	ClickAction string
}

const (
	androidIcon  = "ic_launcher"
	androidColor = "#f45342"
	messageTTL   = time.Hour
)

// dataPayload coerces every data value to its string form (FCM requirement)
// and folds the click action in, so it survives silent delivery.
func (c Content) dataPayload() map[string]string {
	out := make(map[string]string, len(c.Data)+1)
	for k, v := range c.Data {
		switch s := v.(type) {
		case string:
			out[k] = s
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	if c.ClickAction != "" {
		out["click_action"] = c.ClickAction
	}
	return out
}

func (c Content) priority() string {
	if c.Priority == "normal" {
		return "normal"
	}
	return "high"
}

// BuildMessage assembles the platform configs for a single-target message.
// The caller sets exactly one of Token, Topic or Condition.
// Silent sends carry no visible notification, only the data payload plus the
// platform flags for background delivery.
func BuildMessage(c Content) *messaging.Message {
	msg := &messaging.Message{
		Data:    c.dataPayload(),
		Android: c.androidConfig(),
		APNS:    c.apnsConfig(),
	}
	if !c.Silent {
		msg.Notification = c.notification()
		msg.Webpush = &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: c.Title,
				Body:  c.Body,
				Icon:  c.ImageURL,
			},
		}
	}
	return msg
}

func BuildMulticastMessage(c Content, tokens []string) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens:  tokens,
		Data:    c.dataPayload(),
		Android: c.androidConfig(),
		APNS:    c.apnsConfig(),
	}
	if !c.Silent {
		msg.Notification = c.notification()
	}
	return msg
}

func (c Content) notification() *messaging.Notification {
	return &messaging.Notification{
		Title:    c.Title,
		Body:     c.Body,
		ImageURL: c.ImageURL,
	}
}

func (c Content) androidConfig() *messaging.AndroidConfig {
	ttl := messageTTL
	cfg := &messaging.AndroidConfig{
		TTL:      &ttl,
		Priority: c.priority(),
	}
	if !c.Silent {
		cfg.Notification = &messaging.AndroidNotification{
			Icon:  androidIcon,
			Color: androidColor,
		}
	}
	return cfg
}

func (c Content) apnsConfig() *messaging.APNSConfig {
	if c.Silent {
		return &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "5",
				"apns-push-type": "background",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{ContentAvailable: true},
			},
		}
	}

	priority := "10"
	if c.priority() == "normal" {
		priority = "5"
	}
	badge := 1
	return &messaging.APNSConfig{
		Headers: map[string]string{"apns-priority": priority},
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{Badge: &badge},
		},
	}
}
