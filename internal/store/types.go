package store

import "time"

type TenantCredential struct {
	TenantID        string
	CredentialsJSON []byte
	IsDefault       bool
	IsActive        bool
	CreatedAt       time.Time
}

type Device struct {
	ID          string
	ProfileID   string
	PhoneNumber string
	DeviceType  string
	PushToken   string
	AppVersion  string
	LastSeen    time.Time
	IsActive    bool
}

type Notification struct {
	ID          string
	TenantID    string
	Title       string
	Body        string
	Data        map[string]any
	ImageURL    string
	Priority    string
	Silent      bool
	ClickAction string
	Status      string
	RetryCount  int
	CreatedAt   time.Time
	ScheduledAt *time.Time
	SentAt      *time.Time
}

// DeviceRegistration upserts a device by push token. ProfileID and DeviceID
// are used only when the rows don't exist yet.
type DeviceRegistration struct {
	ProfileID   string
	DeviceID    string
	PhoneNumber string
	DeviceType  string
	PushToken   string
	AppVersion  string
	Now         time.Time
}

type NotificationInsert struct {
	ID          string
	TenantID    string
	Title       string
	Body        string
	Data        map[string]any
	ImageURL    string
	Priority    string
	Silent      bool
	ClickAction string
	Status      string
	Now         time.Time
}

type NotificationStatusUpdate struct {
	ID         string
	Status     string
	RetryCount int
	SentAt     *time.Time
	Now        time.Time
}

type DeliveryOutcome struct {
	NotificationID string
	DeviceID       string
	Status         string
	DeliveredAt    *time.Time
	ReadAt         *time.Time
	ErrorMessage   string
}

// OutcomeUpsert writes one ledger row keyed by (notification, device).
// A retry overwrites the prior row for the same pair.
type OutcomeUpsert struct {
	NotificationID string
	DeviceID       string
	Status         string
	DeliveredAt    *time.Time
	ErrorMessage   string
}

type OutcomeFilter struct {
	NotificationID string
	DeviceID       string
	Status         string
}

type Template struct {
	Name              string
	TitleTemplate     string
	BodyTemplate      string
	DefaultData       map[string]any
	PlatformOverrides map[string]any
	IsActive          bool
}

type ScheduledNotification struct {
	ID              string
	TenantID        string
	Title           string
	Body            string
	Data            map[string]any
	TemplateName    string
	Variables       map[string]string
	Topic           string
	PhoneNumbers    []string
	RepeatInterval  string
	Status          string
	NextRunAt       *time.Time
	LastSentAt      *time.Time
	OccurrenceCount int
	MaxOccurrences  int
}

type ScheduleAdvance struct {
	ID              string
	Status          string
	NextRunAt       *time.Time // nil clears it (completed)
	LastSentAt      time.Time
	OccurrenceCount int
}

type WebhookSubscription struct {
	ID              int64
	TenantID        string
	URL             string
	Events          []string
	Secret          string
	IsActive        bool
	FailureCount    int
	LastTriggeredAt *time.Time
}

// WebhookDeliveryResult reports one delivery attempt. The store owns the
// failure counter: success resets it, failure increments it atomically and
// disables the subscription once the count reaches Threshold.
type WebhookDeliveryResult struct {
	ID        int64
	Success   bool
	Threshold int
	Now       time.Time
}

// WebhookSubscriptionState is the counter state after a delivery update.
type WebhookSubscriptionState struct {
	FailureCount int
	IsActive     bool
}
