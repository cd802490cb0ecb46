package domain

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

type OutcomeStatus string

const (
	OutcomePending OutcomeStatus = "pending"
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeRead    OutcomeStatus = "read"
)

type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleActive    ScheduleStatus = "active"
	ScheduleCompleted ScheduleStatus = "completed"
	SchedulePaused    ScheduleStatus = "paused"
)

type RepeatInterval string

const (
	RepeatNone    RepeatInterval = "none"
	RepeatDaily   RepeatInterval = "daily"
	RepeatWeekly  RepeatInterval = "weekly"
	RepeatMonthly RepeatInterval = "monthly"
)

// Webhook event types.
const (
	EventNotificationSent      = "notification.sent"
	EventNotificationDelivered = "notification.delivered"
	EventNotificationRead      = "notification.read"
	EventNotificationFailed    = "notification.failed"
	EventDeviceRegistered      = "device.registered"
	EventDeviceDeactivated     = "device.deactivated"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

type SendRequest struct {
	TenantID    string         `json:"tenantId,omitempty"`
	PhoneNumber string         `json:"phoneNumber"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data,omitempty"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	Priority    Priority       `json:"priority,omitempty"`
	Silent      bool           `json:"silent,omitempty"`
	ClickAction string         `json:"clickAction,omitempty"`
}

func (r SendRequest) Validate() error {
	if r.PhoneNumber == "" || (!r.Silent && (r.Title == "" || r.Body == "")) {
		return ErrMissingFields
	}
	return nil
}

type BulkSendRequest struct {
	TenantID     string         `json:"tenantId,omitempty"`
	PhoneNumbers []string       `json:"phoneNumbers"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Data         map[string]any `json:"data,omitempty"`
	ImageURL     string         `json:"imageUrl,omitempty"`
	Priority     Priority       `json:"priority,omitempty"`
	Silent       bool           `json:"silent,omitempty"`
	ClickAction  string         `json:"clickAction,omitempty"`
}

func (r BulkSendRequest) Validate() error {
	if len(r.PhoneNumbers) == 0 || (!r.Silent && (r.Title == "" || r.Body == "")) {
		return ErrMissingFields
	}
	return nil
}

type TopicSendRequest struct {
	TenantID string         `json:"tenantId,omitempty"`
	Topic    string         `json:"topic"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	ImageURL string         `json:"imageUrl,omitempty"`
}

func (r TopicSendRequest) Validate() error {
	if r.Topic == "" || r.Title == "" || r.Body == "" {
		return ErrMissingFields
	}
	return nil
}

type ConditionSendRequest struct {
	TenantID  string         `json:"tenantId,omitempty"`
	Condition string         `json:"condition"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	ImageURL  string         `json:"imageUrl,omitempty"`
}

func (r ConditionSendRequest) Validate() error {
	if r.Condition == "" || r.Title == "" || r.Body == "" {
		return ErrMissingFields
	}
	return nil
}

type TemplateSendRequest struct {
	TenantID     string            `json:"tenantId,omitempty"`
	TemplateName string            `json:"templateName"`
	Variables    map[string]string `json:"variables,omitempty"`
	PhoneNumber  string            `json:"phoneNumber"`
	Data         map[string]any    `json:"data,omitempty"`
	Priority     Priority          `json:"priority,omitempty"`
	Silent       bool              `json:"silent,omitempty"`
	ClickAction  string            `json:"clickAction,omitempty"`
}

func (r TemplateSendRequest) Validate() error {
	if r.TemplateName == "" || r.PhoneNumber == "" {
		return ErrMissingFields
	}
	return nil
}

type DeviceRegisterRequest struct {
	TenantID    string `json:"tenantId,omitempty"`
	PhoneNumber string `json:"phoneNumber"`
	DeviceType  string `json:"deviceType,omitempty"`
	PushToken   string `json:"pushToken"`
	AppVersion  string `json:"appVersion,omitempty"`
}

func (r DeviceRegisterRequest) Validate() error {
	if r.PhoneNumber == "" || r.PushToken == "" {
		return ErrMissingFields
	}
	return nil
}

// SendResult is the normalized result of a single-recipient or topic send.
type SendResult struct {
	NotificationID string `json:"notificationId"`
	MessageID      string `json:"messageId,omitempty"`
	Status         string `json:"status"`
}

// BulkSendResult is the normalized result of a fan-out send.
type BulkSendResult struct {
	NotificationID string `json:"notificationId"`
	SuccessCount   int    `json:"successCount"`
	FailureCount   int    `json:"failureCount"`
}
