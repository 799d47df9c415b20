package domain

// AlertLevel classifies transient user-facing alerts.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertSuccess AlertLevel = "success"
	AlertError   AlertLevel = "error"
)

// Alert is a transient toast. It is never stored in the notification log.
type Alert struct {
	Level       AlertLevel `json:"level"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Link        string     `json:"link,omitempty"`
}

// Topic returns the broadcaster topic used for the alert.
func (a Alert) Topic() string {
	return "toast." + string(a.Level)
}

// Broadcaster topics emitted by the session pipeline.
const (
	EventSubscriptionAdded   = "subscription.added"
	EventSubscriptionRemoved = "subscription.removed"
	EventSubscriptionFailed  = "subscription.failed"
	EventNotificationStored  = "notification.stored"
	EventTokenFailed         = "token.failed"
	EventPayloadRelayed      = "payload.relayed"
)
