package domain

import (
	"strings"
	"time"
)

// TopicPrefix is the routing prefix the provider puts in front of topic names.
const TopicPrefix = "/topics/"

// PayloadNotification is the display block of a provider message.
type PayloadNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// PayloadOptions carries provider web options.
type PayloadOptions struct {
	Link string `json:"link,omitempty"`
}

// Payload is the raw message shape delivered by both inbound channels. It is
// passed through the receiver unmodified.
type Payload struct {
	Notification *PayloadNotification `json:"notification,omitempty"`
	Data         map[string]string    `json:"data,omitempty"`
	From         string               `json:"from,omitempty"`
	CollapseKey  string               `json:"collapseKey,omitempty"`
	MessageID    string               `json:"messageId,omitempty"`
	FCMOptions   *PayloadOptions      `json:"fcmOptions,omitempty"`
}

// DataValue returns the trimmed data entry for key.
func (p Payload) DataValue(key string) string {
	if p.Data == nil {
		return ""
	}
	return strings.TrimSpace(p.Data[key])
}

// Title returns the notification title, if any.
func (p Payload) Title() string {
	if p.Notification == nil {
		return ""
	}
	return p.Notification.Title
}

// Body returns the notification body, if any.
func (p Payload) Body() string {
	if p.Notification == nil {
		return ""
	}
	return p.Notification.Body
}

// Link prefers the web options link and falls back to data.link.
func (p Payload) Link() string {
	if p.FCMOptions != nil && strings.TrimSpace(p.FCMOptions.Link) != "" {
		return strings.TrimSpace(p.FCMOptions.Link)
	}
	return p.DataValue("link")
}

// InboundEvent is a payload tagged with the channel that delivered it.
type InboundEvent struct {
	Channel    Channel
	Payload    Payload
	ReceivedAt time.Time
}

// TopicPayload builds the background-channel shape for a message published to topic.
func TopicPayload(topic, messageID string, n PayloadNotification, data map[string]string) Payload {
	merged := make(map[string]string, len(data)+1)
	for k, v := range data {
		merged[k] = v
	}
	topic = strings.TrimPrefix(strings.TrimSpace(topic), TopicPrefix)
	if _, ok := merged["topic"]; !ok && topic != "" {
		merged["topic"] = topic
	}
	return Payload{
		Notification: &n,
		Data:         merged,
		From:         TopicPrefix + topic,
		MessageID:    messageID,
	}
}
