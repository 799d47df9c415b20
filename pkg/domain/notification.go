package domain

import (
	"strconv"
	"strings"
	"time"
)

// UnknownTopic is assigned when no payload field names the originating topic.
const UnknownTopic = "unknown"

// DefaultTitle is used when a payload carries no notification title.
const DefaultTitle = "New Notification"

// Priority mirrors the 1 (min) .. 5 (max) scale used by the publish form.
type Priority int

const (
	PriorityMin     Priority = 1
	PriorityLow     Priority = 2
	PriorityDefault Priority = 3
	PriorityHigh    Priority = 4
	PriorityMax     Priority = 5
)

// Valid reports whether p falls in the 1..5 range.
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// String renders the priority the way the provider data map carries it.
func (p Priority) String() string {
	return strconv.Itoa(int(p))
}

// Label returns the display label for the priority.
func (p Priority) Label() string {
	switch p {
	case PriorityMin:
		return "Min"
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	case PriorityMax:
		return "Max"
	default:
		return "Default"
	}
}

// ParsePriority parses "1".."5". Empty input yields PriorityDefault.
func ParsePriority(raw string) (Priority, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PriorityDefault, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return PriorityDefault, ErrInvalidPriority
	}
	p := Priority(n)
	if !p.Valid() {
		return PriorityDefault, ErrInvalidPriority
	}
	return p, nil
}

// PriorityOrDefault parses raw and falls back to PriorityDefault on any error.
func PriorityOrDefault(raw string) Priority {
	p, err := ParsePriority(raw)
	if err != nil {
		return PriorityDefault
	}
	return p
}

// Channel names the inbound delivery path a payload arrived on.
type Channel string

const (
	// ChannelBackground is the worker broadcast relay used while the client is not focused.
	ChannelBackground Channel = "background"
	// ChannelForeground is the direct push event delivered while the client is focused.
	ChannelForeground Channel = "foreground"
)

// Notification is an entry in the session notification log. Values are never
// mutated after creation.
type Notification struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  Priority  `json:"priority"`
	Tags      string    `json:"tags,omitempty"`
	Link      string    `json:"link,omitempty"`
	Channel   Channel   `json:"channel,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TagList splits the comma separated tags string.
func (n Notification) TagList() []string {
	if strings.TrimSpace(n.Tags) == "" {
		return nil
	}
	parts := strings.Split(n.Tags, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
