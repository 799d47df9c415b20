// Package provider defines the push messaging provider boundary. The session
// pipeline depends only on these interfaces; concrete providers live in
// sub packages.
package provider

import (
	"context"
	"errors"

	"github.com/goliatone/go-httfy/pkg/domain"
)

// Notification is the display block sent with a message.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
}

// Receipt acknowledges a send.
type Receipt struct {
	MessageID string `json:"message_id"`
}

// Publisher delivers a notification to every token subscribed to topic.
type Publisher interface {
	Send(ctx context.Context, topic string, n Notification, data map[string]string) (Receipt, error)
}

// TopicSubscriber binds and unbinds delivery tokens to topics.
type TopicSubscriber interface {
	SubscribeToken(ctx context.Context, token, topic string) error
	UnsubscribeToken(ctx context.Context, token, topic string) error
}

// Messenger is the full server-side provider surface.
type Messenger interface {
	Publisher
	TopicSubscriber
}

// TokenRequester exchanges the public client key for a delivery token. An
// empty token with a nil error means the provider had nothing to hand out yet.
type TokenRequester interface {
	RequestToken(ctx context.Context, vapidKey string) (string, error)
}

// Listener is the foreground push surface: fn is invoked for each message
// delivered while the client is focused. The returned func detaches fn.
type Listener interface {
	OnMessage(fn func(domain.Payload)) (unsubscribe func())
}

// TokenRequesterFunc adapts a function to TokenRequester.
type TokenRequesterFunc func(ctx context.Context, vapidKey string) (string, error)

func (f TokenRequesterFunc) RequestToken(ctx context.Context, vapidKey string) (string, error) {
	if f == nil {
		return "", nil
	}
	return f(ctx, vapidKey)
}

// StaticToken hands out a fixed token, for clients that registered out of band.
type StaticToken string

func (s StaticToken) RequestToken(ctx context.Context, vapidKey string) (string, error) {
	return string(s), nil
}

var (
	ErrTokenRequired        = errors.New("provider: token is required")
	ErrTopicRequired        = errors.New("provider: topic is required")
	ErrNotificationRequired = errors.New("provider: title and message are required")
)

// ValidateSend checks the fields every provider requires before a send.
func ValidateSend(topic string, n Notification) error {
	if domain.NormalizeTopic(topic) == "" {
		return ErrTopicRequired
	}
	if n.Title == "" || n.Body == "" {
		return ErrNotificationRequired
	}
	return nil
}

// ValidateBinding checks the fields required for subscribe/unsubscribe.
func ValidateBinding(token, topic string) error {
	if token == "" {
		return ErrTokenRequired
	}
	if domain.NormalizeTopic(topic) == "" {
		return ErrTopicRequired
	}
	return nil
}
