// Package subscriptions owns the session subscription set and keeps it in step
// with the provider's topic bindings.
package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-httfy/internal/telemetry"
	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
)

// TokenSource exposes the current delivery token; "" means none.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string {
	if f == nil {
		return ""
	}
	return f()
}

// Change is the payload of subscription events.
type Change struct {
	Topic  string   `json:"topic"`
	Topics []string `json:"topics"`
	Error  string   `json:"error,omitempty"`
}

// Dependencies wires the manager.
type Dependencies struct {
	Tokens      TokenSource
	Provider    provider.TopicSubscriber
	Set         *Set
	Broadcaster broadcaster.Broadcaster
	Logger      logger.Logger
	Telemetry   *telemetry.Instruments
}

// Manager mutates the subscription set after the provider confirms a change.
type Manager struct {
	tokens      TokenSource
	provider    provider.TopicSubscriber
	set         *Set
	broadcaster broadcaster.Broadcaster
	logger      logger.Logger
	telemetry   *telemetry.Instruments
}

var (
	errTokensRequired   = errors.New("subscriptions: token source is required")
	errProviderRequired = errors.New("subscriptions: provider is required")
)

// New constructs a Manager.
func New(deps Dependencies) (*Manager, error) {
	if deps.Tokens == nil {
		return nil, errTokensRequired
	}
	if deps.Provider == nil {
		return nil, errProviderRequired
	}
	if deps.Set == nil {
		deps.Set = NewSet()
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = &broadcaster.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	return &Manager{
		tokens:      deps.Tokens,
		provider:    deps.Provider,
		set:         deps.Set,
		broadcaster: deps.Broadcaster,
		logger:      deps.Logger,
		telemetry:   deps.Telemetry,
	}, nil
}

// Subscribe binds the session token to topic and adds it to the set.
func (m *Manager) Subscribe(ctx context.Context, topic string) error {
	topic = domain.NormalizeTopic(topic)
	token := m.tokens.Token()
	if token == "" {
		return m.reject(ctx, "subscribe", topic, domain.ErrTokenUnavailable)
	}
	if err := domain.ValidateTopic(topic); err != nil {
		return m.reject(ctx, "subscribe", topic, err)
	}
	if m.set.Contains(topic) {
		return m.reject(ctx, "subscribe", topic, fmt.Errorf("%w: %s", domain.ErrAlreadySubscribed, topic))
	}

	err := m.provider.SubscribeToken(ctx, token, topic)
	m.telemetry.ProviderCall(ctx, "subscribe", err)
	if err != nil {
		return m.fail(ctx, "subscribe", topic, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.set.Add(topic)
	m.logger.Info("subscribed to topic", logger.F("topic", topic))
	m.emit(ctx, domain.EventSubscriptionAdded, Change{Topic: topic, Topics: m.set.Topics()})
	m.alert(ctx, domain.Alert{
		Level:       domain.AlertSuccess,
		Title:       "Subscribed",
		Description: fmt.Sprintf("Now listening to %s", topic),
	})
	return nil
}

// Unsubscribe unbinds the token from topic and removes it from the set. The
// provider is called even when topic is not in the set.
func (m *Manager) Unsubscribe(ctx context.Context, topic string) error {
	topic = domain.NormalizeTopic(topic)
	token := m.tokens.Token()
	if token == "" {
		return m.reject(ctx, "unsubscribe", topic, domain.ErrTokenUnavailable)
	}
	if err := domain.ValidateTopic(topic); err != nil {
		return m.reject(ctx, "unsubscribe", topic, err)
	}

	err := m.provider.UnsubscribeToken(ctx, token, topic)
	m.telemetry.ProviderCall(ctx, "unsubscribe", err)
	if err != nil {
		return m.fail(ctx, "unsubscribe", topic, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.set.Remove(topic)
	m.logger.Info("unsubscribed from topic", logger.F("topic", topic))
	m.emit(ctx, domain.EventSubscriptionRemoved, Change{Topic: topic, Topics: m.set.Topics()})
	m.alert(ctx, domain.Alert{
		Level:       domain.AlertSuccess,
		Title:       "Unsubscribed",
		Description: fmt.Sprintf("Stopped listening to %s", topic),
	})
	return nil
}

// Switch moves the session from one topic to another. A completed unsubscribe
// is kept when the subscribe step fails.
func (m *Manager) Switch(ctx context.Context, from, to string) error {
	if err := m.Unsubscribe(ctx, from); err != nil {
		return err
	}
	return m.Subscribe(ctx, to)
}

// Topics returns the subscribed topics in insertion order.
func (m *Manager) Topics() []string {
	return m.set.Topics()
}

// Contains reports whether topic is subscribed.
func (m *Manager) Contains(topic string) bool {
	return m.set.Contains(domain.NormalizeTopic(topic))
}

// Set exposes the underlying subscription set.
func (m *Manager) Set() *Set {
	return m.set
}

// reject surfaces a precondition failure; the provider was not called.
func (m *Manager) reject(ctx context.Context, op, topic string, err error) error {
	m.logger.Warn(op+" rejected", logger.F("topic", topic), logger.F("error", err))
	m.alert(ctx, domain.Alert{
		Level:       domain.AlertError,
		Title:       failureTitle(op),
		Description: err.Error(),
	})
	return err
}

func (m *Manager) fail(ctx context.Context, op, topic string, cause error) error {
	err := domain.NewProviderError(op, topic, cause)
	message := err.Error()
	var pe *domain.ProviderError
	if errors.As(err, &pe) && pe.Message() != "" {
		message = pe.Message()
	}
	m.logger.Error(op+" failed", logger.F("topic", topic), logger.F("error", cause))
	m.emit(ctx, domain.EventSubscriptionFailed, Change{Topic: topic, Topics: m.set.Topics(), Error: message})
	m.alert(ctx, domain.Alert{
		Level:       domain.AlertError,
		Title:       failureTitle(op),
		Description: message,
	})
	return err
}

func failureTitle(op string) string {
	if op == "unsubscribe" {
		return "Unsubscribe failed"
	}
	return "Subscribe failed"
}

func (m *Manager) emit(ctx context.Context, topic string, payload any) {
	if err := m.broadcaster.Broadcast(ctx, broadcaster.Event{Topic: topic, Payload: payload}); err != nil {
		m.logger.Warn("subscriptions broadcast failed", logger.F("topic", topic), logger.F("error", err))
	}
}

func (m *Manager) alert(ctx context.Context, a domain.Alert) {
	m.emit(ctx, a.Topic(), a)
}
