package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
)

// Provider is an in-process loopback messaging provider. Sends are delivered
// to the foreground listeners of every token subscribed to the topic and
// logged, which makes it useful for local development and tests.
type Provider struct {
	name   string
	logger logger.Logger
	opts   Options

	mu        sync.RWMutex
	topics    map[string]map[string]struct{}
	listeners map[string]map[int]func(domain.Payload)
	nextID    int
}

var (
	_ provider.Messenger      = (*Provider)(nil)
	_ provider.TokenRequester = (*Provider)(nil)
)

type Option func(*Provider)

// Options tweak loopback behaviour.
type Options struct {
	// Structured emits one structured log line per send instead of a formatted string.
	Structured bool
	// IssueTokens makes RequestToken hand out random tokens. When false it returns "".
	IssueTokens bool
}

// WithName overrides the provider name (defaults to "memory").
func WithName(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.name = name
		}
	}
}

// WithStructured enables structured logging mode.
func WithStructured(enabled bool) Option {
	return func(p *Provider) {
		p.opts.Structured = enabled
	}
}

// WithTokens toggles token issuing.
func WithTokens(enabled bool) Option {
	return func(p *Provider) {
		p.opts.IssueTokens = enabled
	}
}

// New constructs a loopback provider.
func New(l logger.Logger, opts ...Option) *Provider {
	if l == nil {
		l = &logger.Nop{}
	}
	p := &Provider{
		name:      "memory",
		logger:    l,
		opts:      Options{IssueTokens: true},
		topics:    make(map[string]map[string]struct{}),
		listeners: make(map[string]map[int]func(domain.Payload)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Provider) Name() string { return p.name }

// RequestToken issues a fresh client token.
func (p *Provider) RequestToken(ctx context.Context, vapidKey string) (string, error) {
	if !p.opts.IssueTokens {
		return "", nil
	}
	return uuid.NewString(), nil
}

// SubscribeToken binds token to topic.
func (p *Provider) SubscribeToken(ctx context.Context, token, topic string) error {
	if err := provider.ValidateBinding(token, topic); err != nil {
		return err
	}
	topic = domain.NormalizeTopic(topic)
	p.mu.Lock()
	defer p.mu.Unlock()
	members, ok := p.topics[topic]
	if !ok {
		members = make(map[string]struct{})
		p.topics[topic] = members
	}
	members[token] = struct{}{}
	return nil
}

// UnsubscribeToken removes token from topic.
func (p *Provider) UnsubscribeToken(ctx context.Context, token, topic string) error {
	if err := provider.ValidateBinding(token, topic); err != nil {
		return err
	}
	topic = domain.NormalizeTopic(topic)
	p.mu.Lock()
	defer p.mu.Unlock()
	if members, ok := p.topics[topic]; ok {
		delete(members, token)
		if len(members) == 0 {
			delete(p.topics, topic)
		}
	}
	return nil
}

// Members lists the tokens bound to topic, sorted.
func (p *Provider) Members(topic string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	members := p.topics[domain.NormalizeTopic(topic)]
	out := make([]string, 0, len(members))
	for token := range members {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// Listeners counts the foreground listeners attached for token.
func (p *Provider) Listeners(token string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.listeners[token])
}

// Send fans the message out to foreground listeners of subscribed tokens.
func (p *Provider) Send(ctx context.Context, topic string, n provider.Notification, data map[string]string) (provider.Receipt, error) {
	if err := provider.ValidateSend(topic, n); err != nil {
		return provider.Receipt{}, err
	}
	topic = domain.NormalizeTopic(topic)
	id := uuid.NewString()
	payload := domain.TopicPayload(topic, id, domain.PayloadNotification{Title: n.Title, Body: n.Body, Icon: n.Icon}, data)

	p.mu.RLock()
	var targets []func(domain.Payload)
	for token := range p.topics[topic] {
		for _, fn := range p.listeners[token] {
			targets = append(targets, fn)
		}
	}
	p.mu.RUnlock()

	for _, fn := range targets {
		fn(payload)
	}

	if p.opts.Structured {
		p.logger.Info("memory delivery",
			logger.Field{Key: "provider", Value: p.name},
			logger.Field{Key: "topic", Value: topic},
			logger.Field{Key: "message_id", Value: id},
			logger.Field{Key: "title", Value: n.Title},
			logger.Field{Key: "body", Value: n.Body},
			logger.Field{Key: "data", Value: data},
			logger.Field{Key: "listeners", Value: len(targets)},
		)
	} else {
		p.logger.Info(fmt.Sprintf("[%s][%s] title=%s body=%s listeners=%d", p.name, topic, n.Title, n.Body, len(targets)))
	}
	return provider.Receipt{MessageID: id}, nil
}

// Foreground returns the foreground listener surface for token.
func (p *Provider) Foreground(token string) provider.Listener {
	return tokenListener{provider: p, token: token}
}

type tokenListener struct {
	provider *Provider
	token    string
}

func (l tokenListener) OnMessage(fn func(domain.Payload)) func() {
	p := l.provider
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	set, ok := p.listeners[l.token]
	if !ok {
		set = make(map[int]func(domain.Payload))
		p.listeners[l.token] = set
	}
	set[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if set, ok := p.listeners[l.token]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(p.listeners, l.token)
				}
			}
		})
	}
}
