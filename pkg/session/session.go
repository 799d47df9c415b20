// Package session wires the client delivery pipeline: token acquisition, the
// dual-channel receiver, the notification feed and the subscription manager.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-httfy/internal/feed"
	"github.com/goliatone/go-httfy/internal/receiver"
	"github.com/goliatone/go-httfy/internal/resolver"
	"github.com/goliatone/go-httfy/internal/subscriptions"
	"github.com/goliatone/go-httfy/internal/telemetry"
	"github.com/goliatone/go-httfy/internal/token"
	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
	"github.com/goliatone/go-httfy/pkg/retry"
)

// Re-export pipeline types so consumers need not import internal packages.
type (
	Permission  = token.Permission
	Permissions = token.Permissions
	TokenState  = token.State
	Source      = receiver.Source
	Emit        = receiver.Emit
	Change      = subscriptions.Change
)

const (
	PermissionGranted     = token.PermissionGranted
	PermissionDenied      = token.PermissionDenied
	PermissionDefault     = token.PermissionDefault
	PermissionUnsupported = token.PermissionUnsupported
)

var (
	ErrSessionClosed  = errors.New("session: closed")
	ErrSessionStarted = errors.New("session: already started")
	ErrBusClosed      = receiver.ErrBusClosed
)

// Options configure the session facade.
type Options struct {
	// Bindings subscribes and unsubscribes the session token.
	Bindings provider.TopicSubscriber
	// Tokens hands out the delivery token.
	Tokens      provider.TokenRequester
	Permissions Permissions
	// Foreground builds the focused-client listener once the token is known.
	Foreground func(token string) provider.Listener
	// Sources are extra inbound channels, such as a websocket relay.
	Sources []Source

	VAPIDKey   string
	MaxRetries int
	RetryDelay time.Duration
	// Backoff overrides RetryDelay with an explicit retry policy.
	Backoff retry.Backoff

	Alerts    broadcaster.Broadcaster
	Logger    logger.Logger
	Telemetry *telemetry.Instruments
	Clock     func() time.Time
}

// Session is one client's delivery pipeline between Start and Close.
type Session struct {
	opts     Options
	logger   logger.Logger
	alerts   broadcaster.Broadcaster
	acquirer *token.Acquirer
	bus      *receiver.Bus
	store    *feed.Store
	manager  *subscriptions.Manager

	base   context.Context
	cancel context.CancelFunc

	// tokenReady carries the first acquired token to the foreground source.
	tokenReady chan string
	readyOnce  sync.Once

	mu       sync.Mutex
	receiver *receiver.Receiver
	started  bool
	closed   bool
}

// New assembles the pipeline. Nothing runs until Start.
func New(opts Options) (*Session, error) {
	if opts.Tokens == nil {
		return nil, errors.New("session: token requester is required")
	}
	if opts.Bindings == nil {
		return nil, errors.New("session: topic bindings provider is required")
	}
	if opts.Logger == nil {
		opts.Logger = &logger.Nop{}
	}
	if opts.Alerts == nil {
		opts.Alerts = &broadcaster.Nop{}
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.New()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = token.DefaultMaxRetries
	}

	backoff := opts.Backoff
	switch {
	case backoff != nil:
	case opts.RetryDelay > 0:
		backoff = retry.ConstantBackoff{Delay: opts.RetryDelay}
	default:
		backoff = retry.DefaultBackoff()
	}
	acquirer, err := token.New(token.Dependencies{
		Permissions: opts.Permissions,
		Requester:   opts.Tokens,
		VAPIDKey:    opts.VAPIDKey,
		MaxRetries:  opts.MaxRetries,
		Backoff:     backoff,
		Logger:      opts.Logger.With(logger.F("component", "token")),
		Telemetry:   opts.Telemetry,
	})
	if err != nil {
		return nil, err
	}
	store := feed.New(feed.Dependencies{
		Resolver:  resolver.New(),
		Clock:     opts.Clock,
		Logger:    opts.Logger.With(logger.F("component", "feed")),
		Telemetry: opts.Telemetry,
	})
	manager, err := subscriptions.New(subscriptions.Dependencies{
		Tokens:      acquirer,
		Provider:    opts.Bindings,
		Broadcaster: opts.Alerts,
		Logger:      opts.Logger.With(logger.F("component", "subscriptions")),
		Telemetry:   opts.Telemetry,
	})
	if err != nil {
		return nil, err
	}

	base, cancel := context.WithCancel(context.Background())
	return &Session{
		opts:     opts,
		logger:   opts.Logger,
		alerts:   opts.Alerts,
		acquirer: acquirer,
		bus:      receiver.NewBus(0),
		store:    store,
		manager:  manager,
		base:     base,
		cancel:   cancel,

		tokenReady: make(chan string, 1),
	}, nil
}

// Start acquires the delivery token and opens every inbound channel. A token
// failure is alerted and recorded in Err; the session keeps running so
// background payloads still reach the feed. The foreground listener attaches
// once a token exists, including one obtained later through RetryToken.
// Close may run while Start is still acquiring; Start then returns ErrSessionClosed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrSessionStarted
	}
	s.started = true
	s.mu.Unlock()

	scoped, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	tok, err := s.acquirer.Acquire(scoped)
	done()
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err != nil {
		s.logger.Error("delivery token unavailable", logger.Err(err))
		s.emit(ctx, domain.EventTokenFailed, err.Error())
		s.alert(ctx, domain.Alert{Level: domain.AlertError, Title: "Notifications unavailable", Description: err.Error()})
	} else {
		s.announce(tok)
	}

	sources := []Source{receiver.BusSource{Bus: s.bus}}
	if s.opts.Foreground != nil {
		sources = append(sources, foregroundSource{session: s})
	}
	sources = append(sources, s.opts.Sources...)

	rcv, err := receiver.New(receiver.Dependencies{
		Sources:   sources,
		Handler:   s.handle,
		Alerts:    s.alerts,
		Logger:    s.logger.With(logger.F("component", "receiver")),
		Telemetry: s.opts.Telemetry,
		Clock:     s.opts.Clock,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.bus.Open()
	if err := rcv.Open(s.base); err != nil {
		s.bus.Close()
		return err
	}
	s.receiver = rcv
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// announce hands the first token to the foreground source. Later tokens are
// the cached one, so only the first matters.
func (s *Session) announce(tok string) {
	if tok == "" {
		return
	}
	s.readyOnce.Do(func() { s.tokenReady <- tok })
}

// foregroundSource waits for the delivery token, then runs the provider listener.
type foregroundSource struct {
	session *Session
}

func (f foregroundSource) Channel() domain.Channel { return domain.ChannelForeground }

func (f foregroundSource) Run(ctx context.Context, emit Emit) error {
	var tok string
	select {
	case <-ctx.Done():
		return nil
	case tok = <-f.session.tokenReady:
	}
	listener := f.session.opts.Foreground(tok)
	if listener == nil {
		<-ctx.Done()
		return nil
	}
	return receiver.ListenerSource{Listener: listener}.Run(ctx, emit)
}

// Close tears down every channel and ends the session. Subscriptions are not
// persisted, so the set is cleared.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	rcv := s.receiver
	s.mu.Unlock()

	s.cancel()
	s.bus.Close()
	var err error
	if rcv != nil {
		err = rcv.Close()
	}
	s.manager.Set().Clear()
	s.logger.Info("session closed")
	return err
}

func (s *Session) handle(ctx context.Context, evt domain.InboundEvent) {
	n := s.store.Ingest(evt)
	s.emit(ctx, domain.EventNotificationStored, n)
}

// Relay publishes p on the background channel, the way the background worker
// hands payloads to the page.
func (s *Session) Relay(p domain.Payload) error {
	return s.bus.Publish(p)
}

// Subscribe adds topic to the subscription set.
func (s *Session) Subscribe(ctx context.Context, topic string) error {
	ctx, stop, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer stop()
	return s.manager.Subscribe(ctx, topic)
}

// Unsubscribe removes topic from the subscription set.
func (s *Session) Unsubscribe(ctx context.Context, topic string) error {
	ctx, stop, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer stop()
	return s.manager.Unsubscribe(ctx, topic)
}

// Switch unsubscribes from one topic and subscribes to another.
func (s *Session) Switch(ctx context.Context, from, to string) error {
	ctx, stop, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer stop()
	return s.manager.Switch(ctx, from, to)
}

// scope ties a caller context to the session so provider results that land
// after Close are discarded.
func (s *Session) scope(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, func() {}, ErrSessionClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(s.base, cancel)
	return ctx, func() {
		stopAfter()
		cancel()
	}, nil
}

// Topics lists the subscribed topics in insertion order.
func (s *Session) Topics() []string { return s.manager.Topics() }

// Visible returns the notifications that match the current subscriptions.
func (s *Session) Visible() []domain.Notification {
	return s.store.Visible(s.manager.Topics())
}

// Notifications returns the whole session log, newest first.
func (s *Session) Notifications() []domain.Notification { return s.store.All() }

// Notification looks up one entry by id.
func (s *Session) Notification(id string) (domain.Notification, bool) { return s.store.Get(id) }

// Token returns the delivery token, or "" when none was acquired.
func (s *Session) Token() string { return s.acquirer.Token() }

// TokenState reports the acquirer state.
func (s *Session) TokenState() TokenState { return s.acquirer.State() }

// Err returns the recorded token error.
func (s *Session) Err() error { return s.acquirer.Err() }

// RetryToken restarts token acquisition after a failure.
func (s *Session) RetryToken(ctx context.Context) (string, error) {
	scoped, done, err := s.scope(ctx)
	if err != nil {
		return "", err
	}
	defer done()
	tok, err := s.acquirer.Acquire(scoped)
	if err != nil {
		return "", err
	}
	s.announce(tok)
	return tok, nil
}

func (s *Session) emit(ctx context.Context, topic string, payload any) {
	if err := s.alerts.Broadcast(ctx, broadcaster.Event{Topic: topic, Payload: payload}); err != nil {
		s.logger.Warn("session broadcast failed", logger.F("topic", topic), logger.F("error", err))
	}
}

func (s *Session) alert(ctx context.Context, a domain.Alert) {
	s.emit(ctx, a.Topic(), a)
}
