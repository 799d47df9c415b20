package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/goliatone/go-httfy/internal/receiver"
	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
)

const (
	defaultMaxReconnectInterval = 30 * time.Second
	defaultReadLimit            = 1 << 20
)

var errURLRequired = errors.New("relay: stream url is required")

// Source dials a Hub and feeds relayed payloads into the receiver as the
// background channel. Dropped connections are redialed with exponential backoff.
type Source struct {
	url         string
	header      http.Header
	logger      logger.Logger
	maxInterval time.Duration
	initial     time.Duration
	connected   func()
}

var _ receiver.Source = (*Source)(nil)

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithHeader adds request headers to the dial.
func WithHeader(header http.Header) SourceOption {
	return func(s *Source) {
		s.header = header.Clone()
	}
}

// WithReconnect bounds the reconnect backoff.
func WithReconnect(initial, maxInterval time.Duration) SourceOption {
	return func(s *Source) {
		if initial > 0 {
			s.initial = initial
		}
		if maxInterval > 0 {
			s.maxInterval = maxInterval
		}
	}
}

// WithConnected registers a callback fired after every successful dial.
func WithConnected(fn func()) SourceOption {
	return func(s *Source) {
		s.connected = fn
	}
}

// NewSource builds a relay client for url (ws:// or http:// forms accepted).
func NewSource(url string, l logger.Logger, opts ...SourceOption) *Source {
	if l == nil {
		l = &logger.Nop{}
	}
	s := &Source{
		url:         StreamURL(url),
		logger:      l,
		maxInterval: defaultMaxReconnectInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// StreamURL rewrites http(s) base URLs to the websocket scheme.
func StreamURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	default:
		return raw
	}
}

func (s *Source) Channel() domain.Channel { return domain.ChannelBackground }

// Run keeps a connection open until ctx is done.
func (s *Source) Run(ctx context.Context, emit receiver.Emit) error {
	if s.url == "" {
		return errURLRequired
	}
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = s.maxInterval
	if s.initial > 0 {
		backoffCfg.InitialInterval = s.initial
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{HTTPHeader: s.header})
		if err == nil {
			backoffCfg.Reset()
			conn.SetReadLimit(defaultReadLimit)
			s.logger.Info("relay connected", logger.F("url", s.url))
			if s.connected != nil {
				s.connected()
			}
			err = s.readLoop(ctx, conn, emit)
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger.Warn("relay connection lost", logger.F("url", s.url), logger.F("error", err))
		}

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = s.maxInterval
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}

func (s *Source) readLoop(ctx context.Context, conn *websocket.Conn, emit receiver.Emit) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read relay frame: %w", err)
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		var p domain.Payload
		if err := json.Unmarshal(data, &p); err != nil {
			s.logger.Warn("relay frame decode failed", logger.F("error", err))
			continue
		}
		emit(p)
	}
}
