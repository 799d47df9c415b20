// Package feed keeps the session notification log and the topic filter over it.
package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-httfy/internal/resolver"
	"github.com/goliatone/go-httfy/internal/telemetry"
	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/google/uuid"
)

// Dependencies wires the store.
type Dependencies struct {
	Resolver  *resolver.Resolver
	IDs       func() string
	Clock     func() time.Time
	Logger    logger.Logger
	Telemetry *telemetry.Instruments
}

// Store is the newest-first, id-deduplicated notification log.
type Store struct {
	resolver  *resolver.Resolver
	ids       func() string
	clock     func() time.Time
	logger    logger.Logger
	telemetry *telemetry.Instruments

	mu      sync.RWMutex
	entries []domain.Notification
}

// New constructs a store. Zero dependencies fall back to defaults.
func New(deps Dependencies) *Store {
	if deps.Resolver == nil {
		deps.Resolver = resolver.New()
	}
	if deps.IDs == nil {
		deps.IDs = func() string { return uuid.NewString() }
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	return &Store{
		resolver:  deps.Resolver,
		ids:       deps.IDs,
		clock:     deps.Clock,
		logger:    deps.Logger,
		telemetry: deps.Telemetry,
	}
}

// Build turns an inbound event into a notification without storing it.
func (s *Store) Build(evt domain.InboundEvent) domain.Notification {
	p := evt.Payload
	id := strings.TrimSpace(p.MessageID)
	if id == "" {
		id = s.ids()
	}
	title := strings.TrimSpace(p.Title())
	if title == "" {
		title = domain.DefaultTitle
	}
	ts := evt.ReceivedAt
	if ts.IsZero() {
		ts = s.clock()
	}
	return domain.Notification{
		ID:        id,
		Topic:     s.resolver.Resolve(p),
		Title:     title,
		Message:   p.Body(),
		Priority:  domain.PriorityOrDefault(p.DataValue("priority")),
		Tags:      p.DataValue("tags"),
		Link:      p.Link(),
		Channel:   evt.Channel,
		Timestamp: ts,
	}
}

// Ingest stores the notification built from evt at the front of the log,
// replacing any entry with the same id.
func (s *Store) Ingest(evt domain.InboundEvent) domain.Notification {
	n := s.Build(evt)
	replaced := s.Put(n)
	if replaced {
		s.telemetry.Duplicate(context.Background())
	}
	s.logger.Debug("notification stored",
		logger.F("id", n.ID),
		logger.F("topic", n.Topic),
		logger.F("channel", string(n.Channel)),
		logger.F("replaced", replaced),
	)
	return n
}

// Put prepends n, dropping an older entry with the same id. It reports whether
// an entry was replaced.
func (s *Store) Put(n domain.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	next := make([]domain.Notification, 0, len(s.entries)+1)
	next = append(next, n)
	for _, existing := range s.entries {
		if existing.ID == n.ID {
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	s.entries = next
	return replaced
}

// All returns a copy of the log, newest first.
func (s *Store) All() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Notification, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of stored notifications.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the notification with id.
func (s *Store) Get(id string) (domain.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.entries {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Notification{}, false
}

// Visible returns the entries that match topics, newest first.
func (s *Store) Visible(topics []string) []domain.Notification {
	if len(topics) == 0 {
		return []domain.Notification{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Notification, 0, len(s.entries))
	for _, n := range s.entries {
		if Matches(n.Topic, topics) {
			out = append(out, n)
		}
	}
	return out
}

// Matches reports whether a notification topic passes the subscription filter:
// exact membership, the unknown bucket, or a subscribed topic contained in it.
func Matches(topic string, topics []string) bool {
	if len(topics) == 0 {
		return false
	}
	if topic == domain.UnknownTopic {
		return true
	}
	for _, sub := range topics {
		if sub == "" {
			continue
		}
		if sub == topic || strings.Contains(topic, sub) {
			return true
		}
	}
	return false
}
