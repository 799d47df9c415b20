// Package receiver merges the background and foreground inbound channels into
// one ordered event stream.
package receiver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-httfy/internal/telemetry"
	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/jaytaylor/html2text"
	"github.com/sourcegraph/conc"
)

// DefaultQueueSize bounds events waiting for the dispatch loop.
const DefaultQueueSize = 128

// Handler consumes events in arrival order.
type Handler func(ctx context.Context, evt domain.InboundEvent)

var (
	ErrReceiverOpen   = errors.New("receiver: already open")
	errHandlerMissing = errors.New("receiver: handler is required")
)

// Dependencies wires the receiver.
type Dependencies struct {
	Sources   []Source
	Handler   Handler
	Alerts    broadcaster.Broadcaster
	Logger    logger.Logger
	Telemetry *telemetry.Instruments
	Clock     func() time.Time
	QueueSize int
}

// Receiver runs every source and one dispatch loop.
type Receiver struct {
	sources   []Source
	handler   Handler
	alerts    broadcaster.Broadcaster
	logger    logger.Logger
	telemetry *telemetry.Instruments
	clock     func() time.Time
	queueSize int

	mu       sync.Mutex
	open     bool
	cancel   context.CancelFunc
	events   chan domain.InboundEvent
	sourceWG *conc.WaitGroup
	loopWG   *conc.WaitGroup
}

// New constructs a receiver. It does not start any source.
func New(deps Dependencies) (*Receiver, error) {
	if deps.Handler == nil {
		return nil, errHandlerMissing
	}
	if deps.Alerts == nil {
		deps.Alerts = &broadcaster.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.QueueSize <= 0 {
		deps.QueueSize = DefaultQueueSize
	}
	sources := make([]Source, 0, len(deps.Sources))
	for _, src := range deps.Sources {
		if src != nil {
			sources = append(sources, src)
		}
	}
	return &Receiver{
		sources:   sources,
		handler:   deps.Handler,
		alerts:    deps.Alerts,
		logger:    deps.Logger,
		telemetry: deps.Telemetry,
		clock:     deps.Clock,
		queueSize: deps.QueueSize,
	}, nil
}

// Open starts every source and the dispatch loop. Payloads delivered before
// Open are never seen.
func (r *Receiver) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		return ErrReceiverOpen
	}
	runCtx, cancel := context.WithCancel(ctx)
	events := make(chan domain.InboundEvent, r.queueSize)
	r.cancel = cancel
	r.events = events
	r.sourceWG = &conc.WaitGroup{}
	r.loopWG = &conc.WaitGroup{}
	r.open = true

	for _, src := range r.sources {
		src := src
		channel := src.Channel()
		r.sourceWG.Go(func() {
			err := src.Run(runCtx, r.emitter(runCtx, channel, events))
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("inbound source stopped", logger.F("channel", string(channel)), logger.F("error", err))
				return
			}
			r.logger.Debug("inbound source stopped", logger.F("channel", string(channel)))
		})
	}
	r.loopWG.Go(func() { r.dispatch(runCtx, events) })
	r.logger.Info("receiver opened", logger.F("sources", len(r.sources)))
	return nil
}

// Close cancels every source and waits for the dispatch loop to exit.
func (r *Receiver) Close() error {
	r.mu.Lock()
	if !r.open {
		r.mu.Unlock()
		return nil
	}
	r.open = false
	cancel, sourceWG, loopWG := r.cancel, r.sourceWG, r.loopWG
	r.mu.Unlock()

	cancel()
	sourceWG.Wait()
	loopWG.Wait()
	r.logger.Info("receiver closed")
	return nil
}

// IsOpen reports whether the receiver is running.
func (r *Receiver) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

func (r *Receiver) emitter(ctx context.Context, channel domain.Channel, events chan<- domain.InboundEvent) Emit {
	return func(p domain.Payload) {
		if ctx.Err() != nil {
			return
		}
		evt := domain.InboundEvent{Channel: channel, Payload: p, ReceivedAt: r.clock()}
		select {
		case events <- evt:
		case <-ctx.Done():
		}
	}
}

func (r *Receiver) dispatch(ctx context.Context, events <-chan domain.InboundEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			r.telemetry.Inbound(ctx, string(evt.Channel))
			r.toast(ctx, evt)
			r.handler(ctx, evt)
		}
	}
}

func (r *Receiver) toast(ctx context.Context, evt domain.InboundEvent) {
	alert := AlertFor(evt.Payload)
	if err := r.alerts.Broadcast(ctx, broadcaster.Event{Topic: alert.Topic(), Payload: alert}); err != nil {
		r.logger.Warn("toast broadcast failed", logger.F("error", err))
	}
}

// AlertFor builds the transient toast shown for an inbound payload.
func AlertFor(p domain.Payload) domain.Alert {
	title := strings.TrimSpace(p.Title())
	if title == "" {
		title = domain.DefaultTitle
	}
	return domain.Alert{
		Level:       domain.AlertInfo,
		Title:       title,
		Description: plainText(p.Body()),
		Link:        p.Link(),
	}
}

func plainText(body string) string {
	body = strings.TrimSpace(body)
	if !strings.ContainsAny(body, "<&") {
		return body
	}
	plain, err := html2text.FromString(body, html2text.Options{PrettyTables: true})
	if err != nil {
		return body
	}
	if trimmed := strings.TrimSpace(plain); trimmed != "" {
		return trimmed
	}
	return body
}
