package broadcaster

import (
	"context"
	"strings"
)

// Func adapts a function to the Broadcaster interface.
type Func func(ctx context.Context, event Event) error

// Broadcast calls f. A nil Func drops the event.
func (f Func) Broadcast(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// Fanout multicasts each event to every target (toast sinks, relay hub, printers).
type Fanout struct {
	targets []Broadcaster
}

var _ Broadcaster = (*Fanout)(nil)

// NewFanout skips nil targets.
func NewFanout(targets ...Broadcaster) *Fanout {
	f := &Fanout{targets: make([]Broadcaster, 0, len(targets))}
	for _, target := range targets {
		if target != nil {
			f.targets = append(f.targets, target)
		}
	}
	return f
}

// Len reports the number of targets.
func (f *Fanout) Len() int { return len(f.targets) }

// Broadcast delivers to every target even when one fails and returns the first error.
func (f *Fanout) Broadcast(ctx context.Context, event Event) error {
	var first error
	for _, target := range f.targets {
		err := target.Broadcast(ctx, event)
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Prefixed forwards only events whose topic starts with one of prefixes.
type Prefixed struct {
	Prefixes []string
	Target   Broadcaster
}

// OnlyTopics wraps target so it sees the listed topic families only,
// for example OnlyTopics(alerts, "toast.").
func OnlyTopics(target Broadcaster, prefixes ...string) *Prefixed {
	return &Prefixed{Prefixes: prefixes, Target: target}
}

func (p *Prefixed) Broadcast(ctx context.Context, event Event) error {
	if p == nil || p.Target == nil {
		return nil
	}
	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(event.Topic, prefix) {
			return p.Target.Broadcast(ctx, event)
		}
	}
	return nil
}
