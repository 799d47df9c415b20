package receiver

import (
	"context"
	"errors"

	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/provider"
)

// Emit hands a raw payload to the receiver.
type Emit func(domain.Payload)

// Source is one inbound channel. Run blocks until ctx is done or the channel
// ends, calling emit for each payload.
type Source interface {
	Channel() domain.Channel
	Run(ctx context.Context, emit Emit) error
}

var errNilListener = errors.New("receiver: listener is required")

// BusSource reads the background channel from a Bus.
type BusSource struct {
	Bus *Bus
}

func (s BusSource) Channel() domain.Channel { return domain.ChannelBackground }

func (s BusSource) Run(ctx context.Context, emit Emit) error {
	if s.Bus == nil {
		return ErrBusClosed
	}
	payloads, cancel, err := s.Bus.Subscribe()
	if err != nil {
		return err
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-payloads:
			if !ok {
				return nil
			}
			emit(p)
		}
	}
}

// ListenerSource reads the foreground channel from a provider listener.
type ListenerSource struct {
	Listener provider.Listener
}

func (s ListenerSource) Channel() domain.Channel { return domain.ChannelForeground }

func (s ListenerSource) Run(ctx context.Context, emit Emit) error {
	if s.Listener == nil {
		return errNilListener
	}
	unsubscribe := s.Listener.OnMessage(func(p domain.Payload) {
		if ctx.Err() != nil {
			return
		}
		emit(p)
	})
	defer func() {
		if unsubscribe != nil {
			unsubscribe()
		}
	}()
	<-ctx.Done()
	return nil
}

// SourceFunc adapts a function to Source on the given channel.
type SourceFunc struct {
	On domain.Channel
	Fn func(ctx context.Context, emit Emit) error
}

func (s SourceFunc) Channel() domain.Channel { return s.On }

func (s SourceFunc) Run(ctx context.Context, emit Emit) error {
	if s.Fn == nil {
		<-ctx.Done()
		return nil
	}
	return s.Fn(ctx, emit)
}
