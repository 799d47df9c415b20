// Package telemetry holds the otel metric instruments used across the pipeline.
// Instruments resolve against the global meter provider, which is a no-op until
// the host installs an SDK provider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/goliatone/go-httfy"

// Instruments groups the counters recorded by the pipeline.
type Instruments struct {
	inbound       metric.Int64Counter
	duplicates    metric.Int64Counter
	tokenAttempts metric.Int64Counter
	providerCalls metric.Int64Counter
}

// New resolves instruments from the global meter provider.
func New() *Instruments {
	return NewWithMeter(otel.Meter(meterName))
}

// NewWithMeter resolves instruments from meter. Creation errors fall back to
// no-op instruments, so a nil *Instruments is never returned.
func NewWithMeter(meter metric.Meter) *Instruments {
	inst := &Instruments{}
	inst.inbound, _ = meter.Int64Counter("httfy.inbound.events",
		metric.WithDescription("Inbound payloads received per channel"))
	inst.duplicates, _ = meter.Int64Counter("httfy.feed.duplicates",
		metric.WithDescription("Notifications that replaced an entry with the same id"))
	inst.tokenAttempts, _ = meter.Int64Counter("httfy.token.attempts",
		metric.WithDescription("Delivery token fetch attempts by outcome"))
	inst.providerCalls, _ = meter.Int64Counter("httfy.provider.calls",
		metric.WithDescription("Provider calls by operation and outcome"))
	return inst
}

// Inbound counts one payload on channel.
func (i *Instruments) Inbound(ctx context.Context, channel string) {
	if i == nil || i.inbound == nil {
		return
	}
	i.inbound.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

// Duplicate counts a dedup replacement.
func (i *Instruments) Duplicate(ctx context.Context) {
	if i == nil || i.duplicates == nil {
		return
	}
	i.duplicates.Add(ctx, 1)
}

// TokenAttempt counts a token fetch attempt.
func (i *Instruments) TokenAttempt(ctx context.Context, outcome string) {
	if i == nil || i.tokenAttempts == nil {
		return
	}
	i.tokenAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// ProviderCall counts a provider call.
func (i *Instruments) ProviderCall(ctx context.Context, op string, err error) {
	if i == nil || i.providerCalls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	i.providerCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}
