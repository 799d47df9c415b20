package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestNilInstrumentsAreSafe(t *testing.T) {
	var inst *Instruments
	ctx := context.Background()
	inst.Inbound(ctx, "background")
	inst.Duplicate(ctx)
	inst.TokenAttempt(ctx, "ok")
	inst.ProviderCall(ctx, "send", errors.New("boom"))
}

func TestNewWithMeterResolvesCounters(t *testing.T) {
	inst := NewWithMeter(noop.NewMeterProvider().Meter("test"))
	if inst == nil {
		t.Fatalf("expected instruments")
	}
	if inst.inbound == nil || inst.duplicates == nil || inst.tokenAttempts == nil || inst.providerCalls == nil {
		t.Fatalf("expected every counter to resolve, got %+v", inst)
	}
	inst.ProviderCall(context.Background(), "subscribe", nil)
}
