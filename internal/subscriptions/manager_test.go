package subscriptions

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/broadcaster"
)

type fakeProvider struct {
	subscribeErr   error
	unsubscribeErr error
	subscribed     []string
	unsubscribed   []string
}

func (f *fakeProvider) SubscribeToken(ctx context.Context, token, topic string) error {
	f.subscribed = append(f.subscribed, token+"|"+topic)
	return f.subscribeErr
}

func (f *fakeProvider) UnsubscribeToken(ctx context.Context, token, topic string) error {
	f.unsubscribed = append(f.unsubscribed, token+"|"+topic)
	return f.unsubscribeErr
}

func newTestManager(t *testing.T, token string, prov *fakeProvider, events *broadcaster.Capture) *Manager {
	t.Helper()
	mgr, err := New(Dependencies{
		Tokens:      TokenFunc(func() string { return token }),
		Provider:    prov,
		Broadcaster: events,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return mgr
}

func TestSubscribeAddsTopicAndEmits(t *testing.T) {
	prov := &fakeProvider{}
	events := &broadcaster.Capture{}
	mgr := newTestManager(t, "tok", prov, events)

	if err := mgr.Subscribe(context.Background(), "alerts"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !mgr.Contains("alerts") || len(prov.subscribed) != 1 || prov.subscribed[0] != "tok|alerts" {
		t.Fatalf("expected provider binding and set membership, got %v", prov.subscribed)
	}
	topics := events.Topics()
	if len(topics) != 2 || topics[0] != domain.EventSubscriptionAdded || topics[1] != "toast.success" {
		t.Fatalf("unexpected events %v", topics)
	}
}

func TestSubscribeTwiceFailsAlreadySubscribed(t *testing.T) {
	prov := &fakeProvider{}
	mgr := newTestManager(t, "tok", prov, &broadcaster.Capture{})

	if err := mgr.Subscribe(context.Background(), "x"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	err := mgr.Subscribe(context.Background(), "x")
	if !errors.Is(err, domain.ErrAlreadySubscribed) {
		t.Fatalf("expected already subscribed, got %v", err)
	}
	if len(prov.subscribed) != 1 {
		t.Fatalf("expected provider not to be called again, got %d calls", len(prov.subscribed))
	}
	if topics := mgr.Topics(); len(topics) != 1 || topics[0] != "x" {
		t.Fatalf("expected exactly one x, got %v", topics)
	}
}

func TestSubscribeWithoutToken(t *testing.T) {
	prov := &fakeProvider{}
	events := &broadcaster.Capture{}
	mgr := newTestManager(t, "", prov, events)

	if err := mgr.Subscribe(context.Background(), "x"); !errors.Is(err, domain.ErrTokenUnavailable) {
		t.Fatalf("expected token unavailable, got %v", err)
	}
	if err := mgr.Unsubscribe(context.Background(), "x"); !errors.Is(err, domain.ErrTokenUnavailable) {
		t.Fatalf("expected token unavailable, got %v", err)
	}
	if len(prov.subscribed)+len(prov.unsubscribed) != 0 {
		t.Fatalf("expected no provider calls")
	}
	if topics := events.Topics(); len(topics) != 2 || topics[0] != "toast.error" {
		t.Fatalf("expected error toasts, got %v", topics)
	}
}

func TestSubscribeRejectsInvalidTopic(t *testing.T) {
	prov := &fakeProvider{}
	mgr := newTestManager(t, "tok", prov, &broadcaster.Capture{})
	if err := mgr.Subscribe(context.Background(), "bad topic!"); !errors.Is(err, domain.ErrInvalidTopic) {
		t.Fatalf("expected invalid topic, got %v", err)
	}
	if len(prov.subscribed) != 0 {
		t.Fatalf("expected no provider call")
	}
}

func TestProviderFailureLeavesSetUnchanged(t *testing.T) {
	prov := &fakeProvider{subscribeErr: errors.New("quota exceeded")}
	events := &broadcaster.Capture{}
	mgr := newTestManager(t, "tok", prov, events)

	err := mgr.Subscribe(context.Background(), "alerts")
	if !errors.Is(err, domain.ErrProviderRequestFailed) {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if mgr.Contains("alerts") {
		t.Fatalf("expected set unchanged")
	}
	topics := events.Topics()
	if len(topics) != 2 || topics[0] != domain.EventSubscriptionFailed || topics[1] != "toast.error" {
		t.Fatalf("unexpected events %v", topics)
	}
	change, _ := events.Events[0].Payload.(Change)
	if change.Error != "quota exceeded" {
		t.Fatalf("expected provider message in event, got %q", change.Error)
	}
	alert, _ := events.Events[1].Payload.(domain.Alert)
	if alert.Description != "quota exceeded" {
		t.Fatalf("expected provider message in toast, got %q", alert.Description)
	}
}

func TestUnsubscribeNonMemberStillCallsProvider(t *testing.T) {
	prov := &fakeProvider{}
	mgr := newTestManager(t, "tok", prov, &broadcaster.Capture{})

	if err := mgr.Unsubscribe(context.Background(), "ghost"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if len(prov.unsubscribed) != 1 {
		t.Fatalf("expected provider call, got %d", len(prov.unsubscribed))
	}
	if len(mgr.Topics()) != 0 {
		t.Fatalf("expected empty set")
	}
}

func TestUnsubscribeRemovesTopic(t *testing.T) {
	prov := &fakeProvider{}
	mgr := newTestManager(t, "tok", prov, &broadcaster.Capture{})
	_ = mgr.Subscribe(context.Background(), "a")
	_ = mgr.Subscribe(context.Background(), "b")

	if err := mgr.Unsubscribe(context.Background(), "a"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if topics := mgr.Topics(); len(topics) != 1 || topics[0] != "b" {
		t.Fatalf("expected [b], got %v", topics)
	}
}

func TestSwitchKeepsCompletedStep(t *testing.T) {
	prov := &fakeProvider{}
	mgr := newTestManager(t, "tok", prov, &broadcaster.Capture{})
	_ = mgr.Subscribe(context.Background(), "old")

	prov.subscribeErr = errors.New("boom")
	err := mgr.Switch(context.Background(), "old", "new")
	if !errors.Is(err, domain.ErrProviderRequestFailed) {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if mgr.Contains("old") || mgr.Contains("new") {
		t.Fatalf("expected set to reflect completed unsubscribe only, got %v", mgr.Topics())
	}
}

func TestSwitchStopsWhenUnsubscribeFails(t *testing.T) {
	prov := &fakeProvider{}
	mgr := newTestManager(t, "tok", prov, &broadcaster.Capture{})
	_ = mgr.Subscribe(context.Background(), "old")

	prov.unsubscribeErr = errors.New("boom")
	if err := mgr.Switch(context.Background(), "old", "new"); err == nil {
		t.Fatalf("expected error")
	}
	if !mgr.Contains("old") || mgr.Contains("new") || len(prov.subscribed) != 1 {
		t.Fatalf("expected no subscribe after failed unsubscribe, got %v", mgr.Topics())
	}
}

func TestSetKeepsInsertionOrder(t *testing.T) {
	set := NewSet("b", "a", "b", "c")
	if got := set.Topics(); len(got) != 3 || got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Fatalf("unexpected order %v", got)
	}
	set.Remove("a")
	if got := set.Topics(); len(got) != 2 || got[1] != "c" {
		t.Fatalf("unexpected order after remove %v", got)
	}
}
