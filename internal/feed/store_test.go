package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-httfy/pkg/domain"
)

func newTestStore() *Store {
	seq := 0
	return New(Dependencies{
		IDs: func() string {
			seq++
			return fmt.Sprintf("gen-%d", seq)
		},
		Clock: func() time.Time { return time.Unix(1700000000, 0) },
	})
}

func event(id, topic, title string) domain.InboundEvent {
	return domain.InboundEvent{
		Channel: domain.ChannelForeground,
		Payload: domain.Payload{
			MessageID:    id,
			Notification: &domain.PayloadNotification{Title: title, Body: "body"},
			Data:         map[string]string{"topic": topic},
		},
	}
}

func TestIngestBuildsNotification(t *testing.T) {
	store := newTestStore()
	n := store.Ingest(domain.InboundEvent{
		Channel: domain.ChannelBackground,
		Payload: domain.Payload{
			Notification: &domain.PayloadNotification{Body: "hello"},
			Data:         map[string]string{"priority": "9", "tags": "a,b", "link": "https://example.com"},
			From:         "/topics/alerts",
		},
	})
	if n.ID != "gen-1" {
		t.Fatalf("expected generated id, got %q", n.ID)
	}
	if n.Topic != "alerts" || n.Title != domain.DefaultTitle || n.Message != "hello" {
		t.Fatalf("unexpected notification %+v", n)
	}
	if n.Priority != domain.PriorityDefault {
		t.Fatalf("expected out of range priority to default, got %d", n.Priority)
	}
	if n.Tags != "a,b" || n.Link != "https://example.com" || n.Channel != domain.ChannelBackground {
		t.Fatalf("unexpected optional fields %+v", n)
	}
	if n.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}
}

func TestIngestDeduplicatesAndMovesToFront(t *testing.T) {
	store := newTestStore()
	store.Ingest(event("a", "news", "first"))
	store.Ingest(event("b", "news", "second"))
	store.Ingest(event("a", "news", "again"))

	all := store.All()
	if len(all) != 2 || store.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].ID != "a" || all[0].Title != "again" || all[1].ID != "b" {
		t.Fatalf("expected duplicate to replace and move to front, got %+v", all)
	}
	if got, ok := store.Get("a"); !ok || got.Title != "again" {
		t.Fatalf("expected get to return latest entry, got %+v", got)
	}
}

func TestLogIsNewestFirst(t *testing.T) {
	store := newTestStore()
	for _, id := range []string{"1", "2", "3"} {
		store.Ingest(event(id, "news", id))
	}
	all := store.All()
	if all[0].ID != "3" || all[2].ID != "1" {
		t.Fatalf("expected newest first, got %+v", all)
	}
}

func TestVisibleEmptySetIsEmpty(t *testing.T) {
	store := newTestStore()
	store.Ingest(event("a", "news", "x"))
	store.Ingest(domain.InboundEvent{Payload: domain.Payload{MessageID: "u"}})
	if got := store.Visible(nil); len(got) != 0 {
		t.Fatalf("expected no visible entries, got %d", len(got))
	}
}

func TestVisibleFilterRules(t *testing.T) {
	store := newTestStore()
	store.Ingest(event("1", "news", "exact"))
	store.Ingest(event("2", "sports", "other"))
	store.Ingest(domain.InboundEvent{Payload: domain.Payload{MessageID: "3"}})
	store.Ingest(event("4", "breaking-news", "contains"))

	visible := store.Visible([]string{"news"})
	ids := make([]string, 0, len(visible))
	for _, n := range visible {
		ids = append(ids, n.ID)
	}
	want := []string{"4", "3", "1"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
}

func TestMatchesIsNotReversedSubstring(t *testing.T) {
	if Matches("news", []string{"breaking-news"}) {
		t.Fatalf("notification topic contained in a subscribed topic must not match")
	}
	if !Matches(domain.UnknownTopic, []string{"anything"}) {
		t.Fatalf("unknown topic must match any non-empty set")
	}
	if Matches(domain.UnknownTopic, nil) {
		t.Fatalf("empty set must match nothing")
	}
}

func TestVisibleIncludesUnknownAndSuffixedTopics(t *testing.T) {
	store := newTestStore()
	store.Ingest(domain.InboundEvent{Payload: domain.Payload{MessageID: "u"}})
	store.Ingest(event("v2", "alerts-v2", "suffixed"))
	store.Ingest(event("w", "weather", "other"))

	visible := store.Visible([]string{"alerts"})
	if len(visible) != 2 || visible[0].ID != "v2" || visible[1].ID != "u" {
		t.Fatalf("expected suffixed and unknown entries, got %+v", visible)
	}
}
