package relay

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/broadcaster"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Clients() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d relay clients, got %d", n, hub.Clients())
}

func TestRelayRoundTrip(t *testing.T) {
	hub, srv, _ := startHub(t)

	received := make(chan domain.Payload, 4)
	src := NewSource(srv.URL, nil, WithReconnect(10*time.Millisecond, 50*time.Millisecond))
	if src.Channel() != domain.ChannelBackground {
		t.Fatalf("expected background channel")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(p domain.Payload) { received <- p })
	}()
	waitClients(t, hub, 1)

	want := domain.TopicPayload("alerts", "msg-1", domain.PayloadNotification{Title: "Hi", Body: "there"}, map[string]string{"priority": "4"})
	if err := hub.Broadcast(context.Background(), broadcaster.Event{Topic: domain.EventPayloadRelayed, Payload: want}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	select {
	case got := <-received:
		if got.MessageID != "msg-1" || got.From != "/topics/alerts" || got.Title() != "Hi" || got.DataValue("priority") != "4" {
			t.Fatalf("unexpected payload %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for relayed payload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("source did not stop")
	}
}

func TestBroadcastIgnoresNonPayloadEvents(t *testing.T) {
	hub := NewHub(nil)
	if err := hub.Broadcast(context.Background(), broadcaster.Event{Topic: "toast.info", Payload: domain.Alert{}}); err != nil {
		t.Fatalf("expected non payload event to be ignored, got %v", err)
	}
	if len(hub.broadcast) != 0 {
		t.Fatalf("expected nothing queued")
	}
}

func TestRelayAfterStop(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	hub.Close()
	<-stopped
	cancel()

	for i := 0; i < cap(hub.broadcast); i++ {
		hub.broadcast <- nil
	}
	if err := hub.Relay(context.Background(), domain.Payload{}); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("expected hub stopped, got %v", err)
	}
}

func TestStreamURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/api/stream": "ws://localhost:8080/api/stream",
		"https://push.example.com/stream":  "wss://push.example.com/stream",
		"ws://already":                     "ws://already",
	}
	for in, want := range cases {
		if got := StreamURL(in); got != want {
			t.Fatalf("StreamURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSourceRequiresURL(t *testing.T) {
	if err := NewSource("", nil).Run(context.Background(), func(domain.Payload) {}); err == nil {
		t.Fatalf("expected error without url")
	}
}
