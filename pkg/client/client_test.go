package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/provider"
)

func TestPublishRoundTrip(t *testing.T) {
	var got PublishInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathSend || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Notification sent successfully","response":"msg-42"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	receipt, err := c.Send(context.Background(), "alerts", provider.Notification{Title: "Hi", Body: "there"}, map[string]string{"priority": "5", "tags": "x"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if receipt.MessageID != "msg-42" {
		t.Fatalf("expected message id, got %q", receipt.MessageID)
	}
	if got.Topic != "alerts" || got.Message != "there" || got.Priority != "5" || got.Tags != "x" {
		t.Fatalf("unexpected request body %+v", got)
	}
}

func TestErrorUsesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"invalid registration token"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	err := c.SubscribeToken(context.Background(), "tok", "alerts")
	if !errors.Is(err, domain.ErrProviderRequestFailed) {
		t.Fatalf("expected provider error, got %v", err)
	}
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Message() != "invalid registration token" || pe.Op != "subscribe" {
		t.Fatalf("unexpected provider error %+v", pe)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestErrorFallsBackToGenericMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	err := c.UnsubscribeToken(context.Background(), "tok", "alerts")
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Message() != genericFailure {
		t.Fatalf("expected generic failure, got %v", err)
	}
}

func TestTransportErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := New(url)
	if _, err := c.Publish(context.Background(), PublishInput{Topic: "a", Title: "t", Message: "m"}); !errors.Is(err, domain.ErrProviderRequestFailed) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New("  "); !errors.Is(err, ErrBaseURLRequired) {
		t.Fatalf("expected base url error, got %v", err)
	}
}
