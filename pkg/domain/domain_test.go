package domain

import (
	"errors"
	"testing"
)

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{"": PriorityDefault, "1": PriorityMin, " 5 ": PriorityMax}
	for raw, want := range cases {
		got, err := ParsePriority(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %d, got %d", raw, want, got)
		}
	}
	if _, err := ParsePriority("9"); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
	if got := PriorityOrDefault("high"); got != PriorityDefault {
		t.Fatalf("expected default priority, got %d", got)
	}
}

func TestProviderErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("registration token is not valid")
	err := NewProviderError("subscribe", "alerts", cause)
	if !errors.Is(err, ErrProviderRequestFailed) {
		t.Fatalf("expected provider sentinel match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	if again := NewProviderError("other", "", err); again != err {
		t.Fatalf("expected existing provider error to be returned as is")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Message() != cause.Error() {
		t.Fatalf("unexpected message %v", err)
	}
}

func TestValidateTopic(t *testing.T) {
	if err := ValidateTopic("/topics/weather-eu"); err != nil {
		t.Fatalf("expected valid topic: %v", err)
	}
	for _, bad := range []string{"", "  ", "has space", "semi;colon"} {
		if err := ValidateTopic(bad); !errors.Is(err, ErrInvalidTopic) {
			t.Fatalf("expected invalid topic for %q, got %v", bad, err)
		}
	}
}

func TestTopicPayloadShape(t *testing.T) {
	p := TopicPayload("/topics/alerts", "msg-1", PayloadNotification{Title: "Hi", Body: "there"}, map[string]string{"priority": "4"})
	if p.From != "/topics/alerts" || p.DataValue("topic") != "alerts" || p.DataValue("priority") != "4" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if p.Title() != "Hi" || p.Body() != "there" || p.MessageID != "msg-1" {
		t.Fatalf("unexpected notification block %+v", p.Notification)
	}
}

func TestNotificationTagList(t *testing.T) {
	n := Notification{Tags: "warning, ,skull"}
	tags := n.TagList()
	if len(tags) != 2 || tags[0] != "warning" || tags[1] != "skull" {
		t.Fatalf("unexpected tags %v", tags)
	}
}
