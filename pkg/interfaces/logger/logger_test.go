package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBasicLoggerIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	lgr := NewWithWriter(&buf).With(F("component", "feed"))
	lgr.Info("ingested", F("id", "m-1"))

	line := buf.String()
	if !strings.HasPrefix(line, "[INFO] ingested") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "component=feed") || !strings.Contains(line, "id=m-1") {
		t.Fatalf("expected fields in line, got %q", line)
	}
}

func TestZerologWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	lgr := NewZerolog(zerolog.New(&buf)).With(F("component", "token"))
	lgr.Error("fetch failed", F("error", errors.New("boom")), F("attempt", 2))

	out := buf.String()
	for _, want := range []string{`"component":"token"`, `"error":"boom"`, `"attempt":2`, `"message":"fetch failed"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestBasicLoggerMinLevel(t *testing.T) {
	var buf bytes.Buffer
	lgr := NewWithWriter(&buf).WithMinLevel("warn")
	lgr.Debug("hidden")
	lgr.Info("hidden")
	lgr.With(F("k", "v")).Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "[WARN] shown k=v") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestErrFieldKeepsError(t *testing.T) {
	cause := errors.New("boom")
	f := Err(cause)
	if f.Key != "error" {
		t.Fatalf("expected error key, got %q", f.Key)
	}
	if got, ok := f.Value.(error); !ok || !errors.Is(got, cause) {
		t.Fatalf("expected wrapped cause, got %#v", f.Value)
	}
}
