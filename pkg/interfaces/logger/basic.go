package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// BasicLogger prints log lines using fmt.Fprintf.
type BasicLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	fields []Field
	min    int
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

var _ Logger = (*BasicLogger)(nil)

// New returns a basic logger that writes to stdout.
func New() *BasicLogger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter returns a basic logger that writes to w.
func NewWithWriter(w io.Writer) *BasicLogger {
	if w == nil {
		w = os.Stdout
	}
	return &BasicLogger{
		mu:  &sync.Mutex{},
		out: w,
	}
}

// Default returns the default basic logger implementation.
func Default() Logger {
	return New()
}

// WithMinLevel returns a copy that drops lines below level (debug, info, warn, error).
// Unknown levels keep every line.
func (l *BasicLogger) WithMinLevel(level string) *BasicLogger {
	next := *l
	next.min = levelRank[strings.ToUpper(strings.TrimSpace(level))]
	return &next
}

// With returns a logger that includes the fields on each log line.
func (l *BasicLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	next := &BasicLogger{
		mu:     l.mu,
		out:    l.out,
		min:    l.min,
		fields: make([]Field, 0, len(l.fields)+len(fields)),
	}
	next.fields = append(next.fields, l.fields...)
	next.fields = append(next.fields, fields...)
	return next
}

func (l *BasicLogger) Debug(msg string, fields ...Field) { l.log("DEBUG", msg, fields) }
func (l *BasicLogger) Info(msg string, fields ...Field)  { l.log("INFO", msg, fields) }
func (l *BasicLogger) Warn(msg string, fields ...Field)  { l.log("WARN", msg, fields) }
func (l *BasicLogger) Error(msg string, fields ...Field) { l.log("ERROR", msg, fields) }

func (l *BasicLogger) log(level, msg string, fields []Field) {
	if levelRank[level] < l.min {
		return
	}
	line := fmt.Sprintf("[%s] %s", level, msg)
	if rendered := formatFields(l.fields, fields); rendered != "" {
		line += " " + rendered
	}
	l.mu.Lock()
	fmt.Fprintf(l.out, "%s\n", line)
	l.mu.Unlock()
}

func formatFields(groups ...[]Field) string {
	var parts []string
	for _, group := range groups {
		for _, f := range group {
			if f.Key == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
		}
	}
	return strings.Join(parts, " ")
}
