package logger

import (
	"context"
	"testing"
)

func TestParseLevelMapsKnownNames(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
		"":      "INFO",
		"bogus": "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithFieldsAttachesStructuredFields(t *testing.T) {
	l := New("info", "json")
	derived := l.WithFields(map[string]any{"user": "u1"})
	if derived == l {
		t.Error("WithFields should return a distinct logger instance")
	}
	if !derived.Enabled(context.Background(), 0) {
		t.Error("derived logger should still be enabled at info level")
	}
}

func TestWithExecutionIDAndNodeIDReturnDistinctLoggers(t *testing.T) {
	l := New("info", "text")
	withExec := l.WithExecutionID("exec-1")
	withNode := withExec.WithNodeID("node-1")
	if withExec == l || withNode == withExec {
		t.Error("each With* call should return a new logger instance")
	}
}

func TestWithContextAddsTraceIDWhenPresent(t *testing.T) {
	l := New("info", "json")
	ctx := context.WithValue(context.Background(), "trace_id", "t-1")
	derived := l.WithContext(ctx)
	if derived == l {
		t.Error("expected a distinct logger when trace_id is present")
	}
}

func TestWithContextReturnsSameLoggerWithoutTraceID(t *testing.T) {
	l := New("info", "json")
	derived := l.WithContext(context.Background())
	if derived != l {
		t.Error("expected the same logger when no trace_id is present")
	}
}
