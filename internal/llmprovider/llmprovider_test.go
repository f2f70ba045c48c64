package llmprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/orbitalflow/engine/internal/orcherr"
)

func TestCompleteRejectsUnsupportedProvider(t *testing.T) {
	d := New(Config{})
	_, _, err := d.Complete(context.Background(), "mistral", "", "", "hi", 0.5, 100)
	if !orcherr.Is(err, orcherr.KindProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCompleteRejectsUnconfiguredAnthropic(t *testing.T) {
	d := New(Config{})
	_, _, err := d.Complete(context.Background(), "anthropic", "", "", "hi", 0.5, 100)
	if !orcherr.Is(err, orcherr.KindProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCompleteRejectsUnconfiguredOpenAI(t *testing.T) {
	d := New(Config{})
	_, _, err := d.Complete(context.Background(), "openai", "", "", "hi", 0.5, 100)
	if !orcherr.Is(err, orcherr.KindProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	d := New(Config{})
	if d.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", d.maxRetries)
	}
	if d.anthropicModel == "" || d.openaiModel == "" {
		t.Error("expected default model names to be set")
	}
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("429 too many requests"), true},
		{errors.New("503 service unavailable"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("invalid api key"), false},
		{context.DeadlineExceeded, false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := isRetryableError(tc.err); got != tc.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
