package toolruntime

import (
	"context"
	"testing"

	"github.com/orbitalflow/engine/internal/orcherr"
)

func TestOSSandboxRejectsUnsupportedLanguage(t *testing.T) {
	s := NewOSSandbox()
	_, err := s.Run(context.Background(), "ruby", "puts 1", 1000, 64, nil)
	if !orcherr.Is(err, orcherr.KindSandbox) {
		t.Fatalf("expected sandbox error, got %v", err)
	}
}

func TestNewOSSandboxRegistersDefaultInterpreters(t *testing.T) {
	s := NewOSSandbox()
	if s.Interpreters["python"] != "python3" {
		t.Errorf("python interpreter = %q, want python3", s.Interpreters["python"])
	}
	if s.Interpreters["javascript"] != "node" {
		t.Errorf("javascript interpreter = %q, want node", s.Interpreters["javascript"])
	}
}
