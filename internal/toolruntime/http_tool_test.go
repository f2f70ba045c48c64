package toolruntime

import (
	"context"
	"testing"

	"github.com/orbitalflow/engine/internal/orcherr"
	"github.com/orbitalflow/engine/internal/registry"
)

func TestHTTPToolRejectsMissingURL(t *testing.T) {
	tool := NewHTTPTool()
	_, err := tool.Invoke(context.Background(), map[string]any{})
	if !orcherr.Is(err, orcherr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHTTPToolRejectsURLFailingSecurityValidation(t *testing.T) {
	tool := NewHTTPTool()
	_, err := tool.Invoke(context.Background(), map[string]any{"url": "http://127.0.0.1/admin"})
	if !orcherr.Is(err, orcherr.KindTool) {
		t.Fatalf("expected tool error for loopback url, got %v", err)
	}
}

func TestHTTPToolIsNotDeterministic(t *testing.T) {
	tool := NewHTTPTool()
	if tool.IsDeterministic() {
		t.Error("IsDeterministic() = true, want false")
	}
}

func TestRegisterBuiltinsRegistersHTTPFactory(t *testing.T) {
	reg := registry.New()
	RegisterBuiltins(reg)

	inst, err := reg.New(KindTool, "http", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := inst.(*HTTPTool); !ok {
		t.Errorf("New(KindTool, \"http\") returned %T, want *HTTPTool", inst)
	}
}
