package toolruntime

import (
	"context"
	"testing"

	"github.com/orbitalflow/engine/internal/registry"
)

type echoTool struct {
	deterministic bool
}

func (e *echoTool) Invoke(_ context.Context, args map[string]any) (any, error) {
	return args["message"], nil
}

func (e *echoTool) IsDeterministic() bool { return e.deterministic }

func newRuntime(deterministic bool) *Runtime {
	reg := registry.New()
	reg.RegisterFactory(KindTool, "tools/echo", func(map[string]any) (any, error) {
		return &echoTool{deterministic: deterministic}, nil
	})
	return New(reg)
}

func TestInvokeDispatchesToRegisteredTool(t *testing.T) {
	rt := newRuntime(true)
	out, deterministic, err := rt.Invoke(context.Background(), "tools/echo", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hi" {
		t.Errorf("out = %v, want hi", out)
	}
	if !deterministic {
		t.Error("expected tool to report deterministic")
	}
}

func TestInvokeFailsForUnregisteredTool(t *testing.T) {
	rt := newRuntime(false)
	_, _, err := rt.Invoke(context.Background(), "tools/missing", nil)
	if err == nil {
		t.Fatal("expected error for unregistered tool")
	}
}

func TestInvokeValidatesAgainstRegisteredSchema(t *testing.T) {
	rt := newRuntime(false)
	err := rt.RegisterSchema("tools/echo", map[string]any{
		"type":     "object",
		"required": []any{"message"},
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
	})
	if err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	if _, _, err := rt.Invoke(context.Background(), "tools/echo", map[string]any{}); err == nil {
		t.Fatal("expected schema validation to reject missing required field")
	}

	if _, _, err := rt.Invoke(context.Background(), "tools/echo", map[string]any{"message": "hi"}); err != nil {
		t.Fatalf("expected valid args to pass, got %v", err)
	}
}
