package executor

import (
	"context"
	"testing"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
)

type fakeToolRuntime struct {
	lastArgs map[string]any
	output   any
	err      error
}

func (f *fakeToolRuntime) Invoke(_ context.Context, _ string, args map[string]any) (any, bool, error) {
	f.lastArgs = args
	return f.output, true, f.err
}

func TestToolExecutorMergesStaticArgsAndInputMappings(t *testing.T) {
	d := newTestDeps(t)
	fake := &fakeToolRuntime{output: "ok"}
	d.Tools = fake
	exec := &toolExecutor{d}

	spec := &node.Spec{
		ID:   "t1",
		Tool: &node.ToolConfig{ToolName: "http.get", Args: map[string]any{"static": "value"}},
		Inputs: []node.InputMapping{
			{Field: "dynamic", Expression: "$inputs.user_id"},
		},
	}
	snap := &ctxbuild.Context{Inputs: map[string]any{"user_id": "u1"}}

	result, err := exec.Execute(context.Background(), spec, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "ok" {
		t.Errorf("Output = %v, want ok", result.Output)
	}
	if fake.lastArgs["static"] != "value" || fake.lastArgs["dynamic"] != "u1" {
		t.Errorf("lastArgs = %v", fake.lastArgs)
	}
}

func TestToolExecutorFallsBackToDefaultOnUnresolvedMapping(t *testing.T) {
	d := newTestDeps(t)
	fake := &fakeToolRuntime{output: "ok"}
	d.Tools = fake
	exec := &toolExecutor{d}

	spec := &node.Spec{
		ID:   "t1",
		Tool: &node.ToolConfig{ToolName: "http.get"},
		Inputs: []node.InputMapping{
			{Field: "missing", Expression: "$nodes.absent.field", Default: "fallback"},
		},
	}

	_, err := exec.Execute(context.Background(), spec, &ctxbuild.Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.lastArgs["missing"] != "fallback" {
		t.Errorf("missing = %v, want fallback", fake.lastArgs["missing"])
	}
}

func TestToolExecutorRejectsMissingConfig(t *testing.T) {
	d := newTestDeps(t)
	exec := &toolExecutor{d}
	_, err := exec.Execute(context.Background(), &node.Spec{ID: "t1"}, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected error for missing tool config")
	}
}

func TestToolExecutorWrapsToolFailure(t *testing.T) {
	d := newTestDeps(t)
	d.Tools = &fakeToolRuntime{err: context.DeadlineExceeded}
	exec := &toolExecutor{d}

	_, err := exec.Execute(context.Background(), &node.Spec{ID: "t1", Tool: &node.ToolConfig{ToolName: "x"}}, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected wrapped tool error")
	}
}
