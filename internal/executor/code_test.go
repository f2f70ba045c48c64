package executor

import (
	"context"
	"testing"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
)

type fakeSandbox struct {
	lastLanguage string
	lastInput    map[string]any
	output       any
	err          error
}

func (f *fakeSandbox) Run(_ context.Context, language, _ string, _, _ int, input map[string]any) (any, error) {
	f.lastLanguage = language
	f.lastInput = input
	return f.output, f.err
}

func TestCodeExecutorPassesResolvedInputsToSandbox(t *testing.T) {
	d := newTestDeps(t)
	sandbox := &fakeSandbox{output: map[string]any{"result": 42}}
	d.Sandbox = sandbox
	exec := &codeExecutor{d}

	spec := &node.Spec{
		ID:   "c1",
		Code: &node.CodeConfig{Language: "python", Source: "print(1)"},
		Inputs: []node.InputMapping{
			{Field: "n", Expression: "$inputs.count"},
		},
	}
	snap := &ctxbuild.Context{Inputs: map[string]any{"count": 7}}

	result, err := exec.Execute(context.Background(), spec, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sandbox.lastLanguage != "python" {
		t.Errorf("lastLanguage = %q, want python", sandbox.lastLanguage)
	}
	if sandbox.lastInput["n"] != int64(7) {
		t.Errorf("lastInput[n] = %v, want 7", sandbox.lastInput["n"])
	}
	out, ok := result.Output.(map[string]any)
	if !ok || out["result"] != 42 {
		t.Errorf("Output = %v, want map with result=42", result.Output)
	}
}

func TestCodeExecutorRejectsMissingConfig(t *testing.T) {
	d := newTestDeps(t)
	exec := &codeExecutor{d}
	_, err := exec.Execute(context.Background(), &node.Spec{ID: "c1"}, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected error for missing code config")
	}
}

func TestCodeExecutorWrapsSandboxFailure(t *testing.T) {
	d := newTestDeps(t)
	d.Sandbox = &fakeSandbox{err: context.DeadlineExceeded}
	exec := &codeExecutor{d}

	spec := &node.Spec{ID: "c1", Code: &node.CodeConfig{Language: "python", Source: "x"}}
	_, err := exec.Execute(context.Background(), spec, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected wrapped sandbox error")
	}
}
