package executor

import (
	"context"
	"testing"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
)

type fakeMemoryTools struct {
	fakeToolRuntime
	snapshot map[string]any
	scopes   []string
}

func (f *fakeMemoryTools) Snapshot(_ context.Context, _, _ string, scopes []string) (map[string]any, error) {
	f.scopes = scopes
	return f.snapshot, nil
}

func TestAgentExecutorRespondsOnFirstStep(t *testing.T) {
	d := newTestDeps(t)
	d.LLM = &fakeLLM{text: "done", tokens: 10}
	exec := &agentExecutor{d}

	spec := &node.Spec{ID: "a1", Agent: &node.AgentConfig{SystemPrompt: "be helpful", MaxSteps: 3}}
	result, err := exec.Execute(context.Background(), spec, &ctxbuild.Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Output.(map[string]any)
	if out["text"] != "done" {
		t.Errorf("text = %v, want done", out["text"])
	}
	if result.TokensUsed != 10 {
		t.Errorf("TokensUsed = %d, want 10", result.TokensUsed)
	}
}

func TestAgentExecutorUsesMemoryScopesWhenConfigured(t *testing.T) {
	d := newTestDeps(t)
	d.LLM = &fakeLLM{text: "done"}
	mem := &fakeMemoryTools{snapshot: map[string]any{"k": "v"}}
	d.Tools = mem
	exec := &agentExecutor{d}

	spec := &node.Spec{ID: "a1", Agent: &node.AgentConfig{
		SystemPrompt: "be helpful", MemoryScopes: []string{"working"},
	}}
	_, err := exec.Execute(context.Background(), spec, &ctxbuild.Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mem.scopes) != 1 || mem.scopes[0] != "working" {
		t.Errorf("scopes = %v, want [working]", mem.scopes)
	}
}

func TestAgentExecutorEnforcesTokenCeiling(t *testing.T) {
	d := newTestDeps(t)
	d.LLM = &fakeLLM{text: "done", tokens: 1000}
	exec := &agentExecutor{d}

	spec := &node.Spec{
		ID:     "a1",
		Agent:  &node.AgentConfig{SystemPrompt: "be helpful"},
		Guards: node.Guards{TokenCeiling: 10},
	}
	_, err := exec.Execute(context.Background(), spec, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected error for exceeded token ceiling")
	}
}

func TestAgentExecutorWrapsThinkFailure(t *testing.T) {
	d := newTestDeps(t)
	d.LLM = &fakeLLM{err: context.DeadlineExceeded}
	exec := &agentExecutor{d}

	spec := &node.Spec{ID: "a1", Agent: &node.AgentConfig{SystemPrompt: "be helpful"}}
	_, err := exec.Execute(context.Background(), spec, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected wrapped think-step error")
	}
}

func TestAgentExecutorRejectsMissingConfig(t *testing.T) {
	d := newTestDeps(t)
	exec := &agentExecutor{d}
	_, err := exec.Execute(context.Background(), &node.Spec{ID: "a1"}, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected error for missing agent config")
	}
}
