package executor

import (
	"context"
	"testing"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
)

type fakeLLM struct {
	lastProvider string
	lastModel    string
	lastSystem   string
	lastPrompt   string
	text         string
	tokens       int
	err          error
}

func (f *fakeLLM) Complete(_ context.Context, provider, model, system, prompt string, _ float64, _ int) (string, int, error) {
	f.lastProvider, f.lastModel, f.lastSystem, f.lastPrompt = provider, model, system, prompt
	return f.text, f.tokens, f.err
}

func TestLLMExecutorRendersPromptsAndReturnsText(t *testing.T) {
	d := newTestDeps(t)
	llm := &fakeLLM{text: "hello there", tokens: 12}
	d.LLM = llm
	exec := &llmExecutor{d}

	spec := &node.Spec{ID: "l1", LLM: &node.LLMConfig{
		Provider: "anthropic", Model: "claude", Prompt: "{{ inputs.topic }}", SystemPrompt: "be terse",
	}}
	snap := &ctxbuild.Context{Inputs: map[string]any{"topic": "go"}}

	result, err := exec.Execute(context.Background(), spec, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.lastProvider != "anthropic" || llm.lastModel != "claude" {
		t.Errorf("provider/model = %q/%q", llm.lastProvider, llm.lastModel)
	}
	if llm.lastPrompt != "go" {
		t.Errorf("lastPrompt = %q, want go", llm.lastPrompt)
	}
	out, ok := result.Output.(map[string]any)
	if !ok || out["text"] != "hello there" {
		t.Errorf("Output = %v", result.Output)
	}
	if result.TokensUsed != 12 {
		t.Errorf("TokensUsed = %d, want 12", result.TokensUsed)
	}
}

func TestLLMExecutorRejectsMissingConfig(t *testing.T) {
	d := newTestDeps(t)
	exec := &llmExecutor{d}
	_, err := exec.Execute(context.Background(), &node.Spec{ID: "l1"}, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected error for missing llm config")
	}
}

func TestLLMExecutorEnforcesTokenCeiling(t *testing.T) {
	d := newTestDeps(t)
	d.LLM = &fakeLLM{text: "x", tokens: 500}
	exec := &llmExecutor{d}

	spec := &node.Spec{
		ID:     "l1",
		LLM:    &node.LLMConfig{Provider: "anthropic", Model: "claude", Prompt: "hi"},
		Guards: node.Guards{TokenCeiling: 100},
	}
	_, err := exec.Execute(context.Background(), spec, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected error for exceeded token ceiling")
	}
}

func TestLLMExecutorWrapsProviderFailure(t *testing.T) {
	d := newTestDeps(t)
	d.LLM = &fakeLLM{err: context.DeadlineExceeded}
	exec := &llmExecutor{d}

	spec := &node.Spec{ID: "l1", LLM: &node.LLMConfig{Provider: "anthropic", Model: "claude", Prompt: "hi"}}
	_, err := exec.Execute(context.Background(), spec, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected wrapped provider error")
	}
}
