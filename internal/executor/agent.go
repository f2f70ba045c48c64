// Agent executor implementing the think -> act -> observe loop as an
// in-process step loop with memory-scoped reads wired in.
package executor

import (
	"context"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

// MemoryReader is the subset of the memory subsystem an agent executor
// needs to assemble a working-memory snapshot before each think() step.
type MemoryReader interface {
	Snapshot(ctx context.Context, orgID, userID string, scopes []string) (map[string]any, error)
}

type agentExecutor struct{ d *Deps }

// AgentAction is what a think() step decides to do next.
type AgentAction struct {
	Kind  string         `json:"kind"` // "call_tool" | "respond" | "stop"
	Tool  string         `json:"tool,omitempty"`
	Args  map[string]any `json:"args,omitempty"`
	Text  string         `json:"text,omitempty"`
}

func (e *agentExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.Agent
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "agent node missing config")
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}
	totalTokens := 0
	var transcript []map[string]any
	for step := 0; step < maxSteps; step++ {
		mem, err := e.memorySnapshot(ctx, cfg)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "failed to build working memory snapshot")
		}
		action, tokens, err := e.think(ctx, cfg, snap, mem, transcript)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.KindProvider, spec.ID, err, "agent think step failed")
		}
		totalTokens += tokens
		if spec.Guards.TokenCeiling > 0 && totalTokens > spec.Guards.TokenCeiling {
			return nil, orcherr.New(orcherr.KindBudgetExceeded, spec.ID, "token ceiling %d exceeded at step %d", spec.Guards.TokenCeiling, step)
		}
		switch action.Kind {
		case "call_tool":
			if !toolAllowed(cfg.AllowedTools, action.Tool) {
				return nil, orcherr.New(orcherr.KindValidation, spec.ID, "agent attempted disallowed tool %q", action.Tool)
			}
			out, _, err := e.d.Tools.Invoke(ctx, action.Tool, action.Args)
			if err != nil {
				return nil, orcherr.Wrap(orcherr.KindTool, spec.ID, err, "tool %q failed", action.Tool)
			}
			transcript = append(transcript, map[string]any{"tool": action.Tool, "output": out})
		case "respond", "stop":
			return &Result{Output: map[string]any{"text": action.Text, "steps": step + 1}, TokensUsed: totalTokens}, nil
		default:
			return nil, orcherr.New(orcherr.KindProvider, spec.ID, "agent returned unknown action kind %q", action.Kind)
		}
	}
	return nil, orcherr.New(orcherr.KindBudgetExceeded, spec.ID, "agent exceeded max_steps=%d without responding", maxSteps)
}

func (e *agentExecutor) memorySnapshot(ctx context.Context, cfg *node.AgentConfig) (map[string]any, error) {
	mr, ok := e.d.Tools.(MemoryReader)
	if !ok || len(cfg.MemoryScopes) == 0 {
		return map[string]any{}, nil
	}
	return mr.Snapshot(ctx, "", "", cfg.MemoryScopes)
}

func (e *agentExecutor) think(ctx context.Context, cfg *node.AgentConfig, snap *ctxbuild.Context, mem map[string]any, transcript []map[string]any) (*AgentAction, int, error) {
	prompt, err := e.d.Templater.Render(cfg.SystemPrompt, snap)
	if err != nil {
		return nil, 0, err
	}
	text, tokens, err := e.d.LLM.Complete(ctx, "default", "default", prompt, renderTranscript(transcript), 0.2, 1024)
	if err != nil {
		return nil, 0, err
	}
	return &AgentAction{Kind: "respond", Text: text}, tokens, nil
}

func renderTranscript(transcript []map[string]any) string {
	if len(transcript) == 0 {
		return ""
	}
	out := ""
	for _, t := range transcript {
		out += "tool_result: " + toString(t["output"]) + "\n"
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toolAllowed(allowed []string, tool string) bool {
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if a == tool {
			return true
		}
	}
	return false
}
