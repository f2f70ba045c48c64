package executor

import (
	"context"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

type llmExecutor struct{ d *Deps }

func (e *llmExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.LLM
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "llm node missing config")
	}
	prompt, err := e.d.Templater.Render(cfg.Prompt, snap)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "failed to render prompt")
	}
	system, err := e.d.Templater.Render(cfg.SystemPrompt, snap)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "failed to render system prompt")
	}
	text, tokens, err := e.d.LLM.Complete(ctx, cfg.Provider, cfg.Model, system, prompt, cfg.Temperature, cfg.MaxTokens)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindProvider, spec.ID, err, "provider %q model %q failed", cfg.Provider, cfg.Model)
	}
	if spec.Guards.TokenCeiling > 0 && tokens > spec.Guards.TokenCeiling {
		return nil, orcherr.New(orcherr.KindBudgetExceeded, spec.ID, "token ceiling %d exceeded: used %d", spec.Guards.TokenCeiling, tokens)
	}
	return &Result{Output: map[string]any{"text": text}, TokensUsed: tokens}, nil
}
