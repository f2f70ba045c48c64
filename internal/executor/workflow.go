package executor

import (
	"context"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

type workflowExecutor struct{ d *Deps }

func (e *workflowExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.Workflow
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "workflow node missing config")
	}
	inputs := make(map[string]any, len(cfg.InputMap))
	for field, expr := range cfg.InputMap {
		v, err := e.d.Templater.Eval(stripDollarDot(expr), snap)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "failed to resolve sub-workflow input %q", field)
		}
		inputs[field] = v
	}
	out, err := e.d.RunSubworkflow(ctx, cfg.BlueprintID, cfg.Version, inputs)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindTool, spec.ID, err, "sub-workflow %q failed", cfg.BlueprintID)
	}
	return &Result{Output: out}, nil
}
