package executor

import (
	"context"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

type codeExecutor struct{ d *Deps }

func (e *codeExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.Code
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "code node missing config")
	}
	input, err := resolveInputs(e.d.Templater, spec.Inputs, snap, nil)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "failed to resolve code node inputs")
	}
	timeout := cfg.TimeoutMS
	if timeout <= 0 {
		timeout = 5000
	}
	memLimit := cfg.MemoryLimitMB
	if memLimit <= 0 {
		memLimit = 256
	}
	out, err := e.d.Sandbox.Run(ctx, cfg.Language, cfg.Source, timeout, memLimit, input)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindSandbox, spec.ID, err, "sandboxed execution failed")
	}
	return &Result{Output: out, Deterministic: spec.IsDeterministic}, nil
}
