// Control-flow executors: condition, loop, parallel. Each returns the
// set of next node IDs directly to the engine's scheduler rather than
// routing a token through a broker.
package executor

import (
	"context"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

type conditionExecutor struct{ d *Deps }

func (e *conditionExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.Condition
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "condition node missing config")
	}
	v, err := e.d.Templater.Eval(cfg.Expression, snap)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "condition evaluation failed")
	}
	truthy, ok := v.(bool)
	if !ok {
		return nil, orcherr.New(orcherr.KindContext, spec.ID, "condition expression did not evaluate to a boolean")
	}
	next := cfg.OnFalse
	if truthy {
		next = cfg.OnTrue
	}
	return &Result{Output: map[string]any{"result": truthy}, NextNodes: next, Deterministic: true}, nil
}

type loopExecutor struct{ d *Deps }

func (e *loopExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.Loop
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "loop node missing config")
	}
	var items []any
	if cfg.Items != "" {
		v, err := e.d.Templater.Eval(stripDollarDot(cfg.Items), snap)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "failed to resolve loop items")
		}
		sl, ok := v.([]any)
		if !ok {
			return nil, orcherr.New(orcherr.KindContext, spec.ID, "loop items expression did not evaluate to a list")
		}
		items = sl
	}
	iterations := cfg.MaxIterations
	if items != nil && len(items) < iterations {
		iterations = len(items)
	}
	if cfg.Condition != "" {
		v, err := e.d.Templater.Eval(cfg.Condition, snap)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "loop condition evaluation failed")
		}
		cont, _ := v.(bool)
		if !cont {
			return &Result{Output: map[string]any{"iterations": 0, "broke": true}, NextNodes: nil, Deterministic: true}, nil
		}
	}
	// The engine does not re-enter cfg.Body per iteration: it schedules the
	// body nodes once, as ordinary dependents. This executor only gates
	// entry and reports the iteration bound.
	return &Result{
		Output:    map[string]any{"max_iterations": iterations},
		NextNodes: cfg.Body,
	}, nil
}

type parallelExecutor struct{ d *Deps }

func (e *parallelExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.Parallel
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "parallel node missing config")
	}
	var next []string
	for _, branch := range cfg.Branches {
		if len(branch) > 0 {
			next = append(next, branch[0])
		}
	}
	return &Result{
		Output:    map[string]any{"branches": len(cfg.Branches), "join_policy": cfg.JoinPolicy},
		NextNodes: next,
	}, nil
}
