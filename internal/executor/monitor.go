package executor

import (
	"context"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

type monitorExecutor struct{ d *Deps }

func (e *monitorExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.Monitor
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "monitor node missing config")
	}
	v, err := e.d.Templater.Eval(stripDollarDot(cfg.Metric), snap)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "failed to resolve monitored metric")
	}
	metric, ok := toFloat(v)
	if !ok {
		return nil, orcherr.New(orcherr.KindContext, spec.ID, "monitored metric did not resolve to a number")
	}
	triggered := compare(metric, cfg.Comparator, cfg.Threshold)
	out := map[string]any{"value": metric, "triggered": triggered}
	if triggered {
		out["action"] = string(cfg.ActionOnTrigger)
		out["alert_channels"] = cfg.AlertChannels
	}
	return &Result{Output: out, Deterministic: true}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func compare(v float64, cmp string, threshold float64) bool {
	switch cmp {
	case "gt":
		return v > threshold
	case "lt":
		return v < threshold
	case "eq":
		return v == threshold
	default:
		return false
	}
}
