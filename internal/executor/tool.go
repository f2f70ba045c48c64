package executor

import (
	"context"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

type toolExecutor struct{ d *Deps }

func (e *toolExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.Tool
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "tool node missing config")
	}
	args, err := resolveInputs(e.d.Templater, spec.Inputs, snap, cfg.Args)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, spec.ID, err, "failed to resolve tool inputs")
	}
	out, deterministic, err := e.d.Tools.Invoke(ctx, cfg.ToolName, args)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindTool, spec.ID, err, "tool %q failed", cfg.ToolName)
	}
	return &Result{Output: out, Deterministic: deterministic || spec.IsDeterministic}, nil
}

// resolveInputs merges a node's static config args with its dotted-path
// input mappings, mapping taking precedence, and renders any {{ }} tags in
// string-valued static args.
func resolveInputs(t *ctxbuild.Templater, mappings []node.InputMapping, snap *ctxbuild.Context, staticArgs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(staticArgs)+len(mappings))
	for k, v := range staticArgs {
		if s, ok := v.(string); ok {
			rendered, err := t.Render(s, snap)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
			continue
		}
		out[k] = v
	}
	for _, m := range mappings {
		v, err := t.Eval(stripDollarDot(m.Expression), snap)
		if err != nil {
			if m.Default != nil {
				out[m.Field] = m.Default
				continue
			}
			if m.Required {
				return nil, err
			}
			continue
		}
		out[m.Field] = v
	}
	return out, nil
}

// stripDollarDot converts the resolver's "$nodes.foo.bar" addressing
// convention into the CEL variable-access form "nodes.foo.bar".
func stripDollarDot(expr string) string {
	if len(expr) > 0 && expr[0] == '$' {
		return expr[1:]
	}
	return expr
}
