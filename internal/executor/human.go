// Human-in-the-loop executor. Parks the node on a blocking wait against
// the HumanResponder provided by the tool runtime in Deps.Tools, with an
// on_timeout fallback, instead of parking a token until an external
// response arrives over a broker.
package executor

import (
	"context"
	"time"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

// HumanResponder is implemented by the tool runtime in Deps.Tools; the
// human executor blocks on AwaitResponse until an external caller resolves
// the node or the timeout passes.
type HumanResponder interface {
	AwaitResponse(ctx context.Context, nodeID string, timeout time.Duration) (any, error)
}

type humanExecutor struct{ d *Deps }

func (e *humanExecutor) Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error) {
	cfg := spec.Human
	if cfg == nil {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "human node missing config")
	}
	responder, ok := e.d.Tools.(HumanResponder)
	if !ok {
		return nil, orcherr.New(orcherr.KindValidation, spec.ID, "no human responder wired into tool runtime")
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	resp, err := responder.AwaitResponse(ctx, spec.ID, timeout)
	if err != nil {
		if cfg.OnTimeout == "default" {
			return &Result{Output: map[string]any{"response": cfg.DefaultValue, "timed_out": true}}, nil
		}
		return nil, orcherr.Wrap(orcherr.KindTimeout, spec.ID, err, "human response timed out")
	}
	return &Result{Output: map[string]any{"response": resp}}, nil
}
