// Package executor implements the ten node executors. Each is a direct
// in-process call driven by the engine's scheduler rather than a
// Redis-token dispatch to an out-of-process worker.
package executor

import (
	"context"
	"time"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
)

// Result is what an executor returns for one node invocation.
type Result struct {
	Output      any
	NextNodes   []string // only meaningful for absorber nodes (condition/loop/parallel)
	TokensUsed  int
	Deterministic bool
}

// Executor runs one node given its spec and the immutable context
// snapshot built for it.
type Executor interface {
	Execute(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context) (*Result, error)
}

// Deps bundles the shared collaborators executors need: the templater
// for {{ }} expansion/CEL evaluation, the tool registry, the LLM provider
// dispatcher, and a callback to recursively run a sub-workflow.
type Deps struct {
	Templater     *ctxbuild.Templater
	Tools         ToolRuntime
	LLM           ProviderDispatcher
	RunSubworkflow func(ctx context.Context, blueprintID string, version int, inputs map[string]any) (map[string]any, error)
	Sandbox       CodeSandbox
	Clock         func() time.Time
}

// ToolRuntime is the subset of the tool runtime an executor needs.
type ToolRuntime interface {
	Invoke(ctx context.Context, toolName string, args map[string]any) (any, bool /*deterministic*/, error)
}

// ProviderDispatcher is the subset of LLM provider access an executor needs.
type ProviderDispatcher interface {
	Complete(ctx context.Context, provider, model, system, prompt string, temperature float64, maxTokens int) (text string, tokensUsed int, err error)
}

// CodeSandbox runs untrusted code node bodies under OS-enforced limits.
type CodeSandbox interface {
	Run(ctx context.Context, language, source string, timeoutMS, memoryLimitMB int, input map[string]any) (output any, err error)
}

// ForKind returns the Executor implementation for a node kind.
func ForKind(k node.Kind, d *Deps) Executor {
	switch k {
	case node.KindTool:
		return &toolExecutor{d}
	case node.KindLLM:
		return &llmExecutor{d}
	case node.KindCondition:
		return &conditionExecutor{d}
	case node.KindLoop:
		return &loopExecutor{d}
	case node.KindParallel:
		return &parallelExecutor{d}
	case node.KindWorkflow:
		return &workflowExecutor{d}
	case node.KindCode:
		return &codeExecutor{d}
	case node.KindAgent:
		return &agentExecutor{d}
	case node.KindHuman:
		return &humanExecutor{d}
	case node.KindMonitor:
		return &monitorExecutor{d}
	default:
		return nil
	}
}
