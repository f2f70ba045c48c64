// Package engine is the execution engine: a level-based, weighted
// semaphore bounded scheduler. It replaces Redis BLPOP / Redis Streams
// token passing with an in-process scheduler that walks
// compiler.CompiledGraph levels directly, per the concurrency model's
// "strict happens-before across levels, unordered within a level" rule.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/orbitalflow/engine/internal/compiler"
	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/eventbus"
	"github.com/orbitalflow/engine/internal/executor"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
	"github.com/orbitalflow/engine/internal/store"
)

// DefaultConcurrency is the default weighted-semaphore width bounding how
// many nodes within a level run at once.
const DefaultConcurrency = 5

// Engine drives one CompiledGraph's execution from start to a terminal
// status, emitting lifecycle events and persisting progress to the store
// as it goes.
type Engine struct {
	deps        *executor.Deps
	bus         *eventbus.Bus
	store       *store.Store
	log         *slog.Logger
	concurrency int64

	mu    sync.Mutex
	cache map[string]*cacheEntry // content-hash -> result, single-flight dedup

	humanWaiters sync.Map // nodeID -> chan humanResponse
}

type cacheEntry struct {
	once   sync.Once
	result *executor.Result
	err    error
}

func New(deps *executor.Deps, bus *eventbus.Bus, st *store.Store, log *slog.Logger, concurrency int64) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{deps: deps, bus: bus, store: st, log: log, concurrency: concurrency, cache: make(map[string]*cacheEntry)}
}

// Run executes a compiled graph to completion, respecting ctx cancellation.
func (e *Engine) Run(ctx context.Context, cg *compiler.CompiledGraph, inputs map[string]any) (*store.Record, error) {
	executionID := uuid.New()
	levels := cg.Graph.Levels()
	nodeIDs := cg.Graph.TopologicalOrder()

	rec, err := e.store.Create(ctx, executionID, cg.Blueprint.ID, nodeIDs)
	if err != nil {
		return nil, err
	}
	e.bus.Publish(eventbus.Event{Topic: eventbus.TopicExecutionStarted, ExecutionID: executionID.String(), Timestamp: now()})

	outputs := &sync.Map{} // nodeID -> output
	skip := &sync.Map{}    // nodeID -> true if its level should be skipped (HALT policy upstream failure)

	byID := make(map[string]*node.Spec, len(cg.Blueprint.Nodes))
	for _, n := range cg.Blueprint.Nodes {
		byID[n.ID] = n
	}

	sem := semaphore.NewWeighted(e.concurrency)
	var halted bool

	for _, level := range levels {
		if halted {
			break
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range level {
			id := id
			spec := byID[id]
			if _, shouldSkip := skip.Load(id); shouldSkip {
				continue
			}
			if err := sem.Acquire(gctx, 1); err != nil {
				g.Go(func() error { return err })
				continue
			}
			g.Go(func() error {
				defer sem.Release(1)
				return e.runNode(gctx, executionID, spec, byID, outputs, skip, inputs)
			})
		}
		if err := g.Wait(); err != nil {
			if orcherr.Is(err, orcherr.KindCancelled) {
				_, _ = e.store.TransitionExecution(ctx, executionID, store.StatusCancelled, err.Error())
				e.bus.Publish(eventbus.Event{Topic: eventbus.TopicExecutionCancelled, ExecutionID: executionID.String(), Timestamp: now()})
				return e.store.Get(ctx, executionID)
			}
			if haltsWorkflow(byID, err) {
				halted = true
			}
		}
	}

	finalStatus := store.StatusCompleted
	topic := eventbus.TopicExecutionCompleted
	if halted {
		finalStatus = store.StatusFailed
		topic = eventbus.TopicExecutionFailed
	}
	rec, err = e.store.TransitionExecution(ctx, executionID, finalStatus, "")
	if err != nil {
		return rec, err
	}
	e.bus.Publish(eventbus.Event{Topic: topic, ExecutionID: executionID.String(), Timestamp: now()})
	return rec, nil
}

func haltsWorkflow(byID map[string]*node.Spec, err error) bool {
	var oe *orcherr.Error
	if !asOrchErr(err, &oe) {
		return true
	}
	spec := byID[oe.NodeID]
	if spec == nil {
		return true
	}
	return spec.FailurePolicy == "" || spec.FailurePolicy == node.FailureHalt
}

func asOrchErr(err error, target **orcherr.Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if oe, ok := err.(*orcherr.Error); ok {
			*target = oe
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// runNode executes the seven-step per-node lifecycle: resolve inputs,
// check cache, invoke executor with retry, apply guards, persist, emit
// events, and route control-flow nodes' next-node decisions.
func (e *Engine) runNode(ctx context.Context, executionID uuid.UUID, spec *node.Spec, byID map[string]*node.Spec, outputs *sync.Map, skip *sync.Map, inputs map[string]any) error {
	select {
	case <-ctx.Done():
		return orcherr.New(orcherr.KindCancelled, spec.ID, "execution cancelled before node started")
	default:
	}

	if spec.Guards.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(spec.Guards.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	e.bus.Publish(eventbus.Event{Topic: eventbus.TopicNodeStarted, ExecutionID: executionID.String(), NodeID: spec.ID, Timestamp: now()})
	_, _ = e.store.TransitionNode(ctx, executionID, spec.ID, func(nr *store.NodeRecord) {
		nr.Status = store.StatusRunning
		nr.StartedAt = now()
	})

	snap := e.buildSnapshot(spec, byID, outputs, inputs)
	exec := executor.ForKind(spec.Kind, e.deps)
	if exec == nil {
		return e.failNode(ctx, executionID, spec, orcherr.New(orcherr.KindValidation, spec.ID, "no executor for node kind %q", spec.Kind))
	}

	result, err := e.executeWithCacheAndRetry(ctx, spec, snap, exec)
	if err != nil {
		if orcherr.Is(err, orcherr.KindCancelled) {
			return err
		}
		applyErr := e.failNode(ctx, executionID, spec, err)
		if spec.FailurePolicy == node.FailureContinueAll || spec.FailurePolicy == node.FailureContinuePossible {
			e.skipDownstream(spec, byID, skip)
			return nil
		}
		return applyErr
	}

	if err := validateOutputSchema(spec, result.Output); err != nil {
		applyErr := e.failNode(ctx, executionID, spec, err)
		if spec.FailurePolicy == node.FailureContinueAll || spec.FailurePolicy == node.FailureContinuePossible {
			e.skipDownstream(spec, byID, skip)
			return nil
		}
		return applyErr
	}

	outputs.Store(spec.ID, result.Output)
	_, _ = e.store.TransitionNode(ctx, executionID, spec.ID, func(nr *store.NodeRecord) {
		nr.Status = store.StatusCompleted
		nr.Output = result.Output
		nr.CompletedAt = now()
	})
	e.bus.Publish(eventbus.Event{
		Topic: eventbus.TopicNodeCompleted, ExecutionID: executionID.String(), NodeID: spec.ID, Timestamp: now(),
		Data: map[string]any{"tokens": result.TokensUsed},
	})

	if spec.IsAbsorber() {
		e.routeAbsorber(spec, result, byID, skip)
	}
	return nil
}

// routeAbsorber marks each on_true/on_false target of a condition node
// that its result did not select as skipped, implementing branch-pruning
// without a separate token-routing layer. Loop and parallel nodes prune
// nothing.
func (e *Engine) routeAbsorber(spec *node.Spec, result *executor.Result, byID map[string]*node.Spec, skip *sync.Map) {
	if spec.Kind != node.KindCondition {
		return // loop/parallel bodies are always scheduled; only condition prunes branches
	}
	taken := make(map[string]bool, len(result.NextNodes))
	for _, id := range result.NextNodes {
		taken[id] = true
	}
	var allBranchTargets []string
	allBranchTargets = append(allBranchTargets, spec.Condition.OnTrue...)
	allBranchTargets = append(allBranchTargets, spec.Condition.OnFalse...)
	for _, id := range allBranchTargets {
		if !taken[id] {
			skip.Store(id, true)
		}
	}
}

// validateOutputSchema enforces a node's declared output_schema against its
// actual output, the runtime half of the contract phase4SchemaCompatibility
// checks statically against downstream input mappings. A node with no
// declared output_schema is unconstrained.
func validateOutputSchema(spec *node.Spec, output any) error {
	if len(spec.OutputSchema) == 0 {
		return nil
	}
	out, ok := output.(map[string]any)
	if !ok {
		return orcherr.New(orcherr.KindValidation, spec.ID, "output_schema declares fields but node output is not an object")
	}
	for field, want := range spec.OutputSchema {
		val, present := out[field]
		if !present {
			return orcherr.New(orcherr.KindValidation, spec.ID, "output missing field %q declared in output_schema", field)
		}
		wantType, ok := want.(string)
		if !ok {
			continue // nested schema shapes are not type-checked, only presence
		}
		if !jsonTypeMatches(wantType, val) {
			return orcherr.New(orcherr.KindValidation, spec.ID, "output field %q has type %T, want %q", field, val, wantType)
		}
	}
	return nil
}

func jsonTypeMatches(want string, val any) bool {
	switch want {
	case "string":
		_, ok := val.(string)
		return ok
	case "number":
		switch val.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := val.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "object":
		_, ok := val.(map[string]any)
		return ok
	case "array":
		_, ok := val.([]any)
		return ok
	default:
		return true // unrecognized type name, don't block on it
	}
}

func (e *Engine) skipDownstream(spec *node.Spec, byID map[string]*node.Spec, skip *sync.Map) {
	for _, n := range byID {
		for _, dep := range n.DependsOn {
			if dep == spec.ID {
				skip.Store(n.ID, true)
			}
		}
	}
}

func (e *Engine) failNode(ctx context.Context, executionID uuid.UUID, spec *node.Spec, err error) error {
	_, _ = e.store.TransitionNode(ctx, executionID, spec.ID, func(nr *store.NodeRecord) {
		nr.Status = store.StatusFailed
		nr.Error = err.Error()
		nr.CompletedAt = now()
	})
	e.bus.Publish(eventbus.Event{Topic: eventbus.TopicNodeFailed, ExecutionID: executionID.String(), NodeID: spec.ID, Timestamp: now()})
	return err
}

// executeWithCacheAndRetry applies the content-hash cache (only for specs
// marked IsDeterministic; a cache hit publishes node.cached) and
// exponential-backoff retry for retriable errors.
func (e *Engine) executeWithCacheAndRetry(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context, exec executor.Executor) (*executor.Result, error) {
	key := e.cacheKey(spec, snap)
	if key != "" {
		if entry := e.cacheLookup(key); entry != nil {
			hit := true
			entry.once.Do(func() {
				hit = false
				entry.result, entry.err = e.invokeWithRetry(ctx, spec, snap, exec)
			})
			if hit {
				e.bus.Publish(eventbus.Event{Topic: eventbus.TopicNodeCached, NodeID: spec.ID, Timestamp: now()})
			}
			return entry.result, entry.err
		}
	}
	return e.invokeWithRetry(ctx, spec, snap, exec)
}

func (e *Engine) cacheKey(spec *node.Spec, snap *ctxbuild.Context) string {
	if !spec.IsDeterministic {
		return ""
	}
	b, err := json.Marshal(struct {
		ID   string
		Spec *node.Spec
		Snap *ctxbuild.Context
	}{spec.ID, spec, snap})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (e *Engine) cacheLookup(key string) *cacheEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.cache[key]
	if !ok {
		entry = &cacheEntry{}
		e.cache[key] = entry
	}
	return entry
}

func (e *Engine) invokeWithRetry(ctx context.Context, spec *node.Spec, snap *ctxbuild.Context, exec executor.Executor) (*executor.Result, error) {
	maxAttempts := 1
	baseDelay := 100 * time.Millisecond
	mult := 2.0
	if spec.Retry != nil {
		if spec.Retry.MaxAttempts > 0 {
			maxAttempts = spec.Retry.MaxAttempts
		}
		if spec.Retry.BaseDelayMS > 0 {
			baseDelay = time.Duration(spec.Retry.BaseDelayMS) * time.Millisecond
		}
		if spec.Retry.Multiplier > 0 {
			mult = spec.Retry.Multiplier
		}
	}
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, orcherr.New(orcherr.KindCancelled, spec.ID, "execution cancelled")
		}
		result, err := exec.Execute(ctx, spec, snap)
		if err == nil {
			return result, nil
		}
		lastErr = err
		var oe *orcherr.Error
		if !asOrchErr(err, &oe) || !oe.Retriable || attempt == maxAttempts {
			break
		}
		e.bus.Publish(eventbus.Event{Topic: eventbus.TopicNodeRetried, NodeID: spec.ID, Timestamp: now(), Data: map[string]any{"attempt": attempt}})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, orcherr.New(orcherr.KindCancelled, spec.ID, "execution cancelled during retry backoff")
		}
		delay = time.Duration(float64(delay) * mult)
	}
	return nil, lastErr
}

func (e *Engine) buildSnapshot(spec *node.Spec, byID map[string]*node.Spec, outputs *sync.Map, inputs map[string]any) *ctxbuild.Context {
	nodeOutputs := make(map[string]any, len(spec.DependsOn))
	outputs.Range(func(k, v any) bool {
		nodeOutputs[k.(string)] = v
		return true
	})
	return &ctxbuild.Context{NodeOutputs: nodeOutputs, Inputs: inputs}
}

func now() time.Time { return time.Now() }
