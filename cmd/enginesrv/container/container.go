// Package container wires every engine collaborator into a single
// long-lived set of singletons using a service-container pattern.
package container

import (
	"context"
	"fmt"

	"github.com/orbitalflow/engine/common/bootstrap"
	"github.com/orbitalflow/engine/common/ratelimit"
	"github.com/orbitalflow/engine/common/validation"
	"github.com/orbitalflow/engine/internal/compiler"
	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/engine"
	"github.com/orbitalflow/engine/internal/eventbus"
	"github.com/orbitalflow/engine/internal/executor"
	"github.com/orbitalflow/engine/internal/llmprovider"
	"github.com/orbitalflow/engine/internal/memory"
	"github.com/orbitalflow/engine/internal/registry"
	"github.com/orbitalflow/engine/internal/store"
	"github.com/orbitalflow/engine/internal/toolruntime"
	"github.com/orbitalflow/engine/internal/wshub"
)

// Container holds every singleton the HTTP/WS handlers and the engine
// need across the process lifetime.
type Container struct {
	Components *bootstrap.Components

	Registry    *registry.Registry
	Tools       *toolruntime.Runtime
	Memory      *memory.Subsystem
	Bus         *eventbus.Bus
	Store       *store.Store
	Deps        *executor.Deps
	Engine      *engine.Engine
	Compiler    *compiler.Validator
	Hub         *wshub.Hub
	RateLimiter *ratelimit.RateLimiter
	PatchValidator *validation.PatchValidator

	Blueprints blueprintStore
}

// New builds every collaborator from already-bootstrapped components.
func New(ctx context.Context, c *bootstrap.Components) (*Container, error) {
	log := c.Logger.Logger

	reg := registry.New()
	toolruntime.RegisterBuiltins(reg)
	tools := toolruntime.New(reg)

	sandbox := toolruntime.NewOSSandbox()

	templater, err := ctxbuild.NewTemplater()
	if err != nil {
		return nil, fmt.Errorf("container: build templater: %w", err)
	}

	mem, err := buildMemorySubsystem(c)
	if err != nil {
		return nil, fmt.Errorf("container: build memory subsystem: %w", err)
	}

	bus := eventbus.New(log)

	backend, err := buildStoreBackend(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("container: build store backend: %w", err)
	}
	st := store.New(backend)

	llm := llmprovider.New(llmprovider.Config{
		AnthropicAPIKey: c.Config.LLM.AnthropicAPIKey,
		AnthropicModel:  c.Config.LLM.AnthropicModel,
		OpenAIAPIKey:    c.Config.LLM.OpenAIAPIKey,
		OpenAIModel:     c.Config.LLM.OpenAIModel,
		MaxRetries:      c.Config.LLM.MaxRetries,
		RetryDelay:      c.Config.LLM.RetryDelay,
	})

	var subworkflows *subworkflowRunner // resolved after Deps exists, see below

	deps := &executor.Deps{
		Templater: templater,
		Tools:     tools,
		LLM:       llm,
		Sandbox:   sandbox,
	}
	deps.RunSubworkflow = func(ctx context.Context, blueprintID string, version int, inputs map[string]any) (map[string]any, error) {
		return subworkflows.Run(ctx, blueprintID, version, inputs)
	}

	hub := wshub.New(log)
	hub.Attach(bus)
	go hub.Run()

	var rateLimiter *ratelimit.RateLimiter
	if c.Redis != nil {
		rateLimiter = ratelimit.NewRateLimiter(c.Redis.GetUnderlying(), c.Logger)
	}

	comp := compiler.New(c.Config.Engine.DefaultCostCeiling, c.Config.Engine.DefaultDepthCeiling)

	blueprints, err := buildBlueprintStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("container: build blueprint store: %w", err)
	}
	subworkflows = &subworkflowRunner{blueprints: blueprints, store: st, deps: deps, bus: bus, log: log, concurrency: c.Config.Engine.Concurrency, compiler: comp}

	eng := engine.New(deps, bus, st, log, c.Config.Engine.Concurrency)

	return &Container{
		Components:     c,
		Registry:       reg,
		Tools:          tools,
		Memory:         mem,
		Bus:            bus,
		Store:          st,
		Deps:           deps,
		Engine:         eng,
		Compiler:       comp,
		Hub:            hub,
		RateLimiter:    rateLimiter,
		PatchValidator: validation.NewPatchValidator(),
		Blueprints:     blueprints,
	}, nil
}

func buildMemorySubsystem(c *bootstrap.Components) (*memory.Subsystem, error) {
	backends := map[memory.Tier]memory.Backend{
		memory.TierWorking: memory.NewInMemoryBackend(),
	}
	if c.Redis != nil {
		backends[memory.TierEpisodic] = memory.NewRedisBackend(c.Redis, memory.TierEpisodic)
	} else {
		backends[memory.TierEpisodic] = memory.NewInMemoryBackend()
	}
	if c.DB != nil {
		backends[memory.TierSemantic] = memory.NewSQLBackend(c.DB.Pool, memory.TierSemantic)
		backends[memory.TierProcedural] = memory.NewSQLBackend(c.DB.Pool, memory.TierProcedural)
	} else {
		backends[memory.TierSemantic] = memory.NewInMemoryBackend()
		backends[memory.TierProcedural] = memory.NewInMemoryBackend()
	}
	return memory.New(backends), nil
}

// buildStoreBackend prefers Postgres (durable across restarts, required
// for SweepRestarts to mean anything beyond one process lifetime), falls
// back to the fast-KV cache backend when configured, and otherwise keeps
// execution records in memory.
func buildStoreBackend(ctx context.Context, c *bootstrap.Components) (store.Backend, error) {
	if c.DB != nil {
		b := store.NewPostgresBackend(c.DB.Pool)
		if err := b.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return b, nil
	}
	if c.Config.Cache.Backend == "redis" && c.Redis != nil {
		return store.NewRedisBackend(c.Redis), nil
	}
	return store.NewMemoryBackend(), nil
}

// buildBlueprintStore mirrors buildStoreBackend's Postgres-first, in-
// memory-fallback policy for blueprint persistence.
func buildBlueprintStore(ctx context.Context, c *bootstrap.Components) (blueprintStore, error) {
	if c.DB != nil {
		r := newPostgresBlueprintRepo(c.DB.Pool)
		if err := r.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return r, nil
	}
	return newBlueprintRepo(), nil
}
