// Package toolruntime validates and dispatches tool invocations using a
// registry/factory pattern plus JSON-schema validation of tool arguments.
package toolruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/orbitalflow/engine/internal/orcherr"
	"github.com/orbitalflow/engine/internal/registry"
)

// Tool is the duck-typed contract every tool instance satisfies. Fresh
// instances are constructed per invocation by the registry's factory, so
// a tool instance is duck-typed and holds no mutable state across
// invocations.
type Tool interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// DeterministicTool is implemented by tools whose output is a pure
// function of their input, making them eligible for content-hash caching.
type DeterministicTool interface {
	Tool
	IsDeterministic() bool
}

// Runtime dispatches tool invocations by name, validating input against
// a registered JSON Schema when one is declared.
type Runtime struct {
	reg *registry.Registry

	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

func New(reg *registry.Registry) *Runtime {
	return &Runtime{reg: reg, schemas: make(map[string]*jsonschema.Schema)}
}

// RegisterSchema compiles and caches an input schema for a tool name.
func (r *Runtime) RegisterSchema(toolName string, schemaDoc map[string]any) error {
	b, err := json.Marshal(schemaDoc)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to marshal schema for %q", toolName)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to parse schema for %q", toolName)
	}
	compiler := jsonschema.NewCompiler()
	resourceName := "mem://" + toolName
	if err := compiler.AddResource(resourceName, doc); err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to add schema resource for %q", toolName)
	}
	sch, err := compiler.Compile(resourceName)
	if err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "failed to compile schema for %q", toolName)
	}
	r.mu.Lock()
	r.schemas[toolName] = sch
	r.mu.Unlock()
	return nil
}

// Invoke constructs a fresh tool instance from the registry, validates
// args against the tool's declared schema (if any), and runs it.
// It satisfies executor.ToolRuntime.
func (r *Runtime) Invoke(ctx context.Context, toolName string, args map[string]any) (any, bool, error) {
	if err := r.validate(toolName, args); err != nil {
		return nil, false, err
	}
	inst, err := r.reg.New(KindTool, toolName, nil)
	if err != nil {
		return nil, false, orcherr.Wrap(orcherr.KindTool, "", err, "no tool registered as %q", toolName)
	}
	tool, ok := inst.(Tool)
	if !ok {
		return nil, false, orcherr.New(orcherr.KindTool, "", "registered instance for %q is not a Tool", toolName)
	}
	out, err := tool.Invoke(ctx, args)
	if err != nil {
		return nil, false, err
	}
	deterministic := false
	if dt, ok := tool.(DeterministicTool); ok {
		deterministic = dt.IsDeterministic()
	}
	return out, deterministic, nil
}

func (r *Runtime) validate(toolName string, args map[string]any) error {
	r.mu.RLock()
	sch, ok := r.schemas[toolName]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := sch.Validate(args); err != nil {
		return orcherr.Wrap(orcherr.KindValidation, "", err, "input validation failed for tool %q", toolName)
	}
	return nil
}
