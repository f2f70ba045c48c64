// Package registry is the process-wide catalog of node-type factories and
// live tool/provider instances, implemented as a Go-native factory map
// in place of dotted-import-path dynamic loading.
package registry

import (
	"sort"
	"sync"

	"github.com/orbitalflow/engine/internal/orcherr"
)

// Factory constructs a fresh instance for a given manifest config. Fresh
// per execution, never shared: a tool instance is duck-typed and holds
// no mutable state across invocations.
type Factory func(config map[string]any) (any, error)

// PluginManifest is a single entry of an external plugin manifest file.
type PluginManifest struct {
	Kind       string         `json:"kind"`
	Name       string         `json:"name"`
	ImportPath string         `json:"import_path"`
	Config     map[string]any `json:"config,omitempty"`
}

// factoryKey namespaces a factory by node/tool kind ("tool", "agent",
// "workflow", "code", ...) and import path, so an import path reused
// across kinds (e.g. two different "http" entries, one a tool and one a
// workflow) resolves to distinct factories instead of colliding.
type factoryKey struct {
	Kind       string
	ImportPath string
}

// Registry resolves (kind, import path) pairs against compile-time-registered
// factories and holds live singleton instances (e.g. a shared HTTP client tool).
type Registry struct {
	mu        sync.RWMutex
	factories map[factoryKey]Factory
	instances map[string]any
	pending   map[factoryKey]PluginManifest
}

func New() *Registry {
	return &Registry{
		factories: make(map[factoryKey]Factory),
		instances: make(map[string]any),
		pending:   make(map[factoryKey]PluginManifest),
	}
}

// RegisterFactory binds a (kind, import path) pair to a constructor.
// Called explicitly at startup for built-in tools (see
// toolruntime.RegisterBuiltins).
func (r *Registry) RegisterFactory(kind, importPath string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factoryKey{kind, importPath}] = f
}

// RegisterInstance installs a pre-built singleton under name, bypassing
// the factory map entirely (used for ambient dependencies like a shared
// DB pool handed to a tool instance).
func (r *Registry) RegisterInstance(name string, instance any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[name] = instance
}

// GetInstance returns a previously registered singleton.
func (r *Registry) GetInstance(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.instances[name]
	return v, ok
}

// New constructs a fresh instance from a registered factory by kind and
// import path.
func (r *Registry) New(kind, importPath string, config map[string]any) (any, error) {
	r.mu.RLock()
	f, ok := r.factories[factoryKey{kind, importPath}]
	r.mu.RUnlock()
	if !ok {
		return nil, orcherr.New(orcherr.KindValidation, "", "no %s factory registered for import path %q", kind, importPath)
	}
	return f(config)
}

// List returns all known "kind/import_path" entries, registered factories
// and pending manifest entries not yet resolved alike, in one sorted list
// for deterministic output.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories)+len(r.pending))
	for k := range r.factories {
		out = append(out, k.Kind+"/"+k.ImportPath)
	}
	for k := range r.pending {
		out = append(out, k.Kind+"/"+k.ImportPath)
	}
	sort.Strings(out)
	return out
}

// IsPending reports whether a (kind, import path) pair was accepted by
// LoadPlugins under allowDynamic without yet having a resolvable factory.
func (r *Registry) IsPending(kind, importPath string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pending[factoryKey{kind, importPath}]
	return ok
}

// LoadPlugins validates a manifest against the compiled factory map.
//
// Go has no runtime "module:callable" loader without cgo plugins, which
// this engine does not require as a deployment dependency. Each entry's
// (kind, import_path) pair must already have a factory registered through
// RegisterFactory. With allowDynamic=false (the default) an unresolved
// entry fails the whole load; with allowDynamic=true unresolved entries are
// recorded as pending and surfaced via IsPending/List instead of failing
// the batch.
func (r *Registry) LoadPlugins(manifest []PluginManifest, allowDynamic bool) error {
	var unresolved []string
	for _, m := range manifest {
		key := factoryKey{m.Kind, m.ImportPath}
		r.mu.RLock()
		_, ok := r.factories[key]
		r.mu.RUnlock()
		if ok {
			continue
		}
		if !allowDynamic {
			unresolved = append(unresolved, m.Kind+"/"+m.ImportPath)
			continue
		}
		r.mu.Lock()
		r.pending[key] = m
		r.mu.Unlock()
	}
	if len(unresolved) > 0 {
		return orcherr.New(orcherr.KindValidation, "", "unresolved plugin import paths: %v", unresolved)
	}
	return nil
}
