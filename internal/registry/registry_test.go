package registry

import "testing"

func TestNewConstructsFromRegisteredFactory(t *testing.T) {
	r := New()
	r.RegisterFactory("tool", "http", func(config map[string]any) (any, error) {
		return config["name"], nil
	})

	got, err := r.New("tool", "http", map[string]any{"name": "fetcher"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fetcher" {
		t.Errorf("New() = %v, want fetcher", got)
	}
}

func TestNewRejectsUnregisteredImportPath(t *testing.T) {
	r := New()
	if _, err := r.New("tool", "missing", nil); err == nil {
		t.Fatal("expected error for unregistered import path")
	}
}

func TestNewDoesNotCollideAcrossKinds(t *testing.T) {
	r := New()
	r.RegisterFactory("tool", "http", func(map[string]any) (any, error) { return "tool-http", nil })
	r.RegisterFactory("workflow", "http", func(map[string]any) (any, error) { return "workflow-http", nil })

	toolInst, err := r.New("tool", "http", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	workflowInst, err := r.New("workflow", "http", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toolInst != "tool-http" || workflowInst != "workflow-http" {
		t.Errorf("toolInst=%v workflowInst=%v, expected distinct factories per kind", toolInst, workflowInst)
	}
}

func TestRegisterInstanceAndGetInstance(t *testing.T) {
	r := New()
	r.RegisterInstance("db", "pool")

	got, ok := r.GetInstance("db")
	if !ok || got != "pool" {
		t.Errorf("GetInstance() = %v, %v", got, ok)
	}

	if _, ok := r.GetInstance("missing"); ok {
		t.Error("expected GetInstance to report false for unknown name")
	}
}

func TestListIsSortedAndIncludesPending(t *testing.T) {
	r := New()
	r.RegisterFactory("tool", "b", func(map[string]any) (any, error) { return nil, nil })
	if err := r.LoadPlugins([]PluginManifest{{Kind: "tool", Name: "a", ImportPath: "a"}}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list := r.List()
	if len(list) != 2 || list[0] != "tool/a" || list[1] != "tool/b" {
		t.Errorf("List() = %v", list)
	}
	if !r.IsPending("tool", "a") {
		t.Error("expected tool/a to be pending")
	}
}

func TestLoadPluginsFailsClosedWithoutAllowDynamic(t *testing.T) {
	r := New()
	err := r.LoadPlugins([]PluginManifest{{Kind: "tool", Name: "a", ImportPath: "missing"}}, false)
	if err == nil {
		t.Fatal("expected unresolved import path to fail the batch")
	}
	if r.IsPending("tool", "missing") {
		t.Error("expected unresolved entry not to be recorded as pending when allowDynamic is false")
	}
}

func TestLoadPluginsSkipsAlreadyRegisteredFactories(t *testing.T) {
	r := New()
	r.RegisterFactory("tool", "a", func(map[string]any) (any, error) { return nil, nil })
	err := r.LoadPlugins([]PluginManifest{{Kind: "tool", Name: "a", ImportPath: "a"}}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
