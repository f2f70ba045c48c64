package ctxbuild

import "testing"

func newContext() *Context {
	return &Context{
		NodeOutputs: map[string]any{
			"fetch": map[string]any{"body": "hello world", "status_code": float64(200)},
		},
		Inputs: map[string]any{"user_id": "u1"},
	}
}

func TestContextGetResolvesNodeOutputPath(t *testing.T) {
	c := newContext()
	v, ok := c.Get("$nodes.fetch.body")
	if !ok || v != "hello world" {
		t.Errorf("Get() = %v, %v", v, ok)
	}
}

func TestContextGetResolvesInputPath(t *testing.T) {
	c := newContext()
	v, ok := c.Get("$inputs.user_id")
	if !ok || v != "u1" {
		t.Errorf("Get() = %v, %v", v, ok)
	}
}

func TestContextGetReportsMissingPath(t *testing.T) {
	c := newContext()
	if _, ok := c.Get("$nodes.missing.body"); ok {
		t.Error("expected missing path to report false")
	}
}

func TestTemplaterEvalBareExpression(t *testing.T) {
	tpl, err := NewTemplater()
	if err != nil {
		t.Fatalf("NewTemplater: %v", err)
	}
	c := newContext()

	out, err := tpl.Eval(`nodes.fetch.status_code == 200.0`, c)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if out != true {
		t.Errorf("Eval() = %v, want true", out)
	}
}

func TestTemplaterEvalAppliesUpperFilter(t *testing.T) {
	tpl, err := NewTemplater()
	if err != nil {
		t.Fatalf("NewTemplater: %v", err)
	}
	c := newContext()

	out, err := tpl.Eval(`nodes.fetch.body.upper()`, c)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if out != "HELLO WORLD" {
		t.Errorf("Eval() = %v, want HELLO WORLD", out)
	}
}

func TestTemplaterRenderExpandsTags(t *testing.T) {
	tpl, err := NewTemplater()
	if err != nil {
		t.Fatalf("NewTemplater: %v", err)
	}
	c := newContext()

	out, err := tpl.Render("body is: {{ nodes.fetch.body }}", c)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "body is: hello world" {
		t.Errorf("Render() = %q", out)
	}
}

func TestTemplaterRenderPassesThroughNonTemplateText(t *testing.T) {
	tpl, err := NewTemplater()
	if err != nil {
		t.Fatalf("NewTemplater: %v", err)
	}
	out, err := tpl.Render("plain text, no tags", newContext())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "plain text, no tags" {
		t.Errorf("Render() = %q", out)
	}
}

func TestTemplaterEvalRejectsInvalidExpression(t *testing.T) {
	tpl, err := NewTemplater()
	if err != nil {
		t.Fatalf("NewTemplater: %v", err)
	}
	if _, err := tpl.Eval("nodes.fetch.(((", newContext()); err == nil {
		t.Fatal("expected malformed expression to fail")
	}
}
