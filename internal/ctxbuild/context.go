// Package ctxbuild builds the per-node execution context and evaluates the
// restricted {{ }} template/expression subset using a gjson-based
// resolver and a CEL-based condition evaluator.
package ctxbuild

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasttemplate"

	"github.com/orbitalflow/engine/internal/orcherr"
)

// Context is the immutable snapshot handed to an executor: prior node
// outputs plus blueprint-level inputs, addressable by dotted path.
type Context struct {
	NodeOutputs map[string]any `json:"node_outputs"`
	Inputs      map[string]any `json:"inputs"`
}

// Get resolves a dotted/wildcard path such as "$nodes.fetch.body"
// or "$inputs.user_id" against the snapshot.
func (c *Context) Get(path string) (any, bool) {
	blob, err := c.json()
	if err != nil {
		return nil, false
	}
	gpath := toGjsonPath(path)
	res := gjson.GetBytes(blob, gpath)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

func (c *Context) json() ([]byte, error) {
	root := map[string]any{"nodes": c.NodeOutputs, "inputs": c.Inputs}
	return marshal(root)
}

func toGjsonPath(expr string) string {
	expr = strings.TrimPrefix(expr, "$")
	return expr
}

// Templater evaluates the restricted {{ expr }} subset: attribute access,
// indexing, comparison/arithmetic operators, and a fixed filter whitelist
// — never arbitrary function calls, so user-authored template bodies can
// never reach Go code.
type Templater struct {
	mu    sync.Mutex
	cache map[string]cel.Program
	env   *cel.Env
}

// whitelisted filters, implemented as CEL functions rather than Go
// text/template funcs so the expression surface stays inside the
// restricted environment below.
func NewTemplater() (*Templater, error) {
	env, err := cel.NewEnv(
		cel.Variable("nodes", cel.DynType),
		cel.Variable("inputs", cel.DynType),
		cel.Variable("ctx", cel.DynType),
		cel.Function("upper",
			cel.MemberOverload("string_upper", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					return types.String(strings.ToUpper(string(v.(types.String))))
				}))),
		cel.Function("lower",
			cel.MemberOverload("string_lower", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					return types.String(strings.ToLower(string(v.(types.String))))
				}))),
		cel.Function("trim",
			cel.MemberOverload("string_trim", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					return types.String(strings.TrimSpace(string(v.(types.String))))
				}))),
		cel.Function("length",
			cel.MemberOverload("dyn_length", []*cel.Type{cel.DynType}, cel.IntType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					return types.Int(reflectLen(v.Value()))
				}))),
		cel.Function("join",
			cel.MemberOverload("list_join", []*cel.Type{cel.DynType, cel.StringType}, cel.StringType,
				cel.BinaryBinding(func(list, sep ref.Val) ref.Val {
					items, ok := list.Value().([]ref.Val)
					var parts []string
					if ok {
						for _, it := range items {
							parts = append(parts, fmt.Sprintf("%v", it.Value()))
						}
					} else if sl, ok := list.Value().([]interface{}); ok {
						for _, it := range sl {
							parts = append(parts, fmt.Sprintf("%v", it))
						}
					}
					return types.String(strings.Join(parts, string(sep.(types.String))))
				}))),
		cel.Function("json",
			cel.MemberOverload("dyn_to_json", []*cel.Type{cel.DynType}, cel.StringType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					b, err := json.Marshal(v.Value())
					if err != nil {
						return types.String("")
					}
					return types.String(string(b))
				}))),
		cel.Function("default",
			cel.MemberOverload("dyn_default", []*cel.Type{cel.DynType, cel.DynType}, cel.DynType,
				cel.BinaryBinding(func(v, d ref.Val) ref.Val {
					if types.IsError(v) || v == nil || v == types.NullValue {
						return d
					}
					return v
				}))),
	)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, "", err, "failed to build expression environment")
	}
	return &Templater{cache: make(map[string]cel.Program), env: env}, nil
}

func reflectLen(v any) int {
	switch t := v.(type) {
	case string:
		return len(t)
	case []ref.Val:
		return len(t)
	case []interface{}:
		return len(t)
	case map[string]interface{}:
		return len(t)
	default:
		return 0
	}
}

func (t *Templater) compile(expr string) (cel.Program, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.cache[expr]; ok {
		return p, nil
	}
	ast, issues := t.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, "", issues.Err(), "invalid expression %q", expr)
	}
	prog, err := t.env.Program(ast)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, "", err, "failed to build program for %q", expr)
	}
	t.cache[expr] = prog
	return prog, nil
}

// Eval evaluates a bare CEL expression (used by condition nodes and loop
// conditions) against the context snapshot.
func (t *Templater) Eval(expr string, c *Context) (any, error) {
	prog, err := t.compile(expr)
	if err != nil {
		return nil, err
	}
	out, _, err := prog.Eval(map[string]any{
		"nodes":  c.NodeOutputs,
		"inputs": c.Inputs,
		"ctx":    c,
	})
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindContext, "", err, "expression evaluation failed")
	}
	return out.Value(), nil
}

// Render expands every {{ expr }} tag in a template string, substituting
// each with the string form of its evaluated value. Non-template text
// passes through unchanged.
func (t *Templater) Render(tmpl string, c *Context) (string, error) {
	ft, err := fasttemplate.NewTemplate(tmpl, "{{", "}}")
	if err != nil {
		return "", orcherr.Wrap(orcherr.KindContext, "", err, "malformed template")
	}
	var evalErr error
	out := ft.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		expr := strings.TrimSpace(tag)
		v, err := t.Eval(expr, c)
		if err != nil {
			evalErr = err
			return 0, err
		}
		return io.WriteString(w, fmt.Sprintf("%v", v))
	})
	if evalErr != nil {
		return "", evalErr
	}
	return out, nil
}

func marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
