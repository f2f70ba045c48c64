// Package compiler runs the six-phase validate/compile pipeline over a
// blueprint: structural checks, reference resolution, cycle detection,
// schema compatibility, budget estimation, finalization.
package compiler

import (
	"strings"

	"github.com/orbitalflow/engine/internal/blueprint"
	"github.com/orbitalflow/engine/internal/graph"
	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

// DraftGraph is the result of phases 1-2 only: structurally sound but not
// yet guaranteed acyclic or schema-compatible. Used for the blueprint
// editor's incremental "does this still parse" feedback loop.
type DraftGraph struct {
	Blueprint      *blueprint.Blueprint
	PendingOutputs []string // node IDs whose output_schema is not yet declared
}

// CompiledGraph is the fully validated result of all six phases; only this
// type may be handed to the execution engine.
type CompiledGraph struct {
	Blueprint      *blueprint.Blueprint
	Graph          *graph.Graph
	EstimatedCost  float64
	CriticalPath   []string
}

// Validator runs the phase pipeline against a fixed pair of compile-time
// ceilings. It holds no other state between calls.
type Validator struct {
	costCeiling  float64
	depthCeiling int
}

// New constructs a Validator bound to the deployment's configured cost and
// depth ceilings. A zero costCeiling or depthCeiling disables that check,
// which TestCompile* rely on to exercise phases 1-5 in isolation.
func New(costCeiling float64, depthCeiling int) *Validator {
	return &Validator{costCeiling: costCeiling, depthCeiling: depthCeiling}
}

// ValidateDraft runs phases 1-2 (structural soundness + reference
// resolution) without requiring the blueprint to be cycle-free or fully
// schema-annotated. Its result cannot be executed.
func (v *Validator) ValidateDraft(bp *blueprint.Blueprint) (*DraftGraph, error) {
	if err := v.phase1Structural(bp); err != nil {
		return nil, err
	}
	if err := v.phase2References(bp); err != nil {
		return nil, err
	}
	var pending []string
	for _, n := range bp.Nodes {
		if len(n.OutputSchema) == 0 {
			pending = append(pending, n.ID)
		}
	}
	return &DraftGraph{Blueprint: bp, PendingOutputs: pending}, nil
}

// Finalize re-runs all six phases against the fully materialized
// blueprint inside draft and returns a CompiledGraph or the first error
// encountered. There is no implicit third state between draft and
// compiled: a DraftGraph can never reach the engine directly.
func (v *Validator) Finalize(draft *DraftGraph) (*CompiledGraph, error) {
	bp := draft.Blueprint
	if err := v.phase1Structural(bp); err != nil {
		return nil, err
	}
	if err := v.phase2References(bp); err != nil {
		return nil, err
	}
	g, err := v.phase3Cycles(bp)
	if err != nil {
		return nil, err
	}
	if err := v.phase4SchemaCompatibility(bp, g); err != nil {
		return nil, err
	}
	if err := v.phase3bDepthCeiling(bp, g); err != nil {
		return nil, err
	}
	cost := v.phase5BudgetEstimation(bp)
	cg, err := v.phase6Finalize(bp, g, cost)
	if err != nil {
		return nil, err
	}
	return cg, nil
}

// phase3bDepthCeiling rejects a blueprint whose longest dependency chain
// exceeds the deployment ceiling or any node's own tighter Guards.DepthCeiling.
func (v *Validator) phase3bDepthCeiling(bp *blueprint.Blueprint, g *graph.Graph) error {
	ceiling := v.depthCeiling
	for _, n := range bp.Nodes {
		if n.Guards.DepthCeiling > 0 && (ceiling == 0 || n.Guards.DepthCeiling < ceiling) {
			ceiling = n.Guards.DepthCeiling
		}
	}
	if ceiling <= 0 {
		return nil
	}
	if depth := g.Depth(); depth > ceiling {
		return orcherr.New(orcherr.KindBudgetExceeded, "", "Depth ceiling %d exceeded: graph depth is %d", ceiling, depth)
	}
	return nil
}

// Compile is the common case: draft + finalize in one call.
func (v *Validator) Compile(bp *blueprint.Blueprint) (*CompiledGraph, error) {
	draft, err := v.ValidateDraft(bp)
	if err != nil {
		return nil, err
	}
	return v.Finalize(draft)
}

// phase1Structural: per-node field validation, duplicate-ID rejection.
func (v *Validator) phase1Structural(bp *blueprint.Blueprint) error {
	seen := make(map[string]bool, len(bp.Nodes))
	for _, n := range bp.Nodes {
		if seen[n.ID] {
			return orcherr.New(orcherr.KindValidation, n.ID, "duplicate node id")
		}
		seen[n.ID] = true
		if err := n.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// phase2References: depends_on and input-mapping node references resolve
// to nodes that exist in the blueprint.
func (v *Validator) phase2References(bp *blueprint.Blueprint) error {
	ids := make(map[string]bool, len(bp.Nodes))
	for _, n := range bp.Nodes {
		ids[n.ID] = true
	}
	for _, n := range bp.Nodes {
		for _, dep := range n.DependsOn {
			if !ids[dep] {
				return orcherr.New(orcherr.KindValidation, n.ID, "depends_on references unknown node %q", dep)
			}
		}
		for _, im := range n.Inputs {
			if ref := nodeReference(im.Expression); ref != "" && !ids[ref] {
				return orcherr.New(orcherr.KindValidation, n.ID, "input mapping %q references unknown node %q", im.Field, ref)
			}
		}
	}
	return nil
}

// nodeReference extracts the node ID from a "$nodes.<id>.<path>" style
// expression, mirroring the resolver's addressing convention.
func nodeReference(expr string) string {
	const prefix = "$nodes."
	if !strings.HasPrefix(expr, prefix) {
		return ""
	}
	rest := expr[len(prefix):]
	if i := strings.IndexAny(rest, ".["); i >= 0 {
		return rest[:i]
	}
	return rest
}

// phase3Cycles builds the dependency graph, which rejects cycles as a side
// effect of construction.
func (v *Validator) phase3Cycles(bp *blueprint.Blueprint) (*graph.Graph, error) {
	return graph.New(bp.Nodes)
}

// phase4SchemaCompatibility checks that every input mapping referencing an
// upstream node's output addresses a field declared in that node's
// output_schema, when one is declared. Nodes without a declared
// output_schema are treated permissively (schema-on-write, not enforced
// until declared); the other half of this contract is enforced at
// runtime when the context builder actually resolves the expression.
func (v *Validator) phase4SchemaCompatibility(bp *blueprint.Blueprint, g *graph.Graph) error {
	byID := make(map[string]*node.Spec, len(bp.Nodes))
	for _, n := range bp.Nodes {
		byID[n.ID] = n
	}
	for _, n := range bp.Nodes {
		for _, im := range n.Inputs {
			ref := nodeReference(im.Expression)
			if ref == "" {
				continue
			}
			upstream := byID[ref]
			if upstream == nil || len(upstream.OutputSchema) == 0 {
				continue
			}
			field := outputField(im.Expression)
			if field == "" {
				continue
			}
			if _, ok := upstream.OutputSchema[field]; !ok {
				return orcherr.New(orcherr.KindValidation, n.ID, "input mapping %q addresses undeclared output field %q of node %q", im.Field, field, ref)
			}
		}
	}
	return nil
}

func outputField(expr string) string {
	parts := strings.SplitN(expr, ".", 3)
	if len(parts) < 3 {
		return ""
	}
	field := parts[2]
	if i := strings.IndexAny(field, ".["); i >= 0 {
		field = field[:i]
	}
	return field
}

// phase5BudgetEstimation sums each node's declared or default cost weight
// so the engine can pre-flight a blueprint against a budget guard before
// it ever starts executing.
func (v *Validator) phase5BudgetEstimation(bp *blueprint.Blueprint) float64 {
	var total float64
	for _, n := range bp.Nodes {
		if n.EstimatedCostWeight > 0 {
			total += n.EstimatedCostWeight
			continue
		}
		total += defaultCostWeight(n.Kind)
	}
	return total
}

func defaultCostWeight(k node.Kind) float64 {
	switch k {
	case node.KindLLM, node.KindAgent:
		return 10
	case node.KindCode:
		return 3
	case node.KindTool, node.KindWorkflow:
		return 2
	default:
		return 1
	}
}

// phase6Finalize rejects a blueprint whose estimated cost exceeds the
// deployment ceiling, then assembles the CompiledGraph handed to the engine.
func (v *Validator) phase6Finalize(bp *blueprint.Blueprint, g *graph.Graph, cost float64) (*CompiledGraph, error) {
	if v.costCeiling > 0 && cost > v.costCeiling {
		return nil, orcherr.New(orcherr.KindBudgetExceeded, "", "estimated cost %.1f exceeds configured ceiling %.1f", cost, v.costCeiling)
	}
	return &CompiledGraph{
		Blueprint:     bp,
		Graph:         g,
		EstimatedCost: cost,
		CriticalPath:  g.CriticalPath(),
	}, nil
}
