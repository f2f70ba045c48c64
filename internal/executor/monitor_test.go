package executor

import (
	"context"
	"testing"

	"github.com/orbitalflow/engine/internal/ctxbuild"
	"github.com/orbitalflow/engine/internal/node"
)

func TestMonitorExecutorTriggersOverThreshold(t *testing.T) {
	d := newTestDeps(t)
	exec := &monitorExecutor{d}

	spec := &node.Spec{ID: "m1", Monitor: &node.MonitorConfig{
		Metric: "$inputs.latency_ms", Threshold: 500, Comparator: "gt",
		ActionOnTrigger: node.MonitorHaltWorkflow, AlertChannels: []string{"pagerduty"},
	}}
	snap := &ctxbuild.Context{Inputs: map[string]any{"latency_ms": 900}}

	result, err := exec.Execute(context.Background(), spec, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Output.(map[string]any)
	if out["triggered"] != true {
		t.Errorf("triggered = %v, want true", out["triggered"])
	}
	if out["action"] != "halt_workflow" {
		t.Errorf("action = %v, want halt_workflow", out["action"])
	}
}

func TestMonitorExecutorDoesNotTriggerUnderThreshold(t *testing.T) {
	d := newTestDeps(t)
	exec := &monitorExecutor{d}

	spec := &node.Spec{ID: "m1", Monitor: &node.MonitorConfig{
		Metric: "$inputs.latency_ms", Threshold: 500, Comparator: "gt",
	}}
	snap := &ctxbuild.Context{Inputs: map[string]any{"latency_ms": 100}}

	result, err := exec.Execute(context.Background(), spec, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Output.(map[string]any)
	if out["triggered"] != false {
		t.Errorf("triggered = %v, want false", out["triggered"])
	}
	if _, ok := out["action"]; ok {
		t.Error("action should be absent when not triggered")
	}
}

func TestMonitorExecutorRejectsNonNumericMetric(t *testing.T) {
	d := newTestDeps(t)
	exec := &monitorExecutor{d}

	spec := &node.Spec{ID: "m1", Monitor: &node.MonitorConfig{
		Metric: "$inputs.label", Threshold: 1, Comparator: "gt",
	}}
	snap := &ctxbuild.Context{Inputs: map[string]any{"label": "not-a-number"}}

	_, err := exec.Execute(context.Background(), spec, snap)
	if err == nil {
		t.Fatal("expected error for non-numeric metric")
	}
}

func TestMonitorExecutorRejectsMissingConfig(t *testing.T) {
	d := newTestDeps(t)
	exec := &monitorExecutor{d}
	_, err := exec.Execute(context.Background(), &node.Spec{ID: "m1"}, &ctxbuild.Context{})
	if err == nil {
		t.Fatal("expected error for missing monitor config")
	}
}
