package node

import "testing"

func TestValidateRejectsEmptyID(t *testing.T) {
	s := &Spec{Kind: KindTool, Tool: &ToolConfig{ToolName: "x"}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	s := &Spec{ID: "n1", Kind: "bogus"}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestValidateToolRequiresToolName(t *testing.T) {
	s := &Spec{ID: "n1", Kind: KindTool, Tool: &ToolConfig{}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for missing tool_name")
	}
}

func TestValidateLLMRequiresPrompt(t *testing.T) {
	s := &Spec{ID: "n1", Kind: KindLLM, LLM: &LLMConfig{Provider: "anthropic"}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for missing prompt")
	}
}

func TestValidateMonitorDefaultsActionOnTrigger(t *testing.T) {
	s := &Spec{ID: "n1", Kind: KindMonitor, Monitor: &MonitorConfig{Metric: "queue_depth", Threshold: 10, Comparator: "gt"}}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Monitor.ActionOnTrigger != MonitorAlertOnly {
		t.Errorf("ActionOnTrigger = %q, want %q", s.Monitor.ActionOnTrigger, MonitorAlertOnly)
	}
}

func TestValidateRejectsIncompleteInputMapping(t *testing.T) {
	s := &Spec{
		ID:   "n1",
		Kind: KindTool,
		Tool: &ToolConfig{ToolName: "x"},
		Inputs: []InputMapping{
			{Field: "a"},
		},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for incomplete input mapping")
	}
}

func TestIsAbsorber(t *testing.T) {
	cases := map[Kind]bool{
		KindCondition: true,
		KindLoop:      true,
		KindParallel:  true,
		KindTool:      false,
		KindAgent:     false,
	}
	for kind, want := range cases {
		s := &Spec{Kind: kind}
		if got := s.IsAbsorber(); got != want {
			t.Errorf("IsAbsorber(%s) = %v, want %v", kind, got, want)
		}
	}
}
