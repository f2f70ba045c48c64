// Package node defines the discriminated union of node specs that make up
// a blueprint, plus the shared validation every node type must pass.
package node

import (
	"fmt"

	"github.com/orbitalflow/engine/internal/orcherr"
)

// Kind enumerates the ten node types the engine can schedule.
type Kind string

const (
	KindTool      Kind = "tool"
	KindLLM       Kind = "llm"
	KindCondition Kind = "condition"
	KindLoop      Kind = "loop"
	KindParallel  Kind = "parallel"
	KindWorkflow  Kind = "workflow"
	KindCode      Kind = "code"
	KindAgent     Kind = "agent"
	KindHuman     Kind = "human"
	KindMonitor   Kind = "monitor"
)

var validKinds = map[Kind]bool{
	KindTool: true, KindLLM: true, KindCondition: true, KindLoop: true,
	KindParallel: true, KindWorkflow: true, KindCode: true, KindAgent: true,
	KindHuman: true, KindMonitor: true,
}

// InputMapping binds one input field of a node to a dotted-path expression
// resolved against the running context (e.g. "$nodes.fetch.body").
type InputMapping struct {
	Field      string `json:"field"`
	Expression string `json:"expression"`
	Default    any    `json:"default,omitempty"`
	Required   bool   `json:"required,omitempty"`
}

// FailurePolicy controls what the engine does when a node fails.
type FailurePolicy string

const (
	FailureHalt             FailurePolicy = "halt"
	FailureContinuePossible FailurePolicy = "continue_possible"
	FailureContinueAll      FailurePolicy = "continue_all"
)

// RetryPolicy configures exponential backoff retry for retriable failures.
type RetryPolicy struct {
	MaxAttempts int     `json:"max_attempts,omitempty"`
	BaseDelayMS int     `json:"base_delay_ms,omitempty"`
	Multiplier  float64 `json:"multiplier,omitempty"`
}

// Guards bound a node's resource consumption.
type Guards struct {
	TokenCeiling  int `json:"token_ceiling,omitempty"`
	DepthCeiling  int `json:"depth_ceiling,omitempty"`
	TimeoutMS     int `json:"timeout_ms,omitempty"`
}

// Spec is the common envelope every node type embeds.
type Spec struct {
	ID             string         `json:"id"`
	Kind           Kind           `json:"type"`
	DependsOn      []string       `json:"depends_on,omitempty"`
	Inputs         []InputMapping `json:"inputs,omitempty"`
	OutputSchema   map[string]any `json:"output_schema,omitempty"`
	FailurePolicy  FailurePolicy  `json:"failure_policy,omitempty"`
	Retry          *RetryPolicy   `json:"retry,omitempty"`
	Guards         Guards         `json:"guards,omitempty"`
	IsDeterministic bool          `json:"is_deterministic,omitempty"`
	EstimatedCostWeight float64   `json:"estimated_cost_weight,omitempty"`

	// Type-specific configuration, kept as raw fields rather than an
	// interface{} so JSON round-trips without a custom UnmarshalJSON.
	Tool      *ToolConfig      `json:"tool,omitempty"`
	LLM       *LLMConfig       `json:"llm,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
	Loop      *LoopConfig      `json:"loop,omitempty"`
	Parallel  *ParallelConfig  `json:"parallel,omitempty"`
	Workflow  *WorkflowConfig  `json:"workflow,omitempty"`
	Code      *CodeConfig      `json:"code,omitempty"`
	Agent     *AgentConfig     `json:"agent,omitempty"`
	Human     *HumanConfig     `json:"human,omitempty"`
	Monitor   *MonitorConfig   `json:"monitor,omitempty"`
}

type ToolConfig struct {
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
}

type LLMConfig struct {
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Prompt      string         `json:"prompt"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
}

type ConditionConfig struct {
	Expression string `json:"expression"`
	OnTrue     []string `json:"on_true"`
	OnFalse    []string `json:"on_false"`
}

type LoopConfig struct {
	Items         string `json:"items,omitempty"`
	Condition     string `json:"condition,omitempty"`
	MaxIterations int    `json:"max_iterations"`
	Body          []string `json:"body"`
}

type ParallelConfig struct {
	Branches [][]string `json:"branches"`
	JoinPolicy string   `json:"join_policy,omitempty"` // "all" | "any" | "n_of_m"
	JoinN      int      `json:"join_n,omitempty"`
}

type WorkflowConfig struct {
	BlueprintID string         `json:"blueprint_id"`
	Version     int            `json:"version,omitempty"`
	InputMap    map[string]string `json:"input_map,omitempty"`
}

type CodeConfig struct {
	Language string `json:"language"` // "python" | "javascript" | "go"
	Source   string `json:"source"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
	MemoryLimitMB int `json:"memory_limit_mb,omitempty"`
}

type AgentConfig struct {
	SystemPrompt  string   `json:"system_prompt"`
	AllowedTools  []string `json:"allowed_tools,omitempty"`
	MemoryScopes  []string `json:"memory_scopes,omitempty"`
	MaxSteps      int      `json:"max_steps,omitempty"`
}

type HumanConfig struct {
	Prompt       string `json:"prompt"`
	TimeoutMS    int    `json:"timeout_ms,omitempty"`
	OnTimeout    string `json:"on_timeout,omitempty"` // "fail" | "default"
	DefaultValue any    `json:"default_value,omitempty"`
}

// MonitorAction names the action a monitor node reports in its output
// ("action") when its threshold condition fires. Defaults to alert-only.
// The engine does not act on it: halt_workflow does not halt the run and
// skip_downstream does not skip any node.
type MonitorAction string

const (
	MonitorAlertOnly      MonitorAction = "alert_only"
	MonitorHaltWorkflow   MonitorAction = "halt_workflow"
	MonitorSkipDownstream MonitorAction = "skip_downstream"
)

type MonitorConfig struct {
	Metric         string         `json:"metric"`
	Threshold      float64        `json:"threshold"`
	Comparator     string         `json:"comparator"` // "gt" | "lt" | "eq"
	ActionOnTrigger MonitorAction `json:"action_on_trigger,omitempty"`
	AlertChannels  []string       `json:"alert_channels,omitempty"`
}

// Validate checks the envelope plus the active type-specific config.
// It is the "runtime_validate()" hook every node type exposes.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return orcherr.New(orcherr.KindValidation, "", "node id must not be empty")
	}
	if !validKinds[s.Kind] {
		return orcherr.New(orcherr.KindValidation, s.ID, "unknown node type %q", s.Kind)
	}
	switch s.Kind {
	case KindTool:
		if s.Tool == nil || s.Tool.ToolName == "" {
			return orcherr.New(orcherr.KindValidation, s.ID, "tool node requires tool_name")
		}
	case KindLLM:
		if s.LLM == nil || s.LLM.Prompt == "" {
			return orcherr.New(orcherr.KindValidation, s.ID, "llm node requires prompt")
		}
	case KindCondition:
		if s.Condition == nil || s.Condition.Expression == "" {
			return orcherr.New(orcherr.KindValidation, s.ID, "condition node requires expression")
		}
	case KindLoop:
		if s.Loop == nil || len(s.Loop.Body) == 0 {
			return orcherr.New(orcherr.KindValidation, s.ID, "loop node requires a non-empty body")
		}
		if s.Loop.MaxIterations <= 0 {
			return orcherr.New(orcherr.KindValidation, s.ID, "loop node requires max_iterations > 0")
		}
	case KindParallel:
		if s.Parallel == nil || len(s.Parallel.Branches) == 0 {
			return orcherr.New(orcherr.KindValidation, s.ID, "parallel node requires at least one branch")
		}
	case KindWorkflow:
		if s.Workflow == nil || s.Workflow.BlueprintID == "" {
			return orcherr.New(orcherr.KindValidation, s.ID, "workflow node requires blueprint_id")
		}
	case KindCode:
		if s.Code == nil || s.Code.Source == "" {
			return orcherr.New(orcherr.KindValidation, s.ID, "code node requires source")
		}
	case KindAgent:
		if s.Agent == nil || s.Agent.SystemPrompt == "" {
			return orcherr.New(orcherr.KindValidation, s.ID, "agent node requires system_prompt")
		}
	case KindHuman:
		if s.Human == nil || s.Human.Prompt == "" {
			return orcherr.New(orcherr.KindValidation, s.ID, "human node requires prompt")
		}
	case KindMonitor:
		if s.Monitor == nil || s.Monitor.Metric == "" {
			return orcherr.New(orcherr.KindValidation, s.ID, "monitor node requires metric")
		}
		if s.Monitor.ActionOnTrigger == "" {
			s.Monitor.ActionOnTrigger = MonitorAlertOnly
		}
	}
	for _, m := range s.Inputs {
		if m.Field == "" || m.Expression == "" {
			return orcherr.New(orcherr.KindValidation, s.ID, "input mapping requires field and expression")
		}
	}
	return nil
}

// IsAbsorber reports whether the engine handles this node inline (pure
// control flow: condition, loop, parallel) versus dispatching it to an
// executor that may perform I/O.
func (s *Spec) IsAbsorber() bool {
	switch s.Kind {
	case KindCondition, KindLoop, KindParallel:
		return true
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }

// ErrUnknownKind is returned by factories given an unrecognized Kind.
var ErrUnknownKind = fmt.Errorf("unknown node kind")
