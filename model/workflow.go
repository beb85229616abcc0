package model

import (
	"strconv"
	"time"
)

type StepType string

const STEP_TYPE_NORMAL StepType = "normal"
const STEP_TYPE_DECISION StepType = "decision"

const CONDITION_ALWAYS string = "always"

type Workflow struct {
	Id          string       `json:"id" yaml:"id"`
	Name        string       `json:"name,omitempty" yaml:"name,omitempty"`
	Steps       []Step       `json:"steps" yaml:"steps"`
	Transitions []Transition `json:"transitions" yaml:"transitions"`
}

type Step struct {
	Id            string          `json:"id" yaml:"id"`
	Name          string          `json:"name,omitempty" yaml:"name,omitempty"`
	Type          StepType        `json:"type,omitempty" yaml:"type,omitempty"`
	Actions       []ActionSpec    `json:"actions,omitempty" yaml:"actions,omitempty"`
	Events        []EventSpec     `json:"events,omitempty" yaml:"events,omitempty"`
	Outputs       map[string]any  `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	ErrorHandling *ErrorHandling  `json:"errorHandling,omitempty" yaml:"errorHandling,omitempty"`
	Decision      *DecisionPolicy `json:"decision,omitempty" yaml:"decision,omitempty"`
}

// IsDecision treats an empty type as a normal step.
func (s *Step) IsDecision() bool {
	return s.Type == STEP_TYPE_DECISION
}

// DisplayName falls back to the id when no name was declared.
func (s *Step) DisplayName() string {
	if len(s.Name) != 0 {
		return s.Name
	}
	return s.Id
}

type ErrorHandling struct {
	OnError     string      `json:"onError" yaml:"onError"`
	ErrorEvents []EventSpec `json:"errorEvents,omitempty" yaml:"errorEvents,omitempty"`
}

// DecisionPolicy controls how a decision value is derived when the caller
// only submits selection data. SelectionPaths are JSONPath selectors applied
// to the selection in order; the first one that yields a non-null value wins.
type DecisionPolicy struct {
	RequiresExplicitDecision bool     `json:"requiresExplicitDecision,omitempty" yaml:"requiresExplicitDecision,omitempty"`
	SelectionPaths           []string `json:"selectionPaths,omitempty" yaml:"selectionPaths,omitempty"`
}

type Transition struct {
	From       string `json:"from" yaml:"from"`
	To         string `json:"to,omitempty" yaml:"to,omitempty"`
	Condition  string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

func (t Transition) IsTerminal() bool {
	return len(t.To) == 0
}

type EventSpec struct {
	Type string         `json:"type" yaml:"type"`
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

const ACTION_TYPE_KEY string = "type"
const ACTION_TIMEOUT_KEY string = "timeoutMs"

// ActionSpec is the declared form of one action: a handler name under "type"
// plus arbitrary, possibly templated, parameters.
type ActionSpec map[string]any

func (a ActionSpec) Type() string {
	if t, ok := a[ACTION_TYPE_KEY].(string); ok {
		return t
	}
	return ""
}

// Timeout returns the per-action timeout override, or zero when none is set.
func (a ActionSpec) Timeout() time.Duration {
	var ms float64
	switch v := a[ACTION_TIMEOUT_KEY].(type) {
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case float64:
		ms = v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		ms = f
	default:
		return 0
	}
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// Params returns the action parameters without the reserved keys.
func (a ActionSpec) Params() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		if k == ACTION_TYPE_KEY || k == ACTION_TIMEOUT_KEY {
			continue
		}
		out[k] = v
	}
	return out
}
