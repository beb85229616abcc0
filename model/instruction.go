package model

import "time"

type InstructionType string

const INSTRUCTION_CONTINUE InstructionType = "continue"
const INSTRUCTION_AWAITING_DECISION InstructionType = "awaiting_decision"
const INSTRUCTION_TERMINAL InstructionType = "terminal"
const INSTRUCTION_ERROR_ROUTED InstructionType = "error_routed"
const INSTRUCTION_FAILED InstructionType = "failed"

type Instruction struct {
	Type   InstructionType `json:"type"`
	StepId string          `json:"stepId"`
	Events []Event         `json:"events"`
	Error  *ErrorInfo      `json:"error,omitempty"`
}

type Event struct {
	Type        string         `json:"type"`
	ExecutionId string         `json:"executionId"`
	StepId      string         `json:"stepId"`
	Data        map[string]any `json:"data"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ErrorInfo is the structured failure record stored under context.error and
// carried by failed and error_routed instructions.
type ErrorInfo struct {
	Component string `json:"component"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	StepId    string `json:"stepId"`
	StepName  string `json:"stepName"`
	Stack     string `json:"stack,omitempty"`
}

func (e *ErrorInfo) ToMap() map[string]any {
	return map[string]any{
		"component": e.Component,
		"kind":      e.Kind,
		"message":   e.Message,
		"stepId":    e.StepId,
		"stepName":  e.StepName,
		"stack":     e.Stack,
	}
}
