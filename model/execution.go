package model

import "time"

type ExecutionState string

const IDLE ExecutionState = "IDLE"
const RUNNING ExecutionState = "RUNNING"
const AWAITING_DECISION ExecutionState = "AWAITING_DECISION"
const TERMINAL ExecutionState = "TERMINAL"
const FAILED ExecutionState = "FAILED"
const FAULTED ExecutionState = "FAULTED"

// IsClosed reports whether no further step may run for the execution.
func (s ExecutionState) IsClosed() bool {
	return s == TERMINAL || s == FAILED || s == FAULTED
}

type WorkflowExecution struct {
	ExecutionId     string         `json:"executionId"`
	WorkflowId      string         `json:"workflowId"`
	Workflow        *Workflow      `json:"workflow"`
	Context         map[string]any `json:"context"`
	CurrentStepId   string         `json:"currentStepId"`
	State           ExecutionState `json:"state"`
	History         []HistoryEntry `json:"history,omitempty"`
	LastInstruction *Instruction   `json:"lastInstruction,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type HistoryEntry struct {
	StepId  string          `json:"stepId"`
	Outcome InstructionType `json:"outcome"`
	At      time.Time       `json:"at"`
}

type CreateExecutionRequest struct {
	WorkflowId string         `json:"workflowId"`
	Context    map[string]any `json:"context"`
}

type DecisionRequest struct {
	Decision  any `json:"decision"`
	Selection any `json:"selection"`
}
