package api_v1

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

const ERROR_DOMAIN string = "stepflow"

const KIND_DEFINITION_ERROR string = "DefinitionError"
const KIND_WORKFLOW_NOT_FOUND string = "WorkflowNotFound"
const KIND_STEP_NOT_FOUND string = "StepNotFound"
const KIND_UNKNOWN_ACTION_TYPE string = "UnknownActionType"
const KIND_HANDLER_ERROR string = "HandlerError"
const KIND_DECISION_MISMATCH string = "DecisionMismatch"
const KIND_EXECUTION_NOT_FOUND string = "ExecutionNotFound"
const KIND_ENGINE_SAFETY_FAULT string = "EngineSafetyFault"

// Kinded is implemented by every engine error so callers can classify a
// failure without a type switch.
type Kinded interface {
	Kind() string
}

func newStatus(code codes.Code, kind string, msg string) *status.Status {
	st := status.New(code, msg)
	std, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason: kind,
			Domain: ERROR_DOMAIN,
		},
		&errdetails.LocalizedMessage{
			Locale:  "en-US",
			Message: msg,
		},
	)
	if err != nil {
		return st
	}
	return std
}

type DefinitionError struct {
	WorkflowId string
	Reason     string
}

func (e DefinitionError) Kind() string { return KIND_DEFINITION_ERROR }

func (e DefinitionError) GRPCStatus() *status.Status {
	return newStatus(codes.InvalidArgument, e.Kind(), e.Error())
}

func (e DefinitionError) Error() string {
	return fmt.Sprintf("invalid workflow definition %s: %s", e.WorkflowId, e.Reason)
}

type WorkflowNotFoundError struct {
	WorkflowId string
}

func (e WorkflowNotFoundError) Kind() string { return KIND_WORKFLOW_NOT_FOUND }

func (e WorkflowNotFoundError) GRPCStatus() *status.Status {
	return newStatus(codes.NotFound, e.Kind(), e.Error())
}

func (e WorkflowNotFoundError) Error() string {
	return fmt.Sprintf("workflow %s not found", e.WorkflowId)
}

type StepNotFoundError struct {
	ExecutionId string
	StepId      string
}

func (e StepNotFoundError) Kind() string { return KIND_STEP_NOT_FOUND }

func (e StepNotFoundError) GRPCStatus() *status.Status {
	return newStatus(codes.NotFound, e.Kind(), e.Error())
}

func (e StepNotFoundError) Error() string {
	return fmt.Sprintf("step %s not found in execution %s", e.StepId, e.ExecutionId)
}

type UnknownActionTypeError struct {
	ActionType string
	StepId     string
}

func (e UnknownActionTypeError) Kind() string { return KIND_UNKNOWN_ACTION_TYPE }

func (e UnknownActionTypeError) GRPCStatus() *status.Status {
	return newStatus(codes.FailedPrecondition, e.Kind(), e.Error())
}

func (e UnknownActionTypeError) Error() string {
	return fmt.Sprintf("no handler registered for action type %q in step %s", e.ActionType, e.StepId)
}

// HandlerError wraps a failure raised by an action handler, including
// panics and invocation timeouts.
type HandlerError struct {
	ActionType string
	StepId     string
	Cause      error
	Stack      string
}

func (e HandlerError) Kind() string { return KIND_HANDLER_ERROR }

func (e HandlerError) GRPCStatus() *status.Status {
	return newStatus(codes.Aborted, e.Kind(), e.Error())
}

func (e HandlerError) Error() string {
	return fmt.Sprintf("action %s in step %s failed: %v", e.ActionType, e.StepId, e.Cause)
}

func (e HandlerError) Unwrap() error {
	return e.Cause
}

// Message is the handler's own error text, without the dispatch prefix.
func (e HandlerError) Message() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

type DecisionMismatchError struct {
	ExecutionId string
	StepId      string
	Reason      string
}

func (e DecisionMismatchError) Kind() string { return KIND_DECISION_MISMATCH }

func (e DecisionMismatchError) GRPCStatus() *status.Status {
	return newStatus(codes.FailedPrecondition, e.Kind(), e.Error())
}

func (e DecisionMismatchError) Error() string {
	return fmt.Sprintf("decision rejected for execution %s at step %s: %s", e.ExecutionId, e.StepId, e.Reason)
}

type ExecutionNotFoundError struct {
	ExecutionId string
}

func (e ExecutionNotFoundError) Kind() string { return KIND_EXECUTION_NOT_FOUND }

func (e ExecutionNotFoundError) GRPCStatus() *status.Status {
	return newStatus(codes.NotFound, e.Kind(), e.Error())
}

func (e ExecutionNotFoundError) Error() string {
	return fmt.Sprintf("execution %s not found", e.ExecutionId)
}

// EngineSafetyFault is raised when an engine guard trips: the
// auto-continuation hop cap or the execution lock timeout.
type EngineSafetyFault struct {
	ExecutionId string
	Reason      string
}

func (e EngineSafetyFault) Kind() string { return KIND_ENGINE_SAFETY_FAULT }

func (e EngineSafetyFault) GRPCStatus() *status.Status {
	return newStatus(codes.ResourceExhausted, e.Kind(), e.Error())
}

func (e EngineSafetyFault) Error() string {
	return fmt.Sprintf("engine safety fault on execution %s: %s", e.ExecutionId, e.Reason)
}
