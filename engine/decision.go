package engine

import (
	"context"
	"fmt"

	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/flow"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

// SubmitDecision resumes an execution paused on a decision step. When
// decision is nil it is derived from selection using the step's policy.
// Rejected decisions leave the execution untouched.
func (e *Engine) SubmitDecision(ctx context.Context, executionId string, decision any, selection any) (*model.Instruction, error) {
	ctx, span := trace.StartSpan(ctx, "stepflow.engine.SubmitDecision")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("executionId", executionId))

	var inst *model.Instruction
	err := e.store.WithLock(ctx, executionId, func(ctx context.Context) error {
		exec, err := e.store.Get(ctx, executionId)
		if err != nil {
			return err
		}
		mismatch := func(format string, args ...any) error {
			return api.DecisionMismatchError{
				ExecutionId: executionId,
				StepId:      exec.CurrentStepId,
				Reason:      fmt.Sprintf(format, args...),
			}
		}
		if exec.State.IsClosed() {
			return mismatch("execution is %s", exec.State)
		}
		fl, err := e.compiledFlow(exec.Workflow)
		if err != nil {
			return err
		}
		step, ok := fl.Step(exec.CurrentStepId)
		if !ok {
			return api.StepNotFoundError{ExecutionId: executionId, StepId: exec.CurrentStepId}
		}
		if !step.IsDecision() {
			return mismatch("step is not a decision step")
		}
		if exec.State != model.AWAITING_DECISION && exec.State != model.IDLE {
			return mismatch("execution is %s", exec.State)
		}
		value, reason := deriveDecision(fl, step, decision, selection)
		if len(reason) != 0 {
			return mismatch("%s", reason)
		}
		value, err = util.NormalizeValue(value)
		if err != nil {
			return mismatch("decision is not JSON-like: %v", err)
		}
		var normalizedSelection any
		if selection != nil {
			if normalizedSelection, err = util.NormalizeValue(selection); err != nil {
				return mismatch("selection is not JSON-like: %v", err)
			}
		}

		logger.Info("decision received",
			zap.String("executionId", executionId),
			zap.String("stepId", step.Id),
			zap.Any("decision", value))
		if exec.Context == nil {
			exec.Context = make(map[string]any)
		}
		exec.Context["decision"] = value
		if selection != nil {
			exec.Context["selection"] = normalizedSelection
		}
		inst, err = e.newRun(exec, fl).advance(ctx, step)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// deriveDecision returns the decision to record, or a non-empty reason why
// none could be determined.
func deriveDecision(fl *flow.Flow, step *model.Step, decision any, selection any) (any, string) {
	if !isAbsent(decision) {
		return decision, ""
	}
	if step.Decision != nil && step.Decision.RequiresExplicitDecision {
		return nil, "step requires an explicit decision"
	}
	if isAbsent(selection) {
		return nil, "no decision or selection submitted"
	}
	normalized, err := util.NormalizeValue(selection)
	if err != nil {
		return nil, fmt.Sprintf("selection is not JSON-like: %v", err)
	}
	switch sel := normalized.(type) {
	case map[string]any:
		for _, selector := range fl.Selectors(step.Id) {
			v, err := selector.Lookup(sel)
			if err == nil && !isAbsent(v) {
				return v, ""
			}
		}
		return nil, "no selection path matched the selection"
	case []any:
		return nil, "a decision can not be derived from a list selection"
	default:
		return sel, ""
	}
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && len(s) == 0
}
