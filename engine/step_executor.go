package engine

import (
	"context"
	"errors"
	"fmt"

	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/flow"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
	"go.opencensus.io/stats"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

const COMPONENT_DISPATCHER string = "action-dispatcher"
const COMPONENT_ENGINE string = "engine"

// ExecuteStep runs stepId of the execution with patch merged over its
// context, then follows matching transitions. Workflow-level failures are
// reported through the returned instruction; the error is reserved for
// calls that could not run at all.
func (e *Engine) ExecuteStep(ctx context.Context, executionId string, stepId string, patch map[string]any) (*model.Instruction, error) {
	ctx, span := trace.StartSpan(ctx, "stepflow.engine.ExecuteStep")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("executionId", executionId), trace.StringAttribute("stepId", stepId))

	var inst *model.Instruction
	err := e.store.WithLock(ctx, executionId, func(ctx context.Context) error {
		exec, err := e.store.Get(ctx, executionId)
		if err != nil {
			return err
		}
		if exec.State.IsClosed() {
			inst, err = closedResult(exec)
			return err
		}
		fl, err := e.compiledFlow(exec.Workflow)
		if err != nil {
			return err
		}
		step, ok := fl.Step(stepId)
		if !ok {
			return api.StepNotFoundError{ExecutionId: executionId, StepId: stepId}
		}
		data, err := util.NormalizeMap(patch)
		if err != nil {
			return fmt.Errorf("invalid context patch: %w", err)
		}
		if exec.Context == nil {
			exec.Context = make(map[string]any)
		}
		for k, v := range data {
			exec.Context[k] = v
		}
		inst, err = e.newRun(exec, fl).executeStep(ctx, step)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// closedResult replays the outcome stored on an execution that can not run again.
func closedResult(exec *model.WorkflowExecution) (*model.Instruction, error) {
	if exec.State == model.FAULTED {
		reason := "execution is faulted"
		if exec.LastInstruction != nil && exec.LastInstruction.Error != nil {
			reason = exec.LastInstruction.Error.Message
		}
		return nil, api.EngineSafetyFault{ExecutionId: exec.ExecutionId, Reason: reason}
	}
	if exec.LastInstruction != nil {
		return exec.LastInstruction, nil
	}
	return &model.Instruction{Type: model.INSTRUCTION_TERMINAL, StepId: exec.CurrentStepId, Events: []model.Event{}}, nil
}

// run carries the state of one engine call across an auto-continuation chain.
type run struct {
	e      *Engine
	exec   *model.WorkflowExecution
	flow   *flow.Flow
	events []model.Event
	hops   int
}

func (e *Engine) newRun(exec *model.WorkflowExecution, fl *flow.Flow) *run {
	return &run{
		e:      e,
		exec:   exec,
		flow:   fl,
		events: []model.Event{},
	}
}

func (r *run) executeStep(ctx context.Context, step *model.Step) (*model.Instruction, error) {
	r.exec.CurrentStepId = step.Id
	r.exec.State = model.RUNNING
	recordStep(ctx, step)
	logger.Debug("executing step", zap.String("executionId", r.exec.ExecutionId), zap.String("stepId", step.Id))

	if step.IsDecision() {
		r.emit(step.Id, step.Events)
		r.record(step.Id, model.INSTRUCTION_AWAITING_DECISION)
		return r.finish(ctx, model.AWAITING_DECISION, &model.Instruction{
			Type:   model.INSTRUCTION_AWAITING_DECISION,
			StepId: step.Id,
		})
	}

	if err := r.e.dispatcher.Dispatch(ctx, r.exec, step); err != nil {
		return r.fail(ctx, step, err)
	}
	r.emit(step.Id, step.Events)
	if len(step.Outputs) != 0 {
		outputs, err := util.NormalizeMap(util.ResolveMap(step.Outputs, r.exec.Context))
		if err != nil {
			return r.fail(ctx, step, api.HandlerError{ActionType: "outputs", StepId: step.Id, Cause: err})
		}
		for k, v := range outputs {
			r.exec.Context[k] = v
		}
	}
	return r.advance(ctx, step)
}

// advance follows the first matching transition out of step.
func (r *run) advance(ctx context.Context, step *model.Step) (*model.Instruction, error) {
	tr, ok := r.flow.Next(ctx, step.Id, r.exec.Context)
	if !ok || tr.IsTerminal() {
		r.record(step.Id, model.INSTRUCTION_TERMINAL)
		return r.finish(ctx, model.TERMINAL, &model.Instruction{
			Type:   model.INSTRUCTION_TERMINAL,
			StepId: step.Id,
		})
	}
	target, _ := r.flow.Step(tr.To)
	r.record(step.Id, model.INSTRUCTION_CONTINUE)

	if !r.e.conf.AutoContinue {
		r.exec.CurrentStepId = target.Id
		return r.finish(ctx, model.IDLE, &model.Instruction{
			Type:   model.INSTRUCTION_CONTINUE,
			StepId: target.Id,
		})
	}

	r.hops++
	if r.hops > r.e.conf.MaxHops {
		return r.fault(ctx, target)
	}
	return r.executeStep(ctx, target)
}

func (r *run) fail(ctx context.Context, step *model.Step, err error) (*model.Instruction, error) {
	info, ok := errorInfo(step, err)
	if !ok {
		return nil, err
	}
	r.exec.Context["error"] = info.ToMap()

	if eh := step.ErrorHandling; eh != nil && len(eh.OnError) != 0 {
		if target, ok := r.flow.Step(eh.OnError); ok {
			logger.Info("routing step failure",
				zap.String("executionId", r.exec.ExecutionId),
				zap.String("stepId", step.Id),
				zap.String("onError", target.Id),
				zap.String("kind", info.Kind))
			r.emit(step.Id, eh.ErrorEvents)
			r.record(step.Id, model.INSTRUCTION_ERROR_ROUTED)
			r.exec.CurrentStepId = target.Id
			return r.finish(ctx, model.IDLE, &model.Instruction{
				Type:   model.INSTRUCTION_ERROR_ROUTED,
				StepId: target.Id,
				Error:  info,
			})
		}
	}

	logger.Error("execution failed",
		zap.String("executionId", r.exec.ExecutionId),
		zap.String("stepId", step.Id),
		zap.String("kind", info.Kind),
		zap.String("message", info.Message))
	r.record(step.Id, model.INSTRUCTION_FAILED)
	return r.finish(ctx, model.FAILED, &model.Instruction{
		Type:   model.INSTRUCTION_FAILED,
		StepId: step.Id,
		Error:  info,
	})
}

func (r *run) fault(ctx context.Context, target *model.Step) (*model.Instruction, error) {
	fault := api.EngineSafetyFault{
		ExecutionId: r.exec.ExecutionId,
		Reason:      fmt.Sprintf("auto-continuation exceeded %d hops at step %s", r.e.conf.MaxHops, target.Id),
	}
	logger.Error("engine safety fault", zap.String("executionId", r.exec.ExecutionId), zap.String("stepId", target.Id), zap.Error(fault))
	stats.Record(ctx, SafetyFaults.M(1))
	r.exec.CurrentStepId = target.Id
	_, err := r.finish(ctx, model.FAULTED, &model.Instruction{
		Type:   model.INSTRUCTION_FAILED,
		StepId: target.Id,
		Error: &model.ErrorInfo{
			Component: COMPONENT_ENGINE,
			Kind:      fault.Kind(),
			Message:   fault.Reason,
			StepId:    target.Id,
			StepName:  target.DisplayName(),
		},
	})
	if err != nil {
		return nil, err
	}
	return nil, fault
}

// finish stores the outcome of the call and persists the execution.
func (r *run) finish(ctx context.Context, state model.ExecutionState, inst *model.Instruction) (*model.Instruction, error) {
	inst.Events = r.events
	r.exec.State = state
	r.exec.LastInstruction = inst
	r.exec.UpdatedAt = r.e.now()
	if limit := r.e.conf.HistoryLimit; limit > 0 && len(r.exec.History) > limit {
		r.exec.History = r.exec.History[len(r.exec.History)-limit:]
	}
	if err := r.e.store.Put(ctx, r.exec); err != nil {
		return nil, err
	}
	recordInstruction(ctx, inst)
	return inst, nil
}

func (r *run) record(stepId string, outcome model.InstructionType) {
	r.exec.History = append(r.exec.History, model.HistoryEntry{
		StepId:  stepId,
		Outcome: outcome,
		At:      r.e.now(),
	})
}

// emit resolves each event against the context and hands it to the broadcaster.
func (r *run) emit(stepId string, specs []model.EventSpec) {
	for _, spec := range specs {
		data := util.ResolveMap(spec.Data, r.exec.Context)
		if data == nil {
			data = make(map[string]any)
		}
		data["executionId"] = r.exec.ExecutionId
		data["stepId"] = stepId
		ev := model.Event{
			Type:        spec.Type,
			ExecutionId: r.exec.ExecutionId,
			StepId:      stepId,
			Data:        data,
			Timestamp:   r.e.now(),
		}
		r.events = append(r.events, ev)
		r.e.broadcaster.Broadcast(ev)
	}
}

// errorInfo classifies a dispatch failure. Only failures raised by the
// workflow itself produce an ErrorInfo; anything else aborts the call.
func errorInfo(step *model.Step, err error) (*model.ErrorInfo, bool) {
	info := &model.ErrorInfo{
		Component: COMPONENT_DISPATCHER,
		StepId:    step.Id,
		StepName:  step.DisplayName(),
	}
	var handlerErr api.HandlerError
	var unknownErr api.UnknownActionTypeError
	switch {
	case errors.As(err, &handlerErr):
		info.Kind = handlerErr.Kind()
		info.Message = handlerErr.Message()
		info.Stack = handlerErr.Stack
	case errors.As(err, &unknownErr):
		info.Kind = unknownErr.Kind()
		info.Message = unknownErr.Error()
	default:
		return nil, false
	}
	return info, true
}
