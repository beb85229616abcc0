package action

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/mohitkumar/stepflow/analytics"
	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
	"go.uber.org/zap"
)

const DEFAULT_ACTION_TIMEOUT = 5 * time.Second

type Dispatcher struct {
	registry       *Registry
	defaultTimeout time.Duration
	collector      analytics.WorkflowDataCollector
}

func NewDispatcher(registry *Registry, defaultTimeout time.Duration, collector analytics.WorkflowDataCollector) *Dispatcher {
	if defaultTimeout <= 0 {
		defaultTimeout = DEFAULT_ACTION_TIMEOUT
	}
	if collector == nil {
		collector = analytics.NoopDataCollector{}
	}
	return &Dispatcher{
		registry:       registry,
		defaultTimeout: defaultTimeout,
		collector:      collector,
	}
}

type outcome struct {
	result  map[string]any
	err     error
	stack   string
	aborted error
}

// Dispatch runs the actions of step one after another, merging each result
// into exec.Context before the next action is resolved. The first failure
// stops the step; merges made by earlier actions are kept. When ctx itself
// is cancelled the call is abandoned with ctx.Err() instead of a HandlerError.
func (d *Dispatcher) Dispatch(ctx context.Context, exec *model.WorkflowExecution, step *model.Step) error {
	if exec.Context == nil {
		exec.Context = make(map[string]any)
	}
	for i, spec := range step.Actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		resolved := model.ActionSpec(util.ResolveMap(spec, exec.Context))
		actionType := resolved.Type()
		rec := analytics.ActionRecord{
			WorkflowId:  exec.WorkflowId,
			ExecutionId: exec.ExecutionId,
			StepId:      step.Id,
			ActionType:  actionType,
			ActionIndex: i,
		}
		handler, ok := d.registry.Get(actionType)
		if !ok {
			d.collector.RecordActionFailure(rec, "unknown action type")
			return api.UnknownActionTypeError{ActionType: actionType, StepId: step.Id}
		}
		view, err := util.NormalizeMap(exec.Context)
		if err != nil {
			return api.HandlerError{ActionType: actionType, StepId: step.Id, Cause: err, Stack: string(debug.Stack())}
		}
		timeout := resolved.Timeout()
		if timeout == 0 {
			timeout = d.defaultTimeout
		}

		start := time.Now()
		out := d.invoke(ctx, handler, resolved, view, timeout)
		rec.Duration = time.Since(start)
		if out.aborted != nil {
			logger.Warn("action abandoned",
				zap.String("executionId", exec.ExecutionId),
				zap.String("stepId", step.Id),
				zap.String("action", actionType),
				zap.Error(out.aborted))
			return out.aborted
		}
		if out.err == nil {
			out.result, out.err = util.NormalizeMap(out.result)
		}
		if out.err != nil {
			logger.Error("action failed",
				zap.String("executionId", exec.ExecutionId),
				zap.String("stepId", step.Id),
				zap.String("action", actionType),
				zap.Error(out.err))
			recordLatency(ctx, actionType, "failure", rec.Duration)
			d.collector.RecordActionFailure(rec, out.err.Error())
			if len(out.stack) == 0 {
				out.stack = string(debug.Stack())
			}
			return api.HandlerError{ActionType: actionType, StepId: step.Id, Cause: out.err, Stack: out.stack}
		}
		for k, v := range out.result {
			exec.Context[k] = v
		}
		recordLatency(ctx, actionType, "success", rec.Duration)
		d.collector.RecordActionSuccess(rec, out.result)
	}
	return nil
}

// invoke awaits handler for at most timeout. Only that deadline is a handler
// failure; cancellation of the caller's ctx is reported as aborted.
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, spec model.ActionSpec, view map[string]any, timeout time.Duration) outcome {
	invokeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("handler panicked: %v", r), stack: string(debug.Stack())}
			}
		}()
		res, err := handler(invokeCtx, spec, view)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() != nil {
			return outcome{aborted: ctx.Err()}
		}
		return out
	case <-invokeCtx.Done():
		if ctx.Err() != nil {
			return outcome{aborted: ctx.Err()}
		}
		return outcome{err: fmt.Errorf("handler did not finish within %s: %w", timeout, invokeCtx.Err())}
	}
}
