package flow

import (
	"context"
	"strings"

	"github.com/dop251/goja"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
	"go.uber.org/zap"
)

type transition struct {
	model.Transition
	program *goja.Program
}

// Next returns the first transition leaving stepId whose condition holds for
// data. A false second result means the step is terminal.
func (f *Flow) Next(ctx context.Context, stepId string, data map[string]any) (*model.Transition, bool) {
	for i := range f.transitions[stepId] {
		tr := &f.transitions[stepId][i]
		if conditionHolds(tr.Condition, data) && expressionHolds(ctx, tr, data) {
			return &tr.Transition, true
		}
	}
	return nil, false
}

func conditionHolds(condition string, data map[string]any) bool {
	condition = strings.TrimSpace(condition)
	if len(condition) == 0 || strings.EqualFold(condition, model.CONDITION_ALWAYS) {
		return true
	}
	resolved := util.Resolve(condition, data)
	if util.HasToken(resolved) {
		return false
	}
	return util.Truthy(resolved)
}

func expressionHolds(ctx context.Context, tr *transition, data map[string]any) bool {
	if tr.program == nil {
		return true
	}
	ok, err := util.RunExpression(ctx, tr.program, data)
	if err != nil {
		logger.Warn("transition expression failed", zap.String("from", tr.From), zap.String("to", tr.To), zap.Error(err))
		return false
	}
	return ok
}
