package flow

import (
	"fmt"

	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
	"github.com/oliveagle/jsonpath"
)

// Flow is the validated, indexed form of a workflow definition.
type Flow struct {
	Id          string
	Name        string
	RootStep    string
	Definition  *model.Workflow
	steps       map[string]*model.Step
	transitions map[string][]transition
	selectors   map[string][]*jsonpath.Compiled
}

func Convert(wf *model.Workflow) (*Flow, error) {
	if wf == nil {
		return nil, api.DefinitionError{Reason: "definition is empty"}
	}
	if err := Validate(wf); err != nil {
		return nil, err
	}
	fl := &Flow{
		Id:          wf.Id,
		Name:        wf.Name,
		RootStep:    wf.Steps[0].Id,
		Definition:  wf,
		steps:       make(map[string]*model.Step, len(wf.Steps)),
		transitions: make(map[string][]transition),
		selectors:   make(map[string][]*jsonpath.Compiled),
	}
	for i := range wf.Steps {
		step := &wf.Steps[i]
		fl.steps[step.Id] = step
		if step.IsDecision() {
			compiled, _ := compileSelectionPaths(step.Decision)
			fl.selectors[step.Id] = compiled
		}
	}
	for _, tr := range wf.Transitions {
		compiled := transition{Transition: tr}
		if len(tr.Expression) != 0 {
			compiled.program, _ = util.CompileExpression(tr.Expression)
		}
		fl.transitions[tr.From] = append(fl.transitions[tr.From], compiled)
	}
	return fl, nil
}

func Validate(wf *model.Workflow) error {
	invalid := func(format string, args ...any) error {
		return api.DefinitionError{WorkflowId: wf.Id, Reason: fmt.Sprintf(format, args...)}
	}
	if len(wf.Id) == 0 {
		return invalid("workflow id can not be empty")
	}
	if len(wf.Steps) == 0 {
		return invalid("workflow must declare at least one step")
	}
	stepIds := make(map[string]bool, len(wf.Steps))
	for _, step := range wf.Steps {
		if len(step.Id) == 0 {
			return invalid("step id can not be empty")
		}
		if stepIds[step.Id] {
			return invalid("step id %s is duplicate", step.Id)
		}
		stepIds[step.Id] = true
		switch step.Type {
		case "", model.STEP_TYPE_NORMAL, model.STEP_TYPE_DECISION:
		default:
			return invalid("step %s has invalid type %s", step.Id, step.Type)
		}
		for i, act := range step.Actions {
			if len(act.Type()) == 0 {
				return invalid("action %d of step %s has no type", i, step.Id)
			}
		}
		for _, ev := range step.Events {
			if len(ev.Type) == 0 {
				return invalid("event of step %s has no type", step.Id)
			}
		}
		if step.IsDecision() {
			if _, err := compileSelectionPaths(step.Decision); err != nil {
				return invalid("step %s: %v", step.Id, err)
			}
		}
	}
	for _, step := range wf.Steps {
		if step.ErrorHandling == nil || len(step.ErrorHandling.OnError) == 0 {
			continue
		}
		if !stepIds[step.ErrorHandling.OnError] {
			return invalid("step %s routes errors to unknown step %s", step.Id, step.ErrorHandling.OnError)
		}
	}
	for _, tr := range wf.Transitions {
		if !stepIds[tr.From] {
			return invalid("transition from unknown step %s", tr.From)
		}
		if !tr.IsTerminal() && !stepIds[tr.To] {
			return invalid("transition from %s to unknown step %s", tr.From, tr.To)
		}
		if len(tr.Expression) != 0 {
			if _, err := util.CompileExpression(tr.Expression); err != nil {
				return invalid("transition from %s has invalid expression: %v", tr.From, err)
			}
		}
	}
	return nil
}

func (f *Flow) Step(stepId string) (*model.Step, bool) {
	step, ok := f.steps[stepId]
	return step, ok
}

func (f *Flow) Root() *model.Step {
	return f.steps[f.RootStep]
}

// Selectors returns the compiled decision selection paths of a decision step.
func (f *Flow) Selectors(stepId string) []*jsonpath.Compiled {
	return f.selectors[stepId]
}
