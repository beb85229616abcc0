package util

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/dop251/goja"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// RunScript runs script with $ bound to a copy of data and returns the value
// of $ once the script completes.
func RunScript(ctx context.Context, script string, data map[string]any) (map[string]any, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error encoding script input %w", err)
	}
	vm := goja.New()
	stop := interruptOnDone(ctx, vm)
	defer stop()

	expression := fmt.Sprintf("var $ = %s;\n", encoded) + script
	if _, err := vm.RunString(expression); err != nil {
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	val := vm.Get("$")
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return map[string]any{}, nil
	}
	output, ok := val.Export().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("javascript must leave $ as an object, got %s", val.ExportType())
	}
	return output, nil
}

// EvaluateExpression evaluates a boolean JavaScript predicate. The data is
// reachable as the global "context" and, when the name is a free identifier,
// through each of its top-level keys.
func EvaluateExpression(ctx context.Context, expression string, data map[string]any) (bool, error) {
	program, err := CompileExpression(expression)
	if err != nil {
		return false, fmt.Errorf("error compiling expression %q: %w", expression, err)
	}
	return RunExpression(ctx, program, data)
}

// RunExpression evaluates a predicate compiled by CompileExpression.
func RunExpression(ctx context.Context, program *goja.Program, data map[string]any) (bool, error) {
	view, err := NormalizeMap(data)
	if err != nil {
		return false, err
	}
	vm := goja.New()
	stop := interruptOnDone(ctx, vm)
	defer stop()

	if err := vm.Set("context", view); err != nil {
		return false, err
	}
	for k, v := range view {
		if !identifierPattern.MatchString(k) || vm.Get(k) != nil {
			continue
		}
		if err := vm.Set(k, v); err != nil {
			return false, err
		}
	}
	res, err := vm.RunProgram(program)
	if err != nil {
		return false, fmt.Errorf("error evaluating expression: %w", err)
	}
	return res.ToBoolean(), nil
}

func interruptOnDone(ctx context.Context, vm *goja.Runtime) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() { close(done) }
}

// CompileExpression compiles a JavaScript expression once so it can be run
// against many contexts.
func CompileExpression(expression string) (*goja.Program, error) {
	return goja.Compile("expression", expression, false)
}
