package action

import (
	"context"
	"fmt"
	"time"

	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
)

const ACTION_JAVASCRIPT string = "javascript"
const ACTION_JSON_MAPPER string = "jsonmapper"
const ACTION_DELAY string = "delay"

func RegisterBuiltins(r *Registry) {
	r.Register(ACTION_JAVASCRIPT, javascriptHandler)
	r.Register(ACTION_JSON_MAPPER, jsonMapperHandler)
	r.Register(ACTION_DELAY, delayHandler)
}

// javascriptHandler runs "script" with $ bound to the context and merges the
// resulting $ back.
func javascriptHandler(ctx context.Context, action model.ActionSpec, view map[string]any) (map[string]any, error) {
	script, ok := action["script"].(string)
	if !ok || len(script) == 0 {
		return nil, fmt.Errorf("javascript action requires a script")
	}
	return util.RunScript(ctx, script, view)
}

func jsonMapperHandler(ctx context.Context, action model.ActionSpec, view map[string]any) (map[string]any, error) {
	return action.Params(), nil
}

func delayHandler(ctx context.Context, action model.ActionSpec, view map[string]any) (map[string]any, error) {
	var delay time.Duration
	switch v := action["delayMs"].(type) {
	case float64:
		delay = time.Duration(v * float64(time.Millisecond))
	case int:
		delay = time.Duration(v) * time.Millisecond
	case int64:
		delay = time.Duration(v) * time.Millisecond
	default:
		return nil, fmt.Errorf("delay action requires a numeric delayMs")
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return map[string]any{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
