package engine

import (
	"context"

	"github.com/mohitkumar/stepflow/model"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	KeyStepType    = tag.MustNewKey("step_type")
	KeyInstruction = tag.MustNewKey("instruction")

	StepsExecuted = stats.Int64("stepflow/engine/steps", "Steps entered by the engine", stats.UnitDimensionless)
	Instructions  = stats.Int64("stepflow/engine/instructions", "Instructions returned by the engine", stats.UnitDimensionless)
	SafetyFaults  = stats.Int64("stepflow/engine/safety_faults", "Executions faulted by the hop cap", stats.UnitDimensionless)
)

var EngineViews = []*view.View{
	{
		Name:        "stepflow/engine/steps",
		Description: "Number of steps entered",
		Measure:     StepsExecuted,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyStepType},
	},
	{
		Name:        "stepflow/engine/instructions",
		Description: "Number of instructions by type",
		Measure:     Instructions,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyInstruction},
	},
	{
		Name:        "stepflow/engine/safety_faults",
		Description: "Number of safety faults",
		Measure:     SafetyFaults,
		Aggregation: view.Count(),
	},
}

func RegisterViews() error {
	return view.Register(EngineViews...)
}

func recordStep(ctx context.Context, step *model.Step) {
	stepType := string(model.STEP_TYPE_NORMAL)
	if step.IsDecision() {
		stepType = string(model.STEP_TYPE_DECISION)
	}
	stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyStepType, stepType)}, StepsExecuted.M(1))
}

func recordInstruction(ctx context.Context, inst *model.Instruction) {
	stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyInstruction, string(inst.Type))}, Instructions.M(1))
}
