package action

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	KeyActionType = tag.MustNewKey("action_type")
	KeyOutcome    = tag.MustNewKey("outcome")

	ActionLatencyMs = stats.Float64("stepflow/action/latency", "Action handler latency", stats.UnitMilliseconds)
)

var ActionViews = []*view.View{
	{
		Name:        "stepflow/action/latency",
		Description: "Distribution of action handler latency",
		Measure:     ActionLatencyMs,
		Aggregation: view.Distribution(1, 5, 10, 50, 100, 500, 1000, 5000, 10000),
		TagKeys:     []tag.Key{KeyActionType, KeyOutcome},
	},
	{
		Name:        "stepflow/action/count",
		Description: "Number of action invocations",
		Measure:     ActionLatencyMs,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyActionType, KeyOutcome},
	},
}

func RegisterViews() error {
	return view.Register(ActionViews...)
}

func recordLatency(ctx context.Context, actionType string, outcome string, d time.Duration) {
	stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyActionType, actionType), tag.Upsert(KeyOutcome, outcome)},
		ActionLatencyMs.M(float64(d)/float64(time.Millisecond)))
}
