package memory

import (
	"context"
	"testing"
	"time"

	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/model"
	"github.com/stretchr/testify/require"
)

func TestExecutionStore(t *testing.T) {
	ctx := context.Background()
	for scenario, fn := range map[string]func(t *testing.T, s *executionStore){
		"put and get": func(t *testing.T, s *executionStore) {
			exec := &model.WorkflowExecution{
				ExecutionId:   "e1",
				WorkflowId:    "wf",
				CurrentStepId: "a",
				State:         model.IDLE,
				Context:       map[string]any{"n": 1},
			}
			require.NoError(t, s.Put(ctx, exec))
			got, err := s.Get(ctx, "e1")
			require.NoError(t, err)
			require.Equal(t, "a", got.CurrentStepId)
			require.Equal(t, float64(1), got.Context["n"])
		},
		"get returns a private copy": func(t *testing.T, s *executionStore) {
			require.NoError(t, s.Put(ctx, &model.WorkflowExecution{ExecutionId: "e1", Context: map[string]any{"k": "v"}}))
			got, err := s.Get(ctx, "e1")
			require.NoError(t, err)
			got.Context["k"] = "changed"
			again, err := s.Get(ctx, "e1")
			require.NoError(t, err)
			require.Equal(t, "v", again.Context["k"])
		},
		"missing execution": func(t *testing.T, s *executionStore) {
			_, err := s.Get(ctx, "nope")
			var notFound api.ExecutionNotFoundError
			require.ErrorAs(t, err, &notFound)
		},
		"lock timeout": func(t *testing.T, s *executionStore) {
			release := make(chan struct{})
			acquired := make(chan struct{})
			go s.WithLock(ctx, "e1", func(ctx context.Context) error {
				close(acquired)
				<-release
				return nil
			})
			<-acquired
			err := s.WithLock(ctx, "e1", func(ctx context.Context) error { return nil })
			close(release)
			var fault api.EngineSafetyFault
			require.ErrorAs(t, err, &fault)
		},
		"closed executions expire": func(t *testing.T, _ *executionStore) {
			s := NewExecutionStore(time.Second, 20*time.Millisecond)
			require.NoError(t, s.Put(ctx, &model.WorkflowExecution{ExecutionId: "done", State: model.TERMINAL}))
			require.NoError(t, s.Put(ctx, &model.WorkflowExecution{ExecutionId: "open", State: model.IDLE}))
			require.Eventually(t, func() bool {
				_, err := s.Get(ctx, "done")
				return err != nil
			}, time.Second, 10*time.Millisecond)
			_, err := s.Get(ctx, "open")
			require.NoError(t, err)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewExecutionStore(50*time.Millisecond, 0))
		})
	}
}
