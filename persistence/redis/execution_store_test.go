package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) (Config, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	return Config{Addrs: []string{mr.Addr()}, Namespace: "stepflow"}, mr
}

func TestRedisExecutionStore(t *testing.T) {
	ctx := context.Background()
	for scenario, fn := range map[string]func(t *testing.T, s *redisExecutionStore, mr *miniredis.Miniredis){
		"put and get": func(t *testing.T, s *redisExecutionStore, mr *miniredis.Miniredis) {
			exec := &model.WorkflowExecution{
				ExecutionId:   "e1",
				WorkflowId:    "wf",
				CurrentStepId: "a",
				State:         model.AWAITING_DECISION,
				Context:       map[string]any{"user": map[string]any{"email": "a@b.com"}},
			}
			require.NoError(t, s.Put(ctx, exec))
			got, err := s.Get(ctx, "e1")
			require.NoError(t, err)
			require.Equal(t, model.AWAITING_DECISION, got.State)
			require.Equal(t, map[string]any{"email": "a@b.com"}, got.Context["user"])
			require.True(t, mr.Exists(s.partitionKey("e1")))
		},
		"missing execution": func(t *testing.T, s *redisExecutionStore, mr *miniredis.Miniredis) {
			_, err := s.Get(ctx, "nope")
			var notFound api.ExecutionNotFoundError
			require.ErrorAs(t, err, &notFound)
		},
		"partitions are stable": func(t *testing.T, s *redisExecutionStore, mr *miniredis.Miniredis) {
			require.Equal(t, s.partitionKey("abc"), s.partitionKey("abc"))
			require.Contains(t, s.partitionKey("abc"), "stepflow:EXECUTION:")
		},
		"lock is released": func(t *testing.T, s *redisExecutionStore, mr *miniredis.Miniredis) {
			require.NoError(t, s.WithLock(ctx, "e1", func(ctx context.Context) error {
				require.True(t, mr.Exists("stepflow:LOCK:e1"))
				return nil
			}))
			require.False(t, mr.Exists("stepflow:LOCK:e1"))
		},
		"lock serializes callers": func(t *testing.T, s *redisExecutionStore, mr *miniredis.Miniredis) {
			var mu sync.Mutex
			active, maxActive := 0, 0
			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.WithLock(ctx, "e1", func(ctx context.Context) error {
						mu.Lock()
						active++
						if active > maxActive {
							maxActive = active
						}
						mu.Unlock()
						time.Sleep(5 * time.Millisecond)
						mu.Lock()
						active--
						mu.Unlock()
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			require.Equal(t, 1, maxActive)
		},
		"save inside the lock": func(t *testing.T, s *redisExecutionStore, mr *miniredis.Miniredis) {
			exec := &model.WorkflowExecution{ExecutionId: "e1", WorkflowId: "wf", State: model.IDLE}
			require.NoError(t, s.WithLock(ctx, "e1", func(ctx context.Context) error {
				return s.Put(ctx, exec)
			}))
			got, err := s.Get(ctx, "e1")
			require.NoError(t, err)
			require.Equal(t, "wf", got.WorkflowId)
		},
		"save refuses a lost lock": func(t *testing.T, s *redisExecutionStore, mr *miniredis.Miniredis) {
			exec := &model.WorkflowExecution{ExecutionId: "e1", WorkflowId: "wf", State: model.IDLE}
			err := s.WithLock(ctx, "e1", func(ctx context.Context) error {
				require.NoError(t, mr.Set("stepflow:LOCK:e1", "someone-else"))
				return s.Put(ctx, exec)
			})
			var fault api.EngineSafetyFault
			require.ErrorAs(t, err, &fault)
			_, err = s.Get(ctx, "e1")
			var notFound api.ExecutionNotFoundError
			require.ErrorAs(t, err, &notFound)
			v, _ := mr.Get("stepflow:LOCK:e1")
			require.Equal(t, "someone-else", v)
		},
		"held lock times out": func(t *testing.T, s *redisExecutionStore, mr *miniredis.Miniredis) {
			require.NoError(t, mr.Set("stepflow:LOCK:e1", "someone-else"))
			err := s.WithLock(ctx, "e1", func(ctx context.Context) error { return nil })
			var fault api.EngineSafetyFault
			require.ErrorAs(t, err, &fault)
			v, _ := mr.Get("stepflow:LOCK:e1")
			require.Equal(t, "someone-else", v)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			conf, mr := newTestConfig(t)
			s := NewRedisExecutionStore(conf, ExecutionStoreConfig{Partitions: 4, LockTimeout: 300 * time.Millisecond})
			defer s.Close()
			fn(t, s, mr)
		})
	}
}

func TestRedisLockRenewal(t *testing.T) {
	ctx := context.Background()
	conf, mr := newTestConfig(t)
	s := NewRedisExecutionStore(conf, ExecutionStoreConfig{LockTimeout: 100 * time.Millisecond, LockTTL: time.Second})
	defer s.Close()

	err := s.WithLock(ctx, "e1", func(ctx context.Context) error {
		mr.FastForward(700 * time.Millisecond)
		// at least one renewal runs before the clock moves past the original TTL
		time.Sleep(450 * time.Millisecond)
		mr.FastForward(700 * time.Millisecond)
		require.True(t, mr.Exists("stepflow:LOCK:e1"))

		err := s.WithLock(ctx, "e1", func(ctx context.Context) error { return nil })
		var fault api.EngineSafetyFault
		require.ErrorAs(t, err, &fault)

		return s.Put(ctx, &model.WorkflowExecution{ExecutionId: "e1", WorkflowId: "wf"})
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("stepflow:LOCK:e1"))

	// without renewal the lock expires once its TTL has passed
	require.NoError(t, mr.Set("stepflow:LOCK:e2", "someone-else"))
	mr.SetTTL("stepflow:LOCK:e2", time.Second)
	mr.FastForward(2 * time.Second)
	require.NoError(t, s.WithLock(ctx, "e2", func(ctx context.Context) error { return nil }))
}

func TestRedisMetadataStorage(t *testing.T) {
	conf, _ := newTestConfig(t)
	s := NewRedisMetadataStorage(conf)
	defer s.Close()

	wf := model.Workflow{Id: "booking", Steps: []model.Step{{Id: "a"}}}
	require.NoError(t, s.SaveWorkflowDefinition(wf))
	got, err := s.GetWorkflowDefinition("booking")
	require.NoError(t, err)
	require.Equal(t, "a", got.Steps[0].Id)

	ids, err := s.ListWorkflowDefinitions()
	require.NoError(t, err)
	require.Equal(t, []string{"booking"}, ids)

	require.NoError(t, s.DeleteWorkflowDefinition("booking"))
	_, err = s.GetWorkflowDefinition("booking")
	var notFound api.WorkflowNotFoundError
	require.ErrorAs(t, err, &notFound)
}
