package memory

import (
	"context"
	"time"

	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/persistence"
	"github.com/mohitkumar/stepflow/util"
	"github.com/patrickmn/go-cache"
)

var _ persistence.ExecutionStore = new(executionStore)

// executionStore keeps executions encoded so every Get hands out a fresh
// copy. Closed executions expire after the retention period when one is set.
type executionStore struct {
	executions     *cache.Cache
	locks          *persistence.KeyedLock
	encoderDecoder util.EncoderDecoder[model.WorkflowExecution]
	retention      time.Duration
}

func NewExecutionStore(lockTimeout time.Duration, retention time.Duration) *executionStore {
	cleanup := time.Duration(0)
	if retention > 0 {
		cleanup = retention
	}
	return &executionStore{
		executions:     cache.New(cache.NoExpiration, cleanup),
		locks:          persistence.NewKeyedLock(lockTimeout),
		encoderDecoder: util.NewJsonEncoderDecoder[model.WorkflowExecution](),
		retention:      retention,
	}
}

func (s *executionStore) Get(ctx context.Context, executionId string) (*model.WorkflowExecution, error) {
	data, ok := s.executions.Get(executionId)
	if !ok {
		return nil, api.ExecutionNotFoundError{ExecutionId: executionId}
	}
	exec, err := s.encoderDecoder.Decode(data.([]byte))
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return exec, nil
}

func (s *executionStore) Put(ctx context.Context, exec *model.WorkflowExecution) error {
	data, err := s.encoderDecoder.Encode(*exec)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	expiry := cache.NoExpiration
	if s.retention > 0 && exec.State.IsClosed() {
		expiry = s.retention
	}
	s.executions.Set(exec.ExecutionId, data, expiry)
	return nil
}

func (s *executionStore) WithLock(ctx context.Context, executionId string, fn func(ctx context.Context) error) error {
	unlock, err := s.locks.Lock(ctx, executionId)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

func (s *executionStore) Close() error {
	s.executions.Flush()
	return nil
}
