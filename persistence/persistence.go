package persistence

import (
	"context"
	"fmt"

	"github.com/mohitkumar/stepflow/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

func (e StorageLayerError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, e.Error())
}

// ExecutionStore keeps executions by id. All reads and writes that belong to
// one engine call happen inside a single WithLock scope for that id.
type ExecutionStore interface {
	// Get returns a private copy; a missing id is an ExecutionNotFoundError.
	Get(ctx context.Context, executionId string) (*model.WorkflowExecution, error)
	Put(ctx context.Context, exec *model.WorkflowExecution) error
	// WithLock runs fn while holding the lock for executionId. Failing to
	// acquire the lock within the store's lock timeout is an EngineSafetyFault.
	WithLock(ctx context.Context, executionId string, fn func(ctx context.Context) error) error
	Close() error
}
