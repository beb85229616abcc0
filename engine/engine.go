package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/stepflow/action"
	"github.com/mohitkumar/stepflow/event"
	"github.com/mohitkumar/stepflow/flow"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/metadata"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/persistence"
	"github.com/mohitkumar/stepflow/util"
	"github.com/patrickmn/go-cache"
	"github.com/spaolacci/murmur3"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

const DEFAULT_MAX_HOPS = 64
const DEFAULT_HISTORY_LIMIT = 100

type Config struct {
	// MaxHops bounds the number of transitions one call may follow.
	MaxHops int
	// AutoContinue runs matched non-decision targets in the same call.
	AutoContinue bool
	// HistoryLimit caps the history trail; zero keeps everything.
	HistoryLimit int
}

func DefaultConfig() Config {
	return Config{
		MaxHops:      DEFAULT_MAX_HOPS,
		AutoContinue: true,
		HistoryLimit: DEFAULT_HISTORY_LIMIT,
	}
}

const FLOW_CACHE_TTL = 10 * time.Minute

type Engine struct {
	conf        Config
	flows       *cache.Cache
	metadata    metadata.MetadataService
	store       persistence.ExecutionStore
	dispatcher  *action.Dispatcher
	broadcaster event.Broadcaster
	now         func() time.Time
}

func NewEngine(conf Config, metadataService metadata.MetadataService, store persistence.ExecutionStore,
	dispatcher *action.Dispatcher, broadcaster event.Broadcaster) *Engine {
	if conf.MaxHops <= 0 {
		conf.MaxHops = DEFAULT_MAX_HOPS
	}
	if broadcaster == nil {
		broadcaster = event.NoopBroadcaster{}
	}
	return &Engine{
		conf:        conf,
		flows:       cache.New(FLOW_CACHE_TTL, 2*FLOW_CACHE_TTL),
		metadata:    metadataService,
		store:       store,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// CreateExecution starts a new execution of workflowId positioned on its
// first declared step. The definition is snapshotted into the execution, so
// later edits to the workflow do not affect it.
func (e *Engine) CreateExecution(ctx context.Context, workflowId string, initialContext map[string]any) (string, error) {
	ctx, span := trace.StartSpan(ctx, "stepflow.engine.CreateExecution")
	defer span.End()

	fl, err := e.metadata.GetFlow(workflowId)
	if err != nil {
		return "", err
	}
	data, err := util.NormalizeMap(initialContext)
	if err != nil {
		return "", fmt.Errorf("invalid initial context: %w", err)
	}
	now := e.now()
	exec := &model.WorkflowExecution{
		ExecutionId:   uuid.NewString(),
		WorkflowId:    workflowId,
		Workflow:      fl.Definition,
		Context:       data,
		CurrentStepId: fl.RootStep,
		State:         model.IDLE,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	span.AddAttributes(trace.StringAttribute("executionId", exec.ExecutionId))
	err = e.store.WithLock(ctx, exec.ExecutionId, func(ctx context.Context) error {
		return e.store.Put(ctx, exec)
	})
	if err != nil {
		return "", err
	}
	logger.Info("execution created", zap.String("workflowId", workflowId), zap.String("executionId", exec.ExecutionId))
	return exec.ExecutionId, nil
}

// compiledFlow returns the compiled form of an execution's definition
// snapshot. Flows are cached by workflow id and a hash of the snapshot, so
// executions pinned to an older definition keep their own entry.
func (e *Engine) compiledFlow(wf *model.Workflow) (*flow.Flow, error) {
	if wf == nil {
		return flow.Convert(wf)
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%x", wf.Id, murmur3.Sum64(data))
	if cached, found := e.flows.Get(key); found {
		return cached.(*flow.Flow), nil
	}
	fl, err := flow.Convert(wf)
	if err != nil {
		return nil, err
	}
	e.flows.SetDefault(key, fl)
	return fl, nil
}

// GetExecutionState returns a snapshot; changing it has no effect on the execution.
func (e *Engine) GetExecutionState(ctx context.Context, executionId string) (*model.WorkflowExecution, error) {
	return e.store.Get(ctx, executionId)
}
