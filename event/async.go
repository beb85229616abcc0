package event

import (
	"sync"

	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
	"go.uber.org/zap"
)

// AsyncBroadcaster hands events to a background worker so slow sinks never
// hold up a step. Events are dropped when the buffer is full.
type AsyncBroadcaster struct {
	worker *util.Worker[model.Event]
}

func NewAsyncBroadcaster(target Broadcaster, capacity int, wg *sync.WaitGroup) *AsyncBroadcaster {
	handler := func(ev model.Event) error {
		target.Broadcast(ev)
		return nil
	}
	return &AsyncBroadcaster{
		worker: util.NewWorker("event-broadcaster", wg, handler, capacity),
	}
}

func (a *AsyncBroadcaster) Start() {
	a.worker.Start()
}

func (a *AsyncBroadcaster) Stop() {
	a.worker.Stop()
}

func (a *AsyncBroadcaster) Broadcast(ev model.Event) {
	if !a.worker.TrySend(ev) {
		logger.Warn("dropping event", zap.String("type", ev.Type), zap.String("executionId", ev.ExecutionId))
	}
}
