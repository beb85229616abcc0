package util

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohitkumar/stepflow/logger"
	"go.uber.org/zap"
)

// TickWorker calls fn every interval until stopped.
type TickWorker struct {
	stop         chan struct{}
	stopOnce     sync.Once
	tickInterval time.Duration
	wg           *sync.WaitGroup
	name         string
	fn           func()
	running      atomic.Bool
}

func NewTickWorker(name string, interval time.Duration, fn func(), wg *sync.WaitGroup) *TickWorker {
	if wg == nil {
		wg = &sync.WaitGroup{}
	}
	return &TickWorker{
		stop:         make(chan struct{}),
		tickInterval: interval,
		wg:           wg,
		fn:           fn,
		name:         name,
	}
}

func (tw *TickWorker) Start() {
	ticker := time.NewTicker(tw.tickInterval)
	tw.running.Store(true)
	tw.wg.Add(1)
	go func() {
		defer tw.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tw.fn()
			case <-tw.stop:
				logger.Debug("stopping tick worker", zap.String("worker", tw.name))
				tw.running.Store(false)
				return
			}
		}
	}()
	logger.Debug("tick worker started", zap.String("worker", tw.name))
}

func (tw *TickWorker) Stop() {
	tw.stopOnce.Do(func() { close(tw.stop) })
}

func (tw *TickWorker) IsRunning() bool {
	return tw.running.Load()
}
