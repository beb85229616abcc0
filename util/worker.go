package util

import (
	"sync"

	"github.com/mohitkumar/stepflow/logger"
	"go.uber.org/zap"
)

// Worker drains a buffered channel on a single goroutine.
type Worker[T any] struct {
	name     string
	stop     chan struct{}
	stopOnce sync.Once
	wg       *sync.WaitGroup
	handler  func(T) error
	ch       chan T
}

func NewWorker[T any](name string, wg *sync.WaitGroup, handler func(T) error, capacity int) *Worker[T] {
	if wg == nil {
		wg = &sync.WaitGroup{}
	}
	return &Worker[T]{
		name:    name,
		stop:    make(chan struct{}),
		wg:      wg,
		handler: handler,
		ch:      make(chan T, capacity),
	}
}

func (w *Worker[T]) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case item := <-w.ch:
				w.handle(item)
			case <-w.stop:
				w.drain()
				logger.Info("stopping worker", zap.String("worker", w.name))
				return
			}
		}
	}()
}

func (w *Worker[T]) handle(item T) {
	if err := w.handler(item); err != nil {
		logger.Error("error in worker handler", zap.String("worker", w.name), zap.Any("item", item), zap.Error(err))
	}
}

func (w *Worker[T]) drain() {
	for {
		select {
		case item := <-w.ch:
			w.handle(item)
		default:
			return
		}
	}
}

func (w *Worker[T]) Sender() chan<- T {
	return w.ch
}

// TrySend queues item without blocking and reports whether it was accepted.
func (w *Worker[T]) TrySend(item T) bool {
	select {
	case <-w.stop:
		return false
	default:
	}
	select {
	case w.ch <- item:
		return true
	default:
		return false
	}
}

func (w *Worker[T]) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}
