package event

import (
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"go.uber.org/zap"
)

// Broadcaster delivers engine events. Delivery is fire-and-forget:
// implementations must not block the caller for long and report nothing back.
type Broadcaster interface {
	Broadcast(ev model.Event)
}

type BroadcasterFunc func(ev model.Event)

func (f BroadcasterFunc) Broadcast(ev model.Event) {
	f(ev)
}

type multiBroadcaster []Broadcaster

// NewMulti fans every event out to each non-nil broadcaster in order.
func NewMulti(broadcasters ...Broadcaster) Broadcaster {
	var m multiBroadcaster
	for _, b := range broadcasters {
		if b != nil {
			m = append(m, b)
		}
	}
	return m
}

func (m multiBroadcaster) Broadcast(ev model.Event) {
	for _, b := range m {
		b.Broadcast(ev)
	}
}

type LogBroadcaster struct{}

func (LogBroadcaster) Broadcast(ev model.Event) {
	logger.Info("event",
		zap.String("type", ev.Type),
		zap.String("executionId", ev.ExecutionId),
		zap.String("stepId", ev.StepId),
		zap.Any("data", ev.Data))
}

type NoopBroadcaster struct{}

func (NoopBroadcaster) Broadcast(ev model.Event) {}
