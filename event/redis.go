package event

import (
	"context"
	"encoding/json"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// RedisBroadcaster publishes each event as JSON on a pub/sub channel.
type RedisBroadcaster struct {
	client  rd.UniversalClient
	channel string
}

func NewRedisBroadcaster(client rd.UniversalClient, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:  client,
		channel: channel,
	}
}

func (r *RedisBroadcaster) Broadcast(ev model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("error encoding event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		logger.Error("error publishing event", zap.String("type", ev.Type), zap.String("channel", r.channel), zap.Error(err))
	}
}

func (r *RedisBroadcaster) Close() error {
	return r.client.Close()
}
