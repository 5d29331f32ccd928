// Package publish delivers the engine's outbound traffic over Redis:
// replies published on the caller correlation channel, persistence events
// pushed onto the db-sync list, and depth/trade deltas published on the
// per-market channels.
package publish

import (
	"context"
	"encoding/json"

	"github.com/yanun0323/logs"

	"github.com/Hritul2/exchange-app/internal/bus"
	"github.com/Hritul2/exchange-app/internal/schema"
	"github.com/Hritul2/exchange-app/pkg/conn"
)

const defaultQueueSize = 8192

// Config names the Redis destinations.
type Config struct {
	DBQueue string
}

// RedisPublisher implements the engine's Publisher boundary. Enqueueing is
// non-blocking; a full queue drops the envelope with an error log, which
// keeps the matching loop immune to Redis latency.
type RedisPublisher struct {
	client *conn.Client
	cfg    Config
	queue  *bus.Queue
}

func NewRedisPublisher(client *conn.Client, cfg Config) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		cfg:    cfg,
		queue:  bus.NewQueue(defaultQueueSize),
	}
}

// SendToAPI publishes one reply on the correlation-id channel.
func (p *RedisPublisher) SendToAPI(clientID string, msg schema.MessageToAPI) {
	p.enqueue(bus.KindAPIReply, clientID, msg)
}

// PushDB pushes one persistence event onto the db-sync list.
func (p *RedisPublisher) PushDB(msg schema.DBMessage) {
	p.enqueue(bus.KindDBEvent, p.cfg.DBQueue, msg)
}

// PublishStream publishes one fan-out event on a per-market channel.
func (p *RedisPublisher) PublishStream(channel string, msg schema.StreamMessage) {
	p.enqueue(bus.KindStream, channel, msg)
}

func (p *RedisPublisher) enqueue(kind bus.Kind, target string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logs.Errorf("marshal outbound message for %s: %v", target, err)
		return
	}
	if err := p.queue.TryPublish(bus.Envelope{Kind: kind, Target: target, Payload: payload}); err != nil {
		logs.Errorf("drop outbound message for %s: %v", target, err)
	}
}

// Run drains the queue to Redis until the context is done. Delivery errors
// are logged and the envelope dropped; outbound publishing is best-effort.
func (p *RedisPublisher) Run(ctx context.Context) {
	logs.Info("redis publisher started")
	p.queue.Run(ctx, func(e bus.Envelope) {
		var err error
		switch e.Kind {
		case bus.KindDBEvent:
			err = p.client.Redis().LPush(ctx, e.Target, e.Payload).Err()
		default:
			err = p.client.Redis().Publish(ctx, e.Target, e.Payload).Err()
		}
		if err != nil && ctx.Err() == nil {
			logs.Errorf("publish to %s: %v", e.Target, err)
		}
	})
	logs.Info("redis publisher stopped")
}

// Close stops accepting new envelopes.
func (p *RedisPublisher) Close() {
	p.queue.Close()
}
