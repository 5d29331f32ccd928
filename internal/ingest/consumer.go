// Package ingest drains gateway commands from the Redis command list and
// feeds them to the engine inbox in arrival order.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"github.com/Hritul2/exchange-app/internal/engine"
	"github.com/Hritul2/exchange-app/internal/schema"
	"github.com/Hritul2/exchange-app/pkg/conn"
)

const popTimeout = time.Second

// Consumer pulls command envelopes off one Redis list.
type Consumer struct {
	client *conn.Client
	queue  string
	eng    *engine.Engine
}

func NewConsumer(client *conn.Client, queue string, eng *engine.Engine) *Consumer {
	return &Consumer{client: client, queue: queue, eng: eng}
}

// Run blocks on the command list until the context is done. Envelopes that
// fail to decode are dropped with an error log; there is no correlation id
// to reply to in that case.
func (c *Consumer) Run(ctx context.Context) {
	logs.Infof("command consumer started on list %q", c.queue)
	for {
		select {
		case <-ctx.Done():
			logs.Info("command consumer stopped")
			return
		case <-sys.Shutdown():
			logs.Info("command consumer stopped on shutdown signal")
			return
		default:
		}

		res, err := c.client.Redis().BRPop(ctx, popTimeout, c.queue).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			logs.Errorf("pop command list: %v", err)
			continue
		}
		if len(res) != 2 {
			continue
		}

		var env schema.CommandEnvelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			logs.Errorf("drop malformed command envelope: %v", err)
			continue
		}
		c.eng.Submit(engine.Command{ClientID: env.ClientID, Message: env.Message})
	}
}
