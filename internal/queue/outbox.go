package queue

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// Outbox 把事件写入 Redis Stream，由 Relay 异步转发到 Kafka。
// 请求路径只依赖 Redis，Kafka 抖动不会拖慢后台操作。
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

// Publish 追加一条事件到 stream。
func (o *Outbox) Publish(ctx context.Context, msg DealMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: streamValues(msg),
	}).Err()
}

func streamValues(msg DealMessage) map[string]interface{} {
	return map[string]interface{}{
		"event_id":    msg.EventID,
		"deal_id":     msg.DealID,
		"action":      string(msg.Action),
		"status":      string(msg.Status),
		"image_count": strconv.Itoa(msg.ImageCount),
		"occurred_at": msg.OccurredAt.Format(time.RFC3339Nano),
	}
}
