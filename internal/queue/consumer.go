package queue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Consumer 消费活动事件并写入 deal_events 审计表。
type Consumer struct {
	r   *kafka.Reader
	db  *gorm.DB
	log *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB, log *zap.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db:  db,
		log: log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}
		if err := c.Handle(ctx, m.Value); err != nil {
			c.log.Warn("consumer handle", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// Handle 处理一条原始消息。重复的 event_id 视为成功。
func (c *Consumer) Handle(ctx context.Context, value []byte) error {
	var msg DealMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	err := c.db.WithContext(ctx).Create(msg.ToEvent()).Error
	if err != nil && errorsLikeUnique(err) {
		// 幂等：重复消息导致 UNIQUE 冲突，直接当作成功
		return nil
	}
	return err
}

func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
