package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront/internal/model"
)

// DealMessage 是写入 Kafka 的活动生命周期事件。
type DealMessage struct {
	EventID    string           `json:"event_id"`
	DealID     string           `json:"deal_id"`
	Action     model.DealAction `json:"action"`
	Status     model.DealStatus `json:"status"`
	ImageCount int              `json:"image_count"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewDealMessage 生成事件，event_id 作为消费端幂等键。
func NewDealMessage(action model.DealAction, d *model.Deal, at time.Time) DealMessage {
	return DealMessage{
		EventID:    uuid.NewString(),
		DealID:     d.ID,
		Action:     action,
		Status:     d.Status,
		ImageCount: len(d.Images),
		OccurredAt: at.UTC(),
	}
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m DealMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.DealID == "" {
		return fmt.Errorf("deal_id is required")
	}
	switch m.Action {
	case model.DealCreated, model.DealUpdated, model.DealStatusChanged, model.DealDeleted:
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	if m.ImageCount < 0 {
		return fmt.Errorf("image_count must be >= 0")
	}
	if m.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}

// ToEvent 转成审计表记录。
func (m DealMessage) ToEvent() *model.DealEvent {
	return &model.DealEvent{
		EventID:    m.EventID,
		DealID:     m.DealID,
		Action:     m.Action,
		Status:     m.Status,
		ImageCount: m.ImageCount,
		OccurredAt: m.OccurredAt,
	}
}
