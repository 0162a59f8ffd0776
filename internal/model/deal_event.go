package model

import "time"

// DealAction 生命周期事件类型。
type DealAction string

const (
	DealCreated       DealAction = "created"
	DealUpdated       DealAction = "updated"
	DealStatusChanged DealAction = "status_changed"
	DealDeleted       DealAction = "deleted"
)

// DealEvent 活动审计记录，由 Kafka 消费者异步落库。
// EventID 唯一，重复消息直接忽略。
type DealEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	EventID    string     `gorm:"size:64;uniqueIndex;not null" json:"eventId"`
	DealID     string     `gorm:"size:36;not null;index" json:"dealId"`
	Action     DealAction `gorm:"size:32;not null" json:"action"`
	Status     DealStatus `gorm:"size:16" json:"status"`
	ImageCount int        `gorm:"not null;default:0" json:"imageCount"`
	OccurredAt time.Time  `gorm:"not null" json:"occurredAt"`
}

func (DealEvent) TableName() string { return "deal_events" }
