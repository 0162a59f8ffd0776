package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DealStatus 活动状态。状态之间可任意切换，没有状态机约束。
type DealStatus string

const (
	DealDraft     DealStatus = "draft"
	DealPublished DealStatus = "published"
	DealArchived  DealStatus = "archived"
	DealScheduled DealStatus = "scheduled"
)

// Valid 判断是否为四种合法状态之一。
func (s DealStatus) Valid() bool {
	switch s {
	case DealDraft, DealPublished, DealArchived, DealScheduled:
		return true
	}
	return false
}

// DiscountType 折扣方式：百分比或固定金额。
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// DefaultDealType 未指定 type 时的活动类别。
const DefaultDealType = "flash_sale"

// DealProduct 活动内的商品快照，顺序即展示顺序。
type DealProduct struct {
	ProductID string          `json:"product"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Deal 促销活动：商品组合 + 折扣 + 图集 + 生命周期状态。
type Deal struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name          string                         `gorm:"size:255;not null" json:"name"`
	Description   string                         `gorm:"type:text" json:"description"`
	DiscountType  DiscountType                   `gorm:"size:16;not null;default:percentage" json:"discountType"`
	DiscountValue decimal.Decimal                `gorm:"type:decimal(12,2);not null" json:"discountValue"`
	Products      datatypes.JSONSlice[DealProduct] `json:"products"`
	// Images 只追加；仅显式 removedImages 会收缩列表。
	Images     datatypes.JSONSlice[string] `json:"images"`
	Total      decimal.Decimal             `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	FinalPrice decimal.Decimal             `gorm:"type:decimal(12,2);not null;default:0" json:"finalPrice"`
	StartDate  time.Time                   `gorm:"not null" json:"startDate"`
	EndDate    *time.Time                  `json:"endDate"` // nil 表示长期有效
	Type       string                      `gorm:"size:64;not null" json:"type"`
	Status     DealStatus                  `gorm:"size:16;not null;default:draft;index" json:"status"`
}

func (Deal) TableName() string { return "deals" }

// ActiveAt 活动是否在 t 时刻对前台可见。
func (d *Deal) ActiveAt(t time.Time) bool {
	if d.Status != DealPublished {
		return false
	}
	if t.Before(d.StartDate) {
		return false
	}
	return d.EndDate == nil || !t.After(*d.EndDate)
}
