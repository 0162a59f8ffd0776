package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/deal"
	"storefront/internal/model"
)

var _ deal.Repository = (*DealRepo)(nil)

// DealRepo 基于 gorm 的活动存储（默认 SQLite）。
type DealRepo struct {
	db *gorm.DB
}

func NewDealRepo(db *gorm.DB) *DealRepo {
	return &DealRepo{db: db}
}

func (r *DealRepo) Create(ctx context.Context, d *model.Deal) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("%w: create deal: %v", deal.ErrPersistence, err)
	}
	return nil
}

func (r *DealRepo) Get(ctx context.Context, id string) (*model.Deal, error) {
	var d model.Deal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, deal.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get deal: %v", deal.ErrPersistence, err)
	}
	return &d, nil
}

func (r *DealRepo) List(ctx context.Context) ([]model.Deal, error) {
	var list []model.Deal
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("%w: list deals: %v", deal.ErrPersistence, err)
	}
	return list, nil
}

func (r *DealRepo) ListByStatus(ctx context.Context, status model.DealStatus) ([]model.Deal, error) {
	var list []model.Deal
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list deals by status: %v", deal.ErrPersistence, err)
	}
	return list, nil
}

// Save 整行覆盖写。并发写同一活动时后写者生效。
func (r *DealRepo) Save(ctx context.Context, d *model.Deal) error {
	res := r.db.WithContext(ctx).Model(d).Select("*").Omit("id", "created_at").Updates(d)
	if res.Error != nil {
		return fmt.Errorf("%w: save deal: %v", deal.ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return deal.ErrNotFound
	}
	return nil
}

func (r *DealRepo) UpdateStatus(ctx context.Context, id string, status model.DealStatus) (*model.Deal, error) {
	res := r.db.WithContext(ctx).Model(&model.Deal{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, fmt.Errorf("%w: update deal status: %v", deal.ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, deal.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *DealRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Deal{})
	if res.Error != nil {
		return fmt.Errorf("%w: delete deal: %v", deal.ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return deal.ErrNotFound
	}
	return nil
}
