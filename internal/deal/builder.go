package deal

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/model"
)

// fields 是 create / update 共用的字段归一化结果。
type fields struct {
	name          string
	description   string
	discountType  model.DiscountType
	discountValue decimal.Decimal
	total         decimal.Decimal
	finalPrice    decimal.Decimal
	startDate     *time.Time
	endDate       *time.Time
	typ           string
}

func normalize(in Input) (fields, error) {
	var f fields

	f.name = strings.TrimSpace(in.Name)
	if f.name == "" {
		return f, invalid("name", "is required")
	}
	f.description = in.Description

	f.discountType = model.DiscountPercentage
	if dt := strings.TrimSpace(in.DiscountType); dt != "" {
		f.discountType = model.DiscountType(dt)
		if !f.discountType.Valid() {
			return f, invalid("discountType", "must be percentage or fixed, got %q", dt)
		}
	}

	if strings.TrimSpace(in.DiscountValue) == "" {
		return f, invalid("discountValue", "is required")
	}
	var ok bool
	if f.discountValue, ok = leadingDecimal(in.DiscountValue); !ok {
		return f, invalid("discountValue", "not a valid amount: %q", in.DiscountValue)
	}

	var err error
	if f.total, err = parseAmount("total", in.Total); err != nil {
		return f, err
	}
	if f.finalPrice, err = parseAmount("finalPrice", in.FinalPrice); err != nil {
		return f, err
	}
	if f.startDate, err = parseDate("startDate", in.StartDate); err != nil {
		return f, err
	}
	if f.endDate, err = parseDate("endDate", in.EndDate); err != nil {
		return f, err
	}

	f.typ = strings.TrimSpace(in.Type)
	if f.typ == "" {
		f.typ = model.DefaultDealType
	}
	return f, nil
}

// apply 把归一化字段写到 d 上（整体覆盖，不含 images / status / startDate）。
func (f fields) apply(d *model.Deal, products []model.DealProduct) {
	d.Name = f.name
	d.Description = f.description
	d.DiscountType = f.discountType
	d.DiscountValue = f.discountValue
	d.Products = products
	if d.Products == nil {
		d.Products = []model.DealProduct{}
	}
	d.Total = f.total
	d.FinalPrice = f.finalPrice
	d.EndDate = f.endDate
	d.Type = f.typ
}

// BuildNew 由创建请求生成待落库记录。status 固定为 draft，images 为空，
// 上传结果由调用方追加。
func BuildNew(in Input, now time.Time) (*model.Deal, error) {
	f, err := normalize(in)
	if err != nil {
		return nil, err
	}
	d := &model.Deal{
		ID:     uuid.NewString(),
		Images: []string{},
		Status: model.DealDraft,
	}
	f.apply(d, in.Products)
	d.StartDate = now
	if f.startDate != nil {
		d.StartDate = *f.startDate
	}
	return d, nil
}

// Update 校验通过的更新请求，Apply 时不会再失败。
type Update struct {
	fields   fields
	status   model.DealStatus
	products []model.DealProduct
}

// PrepareUpdate 只做校验与解析，不需要读取现有记录。
// status 缺省为 draft。
func PrepareUpdate(in Input) (Update, error) {
	f, err := normalize(in)
	if err != nil {
		return Update{}, err
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return Update{}, err
	}
	return Update{fields: f, status: status, products: in.Products}, nil
}

// Apply 整体覆盖 existing 的字段（images 由 Reconciler 负责）；startDate 缺省时保留原值。
func (u Update) Apply(existing *model.Deal) {
	u.fields.apply(existing, u.products)
	if u.fields.startDate != nil {
		existing.StartDate = *u.fields.startDate
	}
	existing.Status = u.status
}

// ApplyUpdate = PrepareUpdate + Apply，校验失败时 existing 不变。
func ApplyUpdate(existing *model.Deal, in Input) error {
	u, err := PrepareUpdate(in)
	if err != nil {
		return err
	}
	u.Apply(existing)
	return nil
}

func parseStatus(raw string) (model.DealStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.DealDraft, nil
	}
	s := model.DealStatus(raw)
	if !s.Valid() {
		return "", invalid("status", "must be one of draft, published, archived, scheduled, got %q", raw)
	}
	return s, nil
}
