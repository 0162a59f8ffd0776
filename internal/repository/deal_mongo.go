package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storefront/internal/deal"
	"storefront/internal/model"
)

const colDeals = "deals"

var _ deal.Repository = (*MongoDealRepo)(nil)

// MongoDealRepo 基于 MongoDB 的活动存储。
type MongoDealRepo struct {
	col *mongo.Collection
}

func NewMongoDealRepo(db *mongo.Database) *MongoDealRepo {
	return &MongoDealRepo{col: db.Collection(colDeals)}
}

// Migrate 建索引：列表按 created_at 倒序，前台按 status 过滤。
func (r *MongoDealRepo) Migrate(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: migrate deals indexes: %w", err)
	}
	return nil
}

type dealProductDoc struct {
	ProductID string          `bson:"product"`
	Name      string          `bson:"name,omitempty"`
	Quantity  int             `bson:"quantity"`
	Price     bson.Decimal128 `bson:"price"`
}

type dealDoc struct {
	ID            string           `bson:"_id"`
	CreatedAt     time.Time        `bson:"created_at"`
	UpdatedAt     time.Time        `bson:"updated_at"`
	Name          string           `bson:"name"`
	Description   string           `bson:"description"`
	DiscountType  string           `bson:"discount_type"`
	DiscountValue bson.Decimal128  `bson:"discount_value"`
	Products      []dealProductDoc `bson:"products"`
	Images        []string         `bson:"images"`
	Total         bson.Decimal128  `bson:"total"`
	FinalPrice    bson.Decimal128  `bson:"final_price"`
	StartDate     time.Time        `bson:"start_date"`
	EndDate       *time.Time       `bson:"end_date,omitempty"`
	Type          string           `bson:"type"`
	Status        string           `bson:"status"`
}

func toDecimal128(d decimal.Decimal) bson.Decimal128 {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		// decimal.String() 总是合法的十进制文本
		return bson.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(v bson.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(v.String())
}

func toDealDoc(d *model.Deal) *dealDoc {
	products := make([]dealProductDoc, len(d.Products))
	for i, p := range d.Products {
		products[i] = dealProductDoc{
			ProductID: p.ProductID,
			Name:      p.Name,
			Quantity:  p.Quantity,
			Price:     toDecimal128(p.Price),
		}
	}
	images := make([]string, len(d.Images))
	copy(images, d.Images)
	return &dealDoc{
		ID:            d.ID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		Name:          d.Name,
		Description:   d.Description,
		DiscountType:  string(d.DiscountType),
		DiscountValue: toDecimal128(d.DiscountValue),
		Products:      products,
		Images:        images,
		Total:         toDecimal128(d.Total),
		FinalPrice:    toDecimal128(d.FinalPrice),
		StartDate:     d.StartDate,
		EndDate:       d.EndDate,
		Type:          d.Type,
		Status:        string(d.Status),
	}
}

func fromDealDoc(m *dealDoc) (*model.Deal, error) {
	d := &model.Deal{
		ID:           m.ID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		Name:         m.Name,
		Description:  m.Description,
		DiscountType: model.DiscountType(m.DiscountType),
		Products:     make([]model.DealProduct, len(m.Products)),
		Images:       append([]string{}, m.Images...),
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		Type:         m.Type,
		Status:       model.DealStatus(m.Status),
	}
	var err error
	if d.DiscountValue, err = fromDecimal128(m.DiscountValue); err != nil {
		return nil, fmt.Errorf("decode discount_value: %w", err)
	}
	if d.Total, err = fromDecimal128(m.Total); err != nil {
		return nil, fmt.Errorf("decode total: %w", err)
	}
	if d.FinalPrice, err = fromDecimal128(m.FinalPrice); err != nil {
		return nil, fmt.Errorf("decode final_price: %w", err)
	}
	for i, p := range m.Products {
		price, err := fromDecimal128(p.Price)
		if err != nil {
			return nil, fmt.Errorf("decode product price: %w", err)
		}
		d.Products[i] = model.DealProduct{ProductID: p.ProductID, Name: p.Name, Quantity: p.Quantity, Price: price}
	}
	return d, nil
}

func (r *MongoDealRepo) Create(ctx context.Context, d *model.Deal) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, toDealDoc(d)); err != nil {
		return fmt.Errorf("%w: create deal: %v", deal.ErrPersistence, err)
	}
	return nil
}

func (r *MongoDealRepo) Get(ctx context.Context, id string) (*model.Deal, error) {
	var m dealDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, deal.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get deal: %v", deal.ErrPersistence, err)
	}
	d, err := fromDealDoc(&m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deal.ErrPersistence, err)
	}
	return d, nil
}

func (r *MongoDealRepo) find(ctx context.Context, filter bson.M) ([]model.Deal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list deals: %v", deal.ErrPersistence, err)
	}
	var docs []dealDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: list deals: %v", deal.ErrPersistence, err)
	}
	out := make([]model.Deal, 0, len(docs))
	for i := range docs {
		d, err := fromDealDoc(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", deal.ErrPersistence, err)
		}
		out = append(out, *d)
	}
	return out, nil
}

func (r *MongoDealRepo) List(ctx context.Context) ([]model.Deal, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoDealRepo) ListByStatus(ctx context.Context, status model.DealStatus) ([]model.Deal, error) {
	return r.find(ctx, bson.M{"status": string(status)})
}

func (r *MongoDealRepo) Save(ctx context.Context, d *model.Deal) error {
	d.UpdatedAt = time.Now().UTC()
	doc := toDealDoc(d)
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": d.ID}, doc)
	if err != nil {
		return fmt.Errorf("%w: save deal: %v", deal.ErrPersistence, err)
	}
	if res.MatchedCount == 0 {
		return deal.ErrNotFound
	}
	return nil
}

func (r *MongoDealRepo) UpdateStatus(ctx context.Context, id string, status model.DealStatus) (*model.Deal, error) {
	var m dealDoc
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, deal.ErrNotFound
		}
		return nil, fmt.Errorf("%w: update deal status: %v", deal.ErrPersistence, err)
	}
	d, err := fromDealDoc(&m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deal.ErrPersistence, err)
	}
	return d, nil
}

func (r *MongoDealRepo) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("%w: delete deal: %v", deal.ErrPersistence, err)
	}
	if res.DeletedCount == 0 {
		return deal.ErrNotFound
	}
	return nil
}
