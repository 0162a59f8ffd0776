package deal

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/media"
	"storefront/internal/model"
	"storefront/internal/queue"
)

// Repository 活动持久化。未找到时返回 ErrNotFound，其余失败包装 ErrPersistence。
type Repository interface {
	Create(ctx context.Context, d *model.Deal) error
	Get(ctx context.Context, id string) (*model.Deal, error)
	// List 按 createdAt 倒序返回全部活动。
	List(ctx context.Context) ([]model.Deal, error)
	ListByStatus(ctx context.Context, status model.DealStatus) ([]model.Deal, error)
	Save(ctx context.Context, d *model.Deal) error
	UpdateStatus(ctx context.Context, id string, status model.DealStatus) (*model.Deal, error)
	Delete(ctx context.Context, id string) error
}

// EventPublisher 生命周期事件出口，失败不影响主流程。
type EventPublisher interface {
	Publish(ctx context.Context, msg queue.DealMessage) error
}

// Options 业务开关。
type Options struct {
	// MaxCreateImages 创建时接收的图片槽位数（image1..imageN）。
	MaxCreateImages int
	// CascadeDelete 删除活动时是否同时删除远端图片。
	CascadeDelete bool
}

// Service 活动生命周期操作。每个方法对应一次请求/响应。
type Service struct {
	repo   Repository
	recon  *Reconciler
	events EventPublisher
	log    *zap.Logger
	opts   Options
	now    func() time.Time
}

// NewService events 可为 nil。
func NewService(repo Repository, recon *Reconciler, events EventPublisher, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, recon: recon, events: events, log: log, opts: opts, now: time.Now}
}

// Create 构建记录、上传图片、落库。status 恒为 draft。
func (s *Service) Create(ctx context.Context, in Input) (*model.Deal, error) {
	d, err := BuildNew(in, s.now())
	if err != nil {
		return nil, err
	}

	urls, err := s.recon.UploadAll(ctx, OrderedImages(in.Images, s.opts.MaxCreateImages))
	if err != nil {
		return nil, err
	}
	d.Images = append(d.Images, urls...)

	if err := s.repo.Create(ctx, d); err != nil {
		// 已上传的图片不回滚
		return nil, err
	}
	s.publish(ctx, model.DealCreated, d)
	return d, nil
}

func (s *Service) List(ctx context.Context) ([]model.Deal, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*model.Deal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("dealId", "is required")
	}
	return s.repo.Get(ctx, id)
}

// ListActive 前台可见的活动：已发布且处于有效期内。
func (s *Service) ListActive(ctx context.Context) ([]model.Deal, error) {
	deals, err := s.repo.ListByStatus(ctx, model.DealPublished)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]model.Deal, 0, len(deals))
	for i := range deals {
		if deals[i].ActiveAt(now) {
			out = append(out, deals[i])
		}
	}
	return out, nil
}

// Update 校验 → 读取 → 覆盖字段 → 图集对账 → 写回。并发更新同一活动时后写者覆盖。
func (s *Service) Update(ctx context.Context, in Input) (*model.Deal, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, invalid("id", "is required")
	}
	// 先校验再读库：非法请求一律 400，不论活动是否存在
	u, err := PrepareUpdate(in)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(existing)

	plan, err := s.recon.Reconcile(ctx, existing.Images, in.RemovedImages, OrderedImages(in.Images, 0))
	if err != nil {
		return nil, err
	}
	existing.Images = plan.Images

	if err := s.repo.Save(ctx, existing); err != nil {
		return nil, err
	}
	s.publish(ctx, model.DealUpdated, existing)
	return existing, nil
}

// UpdateStatus 只改 status，值必须是四种之一。
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*model.Deal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("id", "is required")
	}
	if strings.TrimSpace(status) == "" {
		return nil, invalid("status", "is required")
	}
	st, err := parseStatus(status)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.UpdateStatus(ctx, id, st)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, model.DealStatusChanged, d)
	return d, nil
}

// Delete 删除记录。CascadeDelete 打开时再尽力删除远端图片。
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalid("id", "is required")
	}

	var images []string
	if s.opts.CascadeDelete {
		d, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		images = d.Images
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if len(images) > 0 {
		ids := make([]string, 0, len(images))
		for _, u := range images {
			if pid, ok := media.PublicID(u); ok {
				ids = append(ids, pid)
			}
		}
		s.recon.DestroyAll(ctx, ids)
	}
	s.publish(ctx, model.DealDeleted, &model.Deal{ID: id})
	return nil
}

func (s *Service) publish(ctx context.Context, action model.DealAction, d *model.Deal) {
	if s.events == nil {
		return
	}
	msg := queue.NewDealMessage(action, d, s.now())
	if err := s.events.Publish(ctx, msg); err != nil {
		s.log.Warn("publish deal event",
			zap.String("deal_id", d.ID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}
