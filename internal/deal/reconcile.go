package deal

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/media"
)

// FailureRecorder 记录删除失败的远端资源，便于人工清理。
type FailureRecorder interface {
	RecordMediaFailure(ctx context.Context, publicID string, cause error) error
}

type nopRecorder struct{}

func (nopRecorder) RecordMediaFailure(context.Context, string, error) error { return nil }

// Reconciler 计算更新后的图集，并对被移除的远端资源做尽力删除。
type Reconciler struct {
	store       media.Store
	recorder    FailureRecorder
	log         *zap.Logger
	concurrency int
}

// NewReconciler recorder 可为 nil；concurrency<=0 表示不限并发。
func NewReconciler(store media.Store, recorder FailureRecorder, log *zap.Logger, concurrency int) *Reconciler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: store, recorder: recorder, log: log, concurrency: concurrency}
}

// Plan 一次对账的结果。
type Plan struct {
	Images  []string // 最终图集
	Removed []string // 实际发起删除的 public id
}

// Reconcile 从 current 中剔除 removed（按 public id 比较），上传 uploads 并按上传顺序追加。
// 上传失败返回 ErrRemoteService，此时不会发起任何删除；删除失败只记录不返回。
func (r *Reconciler) Reconcile(ctx context.Context, current, removed []string, uploads []media.File) (Plan, error) {
	removedIDs := make(map[string]struct{}, len(removed))
	ordered := make([]string, 0, len(removed))
	for _, u := range removed {
		id, ok := media.PublicID(u)
		if !ok {
			r.log.Debug("skip unresolvable removed image", zap.String("url", u))
			continue
		}
		if _, dup := removedIDs[id]; dup {
			continue
		}
		removedIDs[id] = struct{}{}
		ordered = append(ordered, id)
	}

	kept := make([]string, 0, len(current)+len(uploads))
	for _, u := range current {
		if id, ok := media.PublicID(u); ok {
			if _, gone := removedIDs[id]; gone {
				continue
			}
		}
		kept = append(kept, u)
	}

	added, err := r.UploadAll(ctx, uploads)
	if err != nil {
		return Plan{}, err
	}

	r.DestroyAll(ctx, ordered)

	return Plan{Images: append(kept, added...), Removed: ordered}, nil
}

// UploadAll 并发上传，返回的 URL 与 files 顺序一致。任一失败即整体失败。
func (r *Reconciler) UploadAll(ctx context.Context, files []media.File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			url, err := r.store.Upload(gctx, f)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrRemoteService, f.Field, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// DestroyAll 并发删除远端资源，每个删除相互独立，失败只记日志并写入失败记录。
func (r *Reconciler) DestroyAll(ctx context.Context, publicIDs []string) {
	if len(publicIDs) == 0 {
		return
	}
	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, id := range publicIDs {
		id := id
		g.Go(func() error {
			if err := r.store.Destroy(ctx, id); err != nil {
				r.log.Warn("destroy remote image failed", zap.String("public_id", id), zap.Error(err))
				if recErr := r.recorder.RecordMediaFailure(ctx, id, err); recErr != nil {
					r.log.Error("record media failure", zap.String("public_id", id), zap.Error(recErr))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}
