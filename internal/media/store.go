package media

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// File 一张待上传的图片。Open 每次调用返回新的 reader。
type File struct {
	Field    string // 表单字段名，如 image1
	Filename string
	Open     func() (io.ReadCloser, error)
}

// Store 远端媒体存储。
type Store interface {
	// Upload 上传文件并返回可公开访问的 URL。
	Upload(ctx context.Context, f File) (string, error)
	// Destroy 按 public id 删除远端资源。
	Destroy(ctx context.Context, publicID string) error
}

// RateLimited 为 Store 的每次远端调用加上令牌桶限速。
type RateLimited struct {
	next    Store
	limiter *rate.Limiter
}

// NewRateLimited perSecond<=0 时不限速，直接返回 next。
func NewRateLimited(next Store, perSecond float64, burst int) Store {
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (s *RateLimited) Upload(ctx context.Context, f File) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return s.next.Upload(ctx, f)
}

func (s *RateLimited) Destroy(ctx context.Context, publicID string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.next.Destroy(ctx, publicID)
}
