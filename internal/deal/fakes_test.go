package deal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/media"
	"storefront/internal/model"
	"storefront/internal/queue"
)

const cdn = "https://res.cloudinary.com/demo/image/upload/"

// fakeMedia 记录上传/删除调用；failUpload / failDestroy 按字段名或 public id 注入失败。
type fakeMedia struct {
	mu          sync.Mutex
	uploaded    []string
	destroyed   []string
	failUpload  map[string]bool
	failDestroy map[string]bool
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{failUpload: map[string]bool{}, failDestroy: map[string]bool{}}
}

func (m *fakeMedia) Upload(_ context.Context, f media.File) (string, error) {
	if f.Open != nil {
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		_, _ = io.Copy(io.Discard, rc)
		rc.Close()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpload[f.Field] {
		return "", errors.New("upload refused")
	}
	m.uploaded = append(m.uploaded, f.Field)
	return cdn + "v1/deals/" + f.Field + "-" + f.Filename, nil
}

func (m *fakeMedia) Destroy(_ context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDestroy[publicID] {
		return errors.New("destroy refused")
	}
	m.destroyed = append(m.destroyed, publicID)
	return nil
}

func (m *fakeMedia) destroyedSorted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.destroyed...)
	sort.Strings(out)
	return out
}

func imageFile(field string) media.File {
	return media.File{
		Field:    field,
		Filename: field + ".jpg",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("jpeg bytes")), nil
		},
	}
}

type recordedFailure struct {
	publicID string
	cause    error
}

type fakeRecorder struct {
	mu       sync.Mutex
	failures []recordedFailure
}

func (r *fakeRecorder) RecordMediaFailure(_ context.Context, publicID string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, recordedFailure{publicID: publicID, cause: cause})
	return nil
}

// memRepo 内存实现，保存副本以模拟真实存储的值语义。
type memRepo struct {
	mu      sync.Mutex
	deals   map[string]model.Deal
	seq     int
	saveErr error
}

func newMemRepo() *memRepo {
	return &memRepo{deals: map[string]model.Deal{}}
}

func clone(d model.Deal) model.Deal {
	d.Images = append([]string{}, d.Images...)
	d.Products = append([]model.DealProduct{}, d.Products...)
	return d
}

func (r *memRepo) Create(_ context.Context, d *model.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, r.saveErr)
	}
	r.seq++
	d.CreatedAt = time.Unix(int64(r.seq), 0)
	d.UpdatedAt = d.CreatedAt
	r.deals[d.ID] = clone(*d)
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (*model.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := clone(d)
	return &c, nil
}

func (r *memRepo) sorted(keep func(model.Deal) bool) []model.Deal {
	out := []model.Deal{}
	for _, d := range r.deals {
		if keep(d) {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memRepo) List(_ context.Context) ([]model.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(model.Deal) bool { return true }), nil
}

func (r *memRepo) ListByStatus(_ context.Context, status model.DealStatus) ([]model.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(d model.Deal) bool { return d.Status == status }), nil
}

func (r *memRepo) Save(_ context.Context, d *model.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, r.saveErr)
	}
	if _, ok := r.deals[d.ID]; !ok {
		return ErrNotFound
	}
	r.deals[d.ID] = clone(*d)
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, status model.DealStatus) (*model.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Status = status
	r.deals[id] = d
	c := clone(d)
	return &c, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deals[id]; !ok {
		return ErrNotFound
	}
	delete(r.deals, id)
	return nil
}

type fakeEvents struct {
	mu   sync.Mutex
	msgs []queue.DealMessage
	err  error
}

func (e *fakeEvents) Publish(_ context.Context, msg queue.DealMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.msgs = append(e.msgs, msg)
	return nil
}
