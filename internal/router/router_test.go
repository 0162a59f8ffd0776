package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/internal/config"
	"storefront/internal/deal"
	"storefront/internal/media"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/repository"
)

const (
	testToken = "test-admin-token"
	cdn       = "https://res.cloudinary.com/demo/image/upload/"
)

type stubMedia struct {
	mu        sync.Mutex
	n         int
	destroyed []string
	fail      bool
}

func (s *stubMedia) Upload(_ context.Context, f media.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", io.ErrUnexpectedEOF
	}
	s.n++
	return cdn + "v1/deals/" + f.Field + ".jpg", nil
}

func (s *stubMedia) Destroy(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, publicID)
	return nil
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	store  *stubMedia
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "router.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.Deal{}, &model.Product{}, &model.DealEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := &stubMedia{}
	log := zap.NewNop()
	recon := deal.NewReconciler(store, nil, log, 2)
	svc := deal.NewService(repository.NewDealRepo(db), recon, nil, log, deal.Options{MaxCreateImages: 4})

	r := gin.New()
	Setup(r, Deps{Deals: svc, DB: db, Log: log}, config.AppConfig{AdminToken: testToken})
	return &testServer{engine: r, db: db, store: store}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.AdminTokenHeader, testToken)
	return s.do(req)
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(middleware.AdminTokenHeader, testToken)
	return s.do(req)
}

// postMultipart fields 为普通字段，files 为 字段名 -> 文件名。
func (s *testServer) postMultipart(t *testing.T, path string, fields map[string][]string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
	}
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		_, _ = fw.Write([]byte("fake image bytes"))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.AdminTokenHeader, testToken)
	return s.do(req)
}

type dealBody struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Deal    model.Deal `json:"deal"`
}

func decodeDeal(t *testing.T, w *httptest.ResponseRecorder) dealBody {
	t.Helper()
	var out dealBody
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/deals/list", nil)
	if w := s.do(req); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/deals/list", nil)
	req.Header.Set(middleware.AdminTokenHeader, "wrong")
	if w := s.do(req); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: got %d", w.Code)
	}

	// 前台接口不需要令牌
	if w := s.do(httptest.NewRequest(http.MethodGet, "/api/store/deals", nil)); w.Code != http.StatusOK {
		t.Errorf("storefront: got %d", w.Code)
	}
}

func TestCreateDealMultipart(t *testing.T) {
	s := newTestServer(t)

	w := s.postMultipart(t, "/api/deals/add", map[string][]string{
		"name":          {"Flash Friday"},
		"discountValue": {"30"},
		"status":        {"published"},
		"products":      {`[{"product":"p1","quantity":2,"price":"19.90"}]`},
	}, map[string]string{
		"image2": "b.jpg",
		"image1": "a.jpg",
		"avatar": "ignored.jpg",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d body=%s", w.Code, w.Body.String())
	}

	body := decodeDeal(t, w)
	d := body.Deal
	if d.Status != model.DealDraft {
		t.Errorf("status: got %q, want draft", d.Status)
	}
	want := []string{cdn + "v1/deals/image1.jpg", cdn + "v1/deals/image2.jpg"}
	if len(d.Images) != 2 || d.Images[0] != want[0] || d.Images[1] != want[1] {
		t.Errorf("images: got %v, want %v", d.Images, want)
	}
	if len(d.Products) != 1 || d.Products[0].Quantity != 2 {
		t.Errorf("products: got %+v", d.Products)
	}

	// 落库后可读到
	if w := s.get("/api/deals/single/" + d.ID); w.Code != http.StatusOK {
		t.Errorf("get: got %d", w.Code)
	}
}

func TestCreateDealValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed products", `{"name":"x","discountValue":1,"products":"[{\"product\":"}`},
		{"products not array", `{"name":"x","discountValue":1,"products":{"product":"p1"}}`},
		{"missing name", `{"discountValue":1}`},
		{"missing discount", `{"name":"x"}`},
		{"malformed body", `{"name":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.postJSON("/api/deals/add", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d body=%s", w.Code, w.Body.String())
			}
		})
	}

	var count int64
	s.db.Model(&model.Deal{}).Count(&count)
	if count != 0 {
		t.Errorf("nothing should be persisted, got %d rows", count)
	}
	if s.store.n != 0 {
		t.Errorf("nothing should be uploaded, got %d", s.store.n)
	}
}

func TestCreateDealUploadFailure(t *testing.T) {
	s := newTestServer(t)
	s.store.fail = true

	w := s.postMultipart(t, "/api/deals/add", map[string][]string{
		"name":          {"x"},
		"discountValue": {"1"},
	}, map[string]string{"image1": "a.jpg"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateDealReconcilesImages(t *testing.T) {
	s := newTestServer(t)
	a, b := cdn+"v1/deals/a.jpg", cdn+"v1/deals/b.jpg"
	seed := &model.Deal{ID: "d1", Name: "seed", Status: model.DealPublished, Images: []string{a, b}, Type: model.DefaultDealType}
	if err := s.db.Create(seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := s.postMultipart(t, "/api/deals/update", map[string][]string{
		"id":            {"d1"},
		"name":          {"renamed"},
		"discountValue": {"12"},
		"status":        {"scheduled"},
		"removedImages": {`["` + a + `"]`},
	}, map[string]string{"image1": "new.jpg"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", w.Code, w.Body.String())
	}

	d := decodeDeal(t, w).Deal
	want := []string{b, cdn + "v1/deals/image1.jpg"}
	if len(d.Images) != 2 || d.Images[0] != want[0] || d.Images[1] != want[1] {
		t.Errorf("images: got %v, want %v", d.Images, want)
	}
	if d.Name != "renamed" || d.Status != model.DealScheduled {
		t.Errorf("got name=%q status=%q", d.Name, d.Status)
	}
	if len(s.store.destroyed) != 1 || s.store.destroyed[0] != "deals/a" {
		t.Errorf("destroyed: got %v", s.store.destroyed)
	}
}

func TestUpdateDealJSONRemovedImages(t *testing.T) {
	s := newTestServer(t)
	a := cdn + "v1/deals/a.jpg"
	if err := s.db.Create(&model.Deal{ID: "d1", Name: "seed", Images: []string{a}, Type: model.DefaultDealType, Status: model.DealDraft}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := s.postJSON("/api/deals/update", `{"id":"d1","name":"n","discountValue":"5","removedImages":["`+a+`"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", w.Code, w.Body.String())
	}
	if d := decodeDeal(t, w).Deal; len(d.Images) != 0 {
		t.Errorf("images: got %v", d.Images)
	}
}

func TestUpdateDealMalformedRemovedImagesIgnored(t *testing.T) {
	s := newTestServer(t)
	a := cdn + "v1/deals/a.jpg"
	if err := s.db.Create(&model.Deal{ID: "d1", Name: "seed", Images: []string{a}, Type: model.DefaultDealType, Status: model.DealDraft}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := s.postMultipart(t, "/api/deals/update", map[string][]string{
		"id":            {"d1"},
		"name":          {"n"},
		"discountValue": {"5"},
		"removedImages": {`["` + a},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", w.Code, w.Body.String())
	}
	if d := decodeDeal(t, w).Deal; len(d.Images) != 1 {
		t.Errorf("images: got %v", d.Images)
	}
	if len(s.store.destroyed) != 0 {
		t.Errorf("destroyed: %v", s.store.destroyed)
	}
}

func TestUpdateDealMalformedProductsRejected(t *testing.T) {
	s := newTestServer(t)
	a := cdn + "v1/deals/a.jpg"
	seed := &model.Deal{
		ID:       "d1",
		Name:     "seed",
		Images:   []string{a},
		Products: []model.DealProduct{{ProductID: "p1", Quantity: 1}},
		Type:     model.DefaultDealType,
		Status:   model.DealPublished,
	}
	if err := s.db.Create(seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name string
		send func() *httptest.ResponseRecorder
	}{
		{"multipart", func() *httptest.ResponseRecorder {
			return s.postMultipart(t, "/api/deals/update", map[string][]string{
				"id":            {"d1"},
				"name":          {"renamed"},
				"discountValue": {"5"},
				"products":      {`[{"product":"p2"`},
				"removedImages": {`["` + a + `"]`},
			}, map[string]string{"image1": "new.jpg"})
		}},
		{"json string", func() *httptest.ResponseRecorder {
			return s.postJSON("/api/deals/update", `{"id":"d1","name":"renamed","discountValue":5,"products":"[{\"product\":","removedImages":["`+a+`"]}`)
		}},
		{"json object", func() *httptest.ResponseRecorder {
			return s.postJSON("/api/deals/update", `{"id":"d1","name":"renamed","discountValue":5,"products":{"product":"p2"}}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.send()
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d body=%s", w.Code, w.Body.String())
			}

			var stored model.Deal
			if err := s.db.First(&stored, "id = ?", "d1").Error; err != nil {
				t.Fatalf("load: %v", err)
			}
			if stored.Name != "seed" || stored.Status != model.DealPublished {
				t.Errorf("record changed: name=%q status=%q", stored.Name, stored.Status)
			}
			if len(stored.Images) != 1 || stored.Images[0] != a {
				t.Errorf("images changed: %v", stored.Images)
			}
			if len(stored.Products) != 1 || stored.Products[0].ProductID != "p1" {
				t.Errorf("products changed: %+v", stored.Products)
			}
		})
	}

	if s.store.n != 0 || len(s.store.destroyed) != 0 {
		t.Errorf("no remote calls expected: uploads=%d destroyed=%v", s.store.n, s.store.destroyed)
	}
}

func TestAmountOutOfRangeRejected(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON("/api/deals/add", `{"name":"x","discountValue":"1e50000000"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", w.Code)
	}
	if w.Body.Len() > 1024 {
		t.Errorf("response too large: %d bytes", w.Body.Len())
	}
}

func TestDealNotFound(t *testing.T) {
	s := newTestServer(t)

	if w := s.get("/api/deals/single/missing"); w.Code != http.StatusNotFound {
		t.Errorf("get: got %d", w.Code)
	}
	if w := s.postJSON("/api/deals/update", `{"id":"missing","name":"x","discountValue":1}`); w.Code != http.StatusNotFound {
		t.Errorf("update: got %d", w.Code)
	}
	if w := s.postJSON("/api/deals/status", `{"id":"missing","status":"draft"}`); w.Code != http.StatusNotFound {
		t.Errorf("status: got %d", w.Code)
	}
	if w := s.postJSON("/api/deals/remove", `{"id":"missing"}`); w.Code != http.StatusNotFound {
		t.Errorf("remove: got %d", w.Code)
	}
}

func TestStatusAndRemoveFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON("/api/deals/add", `{"name":"flow","discountValue":"10","discountType":"fixed"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d body=%s", w.Code, w.Body.String())
	}
	id := decodeDeal(t, w).Deal.ID

	if w := s.postJSON("/api/deals/status", `{"id":"`+id+`","status":"live"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status: got %d", w.Code)
	}
	w = s.postJSON("/api/deals/status", `{"id":"`+id+`","status":"published"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", w.Code, w.Body.String())
	}
	if d := decodeDeal(t, w).Deal; d.Status != model.DealPublished {
		t.Errorf("status: got %q", d.Status)
	}

	// 已发布且已开始，前台可见
	var store struct {
		Count int `json:"count"`
	}
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/store/deals", nil))
	_ = json.Unmarshal(w.Body.Bytes(), &store)
	if store.Count != 1 {
		t.Errorf("storefront count: got %d", store.Count)
	}

	if w := s.postJSON("/api/deals/remove", `{"id":"`+id+`"}`); w.Code != http.StatusOK {
		t.Fatalf("remove: got %d", w.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(s.get("/api/deals/list").Body.Bytes(), &list)
	if list.Count != 0 {
		t.Errorf("list after remove: got %d", list.Count)
	}
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)

	if w := s.postJSON("/api/products", `{"name":"Tea","price":"0"}`); w.Code != http.StatusBadRequest {
		t.Errorf("zero price: got %d", w.Code)
	}
	w := s.postJSON("/api/products", `{"name":"Tea","price":"12.50","stock":3}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		Product model.Product `json:"product"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if w := s.do(httptest.NewRequest(http.MethodGet, "/api/products/abc", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", w.Code)
	}
	if w := s.do(httptest.NewRequest(http.MethodGet, "/api/products/999", nil)); w.Code != http.StatusNotFound {
		t.Errorf("missing: got %d", w.Code)
	}
	path := "/api/products/" + jsonNumber(created.Product.ID)
	if w := s.do(httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusOK {
		t.Errorf("get: got %d", w.Code)
	}
}

func jsonNumber(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}
