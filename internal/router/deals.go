package router

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront/internal/deal"
	"storefront/internal/media"
	"storefront/internal/model"
)

// scalarFields 请求中的标量字段名。
var scalarFields = []string{
	"id", "name", "description", "discountType", "discountValue",
	"total", "finalPrice", "startDate", "endDate", "type", "status",
}

// rawRequest 边界层统一后的请求：JSON 与表单都先转成这个形状。
type rawRequest struct {
	scalars       map[string]string
	products      string
	removedImages []string
	files         []media.File
}

// readRequest 按 Content-Type 读取 JSON 或 multipart/urlencoded 表单。
func readRequest(c *gin.Context) (rawRequest, error) {
	req := rawRequest{scalars: make(map[string]string, len(scalarFields))}

	if c.ContentType() == gin.MIMEJSON {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return req, &deal.ValidationError{Field: "body", Message: "unreadable"}
		}
		if !gjson.ValidBytes(body) {
			return req, &deal.ValidationError{Field: "body", Message: "malformed JSON"}
		}
		doc := gjson.ParseBytes(body)
		for _, k := range scalarFields {
			if v := doc.Get(k); v.Exists() && v.Type != gjson.Null {
				req.scalars[k] = v.String()
			}
		}
		// 数组原样保留 JSON 文本，字符串则取其内容（可能本身就是 JSON 文本）
		if v := doc.Get("products"); v.Exists() && v.Type != gjson.Null {
			req.products = jsonOrString(v)
		}
		if v := doc.Get("removedImages"); v.Exists() && v.Type != gjson.Null {
			req.removedImages = []string{jsonOrString(v)}
		}
		return req, nil
	}

	for _, k := range scalarFields {
		req.scalars[k] = c.PostForm(k)
	}
	req.products = c.PostForm("products")
	req.removedImages = append(c.PostFormArray("removedImages"), c.PostFormArray("removedImages[]")...)

	if strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return req, &deal.ValidationError{Field: "body", Message: "malformed multipart form"}
		}
		for field, headers := range form.File {
			for _, fh := range headers {
				fh := fh
				// 浏览器对未选择文件的 input 也会提交空 part
				if fh.Size == 0 {
					continue
				}
				req.files = append(req.files, media.File{
					Field:    field,
					Filename: fh.Filename,
					Open: func() (io.ReadCloser, error) {
						return fh.Open()
					},
				})
			}
		}
	}
	return req, nil
}

func jsonOrString(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	return v.Raw
}

// bindDealInput 把原始请求归一化为 deal.Input。
// products 解析失败直接 400；removedImages 解析失败按空集合处理，只记日志。
func bindDealInput(c *gin.Context, log *zap.Logger) (deal.Input, error) {
	raw, err := readRequest(c)
	if err != nil {
		return deal.Input{}, err
	}

	products, err := deal.ParseProducts(raw.products)
	if err != nil {
		return deal.Input{}, err
	}
	removed, err := deal.ParseRemovedImages(raw.removedImages)
	if err != nil {
		log.Warn("ignore malformed removedImages", zap.String("deal_id", raw.scalars["id"]), zap.Error(err))
		removed = nil
	}

	s := raw.scalars
	return deal.Input{
		ID:            s["id"],
		Name:          s["name"],
		Description:   s["description"],
		DiscountType:  s["discountType"],
		DiscountValue: s["discountValue"],
		Total:         s["total"],
		FinalPrice:    s["finalPrice"],
		StartDate:     s["startDate"],
		EndDate:       s["endDate"],
		Type:          s["type"],
		Status:        s["status"],
		Products:      products,
		RemovedImages: removed,
		Images:        raw.files,
	}, nil
}

// createDeal 新建活动：字段归一化 + 上传图片 + 落库，status 固定 draft。
func createDeal(svc *deal.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := bindDealInput(c, log)
		if err != nil {
			fail(c, log, err)
			return
		}
		d, err := svc.Create(c.Request.Context(), in)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "活动创建成功", "deal": d})
	}
}

// updateDeal 整体覆盖字段并对账图集。
func updateDeal(svc *deal.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := bindDealInput(c, log)
		if err != nil {
			fail(c, log, err)
			return
		}
		d, err := svc.Update(c.Request.Context(), in)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "活动更新成功", "deal": d})
	}
}

// updateDealStatus 只修改状态。
func updateDealStatus(svc *deal.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := readRequest(c)
		if err != nil {
			fail(c, log, err)
			return
		}
		d, err := svc.UpdateStatus(c.Request.Context(), raw.scalars["id"], raw.scalars["status"])
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "活动状态已更新", "deal": d})
	}
}

// removeDeal 删除活动记录；是否级联删除远端图片由配置决定。
func removeDeal(svc *deal.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := readRequest(c)
		if err != nil {
			fail(c, log, err)
			return
		}
		if err := svc.Delete(c.Request.Context(), raw.scalars["id"]); err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "活动已删除"})
	}
}

// listDeals 全部活动，按创建时间倒序。
func listDeals(svc *deal.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		deals, err := svc.List(c.Request.Context())
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "deals": deals, "count": len(deals)})
	}
}

func getDeal(svc *deal.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), c.Param("dealId"))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "deal": d})
	}
}

// listActiveDeals 前台可见活动。
func listActiveDeals(svc *deal.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		deals, err := svc.ListActive(c.Request.Context())
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "deals": deals, "count": len(deals)})
	}
}

// listDealEvents 活动审计记录，按发生时间正序。
func listDealEvents(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var events []model.DealEvent
		err := db.WithContext(c.Request.Context()).
			Where("deal_id = ?", c.Param("dealId")).
			Order("occurred_at ASC").
			Find(&events).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "events": events, "count": len(events)})
	}
}
