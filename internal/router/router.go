package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/deal"
	"storefront/internal/middleware"
	rediskey "storefront/pkg/redis"
)

// Deps 路由依赖。Redis / Failures 为 nil 时关闭限流和失败记录查询。
type Deps struct {
	Deals    *deal.Service
	DB       *gorm.DB // 商品目录与审计表
	Redis    *rd.Client
	Failures *rediskey.MediaFailureLog
	Log      *zap.Logger
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps, cfg config.AppConfig) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// 前台
	r.GET("/api/store/deals", listActiveDeals(d.Deals, d.Log))
	r.GET("/api/products", listProducts(d.DB))
	r.GET("/api/products/:id", getProduct(d.DB))

	// 后台
	admin := r.Group("/api", middleware.AdminToken(cfg.AdminToken))
	write := []gin.HandlerFunc{}
	if d.Redis != nil {
		write = append(write, middleware.RedisRateLimit(d.Redis, cfg.WriteRateLimit, cfg.WriteRateWindow))
	}
	chain := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, write...), h)
	}

	admin.GET("/deals/list", listDeals(d.Deals, d.Log))
	admin.GET("/deals/single/:dealId", getDeal(d.Deals, d.Log))
	admin.GET("/deals/single/:dealId/events", listDealEvents(d.DB))
	admin.POST("/deals/add", chain(createDeal(d.Deals, d.Log))...)
	admin.POST("/deals/update", chain(updateDeal(d.Deals, d.Log))...)
	admin.POST("/deals/status", chain(updateDealStatus(d.Deals, d.Log))...)
	admin.POST("/deals/remove", chain(removeDeal(d.Deals, d.Log))...)
	admin.POST("/products", chain(createProduct(d.DB))...)
	if d.Failures != nil {
		admin.GET("/media/failures", listMediaFailures(d.Failures))
	}
}

// fail 把领域错误映射为 HTTP 状态码：400 校验，404 不存在，502 媒体服务，500 其他。
func fail(c *gin.Context, log *zap.Logger, err error) {
	var ve *deal.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": ve.Field + " " + ve.Message})
	case errors.Is(err, deal.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "活动不存在"})
	case errors.Is(err, deal.ErrRemoteService):
		log.Error("remote media", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "图片上传失败"})
	default:
		log.Error("internal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "服务器内部错误"})
	}
}

func listMediaFailures(failures *rediskey.MediaFailureLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "limit 无效"})
			return
		}
		msgs, err := failures.PendingMediaFailures(c.Request.Context(), n)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}
		items := make([]gin.H, 0, len(msgs))
		for _, m := range msgs {
			items = append(items, gin.H{"id": m.ID, "publicId": m.Values["public_id"], "reason": m.Values["reason"], "at": m.Values["at"]})
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "failures": items, "count": len(items)})
	}
}
