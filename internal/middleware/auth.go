package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminTokenHeader 后台接口的令牌头。
const AdminTokenHeader = "X-Admin-Token"

// AdminToken 简单的管理员令牌校验（demo 级别保护）。
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "admin token 无效",
			})
			return
		}
		c.Next()
	}
}
