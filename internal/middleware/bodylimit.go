package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// 请求体大小限制常量
const (
	// DefaultBodyLimit 默认请求体限制 1MB
	DefaultBodyLimit = 1 << 20
	// SmallBodyLimit 小请求体限制 64KB,用于登录等轻量接口
	SmallBodyLimit = 64 << 10
	// LargeBodyLimit 大请求体限制 10MB,用于邮件提交接口
	LargeBodyLimit = 10 << 20
)

// BodySizeLimit 请求体大小限制中间件
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// DynamicBodySizeLimit 按路由前缀动态设置请求体限制
func DynamicBodySizeLimit(limits map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		maxBytes := int64(DefaultBodyLimit)

		for prefix, limit := range limits {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				maxBytes = limit
				break
			}
		}

		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
