package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agenticflow/backend/internal/monitoring"
)

// MonitoringMiddleware 指标采集中间件
type MonitoringMiddleware struct {
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewMonitoringMiddleware 创建指标采集中间件
func NewMonitoringMiddleware(metrics *monitoring.Metrics, log *zap.Logger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		log:     log,
	}
}

// HTTPMetrics 采集 HTTP 请求指标
func (m *MonitoringMiddleware) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())

		m.metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration.Seconds())
		if c.Request.ContentLength > 0 {
			m.metrics.HTTPRequestSize.WithLabelValues(c.Request.Method, path).Observe(float64(c.Request.ContentLength))
		}
		m.metrics.HTTPResponseSize.WithLabelValues(c.Request.Method, path).Observe(float64(c.Writer.Size()))

		if c.Writer.Status() >= 500 {
			m.metrics.RecordError("http_5xx", "transport")
		}
	}
}

// PanicRecovery 记录 panic 指标并恢复
func (m *MonitoringMiddleware) PanicRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				m.metrics.RecordPanic()
				m.log.Error("handler panicked",
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", err),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}

// SystemMetrics 周期性上报系统指标
func (m *MonitoringMiddleware) SystemMetrics(startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.metrics.SystemUptime.Set(time.Since(startTime).Seconds())
		c.Next()
	}
}
