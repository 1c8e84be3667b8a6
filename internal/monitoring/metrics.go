package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 邮件指标
	MessagesFetched  *prometheus.CounterVec
	MessagesIngested *prometheus.CounterVec

	// 流水线指标
	RunsTotal           *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	ClassificationsTotal *prometheus.CounterVec

	// 生成服务指标
	LLMRequestsTotal *prometheus.CounterVec
	LLMRequestDuration prometheus.Histogram

	// 社交发布指标
	PostsTotal        *prometheus.CounterVec
	ScheduledResolved *prometheus.CounterVec
	RepliesGenerated  *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 系统指标
	SystemUptime        prometheus.Gauge
	DatabaseConnections prometheus.Gauge
	QueueDepth          prometheus.Gauge
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agenticflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agenticflow_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agenticflow_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		MessagesFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_messages_fetched_total",
				Help: "Total number of messages fetched, by source",
			},
			[]string{"source"},
		),

		MessagesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_messages_ingested_total",
				Help: "Total number of messages stored for processing, by source",
			},
			[]string{"source"},
		),

		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_pipeline_runs_total",
				Help: "Total number of pipeline runs, by final status",
			},
			[]string{"status"},
		),

		RunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agenticflow_pipeline_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),

		ClassificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_classifications_total",
				Help: "Total number of classifications, by priority",
			},
			[]string{"priority"},
		),

		LLMRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_llm_requests_total",
				Help: "Total number of generation requests, by outcome",
			},
			[]string{"outcome"},
		),

		LLMRequestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agenticflow_llm_request_duration_seconds",
				Help:    "Generation request duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),

		PostsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_posts_total",
				Help: "Total number of publish attempts, by platform and status",
			},
			[]string{"platform", "status"},
		),

		ScheduledResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_scheduled_posts_resolved_total",
				Help: "Total number of scheduled posts resolved by the sweep, by status",
			},
			[]string{"status"},
		),

		RepliesGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_replies_generated_total",
				Help: "Total number of reply drafts generated, by outcome",
			},
			[]string{"outcome"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenticflow_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agenticflow_panics_total",
				Help: "Total number of panics",
			},
		),

		SystemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agenticflow_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		DatabaseConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agenticflow_database_connections",
				Help: "Number of database connections",
			},
		),

		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agenticflow_pipeline_queue_depth",
				Help: "Number of messages waiting in the pipeline queue",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordMessageFetched 记录邮件拉取
func (m *Metrics) RecordMessageFetched(source string) {
	m.MessagesFetched.WithLabelValues(source).Inc()
}

// RecordMessageIngested 记录邮件入库
func (m *Metrics) RecordMessageIngested(source string) {
	m.MessagesIngested.WithLabelValues(source).Inc()
}

// RecordRun 记录一次流水线运行
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// RecordClassification 记录一次分类
func (m *Metrics) RecordClassification(priority string) {
	m.ClassificationsTotal.WithLabelValues(priority).Inc()
}

// RecordLLMRequest 记录一次生成请求
func (m *Metrics) RecordLLMRequest(outcome string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(outcome).Inc()
	m.LLMRequestDuration.Observe(duration.Seconds())
}

// RecordPost 记录一次发布尝试
func (m *Metrics) RecordPost(platform, status string) {
	m.PostsTotal.WithLabelValues(platform, status).Inc()
}

// RecordScheduledResolved 记录清扫解析的预定发布
func (m *Metrics) RecordScheduledResolved(status string) {
	m.ScheduledResolved.WithLabelValues(status).Inc()
}

// RecordReplyGenerated 记录一次回复生成
func (m *Metrics) RecordReplyGenerated(outcome string) {
	m.RepliesGenerated.WithLabelValues(outcome).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// UpdateDatabaseConnections 更新数据库连接数
func (m *Metrics) UpdateDatabaseConnections(count int) {
	m.DatabaseConnections.Set(float64(count))
}

// UpdateQueueDepth 更新流水线队列深度
func (m *Metrics) UpdateQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
