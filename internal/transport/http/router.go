package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agenticflow/backend/internal/agent"
	jwtpkg "agenticflow/backend/internal/auth/jwt"
	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/health"
	"agenticflow/backend/internal/middleware"
	"agenticflow/backend/internal/monitoring"
	"agenticflow/backend/internal/pipeline"
	"agenticflow/backend/internal/social"
	"agenticflow/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	Store       domain.Store
	Coordinator *pipeline.Coordinator
	Analyzer    *agent.Analyzer
	Extractor   *agent.Extractor
	Formatter   *agent.Formatter
	ReplyGen    *agent.ReplyGenerator
	Publisher   *social.Publisher
	ReplySender ReplySender // 可为 nil（Gmail 未启用）
	JWTManager  *jwtpkg.Manager
	Hub         *websocket.Hub
	Health      *health.HealthChecker
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)

	router.Use(monitor.PanicRecovery())
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.ErrorHandler(deps.Logger))

	// 按路由前缀差异化请求体限制:邮件投递接口放宽
	router.Use(middleware.DynamicBodySizeLimit(map[string]int64{
		"/v1/pipeline/messages": middleware.LargeBodyLimit,
		"/v1/auth":              middleware.SmallBodyLimit,
	}))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	authHandler := NewAuthHandler(deps.Config.Admin, deps.JWTManager, deps.Logger)
	messageHandler := NewMessageHandler(deps.Store, deps.Analyzer, deps.ReplyGen, deps.ReplySender, deps.Logger)
	newsletterHandler := NewNewsletterHandler(deps.Store, deps.Extractor, deps.Logger)
	socialHandler := NewSocialHandler(deps.Store, deps.Formatter, deps.Publisher, deps.Logger)
	pipelineHandler := NewPipelineHandler(deps.Store, deps.Coordinator, deps.Logger)

	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)

	// 运维端点
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	if deps.Health != nil {
		router.GET("/healthz", gin.WrapH(deps.Health.Handler()))
		router.GET("/readyz", gin.WrapH(deps.Health.Handler()))
	} else {
		router.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
		}

		// ========== Message Routes ==========
		messageRoutes := v1.Group("/messages")
		messageRoutes.Use(jwtAuth.RequireAuth())
		{
			messageRoutes.GET("", messageHandler.ListMessages)
			messageRoutes.GET("/:id", messageHandler.GetMessage)

			// 分析:重复调用追加新版本
			messageRoutes.POST("/:id/analyze", messageHandler.Analyze)
			messageRoutes.GET("/:id/classification", messageHandler.GetClassification)
			messageRoutes.GET("/:id/classifications", messageHandler.ListClassifications)

			// 新闻简报提取
			messageRoutes.POST("/:id/extract", newsletterHandler.Extract)
			messageRoutes.GET("/:id/extraction", newsletterHandler.GetExtraction)

			// 回复
			messageRoutes.POST("/:id/reply", messageHandler.DraftReply)
			messageRoutes.POST("/:id/reply/send", messageHandler.SendReply)
			messageRoutes.POST("/:id/suggestions", messageHandler.SuggestResponses)
			messageRoutes.GET("/:id/replies", messageHandler.ListReplies)

			// 同步执行流水线
			messageRoutes.POST("/:id/process", pipelineHandler.Process)
		}

		// ========== Pipeline Routes ==========
		pipelineRoutes := v1.Group("/pipeline")
		pipelineRoutes.Use(jwtAuth.RequireAuth())
		{
			pipelineRoutes.POST("/trigger", pipelineHandler.Trigger)
			pipelineRoutes.POST("/messages", pipelineHandler.Submit)
			pipelineRoutes.GET("/runs", pipelineHandler.ListRuns)
			pipelineRoutes.GET("/runs/:id", pipelineHandler.GetRun)
		}

		// ========== Social Routes ==========
		socialRoutes := v1.Group("/social")
		socialRoutes.Use(jwtAuth.RequireAuth())
		{
			socialRoutes.POST("/connect", socialHandler.Connect)
			socialRoutes.DELETE("/platforms/:platform", socialHandler.Disconnect)
			socialRoutes.GET("/platforms", socialHandler.Platforms)
			socialRoutes.POST("/format", socialHandler.Format)
			socialRoutes.POST("/publish", socialHandler.Publish)
			socialRoutes.POST("/publish/batch", socialHandler.BatchPublish)
			socialRoutes.GET("/posts/:id", socialHandler.GetPublishResult)
		}

		// ========== WebSocket Routes ==========
		if deps.Hub != nil {
			v1.GET("/ws", websocket.HandleWebSocket(deps.Hub))
		}
	}

	return router
}
