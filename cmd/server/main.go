package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agenticflow/backend/internal/agent"
	jwtpkg "agenticflow/backend/internal/auth/jwt"
	localcache "agenticflow/backend/internal/cache"
	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/gmail"
	"agenticflow/backend/internal/health"
	"agenticflow/backend/internal/llm"
	"agenticflow/backend/internal/logger"
	"agenticflow/backend/internal/monitoring"
	"agenticflow/backend/internal/pipeline"
	"agenticflow/backend/internal/pool"
	"agenticflow/backend/internal/smtp"
	"agenticflow/backend/internal/social"
	"agenticflow/backend/internal/storage/memory"
	redisstore "agenticflow/backend/internal/storage/redis"
	sqlstore "agenticflow/backend/internal/storage/sql"
	httptransport "agenticflow/backend/internal/transport/http"
	"agenticflow/backend/internal/websocket"
)

// main 启动同时包含 HTTP API、SMTP 接收与流水线调度的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting agenticflow server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化存储层
	var store domain.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 初始化 Redis 缓存（去重标记与分类缓存）
	var cache *redisstore.Cache
	if cfg.Redis.Enabled {
		cache, err = redisstore.NewCache(ctx, cfg.Redis)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer cache.Close()
		log.Info("redis cache connected", zap.String("address", cfg.Redis.Address))
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, cache, log)

	// 初始化生成服务与各个代理
	var generator agent.Generator
	if cfg.LLM.APIKey != "" {
		generator = llm.NewClient(cfg.LLM, log)
		log.Info("llm client initialized", zap.String("model", cfg.LLM.Model))
	} else {
		log.Warn("llm api key not configured, analysis and generation will be degraded")
	}

	analyzer := agent.NewAnalyzer(generator, log)
	extractor := agent.NewExtractor(generator, log)
	formatter := agent.NewFormatter(log)
	replyGen := agent.NewReplyGenerator(generator, log)

	// 初始化社交发布
	poster := social.NewClient(cfg.Social.Endpoints, 0, log)
	publisher := social.NewPublisher(poster, cfg.Social.RateLimit, cfg.Social.RateBurst, log)

	// 初始化 Gmail 邮件源（可选）
	var fetcher *gmail.Fetcher
	if cfg.Gmail.Enabled {
		fetcher, err = gmail.NewFetcher(ctx, cfg.Gmail, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize gmail fetcher: %v", err))
		}
		log.Info("gmail fetcher initialized")
	}

	// 工作池与 WebSocket Hub
	workerPool := pool.NewWorkerPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, log)
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, cfg.JWT.Secret, log)

	// 流水线协调器
	deps := pipeline.Deps{
		Store:     store,
		Analyzer:  analyzer,
		Extractor: extractor,
		Formatter: formatter,
		ReplyGen:  replyGen,
		Publisher: publisher,
		Hub:       wsHub,
		Metrics:   metrics,
		Pool:      workerPool,
		Log:       log,
	}
	if fetcher != nil {
		deps.Fetcher = fetcher
	}
	if cache != nil {
		deps.Cache = cache
	} else {
		// Redis 未启用时退回进程内去重与分类缓存
		deps.Cache = localcache.NewLocal(cfg.Pipeline.DedupTTL)
	}
	coordinator := pipeline.NewCoordinator(deps, cfg.Pipeline)

	// 告警系统
	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0))
	alertManager.AddRule(monitoring.StoreHealthRule(store))
	alertManager.AddRule(monitoring.RunFailureRule(coordinator.FailureStreak, 5))

	// 周期任务调度器
	scheduler := pipeline.NewScheduler(store, publisher, coordinator, metrics, cfg.Pipeline, log)

	// JWT 管理器
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	// HTTP 服务器
	routerDeps := httptransport.RouterDependencies{
		Config:      cfg,
		Store:       store,
		Coordinator: coordinator,
		Analyzer:    analyzer,
		Extractor:   extractor,
		Formatter:   formatter,
		ReplyGen:    replyGen,
		Publisher:   publisher,
		JWTManager:  jwtManager,
		Hub:         wsHub,
		Health:      healthChecker,
		Metrics:     metrics,
		Logger:      log,
	}
	if fetcher != nil {
		routerDeps.ReplySender = fetcher
	}
	router := httptransport.NewRouter(routerDeps)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// SMTP 接收服务器（可选）
	smtpBackend := smtp.NewBackend(coordinator, log)
	smtpServer := smtp.NewServer(cfg.SMTP, smtpBackend)

	group, groupCtx := errgroup.WithContext(ctx)

	// 工作池
	workerPool.Start(groupCtx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	if cfg.SMTP.Enabled {
		group.Go(func() error {
			log.Info("starting SMTP server",
				zap.String("address", cfg.SMTP.BindAddr),
				zap.String("domain", cfg.SMTP.Domain),
			)
			if err := smtpServer.ListenAndServe(); err != nil {
				log.Error("SMTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 周期任务：预定发布清扫 + Gmail 轮询
	group.Go(func() error {
		if err := scheduler.Start(groupCtx); err != nil {
			return err
		}
		<-groupCtx.Done()
		scheduler.Stop()
		return nil
	})

	// 告警监控 goroutine
	group.Go(func() error {
		alertManager.StartMonitoring(groupCtx, 1*time.Minute)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if cfg.SMTP.Enabled {
			if err := smtpServer.Close(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		workerPool.Stop()

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
