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

	"inboxpilot/backend/internal/config"
	"inboxpilot/backend/internal/health"
	"inboxpilot/backend/internal/logger"
	"inboxpilot/backend/internal/mailstore"
	"inboxpilot/backend/internal/monitoring"
	"inboxpilot/backend/internal/nlu"
	"inboxpilot/backend/internal/queue"
	"inboxpilot/backend/internal/service"
	"inboxpilot/backend/internal/storage"
	"inboxpilot/backend/internal/storage/hybrid"
	"inboxpilot/backend/internal/storage/memory"
	"inboxpilot/backend/internal/storage/postgres"
	"inboxpilot/backend/internal/storage/redis"
	httptransport "inboxpilot/backend/internal/transport/http"
	"inboxpilot/backend/internal/triage"
)

// main 启动紧急度评估与批量操作助手的 HTTP 服务。
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
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting inboxpilot server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, redisClient, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer store.Close()

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, redisClient, log)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 后台评估队列
	pool := queue.NewWorkerPool(cfg.Triage.Workers, cfg.Triage.QueueSize, log)
	pool.Start(ctx)

	// 上游邮件服务商客户端（未配置凭证时本地镜像独立运行）
	var mail mailstore.Client = mailstore.Noop{}
	if cfg.MailStore.CredentialsFile != "" {
		gmailClient, err := mailstore.NewGmailClient(ctx, &cfg.MailStore)
		if err != nil {
			log.Warn("mail provider unavailable, running on local mirror only", zap.Error(err))
		} else {
			mail = gmailClient
			log.Info("mail provider connected")
		}
	}

	// 自然语言解析客户端（未配置时只用内置规则解析）
	var completer nlu.Completer
	if cfg.NLU.Endpoint != "" {
		completer = nlu.NewClient(&cfg.NLU)
		log.Info("nlu endpoint configured",
			zap.String("endpoint", cfg.NLU.Endpoint),
			zap.String("model", cfg.NLU.Model),
		)
	}

	// 初始化服务层
	scorer := triage.NewScorer(cfg.Triage.Threshold, cfg.Triage.DeadlineWindow)
	urgencyService := service.NewUrgencyService(store, scorer, pool, metrics, log)
	criteriaService := service.NewCriteriaService(completer, metrics, log)
	resolverService := service.NewResolverService(store, cfg.Assistant.SafetyLimit, log)
	executorService := service.NewExecutorService(store, mail, cfg.MailStore.Timeout, metrics, log)
	actionService := service.NewActionService(store, criteriaService, resolverService, executorService,
		cfg.Assistant.PendingTTL, metrics, log)
	assistantService := service.NewAssistantService(actionService, store, log)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:           cfg,
		Store:            store,
		UrgencyService:   urgencyService,
		ActionService:    actionService,
		AssistantService: assistantService,
		Metrics:          metrics,
		HealthChecker:    healthChecker,
		Logger:           log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期提案 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		log.Info("starting expired action sweep task", zap.Duration("interval", 1*time.Minute))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("expired action sweep stopped")
				return nil
			case <-ticker.C:
				count, err := actionService.SweepExpired()
				if err != nil {
					log.Error("failed to sweep expired actions", zap.Error(err))
				} else if count > 0 {
					log.Info("expired actions swept", zap.Int("count", count))
				}
			}
		}
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

		// 等待已入队的评估任务收尾
		pool.Stop()

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择存储实现。
//
// database.type 为空时使用内存存储；配置数据库后，redis.enabled
// 再决定是否把待确认操作迁到 Redis（键过期实现硬 TTL）。
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, *redis.Client, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil, nil
	}

	var db storage.Store
	var err error
	switch cfg.Database.Type {
	case "postgres":
		db, err = postgres.NewStore(cfg.Database.DSN)
	case "mysql":
		db, err = postgres.NewMySQLStore(cfg.Database.DSN)
	default:
		return nil, nil, fmt.Errorf("unsupported database type %q", cfg.Database.Type)
	}
	if err != nil {
		return nil, nil, err
	}
	log.Info("using database storage", zap.String("type", cfg.Database.Type))

	if !cfg.Redis.Enabled {
		return db, nil, nil
	}

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("pending actions stored in redis", zap.String("address", cfg.Redis.Address))

	return hybrid.NewStore(db, redisClient), redisClient, nil
}
