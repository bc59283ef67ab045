package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"disklink/internal/api"
	"disklink/internal/model"
	"disklink/internal/netdisk/manager"
	"disklink/internal/pkg/config"
	"disklink/internal/pkg/database"
	"disklink/internal/pkg/jwt"
	"disklink/internal/pkg/logger"
	"disklink/internal/pkg/ratelimit"
	"disklink/internal/pkg/redis"
	"disklink/internal/repository"
	"disklink/internal/scheduler"
	"disklink/internal/service"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.FilePath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("DiskLink 启动中...")

	// 初始化数据库
	if err := database.InitMySQL(&cfg.Database); err != nil {
		logger.Fatal("初始化MySQL失败", zap.Error(err))
	}
	defer database.Close()
	if err := database.AutoMigrate(); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}
	logger.Info("MySQL连接成功")

	// 初始化Redis(可选)
	var cacheRepo repository.CacheRepository
	if err := redis.InitRedis(&cfg.Redis); err != nil {
		logger.Warn("Redis连接失败,缓存功能将不可用", zap.Error(err))
		cacheRepo = repository.NewNoopCacheRepository()
	} else {
		defer redis.Close()
		logger.Info("Redis连接成功")
		cacheRepo = repository.NewCacheRepository()
	}

	// 仓储
	transferRepo := repository.NewTransferRepository()
	settingRepo := repository.NewSettingRepository()
	auditRepo := repository.NewAuditRepository()

	// 网盘限流规则
	limiter := ratelimit.NewLimiter(map[string]ratelimit.Rule{
		model.DiskTypeBaidu: {
			Requests: cfg.RateLimit.Baidu.Requests,
			Window:   time.Duration(cfg.RateLimit.Baidu.Window) * time.Second,
		},
		model.DiskTypeQuark: {
			Requests: cfg.RateLimit.Quark.Requests,
			Window:   time.Duration(cfg.RateLimit.Quark.Window) * time.Second,
		},
	})

	netdiskManager := manager.New(cfg, settingRepo)
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// 服务
	transferService := service.NewTransferService(cfg, transferRepo, settingRepo, auditRepo, cacheRepo, netdiskManager, limiter)
	cleanupService := service.NewCleanupService(cfg, transferRepo, auditRepo, cacheRepo, netdiskManager)
	credentialService := service.NewCredentialService(netdiskManager, auditRepo, service.NewLogNotifier())
	authService := service.NewAuthService(cfg, jwtService)

	// 启动转存工作协程
	workerCtx, workerCancel := context.WithCancel(context.Background())
	transferService.Start(workerCtx)

	// 定时任务
	sched := scheduler.New(cfg, cleanupService, credentialService)
	if err := sched.Start(); err != nil {
		logger.Fatal("启动定时任务失败", zap.Error(err))
	}

	// 路由和HTTP服务器
	router := api.SetupRouter(&api.RouterDeps{
		Cfg:               cfg,
		JWTService:        jwtService,
		TransferService:   transferService,
		AuthService:       authService,
		CleanupService:    cleanupService,
		CredentialService: credentialService,
		AuditRepo:         auditRepo,
		SettingRepo:       settingRepo,
	})

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("服务器启动",
			zap.Int("port", cfg.Server.Port),
			zap.String("mode", cfg.Server.Mode),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	sched.Stop()
	// 先关闭队列让工作协程清空积压任务,再取消上下文
	// 顺序反了会导致排队中的记录永远停在pending状态
	transferService.Stop()
	workerCancel()

	logger.Info("服务器已关闭")
}
