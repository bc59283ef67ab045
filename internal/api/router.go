package api

import (
	"github.com/gin-gonic/gin"

	"disklink/internal/middleware"
	"disklink/internal/pkg/config"
	"disklink/internal/pkg/jwt"
	"disklink/internal/repository"
	"disklink/internal/service"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Cfg               *config.Config
	JWTService        *jwt.JWTService
	TransferService   service.TransferService
	AuthService       service.AuthService
	CleanupService    service.CleanupService
	CredentialService service.CredentialService
	AuditRepo         repository.AuditRepository
	SettingRepo       repository.SettingRepository
}

// SetupRouter 设置路由
func SetupRouter(deps *RouterDeps) *gin.Engine {
	gin.SetMode(deps.Cfg.Server.Mode)

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	healthHandler := NewHealthHandler()
	transferHandler := NewTransferHandler(deps.TransferService)
	authHandler := NewAuthHandler(deps.AuthService)
	adminHandler := NewAdminHandler(deps.CleanupService, deps.CredentialService, deps.AuditRepo, deps.SettingRepo)

	// 健康检查
	r.GET("/health", healthHandler.Health)
	r.GET("/ping", healthHandler.Ping)
	r.GET("/ready", healthHandler.Ready)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/auth/login", authHandler.Login)

		// 转存接口,登录可选,user_id用作限流维度
		transfer := apiGroup.Group("/transfer")
		transfer.Use(middleware.OptionalAuthMiddleware(deps.JWTService))
		{
			transfer.POST("", transferHandler.Request)
			transfer.GET("/:id/status", transferHandler.Status)
		}

		// 管理接口需要登录
		admin := apiGroup.Group("/admin")
		admin.Use(middleware.AuthMiddleware(deps.JWTService))
		{
			admin.POST("/cleanup/run", adminHandler.RunCleanup)
			admin.POST("/credentials/validate", adminHandler.ValidateCredentials)
			admin.GET("/logs", adminHandler.ListLogs)
			admin.PUT("/settings", adminHandler.UpdateSetting)
		}
	}

	return r
}
