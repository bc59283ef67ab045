package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"disklink/internal/model"
	"disklink/internal/pkg/jwt"
	"disklink/internal/pkg/logger"
)

// AuthMiddleware JWT认证中间件
func AuthMiddleware(jwtService *jwt.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 获取Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, model.Unauthorized("未提供认证token"))
			c.Abort()
			return
		}

		// 验证格式: Bearer <token>
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, model.Unauthorized("token格式错误"))
			c.Abort()
			return
		}

		token := parts[1]

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			tokenPreview := token
			if len(token) > 20 {
				tokenPreview = token[:20] + "..."
			}
			logger.Warn("token验证失败",
				zap.Error(err),
				zap.String("token", tokenPreview),
			)
			c.JSON(http.StatusUnauthorized, model.Unauthorized("token无效或已过期"))
			c.Abort()
			return
		}

		// 将用户信息存入上下文
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)

		c.Next()
	}
}

// OptionalAuthMiddleware 可选认证中间件 (有token则验证,没有则匿名)
// 转存受理接口用它取user_id做限流维度
func OptionalAuthMiddleware(jwtService *jwt.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Next()
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err == nil {
			c.Set("user_id", claims.UserID)
			c.Set("username", claims.Username)
		}

		c.Next()
	}
}

// CurrentUserID 从上下文取当前用户ID,匿名返回0
func CurrentUserID(c *gin.Context) uint64 {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(int64); ok && id > 0 {
			return uint64(id)
		}
	}
	return 0
}
