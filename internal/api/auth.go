package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"disklink/internal/model"
	"disklink/internal/service"
)

// AuthHandler 认证接口处理器
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler 创建认证接口处理器
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login 管理员登录
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.BadRequest("参数错误: "+err.Error()))
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, model.Unauthorized(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, model.ServerError("登录失败"))
		return
	}

	c.JSON(http.StatusOK, model.Success(resp))
}
