package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"disklink/internal/model"
	"disklink/internal/pkg/config"
	"disklink/internal/pkg/jwt"
	"disklink/internal/pkg/logger"
)

var ErrInvalidCredentials = errors.New("用户名或密码错误")

// AuthService 认证服务接口
// 管理员账号配置在config.yaml里,密码存bcrypt哈希
type AuthService interface {
	Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error)
}

type authService struct {
	cfg        *config.Config
	jwtService *jwt.JWTService
}

// NewAuthService 创建认证服务
func NewAuthService(cfg *config.Config, jwtService *jwt.JWTService) AuthService {
	return &authService{
		cfg:        cfg,
		jwtService: jwtService,
	}
}

// Login 管理员登录
func (s *authService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	if req.Username != s.cfg.Admin.Username {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.Admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(1, req.Username)
	if err != nil {
		logger.Error("生成token失败", zap.Error(err))
		return nil, err
	}

	return &model.LoginResponse{
		Token:    token,
		Username: req.Username,
	}, nil
}
