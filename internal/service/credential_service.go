package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"disklink/internal/model"
	"disklink/internal/netdisk"
	"disklink/internal/pkg/logger"
	"disklink/internal/repository"
)

// Notifier 凭证失效时的通知渠道
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// logNotifier 默认通知实现,只写日志
type logNotifier struct{}

// NewLogNotifier 创建日志通知器
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (n *logNotifier) Notify(ctx context.Context, subject, body string) error {
	logger.Warn("⚠️ 凭证告警", zap.String("subject", subject), zap.String("body", body))
	return nil
}

// CredentialService 凭证检查服务接口
type CredentialService interface {
	// ValidateAll 检查所有已配置网盘的凭证,失效时发告警
	ValidateAll(ctx context.Context) []model.CredentialStatus
}

type credentialService struct {
	manager  netdisk.Manager
	audit    repository.AuditRepository
	notifier Notifier
}

// NewCredentialService 创建凭证检查服务
func NewCredentialService(manager netdisk.Manager, audit repository.AuditRepository, notifier Notifier) CredentialService {
	return &credentialService{
		manager:  manager,
		audit:    audit,
		notifier: notifier,
	}
}

// ValidateAll 检查所有已配置网盘的凭证
func (s *credentialService) ValidateAll(ctx context.Context) []model.CredentialStatus {
	providers := s.manager.Providers()
	results := make([]model.CredentialStatus, 0, len(providers))

	for _, p := range providers {
		status := model.CredentialStatus{DiskType: p.Name(), Valid: true}

		if err := p.ValidateCredentials(ctx); err != nil {
			status.Valid = false
			status.Message = err.Error()

			logger.Warn("网盘凭证检查失败",
				zap.String("disk_type", p.Name()),
				zap.Error(err))

			if notifyErr := s.notifier.Notify(ctx,
				fmt.Sprintf("%s网盘凭证已失效", p.Name()),
				err.Error()); notifyErr != nil {
				logger.Warn("发送凭证告警失败", zap.Error(notifyErr))
			}
		}

		s.writeLog(&status)
		results = append(results, status)
	}

	return results
}

// writeLog 记录一次凭证检查结果
func (s *credentialService) writeLog(status *model.CredentialStatus) {
	message := fmt.Sprintf("%s凭证有效", status.DiskType)
	if !status.Valid {
		message = fmt.Sprintf("%s凭证失效: %s", status.DiskType, status.Message)
	}

	log := &model.AuditLog{
		Action:  model.ActionCookieCheck,
		Message: message,
	}
	if err := s.audit.Create(context.Background(), log); err != nil {
		logger.Warn("写入凭证检查日志失败", zap.Error(err))
	}
}
