package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"disklink/internal/pkg/config"
	"disklink/internal/pkg/logger"
	"disklink/internal/service"
)

// Scheduler 定时任务调度器
// 挂两个固定任务: 过期转存清理和凭证检查
type Scheduler struct {
	cron       *cron.Cron
	cfg        *config.Config
	cleanup    service.CleanupService
	credential service.CredentialService
	ctx        context.Context
	cancel     context.CancelFunc
}

// New 创建调度器
func New(cfg *config.Config, cleanup service.CleanupService, credential service.CredentialService) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(),
		cfg:        cfg,
		cleanup:    cleanup,
		credential: credential,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 注册任务并启动调度
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Cleanup.Cron, func() {
		if _, err := s.cleanup.CleanExpiredTransfers(s.ctx); err != nil {
			logger.Error("定时清理失败", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("注册清理任务失败: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.Cleanup.CredentialCron, func() {
		s.credential.ValidateAll(s.ctx)
	}); err != nil {
		return fmt.Errorf("注册凭证检查任务失败: %w", err)
	}

	s.cron.Start()
	logger.Info("定时任务已启动",
		zap.String("cleanup_cron", s.cfg.Cleanup.Cron),
		zap.String("credential_cron", s.cfg.Cleanup.CredentialCron))

	return nil
}

// Stop 停止调度,等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("定时任务已停止")
}
