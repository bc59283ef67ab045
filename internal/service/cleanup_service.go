package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"disklink/internal/model"
	"disklink/internal/netdisk"
	"disklink/internal/pkg/config"
	"disklink/internal/pkg/logger"
	"disklink/internal/repository"
)

// CleanupService 清理服务接口
type CleanupService interface {
	// CleanExpiredTransfers 扫描有效期已过的转存记录,撤销分享并标记过期
	CleanExpiredTransfers(ctx context.Context) (*model.CleanupSummary, error)
	// CleanOldLogs 删除超过保留期的操作日志
	CleanOldLogs(ctx context.Context) (int64, error)
}

type cleanupService struct {
	cfg     *config.Config
	repo    repository.TransferRepository
	audit   repository.AuditRepository
	cache   repository.CacheRepository
	manager netdisk.Manager
}

// NewCleanupService 创建清理服务
func NewCleanupService(
	cfg *config.Config,
	repo repository.TransferRepository,
	audit repository.AuditRepository,
	cache repository.CacheRepository,
	manager netdisk.Manager,
) CleanupService {
	return &cleanupService{
		cfg:     cfg,
		repo:    repo,
		audit:   audit,
		cache:   cache,
		manager: manager,
	}
}

// CleanExpiredTransfers 扫描有效期已过的转存记录
// 撤销分享失败只记日志,记录仍然标记为过期,避免反复重试同一条
func (s *cleanupService) CleanExpiredTransfers(ctx context.Context) (*model.CleanupSummary, error) {
	logger.Info("🧹 开始清理过期转存")

	now := time.Now()
	records, err := s.repo.FindExpiredCompleted(ctx, now, s.cfg.Cleanup.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("查询过期记录失败: %w", err)
	}

	summary := &model.CleanupSummary{Total: len(records)}

	for i := range records {
		record := &records[i]

		if err := s.revokeShare(ctx, record); err != nil {
			summary.RevokeFailed++
			s.writeLog(model.ActionCleanupError, record,
				fmt.Sprintf("撤销分享失败: %v", err))
		}

		// 撤销成功与否都标记过期
		if err := s.repo.MarkExpired(ctx, record.ID); err != nil {
			logger.Error("标记过期失败", zap.Uint64("id", record.ID), zap.Error(err))
			continue
		}
		_ = s.cache.DeleteTransfer(ctx, record.PostID, record.LinkIndex)

		summary.Cleaned++
		s.writeLog(model.ActionCleanupSuccess, record, "分享已过期并清理")
	}

	logsDeleted, err := s.CleanOldLogs(ctx)
	if err != nil {
		logger.Warn("清理历史日志失败", zap.Error(err))
	}
	summary.LogsDeleted = logsDeleted

	s.writeLog(model.ActionCleanupSummary, nil,
		fmt.Sprintf("扫描%d条, 清理%d条, 撤销失败%d条, 删除日志%d条",
			summary.Total, summary.Cleaned, summary.RevokeFailed, summary.LogsDeleted))

	logger.Info("✅ 清理过期转存完成",
		zap.Int("total", summary.Total),
		zap.Int("cleaned", summary.Cleaned),
		zap.Int("revoke_failed", summary.RevokeFailed),
		zap.Int64("logs_deleted", summary.LogsDeleted),
	)

	return summary, nil
}

// CleanOldLogs 删除超过保留期的操作日志
func (s *cleanupService) CleanOldLogs(ctx context.Context) (int64, error) {
	days := s.cfg.Cleanup.LogRetentionDays
	if days <= 0 {
		days = 30
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	return s.audit.DeleteBefore(ctx, cutoff)
}

// revokeShare 撤销记录对应的网盘分享
func (s *cleanupService) revokeShare(ctx context.Context, record *model.TransferRecord) error {
	if record.TransferredURL == "" {
		return nil
	}

	provider, err := s.manager.GetProvider(record.DiskType)
	if err != nil {
		return err
	}
	if !provider.IsConfigured() {
		return fmt.Errorf("%s网盘未配置凭证", record.DiskType)
	}

	return provider.DeleteShare(ctx, record.TransferredURL)
}

// writeLog 写入清理日志,record可为nil
func (s *cleanupService) writeLog(action string, record *model.TransferRecord, message string) {
	log := &model.AuditLog{
		Action:  action,
		Message: message,
	}
	if record != nil {
		log.PostID = &record.PostID
		log.Details = record.TransferredURL
	}
	if err := s.audit.Create(context.Background(), log); err != nil {
		logger.Warn("写入清理日志失败", zap.Error(err))
	}
}
