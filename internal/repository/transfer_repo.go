package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"disklink/internal/model"
	"disklink/internal/pkg/database"
)

// ErrTransferInProgress 同一链接已有转存在进行中
var ErrTransferInProgress = errors.New("该链接正在转存中")

// TransferRepository 转存记录仓储接口
type TransferRepository interface {
	// CheckAndCreate 受理去重
	// 已有未过期的completed记录时返回该记录(created=false);
	// 已有pending记录时返回ErrTransferInProgress;
	// 否则插入一条pending记录并返回(created=true)
	CheckAndCreate(ctx context.Context, req *model.TransferRequest, userID uint64, now time.Time) (*model.TransferRecord, bool, error)
	GetByID(ctx context.Context, id uint64) (*model.TransferRecord, error)
	MarkCompleted(ctx context.Context, id uint64, transferredURL string, expireTime *time.Time) error
	MarkFailed(ctx context.Context, id uint64, reason string) error
	// FindExpiredCompleted 查找分享有效期已过的completed记录
	FindExpiredCompleted(ctx context.Context, now time.Time, limit int) ([]model.TransferRecord, error)
	MarkExpired(ctx context.Context, id uint64) error
}

type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository 创建转存记录仓储
func NewTransferRepository() TransferRepository {
	return &transferRepository{
		db: database.GetDB(),
	}
}

// CheckAndCreate 受理去重,见接口说明
// 去重键是(post_id, link_index),换了原始链接也不会重复受理
// pending判重用INSERT ... WHERE NOT EXISTS一条语句完成,避免并发下重复受理
func (r *transferRepository) CheckAndCreate(ctx context.Context, req *model.TransferRequest, userID uint64, now time.Time) (*model.TransferRecord, bool, error) {
	// 命中未过期的成功记录直接复用
	var existing model.TransferRecord
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND link_index = ? AND status = ?",
			req.PostID, req.LinkIndex, model.StatusCompleted).
		Order("id DESC").
		First(&existing).Error
	if err == nil {
		if !existing.IsExpired(now) {
			return &existing, false, nil
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO disk_link_transfers (post_id, link_index, original_url, disk_type, status, user_id, created_time)
		 SELECT ?, ?, ?, ?, ?, ?, ?
		 FROM DUAL
		 WHERE NOT EXISTS (
		   SELECT 1 FROM disk_link_transfers
		   WHERE post_id = ? AND link_index = ? AND status = ?
		 )`,
		req.PostID, req.LinkIndex, req.OriginalURL, req.DiskType, model.StatusPending, userID, now,
		req.PostID, req.LinkIndex, model.StatusPending,
	)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, false, ErrTransferInProgress
	}

	var record model.TransferRecord
	err = r.db.WithContext(ctx).
		Where("post_id = ? AND link_index = ? AND status = ?",
			req.PostID, req.LinkIndex, model.StatusPending).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		return nil, false, err
	}

	return &record, true, nil
}

// GetByID 根据ID获取转存记录
func (r *transferRepository) GetByID(ctx context.Context, id uint64) (*model.TransferRecord, error) {
	var record model.TransferRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkCompleted 标记转存成功
func (r *transferRepository) MarkCompleted(ctx context.Context, id uint64, transferredURL string, expireTime *time.Time) error {
	return r.db.WithContext(ctx).Model(&model.TransferRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          model.StatusCompleted,
			"transferred_url": transferredURL,
			"expire_time":     expireTime,
			"message":         "",
		}).Error
}

// MarkFailed 标记转存失败
func (r *transferRepository) MarkFailed(ctx context.Context, id uint64, reason string) error {
	return r.db.WithContext(ctx).Model(&model.TransferRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  model.StatusFailed,
			"message": reason,
		}).Error
}

// FindExpiredCompleted 查找分享有效期已过的completed记录
func (r *transferRepository) FindExpiredCompleted(ctx context.Context, now time.Time, limit int) ([]model.TransferRecord, error) {
	var records []model.TransferRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND expire_time IS NOT NULL AND expire_time <= ?", model.StatusCompleted, now).
		Order("expire_time ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// MarkExpired 标记分享已过期
func (r *transferRepository) MarkExpired(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&model.TransferRecord{}).
		Where("id = ?", id).
		Update("status", model.StatusExpired).Error
}
