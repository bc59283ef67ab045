package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"disklink/internal/model"
	"disklink/internal/pkg/database"
)

// AuditRepository 操作日志仓储接口
type AuditRepository interface {
	Create(ctx context.Context, log *model.AuditLog) error
	List(ctx context.Context, filter *model.LogFilter, page, pageSize int) ([]model.AuditLog, int64, error)
	// DeleteBefore 删除指定时间之前的日志,返回删除条数
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建操作日志仓储
func NewAuditRepository() AuditRepository {
	return &auditRepository{
		db: database.GetDB(),
	}
}

// Create 写入一条日志
func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// List 按条件分页查询日志
func (r *auditRepository) List(ctx context.Context, filter *model.LogFilter, page, pageSize int) ([]model.AuditLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.AuditLog{})

	if filter != nil {
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if filter.PostID > 0 {
			query = query.Where("post_id = ?", filter.PostID)
		}
		if filter.UserID > 0 {
			query = query.Where("user_id = ?", filter.UserID)
		}
		if filter.DateFrom != nil {
			query = query.Where("created_time >= ?", filter.DateFrom)
		}
		if filter.DateTo != nil {
			query = query.Where("created_time < ?", filter.DateTo.AddDate(0, 0, 1))
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.AuditLog
	offset := (page - 1) * pageSize
	err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&logs).Error

	return logs, total, err
}

// DeleteBefore 删除指定时间之前的日志
func (r *auditRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_time < ?", t).
		Delete(&model.AuditLog{})
	return result.RowsAffected, result.Error
}
