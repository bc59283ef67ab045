package repository

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"disklink/internal/model"
	"disklink/internal/pkg/database"
)

// SettingRepository 运行时设置仓储接口
type SettingRepository interface {
	Get(ctx context.Context, name string) (string, error)
	GetInt(ctx context.Context, name string, defaultValue int) (int, error)
	Set(ctx context.Context, name, value string) error
}

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository 创建设置仓储
func NewSettingRepository() SettingRepository {
	return &settingRepository{
		db: database.GetDB(),
	}
}

// Get 读取设置值,不存在时返回空字符串
func (r *settingRepository) Get(ctx context.Context, name string) (string, error) {
	var setting model.Setting
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

// GetInt 读取整数设置,不存在或非法时返回默认值
func (r *settingRepository) GetInt(ctx context.Context, name string, defaultValue int) (int, error) {
	value, err := r.Get(ctx, name)
	if err != nil {
		return defaultValue, err
	}
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, nil
	}
	return n, nil
}

// Set 写入设置,存在则更新
func (r *settingRepository) Set(ctx context.Context, name, value string) error {
	var setting model.Setting
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(&model.Setting{Name: name, Value: value}).Error
		}
		return err
	}
	return r.db.WithContext(ctx).Model(&setting).Update("value", value).Error
}
