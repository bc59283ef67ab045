package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"disklink/internal/model"
	"disklink/internal/pkg/redis"
)

// CacheRepository 缓存仓储接口
// Redis未配置时用NewNoopCacheRepository,所有操作直接落空
type CacheRepository interface {
	GetTransfer(ctx context.Context, postID uint64, linkIndex int) (*model.TransferRecord, bool)
	SetTransfer(ctx context.Context, record *model.TransferRecord, ttl time.Duration) error
	DeleteTransfer(ctx context.Context, postID uint64, linkIndex int) error
}

type cacheRepository struct{}

// NewCacheRepository 创建缓存仓储
func NewCacheRepository() CacheRepository {
	return &cacheRepository{}
}

func transferKey(postID uint64, linkIndex int) string {
	return fmt.Sprintf("transfer:%d:%d", postID, linkIndex)
}

// GetTransfer 读取已转存记录缓存
func (r *cacheRepository) GetTransfer(ctx context.Context, postID uint64, linkIndex int) (*model.TransferRecord, bool) {
	data, err := redis.Get(ctx, transferKey(postID, linkIndex))
	if err != nil {
		return nil, false
	}

	var record model.TransferRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, false
	}
	return &record, true
}

// SetTransfer 缓存已转存记录
func (r *cacheRepository) SetTransfer(ctx context.Context, record *model.TransferRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化失败: %w", err)
	}
	return redis.Set(ctx, transferKey(record.PostID, record.LinkIndex), data, ttl)
}

// DeleteTransfer 删除转存记录缓存
func (r *cacheRepository) DeleteTransfer(ctx context.Context, postID uint64, linkIndex int) error {
	return redis.Del(ctx, transferKey(postID, linkIndex))
}

type noopCacheRepository struct{}

// NewNoopCacheRepository Redis未配置时的空实现
func NewNoopCacheRepository() CacheRepository {
	return &noopCacheRepository{}
}

func (r *noopCacheRepository) GetTransfer(ctx context.Context, postID uint64, linkIndex int) (*model.TransferRecord, bool) {
	return nil, false
}

func (r *noopCacheRepository) SetTransfer(ctx context.Context, record *model.TransferRecord, ttl time.Duration) error {
	return nil
}

func (r *noopCacheRepository) DeleteTransfer(ctx context.Context, postID uint64, linkIndex int) error {
	return nil
}
