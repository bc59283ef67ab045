package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"disklink/internal/model"
	"disklink/internal/netdisk"
	"disklink/internal/pkg/config"
	"disklink/internal/pkg/logger"
	"disklink/internal/pkg/ratelimit"
	"disklink/internal/pkg/retry"
	"disklink/internal/repository"
)

// ErrQueueFull 转存队列已满
var ErrQueueFull = errors.New("转存队列已满,请稍后重试")

// TransferService 转存服务接口
type TransferService interface {
	// Start 启动后台工作协程
	Start(ctx context.Context)
	// Stop 停止接收新任务并等待进行中的任务结束
	Stop()
	// RequestTransfer 受理转存请求
	// 命中缓存时同步返回已转存的链接,否则落pending记录后异步执行
	RequestTransfer(ctx context.Context, req *model.TransferRequest, userID uint64) (*model.TransferIntakeResponse, error)
	// GetStatus 查询转存记录状态
	GetStatus(ctx context.Context, id uint64) (*model.TransferStatusResponse, error)
}

type transferJob struct {
	recordID uint64
	req      model.TransferRequest
	userID   uint64
}

type transferService struct {
	cfg      *config.Config
	repo     repository.TransferRepository
	settings repository.SettingRepository
	audit    repository.AuditRepository
	cache    repository.CacheRepository
	manager  netdisk.Manager
	limiter  *ratelimit.Limiter

	jobs chan transferJob
	wg   sync.WaitGroup
	once sync.Once
}

// NewTransferService 创建转存服务
func NewTransferService(
	cfg *config.Config,
	repo repository.TransferRepository,
	settings repository.SettingRepository,
	audit repository.AuditRepository,
	cache repository.CacheRepository,
	manager netdisk.Manager,
	limiter *ratelimit.Limiter,
) TransferService {
	return &transferService{
		cfg:      cfg,
		repo:     repo,
		settings: settings,
		audit:    audit,
		cache:    cache,
		manager:  manager,
		limiter:  limiter,
		jobs:     make(chan transferJob, cfg.Transfer.QueueSize),
	}
}

// Start 启动后台工作协程
func (s *transferService) Start(ctx context.Context) {
	workers := s.cfg.Transfer.Workers
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case job, ok := <-s.jobs:
					if !ok {
						return
					}
					s.runPipeline(job)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	logger.Info("转存工作协程已启动", zap.Int("workers", workers))
}

// Stop 停止接收新任务并等待进行中的任务结束
func (s *transferService) Stop() {
	s.once.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

// RequestTransfer 受理转存请求
func (s *transferService) RequestTransfer(ctx context.Context, req *model.TransferRequest, userID uint64) (*model.TransferIntakeResponse, error) {
	provider, err := s.manager.GetProvider(req.DiskType)
	if err != nil {
		return nil, err
	}
	if !provider.IsConfigured() {
		return nil, fmt.Errorf("%s网盘未配置凭证", req.DiskType)
	}

	now := time.Now()

	// 先查缓存,命中直接返回
	if cached, ok := s.cache.GetTransfer(ctx, req.PostID, req.LinkIndex); ok {
		if cached.Status == model.StatusCompleted && !cached.IsExpired(now) {
			return &model.TransferIntakeResponse{
				TransferID: cached.ID,
				URL:        cached.TransferredURL,
				ExpireTime: cached.ExpireTime,
				FromCache:  true,
			}, nil
		}
	}

	record, created, err := s.repo.CheckAndCreate(ctx, req, userID, now)
	if err != nil {
		return nil, err
	}

	// 数据库里已有未过期的成功记录
	if !created {
		if record.ExpireTime != nil {
			_ = s.cache.SetTransfer(ctx, record, time.Until(*record.ExpireTime))
		}
		return &model.TransferIntakeResponse{
			TransferID: record.ID,
			URL:        record.TransferredURL,
			ExpireTime: record.ExpireTime,
			FromCache:  true,
		}, nil
	}

	s.writeLog(model.ActionTransferStart, &req.PostID, &userID,
		fmt.Sprintf("受理转存: %s", req.OriginalURL), "")

	select {
	case s.jobs <- transferJob{recordID: record.ID, req: *req, userID: userID}:
	default:
		_ = s.repo.MarkFailed(ctx, record.ID, ErrQueueFull.Error())
		return nil, ErrQueueFull
	}

	return &model.TransferIntakeResponse{
		TransferID: record.ID,
		Message:    "转存已受理,请轮询状态",
	}, nil
}

// GetStatus 查询转存记录状态
func (s *transferService) GetStatus(ctx context.Context, id uint64) (*model.TransferStatusResponse, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	status := record.Status
	if status == model.StatusCompleted && record.IsExpired(time.Now()) {
		status = model.StatusExpired
	}

	resp := &model.TransferStatusResponse{
		TransferID: record.ID,
		Status:     status,
		Message:    record.Message,
	}
	if status == model.StatusCompleted {
		resp.URL = record.TransferredURL
		resp.ExpireTime = record.ExpireTime
	}

	return resp, nil
}

// runPipeline 执行一次完整的转存流水线
func (s *transferService) runPipeline(job transferJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Transfer.GetTimeout())
	defer cancel()

	// 限流按(网盘,用户)维度
	if err := s.limiter.Allow(job.req.DiskType, fmt.Sprintf("%d", job.userID)); err != nil {
		var limitErr *ratelimit.LimitError
		if errors.As(err, &limitErr) {
			s.writeLog(model.ActionRateLimited, &job.req.PostID, &job.userID, err.Error(), "")
		}
		s.finishFailed(ctx, job, err)
		return
	}

	var (
		transferredURL string
		permErr        error
	)

	err := retry.Do(ctx, s.cfg.Transfer.MaxAttempts, s.cfg.Transfer.GetRetryBaseDelay(), func() error {
		url, err := s.executePipeline(ctx, &job.req)
		if err != nil {
			// 链接格式错误和资源为空重试也不会变好
			if errors.Is(err, netdisk.ErrInvalidLinkFormat) || errors.Is(err, netdisk.ErrNoFilesFound) {
				permErr = err
				return nil
			}
			return err
		}
		transferredURL = url
		return nil
	})
	if err == nil && permErr != nil {
		err = permErr
	}

	if err != nil {
		s.finishFailed(ctx, job, err)
		return
	}

	expireHours := s.expireHours(ctx)
	expireTime := time.Now().Add(time.Duration(expireHours) * time.Hour)

	if err := s.repo.MarkCompleted(ctx, job.recordID, transferredURL, &expireTime); err != nil {
		logger.Error("更新转存记录失败", zap.Uint64("id", job.recordID), zap.Error(err))
		return
	}

	record, err := s.repo.GetByID(ctx, job.recordID)
	if err == nil {
		_ = s.cache.SetTransfer(ctx, record, time.Until(expireTime))
	}

	s.writeLog(model.ActionTransferCompleted, &job.req.PostID, &job.userID,
		fmt.Sprintf("转存成功: %s", transferredURL), "")
	logger.Info("✅ 转存成功",
		zap.Uint64("id", job.recordID),
		zap.String("disk_type", job.req.DiskType),
		zap.String("url", transferredURL))
}

// executePipeline 解析→枚举→转存→分享
func (s *transferService) executePipeline(ctx context.Context, req *model.TransferRequest) (string, error) {
	provider, err := s.manager.GetProvider(req.DiskType)
	if err != nil {
		return "", err
	}

	share, err := provider.ParseShare(req.OriginalURL)
	if err != nil {
		return "", err
	}

	files, err := provider.ListFiles(ctx, share)
	if err != nil {
		return "", err
	}

	saveResult, err := provider.SaveFiles(ctx, share, files)
	if err != nil {
		return "", err
	}
	if len(saveResult.SavedIDs) == 0 {
		return "", netdisk.ErrAllFilesSaveFailed
	}
	if len(saveResult.Failed) > 0 {
		logger.Warn("部分文件转存失败",
			zap.Int("saved", len(saveResult.SavedIDs)),
			zap.Int("failed", len(saveResult.Failed)))
	}

	return provider.CreateShare(ctx, saveResult.SavedIDs, s.expireHours(ctx))
}

// finishFailed 标记失败并记日志
func (s *transferService) finishFailed(ctx context.Context, job transferJob, err error) {
	message := userMessage(err)
	if markErr := s.repo.MarkFailed(ctx, job.recordID, message); markErr != nil {
		logger.Error("更新转存记录失败", zap.Uint64("id", job.recordID), zap.Error(markErr))
	}

	s.writeLog(model.ActionTransferFailed, &job.req.PostID, &job.userID, message, err.Error())
	logger.Warn("转存失败",
		zap.Uint64("id", job.recordID),
		zap.String("disk_type", job.req.DiskType),
		zap.Error(err))
}

// expireHours 读取分享有效期设置,后台可改,限制在[1,8760]
func (s *transferService) expireHours(ctx context.Context) int {
	hours, err := s.settings.GetInt(ctx, model.SettingExpireHours, s.cfg.Transfer.ExpireHours)
	if err != nil {
		hours = s.cfg.Transfer.ExpireHours
	}
	return config.ClampExpireHours(hours)
}

// writeLog 写入操作日志,失败只记警告
func (s *transferService) writeLog(action string, postID, userID *uint64, message, details string) {
	log := &model.AuditLog{
		Action:  action,
		PostID:  postID,
		UserID:  userID,
		Message: message,
		Details: details,
	}
	if err := s.audit.Create(context.Background(), log); err != nil {
		logger.Warn("写入操作日志失败", zap.String("action", action), zap.Error(err))
	}
}

// userMessage 将内部错误转成可以展示给用户的提示
func userMessage(err error) string {
	switch {
	case errors.Is(err, netdisk.ErrInvalidLinkFormat):
		return "分享链接格式无效"
	case errors.Is(err, netdisk.ErrAuthExpired):
		return "网盘登录状态已失效,请联系管理员"
	case errors.Is(err, netdisk.ErrNoFilesFound):
		return "分享中没有可转存的文件"
	case errors.Is(err, netdisk.ErrAllFilesSaveFailed):
		return "所有文件转存失败"
	case errors.Is(err, netdisk.ErrShareCreationFailed):
		return "创建分享链接失败"
	case errors.Is(err, netdisk.ErrTaskTimeout):
		return "网盘处理超时,请稍后重试"
	case errors.Is(err, context.DeadlineExceeded):
		return "转存超时,请稍后重试"
	default:
		var limitErr *ratelimit.LimitError
		if errors.As(err, &limitErr) {
			return limitErr.Error()
		}
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return "转存多次失败: " + userMessage(exhausted.Cause)
		}
		return "转存失败,请稍后重试"
	}
}
