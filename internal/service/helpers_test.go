package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"disklink/internal/model"
	"disklink/internal/netdisk"
	"disklink/internal/pkg/config"
	"disklink/internal/pkg/logger"
	"disklink/internal/pkg/ratelimit"
	"disklink/internal/repository"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger("error", "")
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Transfer: config.TransferConfig{
			ExpireHours:    72,
			Workers:        1,
			QueueSize:      8,
			Timeout:        10,
			MaxAttempts:    3,
			RetryBaseDelay: 0,
			TaskInterval:   1,
			TaskMaxWait:    1,
		},
		Cleanup: config.CleanupConfig{
			BatchSize:        100,
			LogRetentionDays: 30,
		},
	}
}

func testLimiter() *ratelimit.Limiter {
	return ratelimit.NewLimiter(map[string]ratelimit.Rule{
		model.DiskTypeBaidu: {Requests: 100, Window: time.Minute},
		model.DiskTypeQuark: {Requests: 100, Window: time.Minute},
	})
}

// fakeTransferRepo 内存版转存记录仓储
type fakeTransferRepo struct {
	mu      sync.Mutex
	seq     uint64
	records map[uint64]*model.TransferRecord
}

func newFakeTransferRepo() *fakeTransferRepo {
	return &fakeTransferRepo{records: make(map[uint64]*model.TransferRecord)}
}

func (r *fakeTransferRepo) CheckAndCreate(ctx context.Context, req *model.TransferRequest, userID uint64, now time.Time) (*model.TransferRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.PostID != req.PostID || rec.LinkIndex != req.LinkIndex {
			continue
		}
		if rec.Status == model.StatusCompleted && !rec.IsExpired(now) {
			cp := *rec
			return &cp, false, nil
		}
		if rec.Status == model.StatusPending {
			return nil, false, repository.ErrTransferInProgress
		}
	}

	r.seq++
	rec := &model.TransferRecord{
		ID:          r.seq,
		PostID:      req.PostID,
		LinkIndex:   req.LinkIndex,
		OriginalURL: req.OriginalURL,
		DiskType:    req.DiskType,
		Status:      model.StatusPending,
		UserID:      userID,
		CreatedTime: now,
	}
	r.records[rec.ID] = rec
	cp := *rec
	return &cp, true, nil
}

func (r *fakeTransferRepo) GetByID(ctx context.Context, id uint64) (*model.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeTransferRepo) MarkCompleted(ctx context.Context, id uint64, url string, expireTime *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Status = model.StatusCompleted
	rec.TransferredURL = url
	rec.ExpireTime = expireTime
	rec.Message = ""
	return nil
}

func (r *fakeTransferRepo) MarkFailed(ctx context.Context, id uint64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Status = model.StatusFailed
	rec.Message = reason
	return nil
}

func (r *fakeTransferRepo) FindExpiredCompleted(ctx context.Context, now time.Time, limit int) ([]model.TransferRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TransferRecord
	for _, rec := range r.records {
		if rec.Status == model.StatusCompleted && rec.IsExpired(now) {
			out = append(out, *rec)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeTransferRepo) MarkExpired(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Status = model.StatusExpired
	return nil
}

func (r *fakeTransferRepo) put(rec *model.TransferRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == 0 {
		r.seq++
		rec.ID = r.seq
	}
	r.records[rec.ID] = rec
}

// fakeSettingRepo 内存版设置仓储
type fakeSettingRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettingRepo() *fakeSettingRepo {
	return &fakeSettingRepo{values: make(map[string]string)}
}

func (r *fakeSettingRepo) Get(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[name], nil
}

func (r *fakeSettingRepo) GetInt(ctx context.Context, name string, defaultValue int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.values[name]
	if !ok || value == "" {
		return defaultValue, nil
	}
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return defaultValue, nil
	}
	return n, nil
}

func (r *fakeSettingRepo) Set(ctx context.Context, name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = value
	return nil
}

// fakeAuditRepo 内存版日志仓储
type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []model.AuditLog
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) Create(ctx context.Context, log *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if log.CreatedTime.IsZero() {
		log.CreatedTime = time.Now()
	}
	r.logs = append(r.logs, *log)
	return nil
}

func (r *fakeAuditRepo) List(ctx context.Context, filter *model.LogFilter, page, pageSize int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AuditLog(nil), r.logs...), int64(len(r.logs)), nil
}

func (r *fakeAuditRepo) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.logs[:0]
	var deleted int64
	for _, log := range r.logs {
		if log.CreatedTime.Before(t) {
			deleted++
			continue
		}
		kept = append(kept, log)
	}
	r.logs = kept
	return deleted, nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, log := range r.logs {
		out = append(out, log.Action)
	}
	return out
}

// fakeCacheRepo 内存版缓存仓储
type fakeCacheRepo struct {
	mu      sync.Mutex
	entries map[string]*model.TransferRecord
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: make(map[string]*model.TransferRecord)}
}

func cacheKey(postID uint64, linkIndex int) string {
	return fmt.Sprintf("%d:%d", postID, linkIndex)
}

func (r *fakeCacheRepo) GetTransfer(ctx context.Context, postID uint64, linkIndex int) (*model.TransferRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.entries[cacheKey(postID, linkIndex)]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (r *fakeCacheRepo) SetTransfer(ctx context.Context, record *model.TransferRecord, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.entries[cacheKey(record.PostID, record.LinkIndex)] = &cp
	return nil
}

func (r *fakeCacheRepo) DeleteTransfer(ctx context.Context, postID uint64, linkIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, cacheKey(postID, linkIndex))
	return nil
}

// fakeProvider 可编排行为的网盘实现
type fakeProvider struct {
	name       string
	files      []model.FileRef
	saveResult *model.SaveResult
	shareURL   string

	listErr     error
	saveErr     error
	shareErr    error
	deleteErr   error
	validateErr error

	mu          sync.Mutex
	listCalls   int
	deleteCalls int
}

func (p *fakeProvider) Name() string       { return p.name }
func (p *fakeProvider) IsConfigured() bool { return true }

func (p *fakeProvider) ParseShare(rawURL string) (*model.ShareInfo, error) {
	if rawURL == "" {
		return nil, netdisk.ErrInvalidLinkFormat
	}
	return model.NewShareInfo("fake-share", "", rawURL), nil
}

func (p *fakeProvider) ListFiles(ctx context.Context, share *model.ShareInfo) ([]model.FileRef, error) {
	p.mu.Lock()
	p.listCalls++
	p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.files, nil
}

func (p *fakeProvider) SaveFiles(ctx context.Context, share *model.ShareInfo, files []model.FileRef) (*model.SaveResult, error) {
	if p.saveErr != nil {
		return nil, p.saveErr
	}
	return p.saveResult, nil
}

func (p *fakeProvider) CreateShare(ctx context.Context, fileIDs []string, expireHours int) (string, error) {
	if p.shareErr != nil {
		return "", p.shareErr
	}
	return p.shareURL, nil
}

func (p *fakeProvider) DeleteShare(ctx context.Context, shareURL string) error {
	p.mu.Lock()
	p.deleteCalls++
	p.mu.Unlock()
	return p.deleteErr
}

func (p *fakeProvider) ValidateCredentials(ctx context.Context) error {
	return p.validateErr
}

// fakeManager 固定返回预置provider的管理器
type fakeManager struct {
	providers map[string]netdisk.Provider
}

func (m *fakeManager) GetProvider(diskType string) (netdisk.Provider, error) {
	p, ok := m.providers[diskType]
	if !ok {
		return nil, fmt.Errorf("不支持的网盘类型: %s", diskType)
	}
	return p, nil
}

func (m *fakeManager) Providers() []netdisk.Provider {
	out := make([]netdisk.Provider, 0, len(m.providers))
	for _, p := range m.providers {
		out = append(out, p)
	}
	return out
}
