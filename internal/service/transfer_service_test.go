package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"disklink/internal/model"
	"disklink/internal/netdisk"
	"disklink/internal/repository"
)

type testEnv struct {
	svc      *transferService
	repo     *fakeTransferRepo
	settings *fakeSettingRepo
	audit    *fakeAuditRepo
	cache    *fakeCacheRepo
	provider *fakeProvider
}

func newTestEnv() *testEnv {
	provider := &fakeProvider{
		name:       model.DiskTypeQuark,
		files:      []model.FileRef{{ID: "fid1", Name: "电影.mp4"}},
		saveResult: &model.SaveResult{SavedIDs: []string{"saved1"}},
		shareURL:   "https://pan.quark.cn/s/newshare?pwd=ab12",
	}

	repo := newFakeTransferRepo()
	settings := newFakeSettingRepo()
	audit := newFakeAuditRepo()
	cache := newFakeCacheRepo()
	manager := &fakeManager{providers: map[string]netdisk.Provider{
		model.DiskTypeQuark: provider,
	}}

	svc := NewTransferService(testConfig(), repo, settings, audit, cache, manager, testLimiter()).(*transferService)

	return &testEnv{
		svc:      svc,
		repo:     repo,
		settings: settings,
		audit:    audit,
		cache:    cache,
		provider: provider,
	}
}

// runOnce 受理请求后同步执行一次流水线
func (e *testEnv) runOnce(t *testing.T, req *model.TransferRequest) *model.TransferIntakeResponse {
	t.Helper()

	resp, err := e.svc.RequestTransfer(context.Background(), req, 0)
	if err != nil {
		t.Fatalf("受理转存失败: %v", err)
	}

	select {
	case job := <-e.svc.jobs:
		e.svc.runPipeline(job)
	default:
		// 命中缓存时不入队
	}

	return resp
}

func TestTransferPipelineCompletes(t *testing.T) {
	env := newTestEnv()
	req := &model.TransferRequest{
		PostID:      10,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/abc123",
		DiskType:    model.DiskTypeQuark,
	}

	resp := env.runOnce(t, req)
	if resp.TransferID == 0 {
		t.Fatal("受理应返回transfer_id")
	}

	status, err := env.svc.GetStatus(context.Background(), resp.TransferID)
	if err != nil {
		t.Fatalf("查询状态失败: %v", err)
	}
	if status.Status != model.StatusCompleted {
		t.Fatalf("期望completed, 得到 %s (%s)", status.Status, status.Message)
	}
	if status.URL != "https://pan.quark.cn/s/newshare?pwd=ab12" {
		t.Fatalf("转存链接不符: %s", status.URL)
	}

	// 默认有效期72小时
	if status.ExpireTime == nil {
		t.Fatal("完成记录应有过期时间")
	}
	remaining := time.Until(*status.ExpireTime)
	if remaining < 71*time.Hour || remaining > 73*time.Hour {
		t.Fatalf("过期时间应约为72小时后, 剩余 %v", remaining)
	}
}

func TestTransferDeduplicatesPending(t *testing.T) {
	env := newTestEnv()
	req := &model.TransferRequest{
		PostID:      10,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/abc123",
		DiskType:    model.DiskTypeQuark,
	}

	// 第一次受理后pending还在队列里
	if _, err := env.svc.RequestTransfer(context.Background(), req, 0); err != nil {
		t.Fatalf("首次受理失败: %v", err)
	}

	_, err := env.svc.RequestTransfer(context.Background(), req, 0)
	if !errors.Is(err, repository.ErrTransferInProgress) {
		t.Fatalf("重复受理期望ErrTransferInProgress, 得到 %v", err)
	}
}

func TestTransferDeduplicatesPendingAcrossURLChange(t *testing.T) {
	env := newTestEnv()
	first := &model.TransferRequest{
		PostID:      10,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/abc123",
		DiskType:    model.DiskTypeQuark,
	}

	if _, err := env.svc.RequestTransfer(context.Background(), first, 0); err != nil {
		t.Fatalf("首次受理失败: %v", err)
	}

	// 去重键只看文章和链接位置,换了原始链接同样算重复受理
	second := &model.TransferRequest{
		PostID:      10,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/zzz999",
		DiskType:    model.DiskTypeQuark,
	}
	_, err := env.svc.RequestTransfer(context.Background(), second, 0)
	if !errors.Is(err, repository.ErrTransferInProgress) {
		t.Fatalf("换链接重复受理期望ErrTransferInProgress, 得到 %v", err)
	}
}

func TestStopDrainsQueuedTransfers(t *testing.T) {
	env := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.svc.Start(ctx)

	req := &model.TransferRequest{
		PostID:      16,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/abc123",
		DiskType:    model.DiskTypeQuark,
	}
	resp, err := env.svc.RequestTransfer(context.Background(), req, 0)
	if err != nil {
		t.Fatalf("受理转存失败: %v", err)
	}

	// 关停时先Stop清空积压任务,再取消上下文
	env.svc.Stop()
	cancel()

	status, err := env.svc.GetStatus(context.Background(), resp.TransferID)
	if err != nil {
		t.Fatalf("查询状态失败: %v", err)
	}
	if status.Status == model.StatusPending {
		t.Fatal("关停后不应残留pending记录")
	}
	if status.Status != model.StatusCompleted {
		t.Fatalf("积压任务应在关停前完成, 得到 %s (%s)", status.Status, status.Message)
	}
}

func TestTransferReusesCompletedRecord(t *testing.T) {
	env := newTestEnv()
	req := &model.TransferRequest{
		PostID:      10,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/abc123",
		DiskType:    model.DiskTypeQuark,
	}

	env.runOnce(t, req)

	// 第二次请求应直接复用,不再调用网盘
	listCallsBefore := env.provider.listCalls
	resp, err := env.svc.RequestTransfer(context.Background(), req, 0)
	if err != nil {
		t.Fatalf("二次受理失败: %v", err)
	}
	if !resp.FromCache {
		t.Fatal("应标记为缓存命中")
	}
	if resp.URL == "" {
		t.Fatal("缓存命中应直接返回链接")
	}
	if env.provider.listCalls != listCallsBefore {
		t.Fatal("缓存命中不应再调用网盘接口")
	}
}

func TestTransferNoFilesFails(t *testing.T) {
	env := newTestEnv()
	env.provider.listErr = netdisk.ErrNoFilesFound
	req := &model.TransferRequest{
		PostID:      11,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/empty",
		DiskType:    model.DiskTypeQuark,
	}

	resp := env.runOnce(t, req)

	status, err := env.svc.GetStatus(context.Background(), resp.TransferID)
	if err != nil {
		t.Fatalf("查询状态失败: %v", err)
	}
	if status.Status != model.StatusFailed {
		t.Fatalf("期望failed, 得到 %s", status.Status)
	}
	// 空分享重试无意义,只应调用一次
	if env.provider.listCalls != 1 {
		t.Fatalf("空分享不应重试, 调用了%d次", env.provider.listCalls)
	}
}

func TestTransferRetriesTransientErrors(t *testing.T) {
	env := newTestEnv()
	env.provider.listErr = errors.New("网络抖动")
	req := &model.TransferRequest{
		PostID:      12,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/flaky",
		DiskType:    model.DiskTypeQuark,
	}

	resp := env.runOnce(t, req)

	status, _ := env.svc.GetStatus(context.Background(), resp.TransferID)
	if status.Status != model.StatusFailed {
		t.Fatalf("期望failed, 得到 %s", status.Status)
	}
	if env.provider.listCalls != 3 {
		t.Fatalf("临时错误应重试到3次, 调用了%d次", env.provider.listCalls)
	}
}

func TestTransferAllSaveFailedFails(t *testing.T) {
	env := newTestEnv()
	env.provider.saveResult = &model.SaveResult{
		Failed: []model.SaveFailure{{File: model.FileRef{ID: "fid1"}, Reason: "容量不足"}},
	}
	req := &model.TransferRequest{
		PostID:      13,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/full",
		DiskType:    model.DiskTypeQuark,
	}

	resp := env.runOnce(t, req)

	status, _ := env.svc.GetStatus(context.Background(), resp.TransferID)
	if status.Status != model.StatusFailed {
		t.Fatalf("全部转存失败期望failed, 得到 %s", status.Status)
	}
}

func TestTransferUnsupportedDiskType(t *testing.T) {
	env := newTestEnv()
	req := &model.TransferRequest{
		PostID:      14,
		LinkIndex:   0,
		OriginalURL: "https://pan.baidu.com/s/1abc",
		DiskType:    model.DiskTypeBaidu,
	}

	if _, err := env.svc.RequestTransfer(context.Background(), req, 0); err == nil {
		t.Fatal("未配置的网盘类型应被拒绝")
	}
}

func TestExpireHoursClamped(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	cases := []struct {
		setting string
		want    int
	}{
		{"", 72},
		{"24", 24},
		{"99999", 8760},
		{"0", 1},
	}

	for _, tc := range cases {
		_ = env.settings.Set(ctx, model.SettingExpireHours, tc.setting)
		if got := env.svc.expireHours(ctx); got != tc.want {
			t.Errorf("设置%q时期望%d小时, 得到 %d", tc.setting, tc.want, got)
		}
	}
}

func TestTransferWritesAuditLogs(t *testing.T) {
	env := newTestEnv()
	req := &model.TransferRequest{
		PostID:      15,
		LinkIndex:   0,
		OriginalURL: "https://pan.quark.cn/s/abc123",
		DiskType:    model.DiskTypeQuark,
	}

	env.runOnce(t, req)

	actions := env.audit.actions()
	hasStart, hasCompleted := false, false
	for _, a := range actions {
		if a == model.ActionTransferStart {
			hasStart = true
		}
		if a == model.ActionTransferCompleted {
			hasCompleted = true
		}
	}
	if !hasStart || !hasCompleted {
		t.Fatalf("应记录受理和完成日志, 实际 %v", actions)
	}
}
