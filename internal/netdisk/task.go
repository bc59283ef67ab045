package netdisk

import (
	"context"
	"time"

	"go.uber.org/zap"

	"disklink/internal/pkg/logger"
)

// TaskState 网盘异步任务状态
type TaskState int

const (
	TaskRunning  TaskState = iota // 任务执行中
	TaskFinished                  // 任务成功结束
	TaskFailed                    // 任务失败
)

// PollFunc 查询一次任务状态,返回当前状态和任务结果(如share_id)
type PollFunc func(ctx context.Context) (TaskState, string, error)

// WaitForTask 以固定间隔轮询异步任务,超过maxWait仍未结束返回ErrTaskTimeout
// 单次查询出错只记录警告,下个周期继续
func WaitForTask(ctx context.Context, interval, maxWait time.Duration, poll PollFunc) (string, error) {
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, result, err := poll(ctx)
		if err != nil {
			logger.Warn("查询任务状态失败", zap.Error(err))
		} else {
			switch state {
			case TaskFinished:
				return result, nil
			case TaskFailed:
				return "", ErrTaskFailed
			}
		}

		if time.Now().After(deadline) {
			return "", ErrTaskTimeout
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
