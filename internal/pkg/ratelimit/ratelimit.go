package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Rule 滑动窗口限流规则
type Rule struct {
	Requests int           // 窗口内允许的请求数
	Window   time.Duration // 窗口长度
}

// LimitError 触发限流时返回,携带建议的重试等待时间
type LimitError struct {
	Provider   string
	RetryAfter int // 秒
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s 请求过于频繁, %d秒后重试", e.Provider, e.RetryAfter)
}

// Limiter 按(网盘,调用方)维度的滑动窗口限流器
type Limiter struct {
	mu      sync.Mutex
	rules   map[string]Rule
	windows map[string][]time.Time
	now     func() time.Time
}

// NewLimiter 创建限流器
func NewLimiter(rules map[string]Rule) *Limiter {
	l := &Limiter{
		rules:   rules,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}

	// 定期清理不再活跃的key
	go l.cleanup()

	return l
}

// Allow 检查指定网盘的请求是否放行,不放行时返回*LimitError
func (l *Limiter) Allow(provider, actor string) error {
	rule, ok := l.rules[provider]
	if !ok || rule.Requests <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := provider + ":" + actor
	cutoff := now.Add(-rule.Window)

	// 丢弃窗口外的记录
	kept := l.windows[key][:0]
	for _, t := range l.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.windows[key] = kept

	if len(kept) >= rule.Requests {
		// 最早一条记录滑出窗口后即可重试
		retryAfter := int(kept[0].Sub(cutoff).Seconds()) + 1
		return &LimitError{Provider: provider, RetryAfter: retryAfter}
	}

	l.windows[key] = append(l.windows[key], now)
	return nil
}

// cleanup 定期清理空窗口的key (每5分钟)
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := l.now()
		for key, times := range l.windows {
			stale := true
			for _, t := range times {
				if now.Sub(t) < 10*time.Minute {
					stale = false
					break
				}
			}
			if stale {
				delete(l.windows, key)
			}
		}
		l.mu.Unlock()
	}
}
