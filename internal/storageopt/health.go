package storageopt

import (
	"context"
	"time"
)

// 超时相关常量。
const (
	// DefaultHealthTimeout 默认健康检查超时时间。
	DefaultHealthTimeout = 5 * time.Second

	// DefaultQueryTimeout 查询兜底超时时间。
	// 仅在调用方 context 没有 deadline 时生效。
	DefaultQueryTimeout = 30 * time.Second
)

// HealthContext 创建带健康检查超时的 context。
// 如果 timeout <= 0，返回原始 context 和空的 cancel 函数。
//
// 使用示例：
//
//	ctx, cancel := storageopt.HealthContext(ctx, timeout)
//	defer cancel()
func HealthContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// FallbackContext 当调用方未设置 deadline 且 timeout > 0 时添加兜底超时。
// 已有 deadline 的 context 原样返回，调用方的截止时间优先。
func FallbackContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			return context.WithTimeout(ctx, timeout)
		}
	}
	return ctx, func() {}
}
