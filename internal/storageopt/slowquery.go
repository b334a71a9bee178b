package storageopt

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrNegativeThreshold 表示慢查询阈值为负数。
var ErrNegativeThreshold = errors.New("storageopt: slow query threshold must be >= 0")

// SlowQueryHook 慢查询同步回调钩子。
// 在请求路径上同步执行，应保持轻量（计数、写内存、打一行日志）。
type SlowQueryHook[T any] func(ctx context.Context, info T, duration time.Duration)

// SlowQueryOptions 慢查询检测配置。
type SlowQueryOptions[T any] struct {
	// Threshold 慢查询阈值。
	// 为 0 时禁用慢查询检测。
	Threshold time.Duration

	// Hook 慢查询回调，可为 nil。
	Hook SlowQueryHook[T]
}

// SlowQueryDetector 慢查询检测器。
//
// 阈值以原子变量保存，配置热更新时可直接调用 SetThreshold，
// 不影响并发中的 MaybeSlowQuery。
type SlowQueryDetector[T any] struct {
	threshold atomic.Int64
	hook      SlowQueryHook[T]
	count     atomic.Int64
}

// NewSlowQueryDetector 创建慢查询检测器。
// 阈值为负数时返回 ErrNegativeThreshold。
func NewSlowQueryDetector[T any](opts SlowQueryOptions[T]) (*SlowQueryDetector[T], error) {
	if opts.Threshold < 0 {
		return nil, ErrNegativeThreshold
	}
	d := &SlowQueryDetector[T]{hook: opts.Hook}
	d.threshold.Store(int64(opts.Threshold))
	return d, nil
}

// Threshold 返回当前阈值。
func (d *SlowQueryDetector[T]) Threshold() time.Duration {
	return time.Duration(d.threshold.Load())
}

// SetThreshold 更新阈值，负数被忽略。
func (d *SlowQueryDetector[T]) SetThreshold(threshold time.Duration) {
	if threshold < 0 {
		return
	}
	d.threshold.Store(int64(threshold))
}

// IsSlow 判断耗时是否达到阈值（duration >= threshold 即为慢查询）。
func (d *SlowQueryDetector[T]) IsSlow(duration time.Duration) bool {
	threshold := d.Threshold()
	return threshold > 0 && duration >= threshold
}

// MaybeSlowQuery 检测并可能触发慢查询钩子。
// 返回是否判定为慢查询。
func (d *SlowQueryDetector[T]) MaybeSlowQuery(ctx context.Context, info T, duration time.Duration) bool {
	if !d.IsSlow(duration) {
		return false
	}
	d.count.Add(1)
	if d.hook != nil {
		d.hook(ctx, info, duration)
	}
	return true
}

// Count 返回累计触发的慢查询次数。
func (d *SlowQueryDetector[T]) Count() int64 {
	return d.count.Load()
}
