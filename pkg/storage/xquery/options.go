package xquery

import (
	"time"

	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
)

// 默认值。
const (
	// DefaultCapacity 指标缓冲区默认容量。
	DefaultCapacity = 10000

	// DefaultSlowThreshold 默认慢查询阈值。
	DefaultSlowThreshold = 100 * time.Millisecond
)

type trackerOptions struct {
	capacity      int
	retention     time.Duration
	slowThreshold time.Duration
	verbose       bool
	logger        xlog.Logger
	observer      xmetrics.Observer
	now           func() time.Time
}

func defaultTrackerOptions() *trackerOptions {
	return &trackerOptions{
		capacity:      DefaultCapacity,
		slowThreshold: DefaultSlowThreshold,
		logger:        xlog.Discard(),
		observer:      xmetrics.NoopObserver{},
		now:           time.Now,
	}
}

// Option 配置 Tracker。
type Option func(*trackerOptions)

// WithCapacity 设置指标缓冲区容量，非正值被忽略。
func WithCapacity(n int) Option {
	return func(o *trackerOptions) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithRetention 设置指标保留时长，0 表示只受容量约束。负值被忽略。
func WithRetention(d time.Duration) Option {
	return func(o *trackerOptions) {
		if d >= 0 {
			o.retention = d
		}
	}
}

// WithSlowThreshold 设置慢查询阈值，0 关闭慢查询检测。负值被忽略。
func WithSlowThreshold(d time.Duration) Option {
	return func(o *trackerOptions) {
		if d >= 0 {
			o.slowThreshold = d
		}
	}
}

// WithVerbose 为每个查询输出一行 Debug 日志。
func WithVerbose(verbose bool) Option {
	return func(o *trackerOptions) {
		o.verbose = verbose
	}
}

// WithLogger 设置日志器，nil 被忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *trackerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置观测接口，nil 被忽略。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *trackerOptions) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithClock 替换时间源，nil 被忽略。
func WithClock(now func() time.Time) Option {
	return func(o *trackerOptions) {
		if now != nil {
			o.now = now
		}
	}
}
