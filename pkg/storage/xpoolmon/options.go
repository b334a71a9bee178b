package xpoolmon

import (
	"time"

	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
)

// 默认值。
const (
	DefaultInterval   = 30 * time.Second
	DefaultTimeout    = 5 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = 200 * time.Millisecond
)

// ChangeFunc 状态变化回调，在检查所在的 goroutine 中同步执行。
type ChangeFunc func(from, to Status)

type options struct {
	interval   time.Duration
	timeout    time.Duration
	retries    uint
	retryDelay time.Duration
	logger     xlog.Logger
	observer   xmetrics.Observer
	onChange   ChangeFunc
	now        func() time.Time
}

func defaultOptions() *options {
	return &options{
		interval:   DefaultInterval,
		timeout:    DefaultTimeout,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		logger:     xlog.Discard(),
		observer:   xmetrics.NoopObserver{},
		now:        time.Now,
	}
}

// Option 配置 Monitor。
type Option func(*options)

// WithInterval 设置 Start 后的检查间隔，低于 1s 时 Start 返回 ErrInvalidInterval。
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithTimeout 设置单次探测超时，非正值被忽略。
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetries 设置探测总尝试次数（含首次），0 按 1 处理。
func WithRetries(n uint) Option {
	return func(o *options) {
		o.retries = max(n, 1)
	}
}

// WithRetryDelay 设置两次探测之间的固定间隔，负值被忽略。
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retryDelay = d
		}
	}
}

// WithLogger 设置日志器，nil 被忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置观测接口，nil 被忽略。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithOnChange 设置状态变化回调。
func WithOnChange(fn ChangeFunc) Option {
	return func(o *options) {
		o.onChange = fn
	}
}

// WithClock 替换时钟，测试用。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
