package xmongo

import (
	"time"

	"github.com/omeyang/xdbtune/internal/storageopt"
	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
	"github.com/omeyang/xdbtune/pkg/storage/xindex"
	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

// =============================================================================
// 配置选项
// =============================================================================

// Options 定义 MongoDB 包装器的配置选项。
type Options struct {
	// HealthTimeout 健康检查超时时间，默认 5 秒。
	HealthTimeout time.Duration

	// QueryTimeout 查询兜底超时时间，仅在调用方 context 没有 deadline 时生效。
	// 默认 DefaultQueryTimeout，WithQueryTimeout(0) 禁用。
	QueryTimeout time.Duration

	// Observer 统一观测接口（metrics/tracing）。
	Observer xmetrics.Observer

	// Logger 日志器，默认丢弃。
	Logger xlog.Logger

	// Tracker 查询埋点。为 nil 时分页、批量查询不记录指标。
	Tracker *xquery.Tracker

	// Optimizer 查询条件优化器。为 nil 时过滤条件原样下发。
	Optimizer *xquery.Optimizer

	// Usage 索引使用记录器。为 nil 时不记录谓词字段。
	Usage *xindex.UsageRecorder

	// PoolTracker 连接池事件统计，Stats 从中读取连接池计数。
	PoolTracker *PoolTracker

	// ExplainFailures 执行计划分析连续失败多少次后熔断，默认 5。
	ExplainFailures uint32

	// ExplainCooldown 熔断打开后多久进入半开，默认 30 秒。
	ExplainCooldown time.Duration
}

// Option 定义配置 MongoDB 包装器的函数类型。
type Option func(*Options)

const (
	// DefaultQueryTimeout 查询操作默认兜底超时时间。
	DefaultQueryTimeout = storageopt.DefaultQueryTimeout

	// DefaultExplainFailures 执行计划分析默认熔断阈值。
	DefaultExplainFailures uint32 = 5

	// DefaultExplainCooldown 执行计划分析熔断默认冷却时间。
	DefaultExplainCooldown = 30 * time.Second
)

func defaultOptions() *Options {
	return &Options{
		HealthTimeout:   storageopt.DefaultHealthTimeout,
		QueryTimeout:    DefaultQueryTimeout,
		Observer:        xmetrics.NoopObserver{},
		Logger:          xlog.Discard(),
		ExplainFailures: DefaultExplainFailures,
		ExplainCooldown: DefaultExplainCooldown,
	}
}

// WithHealthTimeout 设置健康检查超时时间，非正值被忽略。
func WithHealthTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.HealthTimeout = timeout
		}
	}
}

// WithQueryTimeout 设置查询兜底超时时间。
// 传入 0 显式禁用兜底超时，负值被忽略。
func WithQueryTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout >= 0 {
			o.QueryTimeout = timeout
		}
	}
}

// WithObserver 设置统一观测接口。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithLogger 设置日志器。
func WithLogger(logger xlog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithTracker 设置查询埋点，分页与批量查询的每次驱动调用都会记录一条指标。
func WithTracker(tracker *xquery.Tracker) Option {
	return func(o *Options) {
		o.Tracker = tracker
	}
}

// WithOptimizer 设置查询条件优化器。
func WithOptimizer(optimizer *xquery.Optimizer) Option {
	return func(o *Options) {
		o.Optimizer = optimizer
	}
}

// WithUsageRecorder 设置索引使用记录器。
func WithUsageRecorder(usage *xindex.UsageRecorder) Option {
	return func(o *Options) {
		o.Usage = usage
	}
}

// WithPoolTracker 设置连接池事件统计器，通常传入 Connect 返回的实例。
func WithPoolTracker(tracker *PoolTracker) Option {
	return func(o *Options) {
		o.PoolTracker = tracker
	}
}

// WithExplainBreaker 设置执行计划分析的熔断参数，0 值保持默认。
func WithExplainBreaker(failures uint32, cooldown time.Duration) Option {
	return func(o *Options) {
		if failures > 0 {
			o.ExplainFailures = failures
		}
		if cooldown > 0 {
			o.ExplainCooldown = cooldown
		}
	}
}
