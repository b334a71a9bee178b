package xpoolmon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/robfig/cron/v3"

	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
)

const monitorComponent = "xpoolmon"

// Monitor 连接池健康监控。
//
// 只保留最近一次检查结果，每个实例独立，不是进程级单例。
// Check 可被并发调用；Start 后按固定间隔在 cron 的 goroutine 中检查。
type Monitor struct {
	source Source
	opts   *options

	mu   sync.RWMutex
	last Status

	lifecycle sync.Mutex
	cron      *cron.Cron
	cancel    context.CancelFunc
	stopped   bool
}

// New 创建监控。首次检查前 Last 返回 healthy（乐观初始值）。
func New(source Source, opts ...Option) (*Monitor, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Monitor{
		source: source,
		opts:   o,
		last:   Status{State: StateHealthy},
	}, nil
}

// Check 探测连接并读取计数，判定状态并记为最近一次结果。
//
// 探测按 WithRetries 重试，每次尝试受 WithTimeout 限制；全部失败时状态为 down。
func (m *Monitor) Check(ctx context.Context) Status {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := xmetrics.Start(ctx, m.opts.observer, xmetrics.SpanOptions{
		Component: monitorComponent,
		Operation: "check",
		Kind:      xmetrics.KindClient,
	})

	err := m.probe(ctx)
	snap := m.source.Snapshot()
	status := Status{
		State:     Classify(snap, err == nil),
		Snapshot:  snap,
		CheckedAt: m.opts.now(),
		Err:       err,
	}
	if err == nil && snap.PoolSize <= 0 {
		status.Err = ErrEmptyPool
	}

	span.End(xmetrics.Result{
		Err:   status.Err,
		Attrs: []xmetrics.Attr{xmetrics.String("state", string(status.State))},
	})

	prev := m.swap(status)
	m.logTransition(ctx, prev, status)
	if prev.State != status.State && m.opts.onChange != nil {
		m.opts.onChange(prev, status)
	}
	return status
}

func (m *Monitor) probe(ctx context.Context) error {
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(m.opts.retries),
		retry.Delay(m.opts.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, m.opts.timeout)
		defer cancel()
		return m.source.Ping(attemptCtx)
	})
}

func (m *Monitor) swap(status Status) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.last
	m.last = status
	return prev
}

func (m *Monitor) logTransition(ctx context.Context, prev, cur Status) {
	if prev.State == cur.State {
		m.opts.logger.Debug(ctx, "pool status", slog.Any("status", cur))
		return
	}
	attrs := []slog.Attr{
		slog.String("from", string(prev.State)),
		slog.Any("status", cur),
		slog.String("recommendation", Recommend(cur.State)),
	}
	if cur.State == StateHealthy {
		m.opts.logger.Info(ctx, "pool status changed", attrs...)
		return
	}
	m.opts.logger.Warn(ctx, "pool status changed", attrs...)
}

// Last 返回最近一次检查结果。
func (m *Monitor) Last() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Recommendation 返回最近一次状态对应的运维建议。
func (m *Monitor) Recommendation() string {
	return Recommend(m.Last().State)
}

// =============================================================================
// 定时检查
// =============================================================================

// Start 按 WithInterval 的间隔定时检查。上一次检查未结束时跳过本轮。
//
// 重复调用返回 ErrAlreadyStarted，Stop 之后调用返回 ErrStopped。
func (m *Monitor) Start() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	switch {
	case m.stopped:
		return ErrStopped
	case m.cron != nil:
		return ErrAlreadyStarted
	case m.opts.interval < time.Second:
		return ErrInvalidInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(cron.Every(m.opts.interval), cron.FuncJob(func() {
		m.Check(ctx)
	}))
	c.Start()

	m.cron = c
	m.cancel = cancel
	m.opts.logger.Info(ctx, "pool monitor started", xlog.Duration(m.opts.interval))
	return nil
}

// Stop 停止定时检查并等待正在进行的检查结束。可重复调用。
//
// 不要在 OnChange 回调中调用 Stop：回调运行在检查内部，等待会死锁。
func (m *Monitor) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	if m.cron == nil {
		return
	}
	m.cancel()
	<-m.cron.Stop().Done()
	m.opts.logger.Info(context.Background(), "pool monitor stopped")
}
