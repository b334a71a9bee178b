package xquery

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xdbtune/internal/storageopt"
	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
)

const trackerComponent = "xquery"

// QueryMetric 单次查询的指标，创建后不再修改。
type QueryMetric struct {
	Operation  string
	Collection string
	Duration   time.Duration
	Timestamp  time.Time
	Failed     bool
	Slow       bool
	// Shape 查询形状指纹，未提供 filter 时为 0。
	Shape uint64
}

// ExecutionTimeMs 返回四舍五入后的毫秒耗时。
func (m QueryMetric) ExecutionTimeMs() int64 {
	return storageopt.RoundMillis(m.Duration)
}

// QueryStats 当前窗口内的聚合统计。
type QueryStats struct {
	TotalQueries           int
	SlowQueries            int
	FailedQueries          int
	AverageExecutionTimeMs int64
	// Collections 出现过的集合（去重、升序）。
	Collections []string
}

// Counters 自创建以来的累计计数，不受 Clear 和缓冲区淘汰影响。
type Counters struct {
	Queries int64
	Errors  int64
	Slow    int64
}

// Call 描述一次被埋点的调用。
type Call struct {
	Operation  string
	Collection string
	// Filter 可选，用于计算查询形状。
	Filter bson.M
}

// Tracker 查询埋点器。并发安全。
type Tracker struct {
	opts     *trackerOptions
	detector *storageopt.SlowQueryDetector[QueryMetric]
	counter  storageopt.OutcomeCounter

	mu      sync.Mutex
	metrics *storageopt.Ring[QueryMetric]
}

// NewTracker 创建查询埋点器。
func NewTracker(opts ...Option) (*Tracker, error) {
	o := defaultTrackerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	t := &Tracker{
		opts:    o,
		metrics: storageopt.NewRing[QueryMetric](o.capacity),
	}
	detector, err := storageopt.NewSlowQueryDetector(storageopt.SlowQueryOptions[QueryMetric]{
		Threshold: o.slowThreshold,
		Hook:      t.logSlow,
	})
	if err != nil {
		return nil, fmt.Errorf("xquery: %w", err)
	}
	t.detector = detector
	return t, nil
}

// Do 执行 fn 并记录一条指标。fn 返回的错误原样返回。
func (t *Tracker) Do(ctx context.Context, operation, collection string, fn func(context.Context) error) error {
	return t.Observe(ctx, Call{Operation: operation, Collection: collection}, fn)
}

// Track 是 Do 的泛型版本，透传 fn 的返回值。
func Track[T any](ctx context.Context, t *Tracker, operation, collection string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	if t == nil {
		return result, ErrNilTracker
	}
	if fn == nil {
		return result, ErrNilFunc
	}
	err := t.Observe(ctx, Call{Operation: operation, Collection: collection}, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

// Observe 执行 fn 并记录一条指标。
//
// 指标在 defer 中记录，fn panic 时同样会记录（标记为失败）后继续 panic。
// t 为 nil 时返回 ErrNilTracker，fn 为 nil 时返回 ErrNilFunc，均不执行 fn 也不记录指标。
func (t *Tracker) Observe(ctx context.Context, call Call, fn func(context.Context) error) (err error) {
	if t == nil {
		return ErrNilTracker
	}
	if fn == nil {
		return ErrNilFunc
	}

	ctx, span := xmetrics.Start(ctx, t.opts.observer, xmetrics.SpanOptions{
		Component: trackerComponent,
		Operation: call.Operation,
		Kind:      xmetrics.KindClient,
		Attrs:     xmetrics.DBAttrs("", call.Collection),
	})

	start := t.opts.now()
	panicked := true
	defer func() {
		metric := QueryMetric{
			Operation:  call.Operation,
			Collection: call.Collection,
			Duration:   t.opts.now().Sub(start),
			Timestamp:  start,
			Failed:     err != nil || panicked,
		}
		if call.Filter != nil {
			metric.Shape = Shape(call.Filter)
		}
		metric.Slow = t.detector.IsSlow(metric.Duration)
		t.record(ctx, metric)

		spanErr := err
		if panicked {
			spanErr = errPanicked
		}
		span.End(xmetrics.Result{
			Err:   spanErr,
			Attrs: xmetrics.SlowAttrs(metric.Slow, t.detector.Threshold()),
		})
	}()

	err = fn(ctx)
	panicked = false
	return err
}

func (t *Tracker) record(ctx context.Context, metric QueryMetric) {
	t.counter.Observe(metric.Failed)

	t.mu.Lock()
	t.pruneLocked()
	t.metrics.Push(metric)
	t.mu.Unlock()

	if metric.Slow {
		t.detector.MaybeSlowQuery(ctx, metric, metric.Duration)
	}
	if t.opts.verbose {
		t.opts.logger.Debug(ctx, "query",
			xlog.Operation(metric.Operation),
			xlog.Collection(metric.Collection),
			xlog.Duration(metric.Duration),
			slog.Bool("failed", metric.Failed),
		)
	}
}

func (t *Tracker) logSlow(ctx context.Context, metric QueryMetric, d time.Duration) {
	t.opts.logger.Warn(ctx, "slow query",
		xlog.Operation(metric.Operation),
		xlog.Collection(metric.Collection),
		xlog.Duration(d),
		slog.Duration("threshold", t.detector.Threshold()),
		slog.String("shape", formatShape(metric.Shape)),
	)
}

// pruneLocked 淘汰超出保留时长的指标，调用方需持有 mu。
func (t *Tracker) pruneLocked() {
	if t.opts.retention <= 0 {
		return
	}
	cutoff := t.opts.now().Add(-t.opts.retention)
	t.metrics.DropWhile(func(m QueryMetric) bool {
		return m.Timestamp.Before(cutoff)
	})
}

// Metrics 返回当前窗口内的指标快照（从旧到新）。
func (t *Tracker) Metrics() []QueryMetric {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
	return t.metrics.Snapshot()
}

// SlowQueries 返回当前窗口内的慢查询（从旧到新）。
func (t *Tracker) SlowQueries() []QueryMetric {
	return slices.DeleteFunc(t.Metrics(), func(m QueryMetric) bool { return !m.Slow })
}

// Stats 返回当前窗口内的聚合统计。
func (t *Tracker) Stats() QueryStats {
	return computeStats(t.Metrics())
}

func computeStats(metrics []QueryMetric) QueryStats {
	stats := QueryStats{TotalQueries: len(metrics), Collections: []string{}}
	if len(metrics) == 0 {
		return stats
	}

	var total time.Duration
	seen := make(map[string]struct{})
	for _, m := range metrics {
		total += m.Duration
		if m.Slow {
			stats.SlowQueries++
		}
		if m.Failed {
			stats.FailedQueries++
		}
		if _, ok := seen[m.Collection]; !ok {
			seen[m.Collection] = struct{}{}
			stats.Collections = append(stats.Collections, m.Collection)
		}
	}
	slices.Sort(stats.Collections)
	stats.AverageExecutionTimeMs = storageopt.RoundMillis(total / time.Duration(len(metrics)))
	return stats
}

// Counters 返回累计计数。
func (t *Tracker) Counters() Counters {
	return Counters{
		Queries: t.counter.Total(),
		Errors:  t.counter.Failed(),
		Slow:    t.detector.Count(),
	}
}

// Clear 清空指标窗口，累计计数保留。
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.Reset()
}

// SetSlowThreshold 热更新慢查询阈值，负值被忽略。
// 已记录的指标保持记录时的判定。
func (t *Tracker) SetSlowThreshold(d time.Duration) {
	t.detector.SetThreshold(d)
}

// SlowThreshold 返回当前慢查询阈值。
func (t *Tracker) SlowThreshold() time.Duration {
	return t.detector.Threshold()
}

// Capacity 返回指标缓冲区容量。
func (t *Tracker) Capacity() int {
	return t.opts.capacity
}

func formatShape(shape uint64) string {
	if shape == 0 {
		return "-"
	}
	return fmt.Sprintf("%016x", shape)
}
