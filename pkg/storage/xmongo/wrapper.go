package xmongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/sony/gobreaker/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/xdbtune/internal/storageopt"
	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

// =============================================================================
// mongoWrapper 实现
// =============================================================================

// mongoWrapper 实现 Mongo 接口。
type mongoWrapper struct {
	client    *mongo.Client    // 用于 Client() 方法返回
	clientOps clientOperations // 用于内部操作（可注入 mock）
	options   *Options

	explainBreaker *gobreaker.CircuitBreaker[PlanStats]
	healthCounter  storageopt.OutcomeCounter

	// 设计决策: 使用 atomic.Bool 保护 closed 状态，
	// 确保并发调用 Close() 和其他方法时的线程安全。
	closed atomic.Bool
}

const mongoComponent = "xmongo"

// Client 返回底层 MongoDB 客户端。
//
// 设计决策: 不检查 closed 状态。mongo.Client 在 Disconnect 后会自行返回明确错误。
func (w *mongoWrapper) Client() *mongo.Client {
	return w.client
}

// Health 执行健康检查。
func (w *mongoWrapper) Health(ctx context.Context) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	if w.closed.Load() {
		return ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, w.options.Observer, xmetrics.SpanOptions{
		Component: mongoComponent,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     xmetrics.DBAttrs("", ""),
	})
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	ctx, cancel := storageopt.HealthContext(ctx, w.options.HealthTimeout)
	defer cancel()

	err = w.clientOps.Ping(ctx, readpref.Primary())
	w.healthCounter.Observe(err != nil)
	if err != nil {
		return fmt.Errorf("xmongo health: %w", err)
	}
	return nil
}

// Stats 返回统计信息。Close 之后仍可调用。
func (w *mongoWrapper) Stats() Stats {
	stats := Stats{
		PingCount:  w.healthCounter.Total(),
		PingErrors: w.healthCounter.Failed(),
		Sessions:   w.clientOps.NumberSessionsInProgress(),
	}
	if w.options.PoolTracker != nil {
		stats.Pool = w.options.PoolTracker.Counters()
	}
	if w.options.Tracker != nil {
		stats.Queries = w.options.Tracker.Counters()
	}
	return stats
}

// Close 关闭 MongoDB 连接。重复调用返回 ErrClosed。并发安全。
//
// 设计决策: nil context 替换为 context.Background() 而非返回 ErrNilContext，
// 资源释放优先于参数校验。Disconnect 失败时不回滚 closed 状态。
func (w *mongoWrapper) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !w.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := w.clientOps.Disconnect(ctx); err != nil {
		return fmt.Errorf("xmongo close: %w", err)
	}
	return nil
}

// =============================================================================
// 公共前置处理
// =============================================================================

// guard 校验公开方法的通用参数。
func (w *mongoWrapper) guard(ctx context.Context, coll *mongo.Collection) error {
	if ctx == nil {
		return ErrNilContext
	}
	if w.closed.Load() {
		return ErrClosed
	}
	if coll == nil {
		return ErrNilCollection
	}
	return nil
}

// prepare 依次执行条件优化、谓词字段记录，并为集合套上埋点装饰器。
// 返回的 filter 不为 nil。
func (w *mongoWrapper) prepare(ctx context.Context, coll collectionOperations, filter bson.M) (collectionOperations, bson.M) {
	if w.options.Optimizer != nil {
		filter = w.options.Optimizer.Optimize(ctx, filter)
	}
	if filter == nil {
		filter = bson.M{}
	}
	w.recordUsage(coll, xquery.PredicateFields(filter))
	return withTracking(coll, w.options.Tracker), filter
}

func (w *mongoWrapper) recordUsage(coll collectionOperations, fields []string) {
	if w.options.Usage != nil {
		w.options.Usage.RecordPattern(coll.Name(), fields)
	}
}

// startSpan 开始一次集合级操作的观测跨度。
func (w *mongoWrapper) startSpan(ctx context.Context, coll collectionOperations, operation string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, w.options.Observer, xmetrics.SpanOptions{
		Component: mongoComponent,
		Operation: operation,
		Kind:      xmetrics.KindClient,
		Attrs:     xmetrics.DBAttrs(coll.DatabaseName(), coll.Name()),
	})
}

// decodeAll 读完游标并关闭。空结果返回空切片而非 nil，JSON 序列化为 []。
func decodeAll(ctx context.Context, cursor *mongo.Cursor) (data []bson.M, err error) {
	defer func() {
		if closeErr := cursor.Close(ctx); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close cursor: %w", closeErr))
		}
	}()
	if err = cursor.All(ctx, &data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if data == nil {
		data = []bson.M{}
	}
	return data, nil
}

// callerCancelError 标记由调用方 context 结束（取消或调用方自己的截止时间）导致的失败。
type callerCancelError struct{ err error }

func (e callerCancelError) Error() string { return e.err.Error() }
func (e callerCancelError) Unwrap() error { return e.err }

// markCallerCancel 在调用方 context 已结束时标记 err。
// 只看调用方的 ctx：内部 FallbackContext 超时说明服务端无响应，应计入熔断。
func markCallerCancel(caller context.Context, err error) error {
	if err != nil && caller.Err() != nil {
		return callerCancelError{err: err}
	}
	return err
}

// isCallerCancel 调用方取消或超时不计入熔断统计。
func isCallerCancel(err error) bool {
	var c callerCancelError
	return errors.As(err, &c)
}

func (w *mongoWrapper) logBreakerChange(name string, from, to gobreaker.State) {
	w.options.Logger.Warn(context.Background(), "circuit breaker state changed",
		xlog.Component(mongoComponent),
		xlog.Operation(name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}
