package xmongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/xdbtune/internal/storageopt"
	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
)

// PlanStats 执行计划统计。
type PlanStats struct {
	ExecutionTimeMs int64
	DocsExamined    int64
	KeysExamined    int64
	Returned        int64

	// Stage 胜出计划的根阶段，如 FETCH、COLLSCAN。
	Stage string

	// IndexName 胜出计划使用的索引，全表扫描时为空。
	IndexName string
}

// UsesIndex 胜出计划是否使用了索引。
func (s PlanStats) UsesIndex() bool { return s.IndexName != "" }

// PlanResult 执行计划分析结果。
//
// Available 为 false 表示诊断不可用，Reason 给出原因；
// 此时 Stats 为零值，不能理解为"扫描了 0 条文档"。
type PlanResult struct {
	Available bool
	Stats     PlanStats
	Reason    error
}

// Explain 以 executionStats 级别分析 filter 的执行计划。
//
// 失败（包括熔断打开时的 gobreaker.ErrOpenState）记录 Warn 日志并返回 Available=false。
func (w *mongoWrapper) Explain(ctx context.Context, coll *mongo.Collection, filter bson.M) PlanResult {
	if err := w.guard(ctx, coll); err != nil {
		return unavailable(err)
	}
	return w.explain(ctx, adaptCollection(coll), filter)
}

func (w *mongoWrapper) explain(ctx context.Context, coll collectionOperations, filter bson.M) (result PlanResult) {
	caller := ctx
	ctx, cancel := storageopt.FallbackContext(ctx, w.options.QueryTimeout)
	defer cancel()

	// 诊断调用不计入索引使用统计
	if w.options.Optimizer != nil {
		filter = w.options.Optimizer.Optimize(ctx, filter)
	}
	if filter == nil {
		filter = bson.M{}
	}
	coll = withTracking(coll, w.options.Tracker)

	ctx, span := w.startSpan(ctx, coll, "explain")
	defer func() {
		span.End(xmetrics.Result{Err: result.Reason, Attrs: []xmetrics.Attr{
			xmetrics.Bool("explain.available", result.Available),
		}})
	}()

	stats, err := w.explainBreaker.Execute(func() (PlanStats, error) {
		raw, err := coll.Explain(ctx, filter)
		if err != nil {
			return PlanStats{}, markCallerCancel(caller, err)
		}
		return parsePlan(raw)
	})
	if err != nil {
		err = fmt.Errorf("xmongo explain %s: %w", coll.Name(), err)
		w.options.Logger.Warn(ctx, "explain unavailable",
			xlog.Component(mongoComponent),
			xlog.Collection(coll.Name()),
			xlog.Err(err),
		)
		return unavailable(err)
	}

	w.options.Logger.Debug(ctx, "explain",
		xlog.Component(mongoComponent),
		xlog.Collection(coll.Name()),
		slog.String("index", stats.IndexName),
		slog.Int64("docs_examined", stats.DocsExamined),
		slog.Int64("keys_examined", stats.KeysExamined),
		slog.Int64("execution_ms", stats.ExecutionTimeMs),
	)
	return PlanResult{Available: true, Stats: stats}
}

func unavailable(reason error) PlanResult {
	return PlanResult{Reason: reason}
}

// =============================================================================
// explain 输出解析
// =============================================================================

// maxPlanDepth 计划树遍历深度上限。
const maxPlanDepth = 64

// parsePlan 从 explain 输出中提取 executionStats 与胜出计划的索引。
func parsePlan(raw bson.Raw) (PlanStats, error) {
	exec, ok := raw.Lookup("executionStats").DocumentOK()
	if !ok {
		return PlanStats{}, fmt.Errorf("%w: missing executionStats", ErrExplainFormat)
	}
	winning, ok := raw.Lookup("queryPlanner", "winningPlan").DocumentOK()
	if !ok {
		return PlanStats{}, fmt.Errorf("%w: missing queryPlanner.winningPlan", ErrExplainFormat)
	}
	// 8.0 之前启用 SBE 时计划包在 queryPlan 下
	if inner, ok := winning.Lookup("queryPlan").DocumentOK(); ok {
		winning = inner
	}

	stats := PlanStats{
		ExecutionTimeMs: int64Of(exec, "executionTimeMillis"),
		DocsExamined:    int64Of(exec, "totalDocsExamined"),
		KeysExamined:    int64Of(exec, "totalKeysExamined"),
		Returned:        int64Of(exec, "nReturned"),
		IndexName:       findIndex(winning, 0),
	}
	stats.Stage, _ = winning.Lookup("stage").StringValueOK()
	return stats, nil
}

func int64Of(doc bson.Raw, key string) int64 {
	n, _ := doc.Lookup(key).AsInt64OK()
	return n
}

// childStages 可能包含子阶段的字段。
var childStages = []string{"inputStage", "outerStage", "innerStage", "thenStage", "elseStage"}

// findIndex 深度优先查找计划树中第一个索引扫描阶段的索引名。
func findIndex(stage bson.Raw, depth int) string {
	if depth > maxPlanDepth {
		return ""
	}
	if name, ok := stage.Lookup("indexName").StringValueOK(); ok && name != "" {
		return name
	}
	if s, _ := stage.Lookup("stage").StringValueOK(); s == "IDHACK" || s == "EXPRESS_IDHACK" {
		return "_id_"
	}
	for _, key := range childStages {
		if child, ok := stage.Lookup(key).DocumentOK(); ok {
			if name := findIndex(child, depth+1); name != "" {
				return name
			}
		}
	}
	if children, ok := stage.Lookup("inputStages").ArrayOK(); ok {
		values, err := children.Values()
		if err != nil {
			return ""
		}
		for _, v := range values {
			if child, ok := v.DocumentOK(); ok {
				if name := findIndex(child, depth+1); name != "" {
					return name
				}
			}
		}
	}
	return ""
}
