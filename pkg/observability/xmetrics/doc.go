// Package xmetrics 提供存储层共用的观测接口（tracing + metrics）。
//
// xquery、xmongo、xindex、xpoolmon 只依赖 Observer 接口：默认 NoopObserver，
// 通过 NewOTelObserver 接入 OpenTelemetry。
//
// 每个跨度结束时记录两个指标：
//   - xdbtune.db.operations：按 component、operation、status、slow 与 db.collection 计数
//   - xdbtune.db.operation.duration：耗时直方图（秒），桶边界覆盖 1ms 到 10s
//
// 使用示例：
//
//	ctx, span := xmetrics.Start(ctx, observer, xmetrics.SpanOptions{
//	    Component: "xquery",
//	    Operation: "find",
//	    Kind:      xmetrics.KindClient,
//	    Attrs:     xmetrics.DBAttrs("app", "orders"),
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
package xmetrics
