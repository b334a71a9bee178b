// Package xquery 提供查询条件优化与查询埋点。
//
// # 条件优化
//
// Analyze 是纯函数：移除值为 nil/Null/Undefined 的顶层键，按子条件键数降序
// 稳定排序 $or 分支，并对以 ^ 锚定、无 i/m 选项的正则给出前缀范围查询建议。
// 输入不会被修改，语义不变，只调整顺序。
//
// $or 的排序假设"约束越多的分支选择性越高"，只是一个粗略的起点，
// 未结合集合的基数统计；拥有统计信息的调用方可以自行替换。
//
// Optimizer 在 Analyze 之上把建议写入日志。
//
// # 查询埋点
//
// Tracker 是显式持有、注入使用的实例：
//
//	tracker, _ := xquery.NewTracker(xquery.WithLogger(logger))
//	err := tracker.Do(ctx, "find", "devices", func(ctx context.Context) error {
//	    _, err := coll.Find(ctx, filter)
//	    return err
//	})
//	docs, err := xquery.Track(ctx, tracker, "find", "devices", func(ctx context.Context) ([]bson.M, error) {
//	    ...
//	})
//
// 每次调用恰好记录一条 QueryMetric（成功、失败、panic 都一样），
// 被包装函数的错误原样返回。指标保存在定长环形缓冲区中，
// 可选按保留时长淘汰，避免长期运行的进程无限增长。
package xquery
