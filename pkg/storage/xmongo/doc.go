// Package xmongo 提供 MongoDB 连接配置与查询访问层。
//
// # 连接
//
// ResolvePoolConfig 按部署层级与 CPU 数给出连接池参数，BuildURI 把连接目标、
// 认证信息与连接池参数拼成连接串，Connect 用它建立客户端并挂上 PoolTracker：
//
//	cfg := xmongo.DefaultPoolConfig(xenv.TierProduction)
//	uri, err := xmongo.BuildURI(xmongo.HostInfo{Hosts: hosts, Database: "app"}, cred, cfg)
//	client, tracker, err := xmongo.Connect(ctx, uri, cfg, xmongo.WithConnectLogger(logger))
//
// ConnectionURI 的 String、%v、%#v 与 slog 输出都是脱敏形式，只有 Raw 含密码。
//
// # 访问层
//
// New 返回的 Mongo 不包装驱动的全部 API，只提供：
//   - Health / Stats / Close
//   - OffsetPage：页码分页，可选统计总数
//   - KeyPage：键集分页，按排序字段的上一页最后值翻页，深翻页代价恒定
//   - BatchFind：按 ID 列表分块 $in 查询，去重，可并行
//   - Explain：读取 executionStats 并提炼为 PlanStats
//
// 每次查询先经 xquery.Optimizer 改写过滤条件，再把谓词字段交给 xindex.UsageRecorder，
// 最后由 xquery.Tracker 计时。三者均可选，通过 WithOptimizer、WithUsageRecorder、
// WithTracker 挂入。通过 Client() 直接执行的操作不经过这条管线。
//
// Close 可重复调用，首次断连，后续返回 ErrClosed；Close 之后除 Client 和 Stats
// 外的方法都返回 ErrClosed。并发安全。
//
// # 超时兜底
//
// 查询类方法仅在调用方 context 没有 deadline 时加上 QueryTimeout（默认 30 秒），
// WithQueryTimeout(0) 关闭兜底。
//
// # Explain 降级
//
// Explain 永不返回 error：驱动错误、解析失败与熔断打开都体现为
// PlanResult.Available=false 与 Reason。连续失败 ExplainFailures 次后熔断，
// 冷却 ExplainCooldown 后放行一次探测。调用方自己的 context 取消或到期不计入失败，
// 内部兜底超时计入失败。
//
// 设计决策: 诊断功能不应拖垮业务查询，因此 Explain 失败只记 Warn 日志。
//
// # 连接池监控
//
// PoolTracker 以驱动连接池事件维护计数，PoolSource 把它与 Ping 组合成
// xpoolmon.Source，交给 xpoolmon.Monitor 做健康判定。
package xmongo
