package xmongo

import "github.com/omeyang/xdbtune/pkg/storage/xquery"

// Stats 包含 MongoDB 包装器的统计信息。
type Stats struct {
	// PingCount 健康检查次数。
	PingCount int64

	// PingErrors 健康检查失败次数。
	PingErrors int64

	// Sessions 进行中的会话数（mongo.Client.NumberSessionsInProgress）。
	Sessions int

	// Pool 连接池事件计数。未设置 WithPoolTracker 时为零值。
	Pool PoolCounters

	// Queries 查询埋点的累计计数。未设置 WithTracker 时为零值。
	Queries xquery.Counters
}
