package storageopt

import (
	"sync/atomic"
	"time"
)

// OutcomeCounter 按结果累计操作次数，零值可用，可并发调用。
//
// xquery.Tracker 用它累计查询与失败次数，xmongo 用它累计 Ping 与失败次数。
// 计数单调递增，与 Tracker 的有界指标窗口互补：窗口淘汰旧指标后，
// 累计值仍可供 Prometheus 以 counter 语义导出。
type OutcomeCounter struct {
	total  atomic.Int64
	failed atomic.Int64
}

// Observe 记录一次操作，failed 为 true 时同时累计失败次数。
func (c *OutcomeCounter) Observe(failed bool) {
	c.total.Add(1)
	if failed {
		c.failed.Add(1)
	}
}

// Total 返回累计操作次数。
func (c *OutcomeCounter) Total() int64 { return c.total.Load() }

// Failed 返回累计失败次数。
func (c *OutcomeCounter) Failed() int64 { return c.failed.Load() }

// RoundMillis 将耗时转换为四舍五入后的整数毫秒。
func RoundMillis(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}
