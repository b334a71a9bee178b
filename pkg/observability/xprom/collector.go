package xprom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omeyang/xdbtune/pkg/storage/xmongo"
	"github.com/omeyang/xdbtune/pkg/storage/xpoolmon"
	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

// DefaultNamespace 指标名前缀。
const DefaultNamespace = "xdbtune"

// QuerySource 查询累计计数来源，*xquery.Tracker 实现了该接口。
type QuerySource interface {
	Counters() xquery.Counters
}

// PoolSource 连接池计数来源，*xmongo.PoolTracker 实现了该接口。
type PoolSource interface {
	Counters() xmongo.PoolCounters
}

// HealthSource 健康检查结果来源，*xpoolmon.Monitor 实现了该接口。
type HealthSource interface {
	Last() xpoolmon.Status
}

// UsageSource 索引使用记录来源，*xindex.UsageRecorder 实现了该接口。
type UsageSource interface {
	Len() int
	Evicted() int64
}

// Option 配置 Collector。
type Option func(*Collector)

// WithNamespace 设置指标名前缀，空字符串被忽略。
func WithNamespace(ns string) Option {
	return func(c *Collector) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithQueries 导出查询计数。
func WithQueries(src QuerySource) Option {
	return func(c *Collector) { c.queries = src }
}

// WithPool 导出连接池计数。
func WithPool(src PoolSource) Option {
	return func(c *Collector) { c.pool = src }
}

// WithHealth 导出连接池健康状态。
func WithHealth(src HealthSource) Option {
	return func(c *Collector) { c.health = src }
}

// WithUsage 导出索引使用记录规模。
func WithUsage(src UsageSource) Option {
	return func(c *Collector) { c.usage = src }
}

// Collector 实现 prometheus.Collector。
type Collector struct {
	namespace string

	queries QuerySource
	pool    PoolSource
	health  HealthSource
	usage   UsageSource

	queriesTotal *prometheus.Desc
	queryErrors  *prometheus.Desc
	slowQueries  *prometheus.Desc

	poolConnections *prometheus.Desc
	poolMaxSize     *prometheus.Desc
	poolEvents      *prometheus.Desc

	poolHealth *prometheus.Desc

	usageRecords *prometheus.Desc
	usageEvicted *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建 Collector。
func NewCollector(opts ...Option) *Collector {
	c := &Collector{namespace: DefaultNamespace}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	name := func(subsystem, metric string) string {
		return prometheus.BuildFQName(c.namespace, subsystem, metric)
	}
	c.queriesTotal = prometheus.NewDesc(name("query", "total"),
		"Queries observed by the tracker.", nil, nil)
	c.queryErrors = prometheus.NewDesc(name("query", "errors_total"),
		"Queries that returned an error.", nil, nil)
	c.slowQueries = prometheus.NewDesc(name("query", "slow_total"),
		"Queries at or above the slow threshold.", nil, nil)

	c.poolConnections = prometheus.NewDesc(name("pool", "connections"),
		"Connection pool connections by state.", []string{"state"}, nil)
	c.poolMaxSize = prometheus.NewDesc(name("pool", "max_size"),
		"Sum of maxPoolSize over all server pools.", nil, nil)
	c.poolEvents = prometheus.NewDesc(name("pool", "events_total"),
		"Connection pool events by type.", []string{"event"}, nil)

	c.poolHealth = prometheus.NewDesc(name("pool", "health"),
		"Last pool health check result, 1 for the current state.", []string{"state"}, nil)

	c.usageRecords = prometheus.NewDesc(name("index_usage", "records"),
		"Tracked (collection, field) usage records.", nil, nil)
	c.usageEvicted = prometheus.NewDesc(name("index_usage", "evicted_total"),
		"Usage records evicted by the LRU bound.", nil, nil)
	return c
}

// Describe 实现 prometheus.Collector，只描述已配置数据源的指标。
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	if c.queries != nil {
		ch <- c.queriesTotal
		ch <- c.queryErrors
		ch <- c.slowQueries
	}
	if c.pool != nil {
		ch <- c.poolConnections
		ch <- c.poolMaxSize
		ch <- c.poolEvents
	}
	if c.health != nil {
		ch <- c.poolHealth
	}
	if c.usage != nil {
		ch <- c.usageRecords
		ch <- c.usageEvicted
	}
}

// Collect 实现 prometheus.Collector。
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.queries != nil {
		q := c.queries.Counters()
		ch <- prometheus.MustNewConstMetric(c.queriesTotal, prometheus.CounterValue, float64(q.Queries))
		ch <- prometheus.MustNewConstMetric(c.queryErrors, prometheus.CounterValue, float64(q.Errors))
		ch <- prometheus.MustNewConstMetric(c.slowQueries, prometheus.CounterValue, float64(q.Slow))
	}
	if c.pool != nil {
		c.collectPool(ch, c.pool.Counters())
	}
	if c.health != nil {
		last := c.health.Last()
		for _, state := range []xpoolmon.State{xpoolmon.StateHealthy, xpoolmon.StateDegraded, xpoolmon.StateDown} {
			ch <- prometheus.MustNewConstMetric(c.poolHealth, prometheus.GaugeValue,
				boolValue(last.State == state), string(state))
		}
	}
	if c.usage != nil {
		ch <- prometheus.MustNewConstMetric(c.usageRecords, prometheus.GaugeValue, float64(c.usage.Len()))
		ch <- prometheus.MustNewConstMetric(c.usageEvicted, prometheus.CounterValue, float64(c.usage.Evicted()))
	}
}

func (c *Collector) collectPool(ch chan<- prometheus.Metric, p xmongo.PoolCounters) {
	for _, g := range []struct {
		state string
		value int64
	}{
		{"open", p.Open},
		{"in_use", p.InUse},
		{"waiting", p.Waiting},
	} {
		ch <- prometheus.MustNewConstMetric(c.poolConnections, prometheus.GaugeValue, float64(g.value), g.state)
	}
	ch <- prometheus.MustNewConstMetric(c.poolMaxSize, prometheus.GaugeValue, float64(p.MaxPoolSize))

	for _, e := range []struct {
		event string
		value int64
	}{
		{"created", p.Created},
		{"closed", p.Closed},
		{"checkout_failed", p.CheckOutFailed},
		{"cleared", p.Cleared},
	} {
		ch <- prometheus.MustNewConstMetric(c.poolEvents, prometheus.CounterValue, float64(e.value), e.event)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
