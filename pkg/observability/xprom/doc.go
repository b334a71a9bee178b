// Package xprom 以 Prometheus 格式导出 xdbtune 的运行状态。
//
// Collector 在每次抓取时读取各组件的当前值并生成常量指标，不持有额外状态：
//   - 查询累计计数：xquery.Tracker
//   - 连接池计数与事件：xmongo.PoolTracker
//   - 最近一次健康检查结果：xpoolmon.Monitor
//   - 索引使用记录规模：xindex.UsageRecorder
//
// 未配置的数据源不导出对应指标。
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(xprom.NewCollector(
//	    xprom.WithQueries(tracker),
//	    xprom.WithPool(poolTracker),
//	    xprom.WithHealth(monitor),
//	))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package xprom
