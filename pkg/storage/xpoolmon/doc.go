// Package xpoolmon 监控连接池健康状态。
//
// 状态机只有三个状态，每次检查独立计算：
//
//	down      不可达，或连接池没有连接
//	degraded  活跃连接 >= 90% maxPoolSize，或有请求在等待连接
//	healthy   其他情况（也是首次检查前的初始值）
//
// Check 的可达性探测通过 retry-go 重试，Start 通过 cron 定时执行 Check。
// Recommendation 只依赖最近一次状态：
// "operating normally"、"increase maxPoolSize"、"check connectivity"。
//
// 数据源由 Source 接口抽象，xmongo.PoolSource 基于驱动的连接池事件实现。
package xpoolmon
