// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持按大小轮转
//   - xmetrics: 统一可观测性接口（指标、追踪），OpenTelemetry 实现
//   - xprom: 将查询、连接池与健康状态导出为 Prometheus 指标
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 敏感信息（密码、连接串）在日志中一律脱敏
//   - 支持动态级别控制
package observability
