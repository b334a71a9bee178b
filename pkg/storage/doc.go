// Package storage 提供 MongoDB 访问优化相关的子包。
//
// 子包列表：
//   - xmongo: 连接池配置、连接串构建、分页、批量查询与查询计划分析
//   - xquery: 查询埋点、慢查询检测与查询形状优化
//   - xindex: 按集合角色建立常用索引，记录索引使用情况并给出建议
//   - xpoolmon: 连接池健康监控
//
// 设计原则：
//   - 依赖 mongo-driver v2 的公开 API，不包装 Client 本身
//   - 内置可观测性（指标、追踪、结构化日志）
//   - 组件之间通过小接口解耦，便于单元测试替换
package storage
