// Package storageopt 提供 storage 子包共享的查询度量内核。
//
// 本包是 internal 包，仅供 pkg/storage 下的子包（xmongo、xquery、xindex、xpoolmon）使用。
// 外部用户不应直接导入此包。
//
// 主要功能：
//   - 超时工具：健康检查超时、无 deadline 时的兜底超时
//   - 分页参数验证与键集分页谓词构建
//   - 慢查询检测器（阈值可热更新）
//   - 原子结果计数器 OutcomeCounter（Ping 与查询的累计次数、失败次数）
//   - 定长环形缓冲区 Ring，用于有界保存查询指标
package storageopt
