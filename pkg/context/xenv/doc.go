// Package xenv 提供部署层级（Tier）的解析。
//
// # 核心理念
//
// 部署层级在进程启动时确定，整个生命周期内不变，决定连接池规模、超时和重试策略。
//
// # 支持的层级
//
//   - test: 测试环境，小连接池、短超时、关闭重试
//   - development: 开发环境，中等规模
//   - production: 生产环境，按 CPU 数量伸缩
//
// # 环境变量
//
//   - XDBTUNE_TIER: 部署层级（大小写不敏感）
//
// 使用示例：
//
//	tier, err := xenv.FromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg := xmongo.ResolvePoolConfig(tier, runtime.NumCPU())
package xenv
