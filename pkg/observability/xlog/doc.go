// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、轮转）
//   - 动态级别调整（配置热更新时直接 SetLevel）
//   - 默认开启凭据脱敏：password、uri 等字段以及日志文本中的连接串密码
//   - 部署层级固定属性
//
// # 创建 Logger
//
// Builder 采用 first-error-wins：遇到第一个配置错误后，Build 返回该错误。
//
//	logger, cleanup, err := xlog.New().
//	    SetLevelString("info").
//	    SetFormat("json").
//	    SetRotation("/var/log/xdbtune.log", xlog.RotationOptions{MaxSizeMB: 100}).
//	    Build()
//	defer cleanup()
//
// 库代码接收 Logger 接口，未注入时使用 [Discard]。
package xlog
