// Package context 提供运行环境相关的子包。
//
// 子包列表：
//   - xenv: 部署层级（test/development/production）解析与检测
package context
