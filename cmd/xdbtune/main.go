// xdbtune 是 MongoDB 访问层的运维命令行工具。
//
// 用法:
//
//	xdbtune [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   配置文件路径（.yaml/.yml/.json），也可通过 XDBTUNE_CONFIG 指定；
//	               未指定时只使用默认值与 XDBTUNE_ 前缀的环境变量
//	-t, --timeout  单次命令超时时间 (默认: 30s，health --watch 只作用于建立连接)
//	    --cpus     计算连接池大小所用的 CPU 数 (默认: 本机 CPU 数)
//	    --verbose  输出 Debug 日志
//
// 命令:
//
//	pool               打印连接池配置与脱敏连接串（不连接数据库）
//	ensure-indexes     按集合角色建立常用索引
//	index-stats        列出集合的索引与大小
//	explain            分析查询计划
//	health             检查连接池健康状态，--watch 持续检查
//	suggest            按查询模式文件建议索引（不连接数据库）
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败（health: 连接池 down；explain: 查询计划不可用）
//	2: 配置错误或参数错误
//
// 示例:
//
//	XDBTUNE_TIER=production xdbtune pool --cpus 8
//	xdbtune -c xdbtune.yaml ensure-indexes orders users
//	xdbtune -c xdbtune.yaml explain orders '{"user_id": "u1", "is_paid": true}'
//	xdbtune -c xdbtune.yaml health --watch --metrics-addr :9216
//	xdbtune suggest patterns.jsonl
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

// defaultTimeout 默认超时时间。
const defaultTimeout = 30 * time.Second

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xdbtune",
		Usage:   "MongoDB 连接池、索引与查询计划运维工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径",
				Sources: cli.EnvVars("XDBTUNE_CONFIG"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "单次命令超时时间",
				Value:   defaultTimeout,
			},
			&cli.IntFlag{
				Name:  "cpus",
				Usage: "计算连接池大小所用的 CPU 数，<= 0 使用本机 CPU 数",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "输出 Debug 日志",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, cmd *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(cmd.Root().ErrWriter, err)
			}
		},
	}
}

func run(args []string) int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	return exitCode(app.Run(ctx, args), os.Stderr)
}

// setupSignalHandler 设置信号处理。
// 设计决策: 第一次信号优雅取消（health --watch 借此退出），
// 第二次信号强制退出（退出码 130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
