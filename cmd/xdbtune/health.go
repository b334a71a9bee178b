package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xdbtune/pkg/config/xconf"
	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xprom"
	"github.com/omeyang/xdbtune/pkg/storage/xmongo"
	"github.com/omeyang/xdbtune/pkg/storage/xpoolmon"
)

// metricsShutdownTimeout 指标服务关闭的最长等待时间。
const metricsShutdownTimeout = 5 * time.Second

func createHealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "检查连接池健康状态；--watch 时按 health.interval 持续检查直到中断",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "持续检查，状态变化时输出",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "--watch 时在该地址暴露 Prometheus /metrics，如 :9216",
			},
		},
		Action: withSession(cmdHealth),
	}
}

// cmdHealth 检查连接池健康状态。
// 设计决策: 单次检查 down 时返回非零退出码（通过 exitError），便于脚本和探针判断。
func cmdHealth(ctx context.Context, cmd *cli.Command, s *session) error {
	connectCtx, cancel := commandContext(ctx, cmd)
	client, tracker, err := s.connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}
	defer disconnect(ctx, client)

	source, err := xmongo.NewPoolSource(client, tracker)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	opts := []xpoolmon.Option{
		xpoolmon.WithInterval(s.settings.Health.Interval),
		xpoolmon.WithTimeout(s.settings.Health.Timeout),
		xpoolmon.WithRetries(s.settings.Health.Retries),
		xpoolmon.WithLogger(s.logger),
		xpoolmon.WithObserver(s.observer),
	}
	if !cmd.Bool("watch") {
		monitor, err := xpoolmon.New(source, opts...)
		if err != nil {
			return err
		}
		status := monitor.Check(ctx)
		printStatus(w, status)
		if status.State == xpoolmon.StateDown {
			return &exitError{code: exitFailure}
		}
		return nil
	}

	opts = append(opts, xpoolmon.WithOnChange(func(_, to xpoolmon.Status) {
		printStatus(w, to)
	}))
	monitor, err := xpoolmon.New(source, opts...)
	if err != nil {
		return err
	}
	return watchHealth(ctx, cmd, s, monitor, tracker)
}

func watchHealth(ctx context.Context, cmd *cli.Command, s *session, monitor *xpoolmon.Monitor, tracker *xmongo.PoolTracker) error {
	printStatus(cmd.Root().Writer, monitor.Check(ctx))
	if err := monitor.Start(); err != nil {
		return err
	}
	defer monitor.Stop()

	if s.config != nil {
		watcher, err := xconf.Watch(s.config, reloadLogLevel(ctx, s.logger))
		if err != nil {
			return err
		}
		watcher.StartAsync()
		defer func() { _ = watcher.Stop() }()
	}

	if addr := cmd.String("metrics-addr"); addr != "" {
		stop, err := serveMetrics(ctx, addr, s.logger, xprom.NewCollector(
			xprom.WithPool(tracker),
			xprom.WithHealth(monitor),
		))
		if err != nil {
			return err
		}
		defer stop()
	}

	<-ctx.Done()
	return nil
}

// reloadLogLevel 配置文件变化时热更新日志级别，其余配置需要重启生效。
func reloadLogLevel(ctx context.Context, logger xlog.LoggerWithLevel) xconf.ReloadFunc {
	return func(settings *xconf.Settings, err error) {
		if err != nil {
			logger.Warn(ctx, "config reload rejected", xlog.Err(err))
			return
		}
		level, err := xlog.ParseLevel(settings.Log.Level)
		if err != nil {
			return
		}
		logger.SetLevel(level)
		logger.Info(ctx, "log level reloaded", slog.String("level", level.String()))
	}
}

// serveMetrics 在 addr 上暴露 /metrics，返回关闭函数。
func serveMetrics(ctx context.Context, addr string, logger xlog.Logger, collector prometheus.Collector) (func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "metrics server failed", xlog.Err(err))
		}
	}()
	logger.Info(ctx, "metrics server listening", slog.String("addr", ln.Addr().String()))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		<-done
	}, nil
}

func printStatus(w io.Writer, status xpoolmon.Status) {
	fmt.Fprintf(w, "%s state=%s pool=%d active=%d waiting=%d max=%d recommendation=%q",
		status.CheckedAt.Format(time.RFC3339),
		status.State,
		status.PoolSize,
		status.ActiveConnections,
		status.WaitingQueueLength,
		status.MaxPoolSize,
		xpoolmon.Recommend(status.State),
	)
	if status.Err != nil {
		fmt.Fprintf(w, " error=%q", status.Err.Error())
	}
	fmt.Fprintln(w)
}
