package main

import (
	"context"
	"runtime"

	"github.com/urfave/cli/v3"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/xdbtune/pkg/config/xconf"
	"github.com/omeyang/xdbtune/pkg/context/xenv"
	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
	"github.com/omeyang/xdbtune/pkg/storage/xindex"
	"github.com/omeyang/xdbtune/pkg/storage/xmongo"
	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

// session 一次命令执行所需的配置与基础设施。
type session struct {
	settings *xconf.Settings
	config   xconf.Config
	tier     xenv.Tier
	pool     xmongo.PoolConfig
	uri      xmongo.ConnectionURI

	logger   xlog.LoggerWithLevel
	closeLog func() error
	observer xmetrics.Observer
}

// loadSession 读取 --config 指定的配置（未指定时只用默认值与 XDBTUNE_ 环境变量），
// 构建日志器与连接参数。任何失败都包装为 configError。
func loadSession(cmd *cli.Command) (*session, error) {
	settings, cfg, err := loadSettings(cmd.String("config"))
	if err != nil {
		return nil, &configError{err: err}
	}
	tier, err := settings.TierValue()
	if err != nil {
		return nil, &configError{err: err}
	}

	cpus := cmd.Int("cpus")
	if cpus <= 0 {
		cpus = runtime.NumCPU()
	}
	pool := xmongo.ResolvePoolConfig(tier, cpus)

	uri, err := xmongo.BuildURI(xmongo.HostInfo{
		Hosts:      settings.Mongo.Hosts,
		Database:   settings.Mongo.Database,
		AuthSource: settings.Mongo.AuthSource,
		ReplicaSet: settings.Mongo.ReplicaSet,
		AppName:    settings.Mongo.AppName,
		SRV:        settings.Mongo.SRV,
	}, xmongo.Credentials{
		Username: settings.Mongo.Username,
		Password: settings.Mongo.Password,
	}, pool)
	if err != nil {
		return nil, &configError{err: err}
	}

	logger, closeLog, err := buildLogger(cmd, settings, tier)
	if err != nil {
		return nil, &configError{err: err}
	}

	observer, err := xmetrics.NewOTelObserver(xmetrics.WithInstrumentationName("github.com/omeyang/xdbtune/cmd/xdbtune"))
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	return &session{
		settings: settings,
		config:   cfg,
		tier:     tier,
		pool:     pool,
		uri:      uri,
		logger:   logger,
		closeLog: closeLog,
		observer: observer,
	}, nil
}

func loadSettings(path string) (*xconf.Settings, xconf.Config, error) {
	if path == "" {
		settings, err := xconf.LoadBytes(nil, xconf.FormatYAML)
		return settings, nil, err
	}
	return xconf.Load(path)
}

func buildLogger(cmd *cli.Command, settings *xconf.Settings, tier xenv.Tier) (xlog.LoggerWithLevel, func() error, error) {
	builder := xlog.New().
		SetOutput(cmd.Root().ErrWriter).
		SetLevelString(settings.Log.Level).
		SetFormat(settings.Log.Format).
		SetTier(tier)
	if settings.Log.File != "" {
		builder = builder.SetRotation(settings.Log.File, xlog.RotationOptions{
			MaxSizeMB:  settings.Log.MaxSizeMB,
			MaxBackups: settings.Log.MaxBackups,
		})
	}
	if cmd.Bool("verbose") {
		builder = builder.SetLevel(xlog.LevelDebug)
	}
	return builder.Build()
}

// close 释放日志器持有的文件。
func (s *session) close() {
	if s.closeLog != nil {
		_ = s.closeLog()
	}
}

// connect 按配置建立连接并 Ping 主节点。
func (s *session) connect(ctx context.Context) (*mongo.Client, *xmongo.PoolTracker, error) {
	return xmongo.Connect(ctx, s.uri, s.pool, xmongo.WithConnectLogger(s.logger))
}

// newTracker 按 query 段配置创建查询埋点。
func (s *session) newTracker() (*xquery.Tracker, error) {
	return xquery.NewTracker(
		xquery.WithSlowThreshold(s.settings.Query.SlowThreshold),
		xquery.WithCapacity(s.settings.Query.MetricsCapacity),
		xquery.WithRetention(s.settings.Query.MetricsRetention),
		xquery.WithVerbose(s.settings.Log.Verbose),
		xquery.WithLogger(s.logger),
		xquery.WithObserver(s.observer),
	)
}

// newManager 按 indexes 段配置创建索引管理器。
func (s *session) newManager() (*xindex.Manager, error) {
	provisioning, err := xindex.ProvisioningFromSettings(s.settings.Indexes)
	if err != nil {
		return nil, &configError{err: err}
	}
	return xindex.NewManager(
		xindex.WithProvisioning(provisioning),
		xindex.WithLogger(s.logger),
		xindex.WithObserver(s.observer),
	), nil
}

// database 返回配置中的数据库。
func (s *session) database(client *mongo.Client) *mongo.Database {
	return client.Database(s.settings.Mongo.Database)
}

// disconnect 在命令结束时断开连接，调用方 context 可能已取消。
func disconnect(ctx context.Context, client *mongo.Client) {
	_ = client.Disconnect(context.WithoutCancel(ctx))
}
