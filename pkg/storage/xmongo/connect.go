package xmongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/xdbtune/pkg/observability/xlog"
)

// ConnectOption 配置 Connect。
type ConnectOption func(*connectOptions)

type connectOptions struct {
	tracker *PoolTracker
	logger  xlog.Logger
	client  []func(*options.ClientOptions)
}

// WithConnectLogger 设置连接过程的日志器。
func WithConnectLogger(logger xlog.Logger) ConnectOption {
	return func(o *connectOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClientOptions 在 URI 之后追加驱动选项，如 TLS、命令监听。
func WithClientOptions(fn func(*options.ClientOptions)) ConnectOption {
	return func(o *connectOptions) {
		if fn != nil {
			o.client = append(o.client, fn)
		}
	}
}

// Connect 按连接串建立客户端，挂上连接池事件统计，并在 ConnectTimeout 内 Ping 主节点。
//
// Ping 失败时断开客户端并返回错误。返回的 PoolTracker 可交给 WithPoolTracker
// 与 NewPoolSource，分别用于统计与健康监控。
func Connect(ctx context.Context, uri ConnectionURI, cfg PoolConfig, opts ...ConnectOption) (*mongo.Client, *PoolTracker, error) {
	if ctx == nil {
		return nil, nil, ErrNilContext
	}
	if uri.IsZero() {
		return nil, nil, fmt.Errorf("%w: empty connection uri", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	o := &connectOptions{logger: xlog.Discard(), tracker: NewPoolTracker()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	clientOpts := options.Client().ApplyURI(uri.Raw()).SetPoolMonitor(o.tracker.Monitor())
	for _, fn := range o.client {
		fn(clientOpts)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("xmongo connect %s: %w", uri, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, nil, fmt.Errorf("xmongo connect ping %s: %w", uri, err)
	}

	o.logger.Info(ctx, "mongo connected", xlog.Component(mongoComponent),
		slog.Any("endpoint", uri), slog.Any("pool", cfg))
	return client, o.tracker, nil
}
