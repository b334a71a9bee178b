package xmongo

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/omeyang/xdbtune/pkg/context/xenv"
)

// PoolConfig 连接池与超时参数。启动后不再变化。
type PoolConfig struct {
	MaxPoolSize uint64
	MinPoolSize uint64

	MaxIdleTime            time.Duration
	WaitQueueTimeout       time.Duration
	SocketTimeout          time.Duration
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration

	RetryWrites bool
	RetryReads  bool

	// Compressors 按优先级排列的线协议压缩算法，为空表示不压缩。
	Compressors []string
}

// defaultCompressors 开发与生产环境启用的压缩算法。
var defaultCompressors = []string{"zstd", "zlib", "snappy"}

// ResolvePoolConfig 根据部署层级与 CPU 数计算连接池配置。纯函数，任何输入都有结果。
//
//   - test：5/1，超时不超过 10s，关闭重试与压缩
//   - development：10/2，超时 10~30s
//   - production：2×cpus+1 / cpus，超时 10~45s
//
// 未知层级按 development 处理，cpus < 1 按 1 处理。
//
// 设计决策: 生产环境 2N+1 在稳态并发 IO 之外为健康检查等连接留出余量。
func ResolvePoolConfig(tier xenv.Tier, cpus int) PoolConfig {
	n := uint64(max(cpus, 1))

	switch tier {
	case xenv.TierTest:
		return PoolConfig{
			MaxPoolSize:            5,
			MinPoolSize:            1,
			MaxIdleTime:            10 * time.Second,
			WaitQueueTimeout:       5 * time.Second,
			SocketTimeout:          10 * time.Second,
			ConnectTimeout:         5 * time.Second,
			ServerSelectionTimeout: 5 * time.Second,
		}
	case xenv.TierProduction:
		return PoolConfig{
			MaxPoolSize:            2*n + 1,
			MinPoolSize:            n,
			MaxIdleTime:            45 * time.Second,
			WaitQueueTimeout:       15 * time.Second,
			SocketTimeout:          45 * time.Second,
			ConnectTimeout:         10 * time.Second,
			ServerSelectionTimeout: 30 * time.Second,
			RetryWrites:            true,
			RetryReads:             true,
			Compressors:            slices.Clone(defaultCompressors),
		}
	default:
		return PoolConfig{
			MaxPoolSize:            10,
			MinPoolSize:            2,
			MaxIdleTime:            30 * time.Second,
			WaitQueueTimeout:       10 * time.Second,
			SocketTimeout:          30 * time.Second,
			ConnectTimeout:         10 * time.Second,
			ServerSelectionTimeout: 15 * time.Second,
			RetryWrites:            true,
			RetryReads:             true,
			Compressors:            slices.Clone(defaultCompressors),
		}
	}
}

// DefaultPoolConfig 使用当前机器的 CPU 数计算连接池配置。
func DefaultPoolConfig(tier xenv.Tier) PoolConfig {
	return ResolvePoolConfig(tier, runtime.NumCPU())
}

// Validate 校验 1 <= MinPoolSize <= MaxPoolSize 且各超时为正。
func (c PoolConfig) Validate() error {
	var errs []error
	if c.MinPoolSize < 1 {
		errs = append(errs, errors.New("minPoolSize must be >= 1"))
	}
	if c.MinPoolSize > c.MaxPoolSize {
		errs = append(errs, fmt.Errorf("minPoolSize %d exceeds maxPoolSize %d", c.MinPoolSize, c.MaxPoolSize))
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"maxIdleTime", c.MaxIdleTime},
		{"waitQueueTimeout", c.WaitQueueTimeout},
		{"socketTimeout", c.SocketTimeout},
		{"connectTimeout", c.ConnectTimeout},
		{"serverSelectionTimeout", c.ServerSelectionTimeout},
	} {
		if t.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", t.name))
		}
	}
	for _, comp := range c.Compressors {
		switch comp {
		case "zstd", "zlib", "snappy":
		default:
			errs = append(errs, fmt.Errorf("unsupported compressor %q", comp))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// LogValue 实现 slog.LogValuer。
func (c PoolConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("max_pool_size", c.MaxPoolSize),
		slog.Uint64("min_pool_size", c.MinPoolSize),
		slog.Duration("max_idle_time", c.MaxIdleTime),
		slog.Duration("wait_queue_timeout", c.WaitQueueTimeout),
		slog.Duration("socket_timeout", c.SocketTimeout),
		slog.Duration("connect_timeout", c.ConnectTimeout),
		slog.Duration("server_selection_timeout", c.ServerSelectionTimeout),
		slog.Bool("retry_writes", c.RetryWrites),
		slog.Bool("retry_reads", c.RetryReads),
		slog.String("compressors", strings.Join(c.Compressors, ",")),
	)
}
