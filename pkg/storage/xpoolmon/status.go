package xpoolmon

import (
	"context"
	"log/slog"
	"time"
)

//go:generate mockgen -source=status.go -destination=mock_source_test.go -package=xpoolmon

// State 连接池健康状态。
type State string

// 连接池健康状态。
const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// 运维建议，由最近一次的状态决定。
const (
	RecommendHealthy  = "operating normally"
	RecommendDegraded = "increase maxPoolSize"
	RecommendDown     = "check connectivity"
)

// saturationPercent 活跃连接达到 maxPoolSize 的该百分比即视为降级。
const saturationPercent = 90

// Snapshot 连接池计数快照。
type Snapshot struct {
	// PoolSize 当前打开的连接数。
	PoolSize int
	// ActiveConnections 已借出的连接数。
	ActiveConnections int
	// WaitingQueueLength 正在等待借出连接的请求数。
	WaitingQueueLength int
	// MaxPoolSize 连接池上限，0 表示未知，此时不做饱和判断。
	MaxPoolSize int
}

// Source 连接池数据源。xmongo.PoolSource 是基于驱动事件的实现。
type Source interface {
	// Ping 探测连接是否可达。
	Ping(ctx context.Context) error
	// Snapshot 返回当前计数。
	Snapshot() Snapshot
}

// Status 一次检查的结果。
type Status struct {
	State State
	Snapshot
	CheckedAt time.Time
	// Err 不可达时的原因。
	Err error
}

// LogValue 实现 slog.LogValuer。
func (s Status) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("state", string(s.State)),
		slog.Int("pool_size", s.PoolSize),
		slog.Int("active", s.ActiveConnections),
		slog.Int("waiting", s.WaitingQueueLength),
		slog.Int("max_pool_size", s.MaxPoolSize),
	}
	if s.Err != nil {
		attrs = append(attrs, slog.String("error", s.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Classify 根据快照与可达性判定状态。每次独立计算，没有滞回。
//
//   - 不可达或 PoolSize == 0：down
//   - ActiveConnections >= 90% MaxPoolSize，或有请求在排队：degraded
//   - 其他：healthy
func Classify(snap Snapshot, reachable bool) State {
	if !reachable || snap.PoolSize <= 0 {
		return StateDown
	}
	if snap.WaitingQueueLength > 0 {
		return StateDegraded
	}
	// 整数比较，避免 0.9 的浮点误差
	if snap.MaxPoolSize > 0 && snap.ActiveConnections*100 >= snap.MaxPoolSize*saturationPercent {
		return StateDegraded
	}
	return StateHealthy
}

// Recommend 返回状态对应的运维建议。
func Recommend(state State) string {
	switch state {
	case StateDegraded:
		return RecommendDegraded
	case StateDown:
		return RecommendDown
	default:
		return RecommendHealthy
	}
}
