package xmongo

import (
	"context"
	"math"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/xdbtune/pkg/storage/xpoolmon"
)

type pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// PoolSource 以驱动 Ping 与连接池事件计数实现 xpoolmon.Source。
type PoolSource struct {
	pinger  pinger
	tracker *PoolTracker
}

var _ xpoolmon.Source = (*PoolSource)(nil)

// NewPoolSource 创建连接池健康监控的数据源。
// tracker 必须已通过 Connect 挂到 client 上，否则计数恒为 0，监控会判定为 down。
func NewPoolSource(client *mongo.Client, tracker *PoolTracker) (*PoolSource, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if tracker == nil {
		return nil, xpoolmon.ErrNilSource
	}
	return &PoolSource{pinger: client, tracker: tracker}, nil
}

// Ping 探测主节点可达性。
func (s *PoolSource) Ping(ctx context.Context) error {
	return s.pinger.Ping(ctx, readpref.Primary())
}

// Snapshot 返回当前连接池计数。
//
// 设计决策: maxPoolSize 是单个服务器连接池的上限，饱和度必须按单个连接池判断，
// 因此 ActiveConnections 与 MaxPoolSize 取自负载最高的连接池（见 PoolTracker.Busiest）；
// PoolSize 与 WaitingQueueLength 取所有连接池之和，任一连接池有连接即可达，任一排队即降级。
func (s *PoolSource) Snapshot() xpoolmon.Snapshot {
	c := s.tracker.Counters()
	snap := xpoolmon.Snapshot{
		PoolSize:           clampInt(c.Open),
		WaitingQueueLength: clampInt(c.Waiting),
	}
	if busiest, ok := s.tracker.Busiest(); ok {
		snap.ActiveConnections = clampInt(busiest.InUse)
		snap.MaxPoolSize = clampInt(busiest.MaxPoolSize)
	}
	return snap
}

func clampInt(n int64) int {
	return int(min(n, math.MaxInt32))
}
