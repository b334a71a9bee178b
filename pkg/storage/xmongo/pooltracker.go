package xmongo

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/event"
)

// PoolTracker 通过驱动的连接池事件统计连接数。
//
// 驱动 v2 不直接暴露连接池计数，PoolTracker 作为 event.PoolMonitor
// 挂到客户端上，由事件增减计数。驱动为每个服务器维护一个连接池，
// 计数按 PoolEvent.Address 分开记录：Counters 返回汇总值，Busiest 返回负载最高的单个连接池。
type PoolTracker struct {
	mu    sync.Mutex
	pools map[string]*PoolLoad

	created        atomic.Int64
	closed         atomic.Int64
	checkOutFailed atomic.Int64
	cleared        atomic.Int64
}

// PoolCounters 连接池计数快照（所有服务器连接池的汇总）。
type PoolCounters struct {
	// Open 当前打开的连接数。
	Open int64
	// InUse 已借出的连接数。
	InUse int64
	// Waiting 正在等待借出连接的请求数。
	Waiting int64
	// MaxPoolSize 所有连接池 maxPoolSize 之和。
	MaxPoolSize int64

	Created        int64
	Closed         int64
	CheckOutFailed int64
	Cleared        int64
}

// PoolLoad 单个服务器连接池的负载。
type PoolLoad struct {
	Address     string
	Open        int64
	InUse       int64
	Waiting     int64
	MaxPoolSize int64
}

// NewPoolTracker 创建连接池事件统计器。
func NewPoolTracker() *PoolTracker {
	return &PoolTracker{pools: make(map[string]*PoolLoad)}
}

// Monitor 返回挂到 options.Client().SetPoolMonitor 上的监听器。
func (t *PoolTracker) Monitor() *event.PoolMonitor {
	return &event.PoolMonitor{Event: t.handle}
}

func (t *PoolTracker) handle(e *event.PoolEvent) {
	if e == nil {
		return
	}
	switch e.Type {
	case event.ConnectionPoolCleared:
		t.cleared.Add(1)
		return
	case event.ConnectionCreated:
		t.created.Add(1)
	case event.ConnectionClosed:
		t.closed.Add(1)
	case event.ConnectionCheckOutFailed:
		t.checkOutFailed.Add(1)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pools == nil {
		t.pools = make(map[string]*PoolLoad)
	}

	switch e.Type {
	case event.ConnectionPoolCreated:
		// 同一地址的连接池重建时从零开始计数
		load := &PoolLoad{Address: e.Address}
		if e.PoolOptions != nil {
			load.MaxPoolSize = int64(e.PoolOptions.MaxPoolSize)
		}
		t.pools[e.Address] = load
		return
	case event.ConnectionPoolClosed:
		delete(t.pools, e.Address)
		return
	}

	load := t.pool(e.Address)
	switch e.Type {
	case event.ConnectionCreated:
		load.Open++
	case event.ConnectionClosed:
		load.Open--
	case event.ConnectionCheckOutStarted:
		load.Waiting++
	case event.ConnectionCheckedOut:
		load.Waiting--
		load.InUse++
	case event.ConnectionCheckOutFailed:
		load.Waiting--
	case event.ConnectionCheckedIn:
		load.InUse--
	}
}

// pool 返回地址对应的连接池计数，调用方持有 mu。
func (t *PoolTracker) pool(addr string) *PoolLoad {
	load, ok := t.pools[addr]
	if !ok {
		load = &PoolLoad{Address: addr}
		t.pools[addr] = load
	}
	return load
}

// loads 返回各连接池负载的副本（负数截断为 0），按地址排序。
func (t *PoolTracker) loads() []PoolLoad {
	t.mu.Lock()
	out := make([]PoolLoad, 0, len(t.pools))
	for _, p := range t.pools {
		out = append(out, PoolLoad{
			Address:     p.Address,
			Open:        max(p.Open, 0),
			InUse:       max(p.InUse, 0),
			Waiting:     max(p.Waiting, 0),
			MaxPoolSize: max(p.MaxPoolSize, 0),
		})
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b PoolLoad) int { return strings.Compare(a.Address, b.Address) })
	return out
}

// Counters 返回所有连接池的汇总计数。
func (t *PoolTracker) Counters() PoolCounters {
	c := PoolCounters{
		Created:        t.created.Load(),
		Closed:         t.closed.Load(),
		CheckOutFailed: t.checkOutFailed.Load(),
		Cleared:        t.cleared.Load(),
	}
	for _, p := range t.loads() {
		c.Open += p.Open
		c.InUse += p.InUse
		c.Waiting += p.Waiting
		c.MaxPoolSize += p.MaxPoolSize
	}
	return c
}

// Pools 返回各连接池的负载，按地址排序。
func (t *PoolTracker) Pools() []PoolLoad {
	return t.loads()
}

// Busiest 返回负载最高的连接池；没有连接池时 ok 为 false。
//
// 有排队请求的连接池优先，其次比较 InUse/MaxPoolSize 占比，再比较 InUse。
// 占比相同时取地址序靠前的连接池，保证结果稳定。
func (t *PoolTracker) Busiest() (load PoolLoad, ok bool) {
	for _, p := range t.loads() {
		if !ok || busier(p, load) {
			load, ok = p, true
		}
	}
	return load, ok
}

func busier(a, b PoolLoad) bool {
	if (a.Waiting > 0) != (b.Waiting > 0) {
		return a.Waiting > 0
	}
	if a.MaxPoolSize > 0 && b.MaxPoolSize > 0 {
		// 交叉相乘比较占比，避免浮点
		if l, r := a.InUse*b.MaxPoolSize, b.InUse*a.MaxPoolSize; l != r {
			return l > r
		}
	}
	return a.InUse > b.InUse
}
