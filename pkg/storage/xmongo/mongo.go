package xmongo

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/xdbtune/internal/storageopt"
)

// =============================================================================
// 接口定义
// =============================================================================

// Mongo 定义 MongoDB 访问优化层接口。
// 只提供 mongo.Client 原生不具备的增值功能，基础操作请直接使用 Client()。
//
// 分页、批量查询与执行计划分析在下发前依次经过：查询条件优化（Optimizer）、
// 谓词字段记录（UsageRecorder）、查询埋点（Tracker）。三者均为可选注入。
type Mongo interface {
	// Client 返回底层的 mongo.Client。
	Client() *mongo.Client

	// Health 通过 Ping 主节点检测连接状态。
	Health(ctx context.Context) error

	// Stats 返回健康检查计数与连接池计数。
	Stats() Stats

	// Close 断开连接。重复调用返回 ErrClosed。
	Close(ctx context.Context) error

	// OffsetPage 偏移分页，skip = (Page-1) × Limit。
	// 服务端扫描代价随页深线性增长，只适合浅分页。
	OffsetPage(ctx context.Context, coll *mongo.Collection, filter bson.M, opts OffsetOptions) (*PageResult, error)

	// KeyPage 键集分页，以上一页最后一条的排序键作为续接状态。
	// 代价与页深无关，适合大集合的深分页。
	KeyPage(ctx context.Context, coll *mongo.Collection, filter bson.M, opts KeyOptions) (*KeyPageResult, error)

	// BatchFind 按键列表分批 $in 查询。结果去重后的并集，跨批次顺序不保证。
	BatchFind(ctx context.Context, coll *mongo.Collection, ids []any, opts BatchOptions) ([]bson.M, error)

	// Explain 尽力而为的执行计划分析。失败时 Available 为 false，从不返回错误。
	Explain(ctx context.Context, coll *mongo.Collection, filter bson.M) PlanResult
}

// =============================================================================
// 偏移分页类型
// =============================================================================

// OffsetOptions 偏移分页选项。
type OffsetOptions struct {
	// Page 页码，从 1 开始。
	Page int64

	// Limit 每页大小，上限 MaxPageSize。
	Limit int64

	// Sort 排序条件，例如 bson.D{{Key: "created_at", Value: -1}}。
	//
	// 强烈建议指定。未排序时 MongoDB 不保证顺序，翻页可能重复或遗漏。
	Sort bson.D

	// Projection 字段投影。
	Projection any

	// CountTotal 是否额外执行 COUNT 计算总数。
	// 为 false 时多取一条判断 HasMore，Total 与 TotalPages 为 0。
	CountTotal bool
}

// PageResult 偏移分页结果。
//
// 一致性说明：Total 来自独立的 COUNT 查询，与数据查询不在同一事务中，
// 高并发写入时可能与 Data 的实际记录数略有差异。
type PageResult struct {
	Data       []bson.M
	Total      int64
	Page       int64
	Limit      int64
	TotalPages int64
	HasMore    bool
}

// =============================================================================
// 键集分页类型
// =============================================================================

// KeyOptions 键集分页选项。
type KeyOptions struct {
	// After 上一页返回的 NextKey，nil 表示第一页。
	After any

	// Limit 每页大小，上限 MaxPageSize。
	Limit int64

	// SortField 唯一的排序字段。字段值不唯一时相同键的文档可能在翻页边界被跳过，
	// 通常使用 _id 或带唯一约束的时间序字段。
	SortField string

	// Descending 为 true 时按降序翻页（$lt），否则升序（$gt）。
	Descending bool

	// Projection 字段投影。投影中必须保留 SortField，否则还有下一页时返回 ErrMissingSortKey。
	Projection any
}

// KeyPageResult 键集分页结果。
type KeyPageResult struct {
	Data []bson.M

	// NextKey 本页最后一条的排序键，作为下一页的 After。
	NextKey any

	// HasMore 是否还有下一页。
	HasMore bool
}

// =============================================================================
// 批量查询类型
// =============================================================================

const (
	// DefaultBatchSize 批量查询默认每批键数。
	DefaultBatchSize = 100

	// MaxBatchSize 批量查询每批键数上限，避免 $in 过大触及 16MB BSON 限制。
	MaxBatchSize = 10000

	// MaxPageSize 单页文档数上限。
	MaxPageSize = storageopt.MaxPageSize
)

// BatchOptions 批量查询选项。
type BatchOptions struct {
	// Field 匹配字段，默认 _id。
	Field string

	// BatchSize 每批键数，默认 DefaultBatchSize，上限 MaxBatchSize。
	BatchSize int

	// Projection 字段投影。
	Projection any

	// Parallelism 大于 1 时并发执行各批次，最多同时 Parallelism 个。
	// 默认 0 顺序执行。
	Parallelism int
}

// =============================================================================
// 工厂函数
// =============================================================================

// New 创建 MongoDB 包装器。
// client 必须是已初始化的 mongo.Client。
func New(client *mongo.Client, opts ...Option) (Mongo, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return newWrapper(client, client, opts...), nil
}

func newWrapper(client *mongo.Client, ops clientOperations, opts ...Option) *mongoWrapper {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	w := &mongoWrapper{
		client:    client,
		clientOps: ops,
		options:   o,
	}
	w.explainBreaker = gobreaker.NewCircuitBreaker[PlanStats](gobreaker.Settings{
		Name:        fmt.Sprintf("%s.explain", mongoComponent),
		MaxRequests: 1,
		Timeout:     o.ExplainCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.ExplainFailures
		},
		IsExcluded:    isCallerCancel,
		OnStateChange: w.logBreakerChange,
	})
	return w
}
