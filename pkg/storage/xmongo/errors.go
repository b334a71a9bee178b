package xmongo

import (
	"errors"
	"fmt"

	"github.com/omeyang/xdbtune/internal/storageopt"
)

// =============================================================================
// 通用错误
// =============================================================================

var (
	// ErrNilClient 表示传入的客户端为 nil。
	ErrNilClient = errors.New("xmongo: nil client")

	// ErrNilContext 表示传入的 context 为 nil。
	// Close 是例外：nil context 会被替换为 context.Background()。
	ErrNilContext = errors.New("xmongo: context must not be nil")

	// ErrClosed 表示客户端已关闭。
	ErrClosed = errors.New("xmongo: client closed")

	// ErrNilCollection 表示传入的 collection 为 nil。
	ErrNilCollection = errors.New("xmongo: nil collection")

	// ErrInvalidConfig 连接参数或连接池配置非法，启动阶段应直接失败。
	ErrInvalidConfig = errors.New("xmongo: invalid configuration")
)

// =============================================================================
// 分页查询错误
// =============================================================================

var (
	// ErrInvalidPage 表示页码无效（必须 >= 1）。
	// 包装了 storageopt.ErrInvalidPage，errors.Is 可以匹配任一错误。
	ErrInvalidPage = fmt.Errorf("xmongo: %w", storageopt.ErrInvalidPage)

	// ErrInvalidPageSize 表示每页大小无效（1 到 MaxPageSize）。
	ErrInvalidPageSize = fmt.Errorf("xmongo: %w", storageopt.ErrInvalidPageSize)

	// ErrPageOverflow 表示分页计算溢出（页码或每页大小过大）。
	ErrPageOverflow = fmt.Errorf("xmongo: %w", storageopt.ErrPageOverflow)

	// ErrMissingSortField 表示键集分页未指定排序字段。
	ErrMissingSortField = fmt.Errorf("xmongo: %w", storageopt.ErrMissingSortField)

	// ErrMissingSortKey 表示键集分页的结果文档缺少排序字段（通常是投影未包含 SortField），无法给出下一页的起点。
	ErrMissingSortKey = errors.New("xmongo: result document lacks the sort field")

	// ErrInvalidLimit 表示键集分页的 Limit 无效（1 到 MaxPageSize）。
	ErrInvalidLimit = errors.New("xmongo: invalid limit, must be in [1, MaxPageSize]")
)

// =============================================================================
// 批量查询错误
// =============================================================================

var (
	// ErrEmptyIDs 表示批量查询的键列表为空。
	ErrEmptyIDs = errors.New("xmongo: empty ids")

	// ErrInvalidBatchSize 表示 BatchSize 超过上限。
	ErrInvalidBatchSize = errors.New("xmongo: batch size exceeds maximum")
)

// =============================================================================
// 执行计划分析错误
// =============================================================================

var (
	// ErrExplainFormat 表示 explain 输出缺少 executionStats 或 winningPlan。
	ErrExplainFormat = errors.New("xmongo: unrecognized explain output")
)
