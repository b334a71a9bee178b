package xindex

import "errors"

var (
	// ErrNilCollection 表示传入的 collection 为 nil。
	ErrNilCollection = errors.New("xindex: nil collection")

	// ErrInvalidSpec 表示索引定义非法（空字段、重复字段、字段数不符等）。
	ErrInvalidSpec = errors.New("xindex: invalid index spec")

	// ErrNegativeExpiry 表示 TTL 过期时间为负数。
	ErrNegativeExpiry = errors.New("xindex: ttl expiry must be >= 0")

	// ErrCreateIndex 表示创建索引失败。
	ErrCreateIndex = errors.New("xindex: create index failed")

	// ErrListIndexes 表示读取索引列表失败。
	ErrListIndexes = errors.New("xindex: list indexes failed")

	// ErrIndexStats 表示读取索引统计失败。
	ErrIndexStats = errors.New("xindex: index stats failed")

	// ErrNoProvisioning 表示集合没有对应的索引配置。
	ErrNoProvisioning = errors.New("xindex: no provisioning entry for collection")

	// ErrUnsupportedOption 表示已有索引带有无法还原的选项，不能安全重建。
	ErrUnsupportedOption = errors.New("xindex: index option cannot be preserved")

	// ErrIndexConflict 表示已有索引与要求的键模式相同，但缺少唯一约束。
	ErrIndexConflict = errors.New("xindex: existing index conflicts with required options")

	// ErrInvalidProvision 表示索引配置缺少角色所需的字段。
	ErrInvalidProvision = errors.New("xindex: invalid provisioning entry")
)
