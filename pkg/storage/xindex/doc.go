// Package xindex 管理 MongoDB 索引的生命周期，并根据查询谓词的使用频率给出索引建议。
//
// # 索引定义
//
// 索引只能通过 SingleField、Compound、Text、TTL 四个构造函数创建，
// 非法组合在构造时即被拒绝：
//
//	s, err := xindex.Compound([]xindex.Key{xindex.Asc("user_id"), xindex.Desc("created_at")})
//	ttl, err := xindex.TTL(xindex.FieldOf[time.Time]("expires_at"), 24*time.Hour)
//
// TTL 只接受 Field[time.Time]，在非日期字段上建过期索引无法通过编译。
//
// # 生命周期
//
// Manager 的创建操作是幂等的：已存在相同键模式的索引时直接返回其名字。
// 要求唯一而已有索引不唯一时返回 ErrIndexConflict，不会静默复用。
// 创建失败会记录日志并返回 ErrCreateIndex（缺少必需索引是正确性问题）；
// Drop、DropAll、Rebuild 是维护操作，失败时记录日志并返回 false。
// Rebuild 保留 partialFilterExpression、collation 等全部选项，
// 遇到无法还原的选项时在删除前放弃。
//
// EnsureCommon 按集合角色（RoleOwnerTimeline、RoleIdentity、RoleCatalog）
// 建立常用索引，角色表可通过 WithProvisioning 或配置文件覆盖。
//
// # 使用记录与建议
//
// UsageRecorder 按 (集合, 字段) 累计谓词字段的使用次数，以 LRU 限制条数。
// SuggestIndexes 是频率启发：字段出现在 >= 5 个模式中时建议单字段索引，
// >= 10 为 high。它不是查询规划器，不评估选择性，也不建议复合索引。
package xindex
