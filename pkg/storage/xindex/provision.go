package xindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/xdbtune/pkg/config/xconf"
	"github.com/omeyang/xdbtune/pkg/observability/xlog"
)

// Role 集合角色，决定 EnsureCommon 建立哪些索引。
type Role string

// 集合角色。
const (
	// RoleOwnerTimeline 按所有者分组、按时间倒序浏览的记录（订单、生成记录等）。
	// 索引：(owner 升序, time 降序) 复合索引 + 每个布尔过滤字段的单字段索引。
	RoleOwnerTimeline Role = "owner_timeline"

	// RoleIdentity 账户记录。
	// 索引：每个外部登录标识一个唯一稀疏索引，任何登录渠道都不能产生重复账户。
	RoleIdentity Role = "identity"

	// RoleCatalog 目录/内容记录。
	// 索引：(module 升序, item 升序) 复合索引 + 发布标记与标签字段的单字段索引。
	RoleCatalog Role = "catalog"
)

// Provision 单个集合的索引配置。只有与 Role 相关的字段生效。
type Provision struct {
	Role Role

	OwnerField string
	TimeField  string
	Flags      []string

	Identifiers []string

	ModuleField  string
	ItemField    string
	PublishField string
	TagFields    []string
}

// Provisioning 集合名到索引配置的映射。
type Provisioning map[string]Provision

// DefaultProvisioning 返回内置的集合角色表。
func DefaultProvisioning() Provisioning {
	return Provisioning{
		"orders": {
			Role:       RoleOwnerTimeline,
			OwnerField: "user_id",
			TimeField:  "created_at",
			Flags:      []string{"is_paid"},
		},
		"generations": {
			Role:       RoleOwnerTimeline,
			OwnerField: "user_id",
			TimeField:  "created_at",
			Flags:      []string{"is_public"},
		},
		"users": {
			Role:        RoleIdentity,
			Identifiers: []string{"email", "phone", "openid"},
		},
		"contents": {
			Role:         RoleCatalog,
			ModuleField:  "module_order",
			ItemField:    "item_order",
			PublishField: "is_published",
			TagFields:    []string{"tags"},
		},
	}
}

// ProvisioningFromSettings 将配置文件中的 indexes 段叠加到内置角色表上。
// 同名集合整条替换，不做字段级合并。
func ProvisioningFromSettings(settings map[string]xconf.IndexSettings) (Provisioning, error) {
	out := DefaultProvisioning()
	var errs []error
	for coll, s := range settings {
		p := Provision{
			Role:         Role(strings.ToLower(strings.TrimSpace(s.Role))),
			OwnerField:   s.OwnerField,
			TimeField:    s.TimeField,
			Flags:        s.Flags,
			Identifiers:  s.Identifiers,
			ModuleField:  s.ModuleField,
			ItemField:    s.ItemField,
			PublishField: s.PublishField,
			TagFields:    s.Tags,
		}
		if _, err := p.Specs(); err != nil {
			errs = append(errs, fmt.Errorf("indexes.%s: %w", coll, err))
			continue
		}
		out[coll] = p
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Merge 返回合并后的新表，overrides 中的同名集合优先。
func (p Provisioning) Merge(overrides Provisioning) Provisioning {
	out := make(Provisioning, len(p)+len(overrides))
	maps.Copy(out, p)
	maps.Copy(out, overrides)
	return out
}

// Specs 按角色展开为索引定义。缺少角色必需的字段时返回 ErrInvalidProvision。
func (p Provision) Specs() ([]Spec, error) {
	switch p.Role {
	case RoleOwnerTimeline:
		return p.ownerTimelineSpecs()
	case RoleIdentity:
		return p.identitySpecs()
	case RoleCatalog:
		return p.catalogSpecs()
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidProvision, p.Role)
	}
}

func (p Provision) ownerTimelineSpecs() ([]Spec, error) {
	if p.OwnerField == "" || p.TimeField == "" {
		return nil, fmt.Errorf("%w: %s requires owner_field and time_field", ErrInvalidProvision, p.Role)
	}
	specs := make([]Spec, 0, 1+len(p.Flags))
	s, err := Compound([]Key{Asc(p.OwnerField), Desc(p.TimeField)})
	if err != nil {
		return nil, err
	}
	specs = append(specs, s)
	return appendSingles(specs, p.Flags)
}

func (p Provision) identitySpecs() ([]Spec, error) {
	if len(p.Identifiers) == 0 {
		return nil, fmt.Errorf("%w: %s requires identifiers", ErrInvalidProvision, p.Role)
	}
	return appendSingles(make([]Spec, 0, len(p.Identifiers)), p.Identifiers, Unique(), Sparse())
}

func (p Provision) catalogSpecs() ([]Spec, error) {
	if p.ModuleField == "" || p.ItemField == "" {
		return nil, fmt.Errorf("%w: %s requires module_field and item_field", ErrInvalidProvision, p.Role)
	}
	specs := make([]Spec, 0, 2+len(p.TagFields))
	s, err := Compound([]Key{Asc(p.ModuleField), Asc(p.ItemField)})
	if err != nil {
		return nil, err
	}
	specs = append(specs, s)
	singles := p.TagFields
	if p.PublishField != "" {
		singles = append([]string{p.PublishField}, p.TagFields...)
	}
	return appendSingles(specs, singles)
}

func appendSingles(specs []Spec, fields []string, opts ...SpecOption) ([]Spec, error) {
	for _, f := range fields {
		s, err := SingleField(Asc(f), opts...)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// EnsureCommon 按集合角色建立常用索引，返回涉及的索引名。
//
// 幂等：重复调用复用已有索引，不会报错也不会产生重复索引。
// 任一索引创建失败时立即返回，已创建的索引保留。
func (m *Manager) EnsureCommon(ctx context.Context, coll *mongo.Collection) ([]string, error) {
	target, err := adapt(coll)
	if err != nil {
		return nil, err
	}
	return m.ensureCommon(ctx, target)
}

func (m *Manager) ensureCommon(ctx context.Context, target indexTarget) ([]string, error) {
	collection := target.Name()
	p, ok := m.provisioning[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvisioning, collection)
	}
	specs, err := p.Specs()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", collection, err)
	}

	names := make([]string, 0, len(specs))
	for _, s := range specs {
		name, err := m.create(ctx, target, s)
		if err != nil {
			return names, err
		}
		names = append(names, name)
	}
	m.logger.Info(ctx, "common indexes ensured",
		xlog.Collection(collection),
		slog.String("role", string(p.Role)),
		xlog.Count(int64(len(names))),
	)
	return names, nil
}
