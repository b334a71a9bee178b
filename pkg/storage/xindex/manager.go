package xindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
)

const managerComponent = "xindex"

// Manager 索引生命周期管理。
//
// 失败策略：创建失败记录日志并返回错误（缺少必需索引是正确性风险）；
// 删除、重建是维护操作，失败记录日志后返回 false，不中断调用方。
type Manager struct {
	logger       xlog.Logger
	observer     xmetrics.Observer
	provisioning Provisioning
}

// ManagerOption 配置 Manager。
type ManagerOption func(*Manager)

// WithLogger 设置日志器，nil 被忽略。
func WithLogger(logger xlog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver 设置观测接口，nil 被忽略。
func WithObserver(observer xmetrics.Observer) ManagerOption {
	return func(m *Manager) {
		if observer != nil {
			m.observer = observer
		}
	}
}

// WithProvisioning 替换 EnsureCommon 使用的集合角色表，nil 被忽略。
func WithProvisioning(p Provisioning) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.provisioning = p
		}
	}
}

// NewManager 创建索引管理器，默认使用 DefaultProvisioning。
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:       xlog.Discard(),
		observer:     xmetrics.NoopObserver{},
		provisioning: DefaultProvisioning(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Provisioning 返回当前的集合角色表。
func (m *Manager) Provisioning() Provisioning {
	return m.provisioning
}

// =============================================================================
// 创建
// =============================================================================

// Create 按定义创建索引，返回索引名。
//
// 幂等：已存在相同键模式的索引时直接返回其名字，不会再次下发创建命令。
// 要求 Unique 而已有索引不唯一时返回 ErrIndexConflict；其余选项差异只记录 Warn。
func (m *Manager) Create(ctx context.Context, coll *mongo.Collection, s Spec) (string, error) {
	target, err := adapt(coll)
	if err != nil {
		return "", err
	}
	return m.create(ctx, target, s)
}

// CreateSingleField 创建单字段升序索引。
func (m *Manager) CreateSingleField(ctx context.Context, coll *mongo.Collection, field string, opts ...SpecOption) (string, error) {
	s, err := SingleField(Asc(field), opts...)
	if err != nil {
		return "", err
	}
	return m.Create(ctx, coll, s)
}

// CreateCompound 创建复合索引。
func (m *Manager) CreateCompound(ctx context.Context, coll *mongo.Collection, keys []Key, opts ...SpecOption) (string, error) {
	s, err := Compound(keys, opts...)
	if err != nil {
		return "", err
	}
	return m.Create(ctx, coll, s)
}

// CreateText 创建文本索引。
func (m *Manager) CreateText(ctx context.Context, coll *mongo.Collection, fields []string, opts ...SpecOption) (string, error) {
	s, err := Text(fields, opts...)
	if err != nil {
		return "", err
	}
	return m.Create(ctx, coll, s)
}

// CreateTTL 创建过期索引。
func (m *Manager) CreateTTL(ctx context.Context, coll *mongo.Collection, field Field[time.Time], expireAfter time.Duration, opts ...SpecOption) (string, error) {
	s, err := TTL(field, expireAfter, opts...)
	if err != nil {
		return "", err
	}
	return m.Create(ctx, coll, s)
}

func (m *Manager) create(ctx context.Context, target indexTarget, s Spec) (name string, err error) {
	if s == nil {
		return "", fmt.Errorf("%w: nil spec", ErrInvalidSpec)
	}
	d := s.Descriptor()
	collection := target.Name()

	ctx, span := m.start(ctx, "create", collection)
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	existing, err := target.ListIndexes(ctx)
	if err != nil {
		m.logger.Error(ctx, "list indexes before create failed", xlog.Collection(collection), xlog.Err(err))
		return "", fmt.Errorf("%w: %s: %w", ErrCreateIndex, collection, err)
	}
	for _, e := range existing {
		if !e.matches(d) {
			continue
		}
		// 要求唯一而已有索引不唯一时不能复用：调用方依赖唯一约束保证正确性
		if d.Unique && !e.Unique {
			m.logger.Error(ctx, "existing index lacks unique constraint",
				xlog.Collection(collection),
				slog.String("index", e.Name),
			)
			return "", fmt.Errorf("%w: %s.%s is not unique", ErrIndexConflict, collection, e.Name)
		}
		if e.Unique != d.Unique || e.Sparse != d.Sparse {
			m.logger.Warn(ctx, "existing index options differ",
				xlog.Collection(collection),
				slog.String("index", e.Name),
				slog.Bool("unique", e.Unique),
				slog.Bool("sparse", e.Sparse),
			)
		}
		m.logger.Debug(ctx, "index exists", xlog.Collection(collection), slog.String("index", e.Name))
		return e.Name, nil
	}

	name, err = target.CreateIndex(ctx, d.model())
	if err != nil {
		m.logger.Error(ctx, "create index failed",
			xlog.Collection(collection),
			slog.String("index", d.IndexName()),
			xlog.Err(err),
		)
		return "", fmt.Errorf("%w: %s.%s: %w", ErrCreateIndex, collection, d.IndexName(), err)
	}
	m.logger.Info(ctx, "index created",
		xlog.Collection(collection),
		slog.String("index", name),
		slog.String("kind", string(d.Kind)),
	)
	return name, nil
}

func (d Descriptor) model() mongo.IndexModel {
	opts := options.Index()
	if d.Name != "" {
		opts.SetName(d.Name)
	}
	if d.Unique {
		opts.SetUnique(true)
	}
	if d.Sparse {
		opts.SetSparse(true)
	}
	if d.ExpireAfterSeconds != nil {
		opts.SetExpireAfterSeconds(*d.ExpireAfterSeconds)
	}
	if len(d.Weights) > 0 {
		opts.SetWeights(d.Weights)
	}
	return mongo.IndexModel{Keys: d.Keys, Options: opts}
}

// =============================================================================
// 删除与重建
// =============================================================================

// Drop 删除指定索引，失败返回 false。
func (m *Manager) Drop(ctx context.Context, coll *mongo.Collection, name string) bool {
	target, err := adapt(coll)
	if err != nil {
		m.logger.Warn(ctx, "drop index skipped", xlog.Err(err))
		return false
	}
	return m.drop(ctx, target, name)
}

// DropAll 删除除 _id 外的全部索引，失败返回 false。
func (m *Manager) DropAll(ctx context.Context, coll *mongo.Collection) bool {
	target, err := adapt(coll)
	if err != nil {
		m.logger.Warn(ctx, "drop all indexes skipped", xlog.Err(err))
		return false
	}
	return m.dropAll(ctx, target)
}

// Rebuild 以相同选项删除并重建指定索引，失败返回 false。
//
// 已有索引带有无法还原的选项时，在删除前放弃重建并返回 false。
// 删除成功而重建失败时，集合会暂时缺少该索引，日志中会记录 Error。
func (m *Manager) Rebuild(ctx context.Context, coll *mongo.Collection, name string) bool {
	target, err := adapt(coll)
	if err != nil {
		m.logger.Warn(ctx, "rebuild index skipped", xlog.Err(err))
		return false
	}
	return m.rebuild(ctx, target, name)
}

func (m *Manager) drop(ctx context.Context, target indexTarget, name string) bool {
	collection := target.Name()
	ctx, span := m.start(ctx, "drop", collection)

	err := target.DropIndex(ctx, name)
	span.End(xmetrics.Result{Err: err})
	if err != nil {
		m.logger.Warn(ctx, "drop index failed", xlog.Collection(collection), slog.String("index", name), xlog.Err(err))
		return false
	}
	m.logger.Info(ctx, "index dropped", xlog.Collection(collection), slog.String("index", name))
	return true
}

func (m *Manager) dropAll(ctx context.Context, target indexTarget) bool {
	collection := target.Name()
	ctx, span := m.start(ctx, "drop_all", collection)

	err := target.DropAllIndexes(ctx)
	span.End(xmetrics.Result{Err: err})
	if err != nil {
		m.logger.Warn(ctx, "drop all indexes failed", xlog.Collection(collection), xlog.Err(err))
		return false
	}
	m.logger.Info(ctx, "all indexes dropped", xlog.Collection(collection))
	return true
}

func (m *Manager) rebuild(ctx context.Context, target indexTarget, name string) (ok bool) {
	collection := target.Name()
	ctx, span := m.start(ctx, "rebuild", collection)
	defer func() { span.End(xmetrics.Result{Status: statusOf(ok)}) }()

	if name == idIndexName {
		m.logger.Warn(ctx, "the _id index cannot be rebuilt", xlog.Collection(collection))
		return false
	}

	existing, err := target.ListIndexes(ctx)
	if err != nil {
		m.logger.Warn(ctx, "rebuild index failed", xlog.Collection(collection), slog.String("index", name), xlog.Err(err))
		return false
	}
	var found *existingIndex
	for i := range existing {
		if existing[i].Name == name {
			found = &existing[i]
			break
		}
	}
	if found == nil {
		m.logger.Warn(ctx, "rebuild index failed: not found", xlog.Collection(collection), slog.String("index", name))
		return false
	}

	model, err := found.rebuildModel()
	if err != nil {
		m.logger.Warn(ctx, "rebuild index refused", xlog.Collection(collection), slog.String("index", name), xlog.Err(err))
		return false
	}
	if err := target.DropIndex(ctx, name); err != nil {
		m.logger.Warn(ctx, "rebuild index failed: drop", xlog.Collection(collection), slog.String("index", name), xlog.Err(err))
		return false
	}
	if _, err := target.CreateIndex(ctx, model); err != nil {
		m.logger.Error(ctx, "rebuild index failed: recreate, index is missing",
			xlog.Collection(collection), slog.String("index", name), xlog.Err(err))
		return false
	}
	m.logger.Info(ctx, "index rebuilt", xlog.Collection(collection), slog.String("index", name))
	return true
}

const idIndexName = "_id_"

func (m *Manager) start(ctx context.Context, operation, collection string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, m.observer, xmetrics.SpanOptions{
		Component: managerComponent,
		Operation: operation,
		Kind:      xmetrics.KindClient,
		Attrs:     xmetrics.DBAttrs("", collection),
	})
}

func statusOf(ok bool) xmetrics.Status {
	if ok {
		return xmetrics.StatusOK
	}
	return xmetrics.StatusError
}
