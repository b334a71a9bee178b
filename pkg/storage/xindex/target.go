package xindex

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

//go:generate mockgen -source=target.go -destination=mock_target_test.go -package=xindex

// existingIndex listIndexes 返回的索引文档。
type existingIndex struct {
	Name               string `bson:"name"`
	Key                bson.D `bson:"key"`
	Unique             bool   `bson:"unique,omitempty"`
	Sparse             bool   `bson:"sparse,omitempty"`
	ExpireAfterSeconds *int32 `bson:"expireAfterSeconds,omitempty"`
	Weights            bson.D `bson:"weights,omitempty"`

	// Extra 其余索引选项（partialFilterExpression、collation 等），重建时原样带回。
	Extra bson.M `bson:",inline"`
}

// collStats collStats 命令中与索引相关的字段。
type collStats struct {
	IndexCount     int              `bson:"nindexes"`
	TotalIndexSize int64            `bson:"totalIndexSize"`
	IndexSizes     map[string]int64 `bson:"indexSizes"`
}

// indexTarget 定义索引管理需要的集合操作，用于依赖注入和测试。
// collectionTarget 将 *mongo.Collection 适配为此接口。
type indexTarget interface {
	Name() string
	ListIndexes(ctx context.Context) ([]existingIndex, error)
	CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error)
	DropIndex(ctx context.Context, name string) error
	DropAllIndexes(ctx context.Context) error
	CollStats(ctx context.Context) (collStats, error)
}

type collectionTarget struct {
	coll *mongo.Collection
}

var _ indexTarget = collectionTarget{}

func (c collectionTarget) Name() string {
	return c.coll.Name()
}

func (c collectionTarget) ListIndexes(ctx context.Context) ([]existingIndex, error) {
	cursor, err := c.coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	var out []existingIndex
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c collectionTarget) CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error) {
	return c.coll.Indexes().CreateOne(ctx, model)
}

func (c collectionTarget) DropIndex(ctx context.Context, name string) error {
	return c.coll.Indexes().DropOne(ctx, name)
}

func (c collectionTarget) DropAllIndexes(ctx context.Context) error {
	return c.coll.Indexes().DropAll(ctx)
}

func (c collectionTarget) CollStats(ctx context.Context) (collStats, error) {
	var out collStats
	err := c.coll.Database().RunCommand(ctx, bson.D{{Key: "collStats", Value: c.coll.Name()}}).Decode(&out)
	return out, err
}

func adapt(coll *mongo.Collection) (indexTarget, error) {
	if coll == nil {
		return nil, ErrNilCollection
	}
	return collectionTarget{coll: coll}, nil
}

// =============================================================================
// 键模式比较
// =============================================================================

// matches 判断已有索引是否与描述的键模式一致。
//
// 文本索引在 listIndexes 中的键是 {_fts: "text", _ftsx: 1}，
// 且一个集合最多一个文本索引，因此任何已有文本索引都视为匹配。
func (e existingIndex) matches(d Descriptor) bool {
	if d.Kind == KindText {
		return e.isText()
	}
	return keysEqual(e.Key, d.Keys)
}

func (e existingIndex) isText() bool {
	for _, k := range e.Key {
		if k.Key == "_fts" {
			return true
		}
	}
	return false
}

// descriptor 从已有索引还原描述，用于重建。
func (e existingIndex) descriptor() Descriptor {
	d := Descriptor{
		Name:               e.Name,
		Keys:               cloneD(e.Key),
		Unique:             e.Unique,
		Sparse:             e.Sparse,
		ExpireAfterSeconds: e.ExpireAfterSeconds,
	}
	switch {
	case e.isText():
		d.Kind = KindText
		d.Keys = make(bson.D, 0, len(e.Weights))
		for _, w := range e.Weights {
			d.Keys = append(d.Keys, bson.E{Key: w.Key, Value: "text"})
		}
		d.Weights = cloneD(e.Weights)
	case e.ExpireAfterSeconds != nil:
		d.Kind = KindTTL
	case len(e.Key) > 1:
		d.Kind = KindCompound
	default:
		d.Kind = KindSingle
	}
	return d
}

// ignoredIndexOptions 重建时不需要带回的字段：v 与 ns 由服务端生成，background 自 4.2 起被忽略。
var ignoredIndexOptions = map[string]bool{"v": true, "ns": true, "background": true}

// rebuildModel 还原已有索引的完整创建参数。
//
// 设计决策: 重建必须保留索引语义，partialFilterExpression 或 collation 丢失会改变唯一性约束的范围。
// 遇到无法还原的选项时返回 ErrUnsupportedOption，调用方应在删除索引前放弃重建。
func (e existingIndex) rebuildModel() (mongo.IndexModel, error) {
	model := e.descriptor().model()
	opts := model.Options
	for _, key := range sortedFields(e.Extra) {
		if ignoredIndexOptions[key] {
			continue
		}
		if err := applyIndexOption(opts, key, e.Extra[key]); err != nil {
			return mongo.IndexModel{}, fmt.Errorf("%w: %s.%s: %w", ErrUnsupportedOption, e.Name, key, err)
		}
	}
	return model, nil
}

func applyIndexOption(opts *options.IndexOptionsBuilder, key string, v any) error {
	switch key {
	case "partialFilterExpression":
		opts.SetPartialFilterExpression(v)
	case "wildcardProjection":
		opts.SetWildcardProjection(v)
	case "storageEngine":
		opts.SetStorageEngine(v)
	case "collation":
		c, err := collationOf(v)
		if err != nil {
			return err
		}
		opts.SetCollation(c)
	case "hidden":
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("unexpected type %T", v)
		}
		opts.SetHidden(b)
	case "default_language", "language_override":
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("unexpected type %T", v)
		}
		if key == "default_language" {
			opts.SetDefaultLanguage(str)
		} else {
			opts.SetLanguageOverride(str)
		}
	case "textIndexVersion", "2dsphereIndexVersion", "bits":
		n, ok := int32Of(v)
		if !ok {
			return fmt.Errorf("unexpected type %T", v)
		}
		switch key {
		case "textIndexVersion":
			opts.SetTextVersion(n)
		case "2dsphereIndexVersion":
			opts.SetSphereVersion(n)
		default:
			opts.SetBits(n)
		}
	case "min", "max":
		f, ok := float64Of(v)
		if !ok {
			return fmt.Errorf("unexpected type %T", v)
		}
		if key == "min" {
			opts.SetMin(f)
		} else {
			opts.SetMax(f)
		}
	default:
		return fmt.Errorf("unknown option")
	}
	return nil
}

// collationOf 解析 listIndexes 返回的 collation 文档。
// options.Collation 的 bson 标签与服务端字段名不一致，因此逐字段读取。
func collationOf(v any) (*options.Collation, error) {
	doc, ok := v.(bson.D)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T", v)
	}
	c := &options.Collation{}
	for _, e := range doc {
		switch e.Key {
		case "locale":
			c.Locale, _ = e.Value.(string)
		case "caseLevel":
			c.CaseLevel, _ = e.Value.(bool)
		case "caseFirst":
			c.CaseFirst, _ = e.Value.(string)
		case "strength":
			n, _ := int32Of(e.Value)
			c.Strength = int(n)
		case "numericOrdering":
			c.NumericOrdering, _ = e.Value.(bool)
		case "alternate":
			c.Alternate, _ = e.Value.(string)
		case "maxVariable":
			c.MaxVariable, _ = e.Value.(string)
		case "normalization":
			c.Normalization, _ = e.Value.(bool)
		case "backwards":
			c.Backwards, _ = e.Value.(bool)
		case "version":
			// 由服务端按 locale 生成
		default:
			return nil, fmt.Errorf("unknown collation field %q", e.Key)
		}
	}
	return c, nil
}

func int32Of(v any) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case int64:
		return int32(n), true
	case int:
		return int32(n), true
	case float64:
		return int32(n), true
	default:
		return 0, false
	}
}

func float64Of(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func keysEqual(a, b bson.D) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || !keyValueEqual(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

func keyValueEqual(a, b any) bool {
	na, okA := numericDirection(a)
	nb, okB := numericDirection(b)
	if okA || okB {
		return okA && okB && na == nb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// numericDirection 服务端可能以 int32、int64 或 double 返回方向。
func numericDirection(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return sign(float64(n)), true
	case int32:
		return sign(float64(n)), true
	case int64:
		return sign(float64(n)), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return sign(n), true
	default:
		return 0, false
	}
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

func sortedFields[V any](m map[string]V) []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}
