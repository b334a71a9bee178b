package xindex

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Kind 索引类型。
type Kind string

// 索引类型。
const (
	KindSingle   Kind = "single"
	KindCompound Kind = "compound"
	KindText     Kind = "text"
	KindTTL      Kind = "ttl"
)

// Direction 索引方向。
type Direction int

// 索引方向。
const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// Key 索引键。
type Key struct {
	Field     string
	Direction Direction
}

// Asc 升序键。
func Asc(field string) Key { return Key{Field: field, Direction: Ascending} }

// Desc 降序键。
func Desc(field string) Key { return Key{Field: field, Direction: Descending} }

// Field 带类型的字段名。TTL 只接受 Field[time.Time]，
// 在非日期字段上建 TTL 索引无法通过编译。
type Field[T any] struct {
	name string
}

// FieldOf 声明字段的 Go 类型。
func FieldOf[T any](name string) Field[T] {
	return Field[T]{name: name}
}

// Name 返回字段名。
func (f Field[T]) Name() string { return f.name }

// Descriptor 索引描述，只能通过 SingleField、Compound、Text、TTL 构造。
type Descriptor struct {
	// Name 索引名，为空时按 MongoDB 规则由键生成。
	Name string
	Keys bson.D
	Kind Kind

	Unique bool
	Sparse bool
	// Background 仅记录意图，MongoDB 4.2 起创建索引不再区分前台/后台。
	Background bool

	ExpireAfterSeconds *int32
	// Weights 文本索引字段权重。
	Weights bson.D
}

// Spec 封闭的索引定义，包外无法实现。
type Spec interface {
	Descriptor() Descriptor
	sealed()
}

type spec struct {
	d Descriptor
}

func (s spec) Descriptor() Descriptor {
	d := s.d
	d.Keys = cloneD(s.d.Keys)
	d.Weights = cloneD(s.d.Weights)
	if s.d.ExpireAfterSeconds != nil {
		v := *s.d.ExpireAfterSeconds
		d.ExpireAfterSeconds = &v
	}
	return d
}

func (spec) sealed() {}

// SpecOption 索引选项。
type SpecOption func(*Descriptor)

// Unique 唯一索引。
func Unique() SpecOption { return func(d *Descriptor) { d.Unique = true } }

// Sparse 稀疏索引，只索引包含该字段的文档。
func Sparse() SpecOption { return func(d *Descriptor) { d.Sparse = true } }

// Background 后台创建。
func Background() SpecOption { return func(d *Descriptor) { d.Background = true } }

// Named 指定索引名。
func Named(name string) SpecOption { return func(d *Descriptor) { d.Name = name } }

// Weights 设置文本索引权重，仅对 Text 有效。
func Weights(weights map[string]int32) SpecOption {
	return func(d *Descriptor) {
		d.Weights = bson.D{}
		for _, f := range sortedFields(weights) {
			d.Weights = append(d.Weights, bson.E{Key: f, Value: weights[f]})
		}
	}
}

// SingleField 单字段索引。
func SingleField(key Key, opts ...SpecOption) (Spec, error) {
	if err := validateKeys([]Key{key}); err != nil {
		return nil, err
	}
	return build(KindSingle, keysToD([]Key{key}), opts)
}

// Compound 复合索引，至少两个字段且不能重复，键顺序即索引顺序。
func Compound(keys []Key, opts ...SpecOption) (Spec, error) {
	if len(keys) < 2 {
		return nil, fmt.Errorf("%w: compound index needs at least 2 keys, got %d", ErrInvalidSpec, len(keys))
	}
	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	return build(KindCompound, keysToD(keys), opts)
}

// Text 文本索引。一个集合最多一个文本索引。
func Text(fields []string, opts ...SpecOption) (Spec, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: text index needs at least 1 field", ErrInvalidSpec)
	}
	keys := make(bson.D, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidSpec)
		}
		if _, dup := seen[f]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSpec, f)
		}
		seen[f] = struct{}{}
		keys = append(keys, bson.E{Key: f, Value: "text"})
	}
	return build(KindText, keys, opts)
}

// TTL 过期索引。过期时间按秒截断，不能为负。
func TTL(field Field[time.Time], expireAfter time.Duration, opts ...SpecOption) (Spec, error) {
	if expireAfter < 0 {
		return nil, ErrNegativeExpiry
	}
	seconds := int64(expireAfter / time.Second)
	if seconds > math.MaxInt32 {
		return nil, fmt.Errorf("%w: ttl expiry %s exceeds int32 seconds", ErrInvalidSpec, expireAfter)
	}
	key := Asc(field.Name())
	if err := validateKeys([]Key{key}); err != nil {
		return nil, err
	}
	s, err := build(KindTTL, keysToD([]Key{key}), opts)
	if err != nil {
		return nil, err
	}
	secs := int32(seconds)
	sp := s.(spec)
	sp.d.ExpireAfterSeconds = &secs
	return sp, nil
}

func build(kind Kind, keys bson.D, opts []SpecOption) (Spec, error) {
	d := Descriptor{Kind: kind, Keys: keys}
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}
	if len(d.Weights) > 0 && kind != KindText {
		return nil, fmt.Errorf("%w: weights only apply to text indexes", ErrInvalidSpec)
	}
	return spec{d: d}, nil
}

func validateKeys(keys []Key) error {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if strings.TrimSpace(k.Field) == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidSpec)
		}
		if k.Direction != Ascending && k.Direction != Descending {
			return fmt.Errorf("%w: invalid direction %d for %q", ErrInvalidSpec, k.Direction, k.Field)
		}
		if _, dup := seen[k.Field]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidSpec, k.Field)
		}
		seen[k.Field] = struct{}{}
	}
	return nil
}

func keysToD(keys []Key) bson.D {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k.Field, Value: int32(k.Direction)})
	}
	return d
}

// DefaultName 返回 MongoDB 为该键模式生成的默认索引名，如 "owner_1_created_at_-1"。
func DefaultName(keys bson.D) string {
	parts := make([]string, 0, len(keys)*2)
	for _, e := range keys {
		parts = append(parts, e.Key, keyValueString(e.Value))
	}
	return strings.Join(parts, "_")
}

// IndexName 返回描述对应的索引名。
func (d Descriptor) IndexName() string {
	if d.Name != "" {
		return d.Name
	}
	return DefaultName(d.Keys)
}

func keyValueString(v any) string {
	if n, ok := numericDirection(v); ok {
		return strconv.Itoa(n)
	}
	return fmt.Sprint(v)
}

func cloneD(d bson.D) bson.D {
	if d == nil {
		return nil
	}
	out := make(bson.D, len(d))
	copy(out, d)
	return out
}
