package xmongo

import (
	"cmp"
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// =============================================================================
// Mock 实现 - 用于单元测试
// =============================================================================

// mockClientOps 实现 clientOperations 接口
type mockClientOps struct {
	mu                 sync.Mutex
	pingErr            error
	pingCount          int
	disconnectErr      error
	disconnected       bool
	sessionsInProgress int
}

func (m *mockClientOps) Ping(ctx context.Context, _ *readpref.ReadPref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingCount++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.pingErr
}

func (m *mockClientOps) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
	return m.disconnectErr
}

func (m *mockClientOps) NumberSessionsInProgress() int {
	return m.sessionsInProgress
}

// memCollection 内存集合，实现 collectionOperations。
//
// 只支持分页与批量查询用到的条件子集：等值、$gt/$gte/$lt/$lte/$in、$and，
// 以及单字段排序、skip、limit。
type memCollection struct {
	mu   sync.Mutex
	name string
	db   string
	docs []bson.M

	countErr   error
	findErr    error
	failFindAt int // 第 n 次 Find 返回 findErr，0 表示每次都返回

	explainRaw   bson.Raw
	explainErr   error
	explainCalls int

	countCalls  int
	findFilters []bson.M
}

func newMemCollection(name string, docs ...bson.M) *memCollection {
	return &memCollection{name: name, db: "testdb", docs: docs}
}

func (m *memCollection) CountDocuments(_ context.Context, filter any, _ ...options.Lister[options.CountOptions]) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	if m.countErr != nil {
		return 0, m.countErr
	}
	var n int64
	for _, doc := range m.docs {
		if matches(doc, filter.(bson.M)) {
			n++
		}
	}
	return n, nil
}

func (m *memCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := filter.(bson.M)
	m.findFilters = append(m.findFilters, f)
	if m.findErr != nil && (m.failFindAt == 0 || m.failFindAt == len(m.findFilters)) {
		return nil, m.findErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fo options.FindOptions
	for _, o := range opts {
		for _, set := range o.List() {
			_ = set(&fo)
		}
	}

	var out []bson.M
	for _, doc := range m.docs {
		if matches(doc, f) {
			out = append(out, doc)
		}
	}
	if sort, ok := fo.Sort.(bson.D); ok && len(sort) > 0 {
		key := sort[0].Key
		dir := sort[0].Value.(int)
		slices.SortStableFunc(out, func(a, b bson.M) int {
			return dir * compareValues(a[key], b[key])
		})
	}
	if fo.Skip != nil {
		out = out[min(int(*fo.Skip), len(out)):]
	}
	if fo.Limit != nil && *fo.Limit > 0 {
		out = out[:min(int(*fo.Limit), len(out))]
	}

	docs := make([]any, len(out))
	for i, d := range out {
		docs[i] = d
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (m *memCollection) Explain(_ context.Context, _ any) (bson.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.explainCalls++
	if m.explainErr != nil {
		return nil, m.explainErr
	}
	return m.explainRaw, nil
}

func (m *memCollection) DatabaseName() string { return m.db }

func (m *memCollection) Name() string { return m.name }

func (m *memCollection) filters() []bson.M {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.findFilters)
}

// =============================================================================
// 条件匹配
// =============================================================================

func matches(doc, filter bson.M) bool {
	for key, cond := range filter {
		if key == "$and" {
			for _, sub := range cond.(bson.A) {
				if !matches(doc, sub.(bson.M)) {
					return false
				}
			}
			continue
		}
		if !matchField(doc[key], cond) {
			return false
		}
	}
	return true
}

func matchField(v, cond any) bool {
	ops, ok := cond.(bson.M)
	if !ok {
		return compareValues(v, cond) == 0
	}
	for op, arg := range ops {
		switch op {
		case "$gt":
			if v == nil || compareValues(v, arg) <= 0 {
				return false
			}
		case "$gte":
			if v == nil || compareValues(v, arg) < 0 {
				return false
			}
		case "$lt":
			if v == nil || compareValues(v, arg) >= 0 {
				return false
			}
		case "$lte":
			if v == nil || compareValues(v, arg) > 0 {
				return false
			}
		case "$in":
			// 数组字段任一元素命中即匹配
			values := listOf(v)
			if values == nil {
				values = []any{v}
			}
			if !slices.ContainsFunc(listOf(arg), func(x any) bool {
				return slices.ContainsFunc(values, func(y any) bool { return compareValues(y, x) == 0 })
			}) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func listOf(v any) []any {
	switch l := v.(type) {
	case bson.A:
		return l
	case []any:
		return l
	}
	return nil
}

func compareValues(a, b any) int {
	ai, aok := asInt(a)
	bi, bok := asInt(b)
	if aok && bok {
		return cmp.Compare(ai, bi)
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return cmp.Compare(as, bs)
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return 1
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

var errBoom = errors.New("boom")
