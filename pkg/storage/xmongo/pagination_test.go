package xmongo

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xdbtune/internal/storageopt"
	"github.com/omeyang/xdbtune/pkg/storage/xindex"
	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

// seq 生成 _id 为 1..n 的文档。
func seq(n int) []bson.M {
	docs := make([]bson.M, n)
	for i := range n {
		docs[i] = bson.M{"_id": i + 1, "status": "active"}
	}
	return docs
}

func ids(t *testing.T, docs []bson.M) []int64 {
	t.Helper()
	out := make([]int64, len(docs))
	for i, d := range docs {
		n, ok := asInt(d["_id"])
		require.True(t, ok, "unexpected _id %T", d["_id"])
		out[i] = n
	}
	return out
}

var byID = bson.D{{Key: "_id", Value: 1}}

// =============================================================================
// 偏移分页
// =============================================================================

func TestOffsetPage_WithTotal(t *testing.T) {
	w, _ := newTestWrapper(t)
	coll := newMemCollection("items", seq(25)...)
	ctx := context.Background()

	page, err := w.offsetPage(ctx, coll, nil, OffsetOptions{Page: 2, Limit: 10, Sort: byID, CountTotal: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, ids(t, page.Data))
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, int64(3), page.TotalPages)
	assert.True(t, page.HasMore)

	last, err := w.offsetPage(ctx, coll, nil, OffsetOptions{Page: 3, Limit: 10, Sort: byID, CountTotal: true})
	require.NoError(t, err)
	assert.Len(t, last.Data, 5)
	assert.False(t, last.HasMore)
}

func TestOffsetPage_WithoutTotal(t *testing.T) {
	w, _ := newTestWrapper(t)
	coll := newMemCollection("items", seq(25)...)
	ctx := context.Background()

	first, err := w.offsetPage(ctx, coll, nil, OffsetOptions{Page: 1, Limit: 10, Sort: byID})
	require.NoError(t, err)
	assert.Len(t, first.Data, 10)
	assert.True(t, first.HasMore)
	assert.Zero(t, first.Total)
	assert.Zero(t, first.TotalPages)

	last, err := w.offsetPage(ctx, coll, nil, OffsetOptions{Page: 3, Limit: 10, Sort: byID})
	require.NoError(t, err)
	assert.Equal(t, []int64{21, 22, 23, 24, 25}, ids(t, last.Data))
	assert.False(t, last.HasMore)

	assert.Zero(t, coll.countCalls)
}

func TestOffsetPage_Validation(t *testing.T) {
	w, _ := newTestWrapper(t)
	coll := newMemCollection("items")
	ctx := context.Background()

	tests := []struct {
		name string
		opts OffsetOptions
		want error
		base error
	}{
		{"page zero", OffsetOptions{Page: 0, Limit: 10}, ErrInvalidPage, storageopt.ErrInvalidPage},
		{"limit zero", OffsetOptions{Page: 1, Limit: 0}, ErrInvalidPageSize, storageopt.ErrInvalidPageSize},
		{"limit too large", OffsetOptions{Page: 1, Limit: MaxPageSize + 1}, ErrInvalidPageSize, storageopt.ErrInvalidPageSize},
		{"overflow", OffsetOptions{Page: math.MaxInt64, Limit: 10}, ErrPageOverflow, storageopt.ErrPageOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.offsetPage(ctx, coll, nil, tt.opts)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.base)
		})
	}
	assert.Empty(t, coll.filters())
}

func TestOffsetPage_Errors(t *testing.T) {
	w, _ := newTestWrapper(t)
	ctx := context.Background()

	coll := newMemCollection("items")
	coll.countErr = errBoom
	_, err := w.offsetPage(ctx, coll, nil, OffsetOptions{Page: 1, Limit: 10, CountTotal: true})
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "count items")

	coll = newMemCollection("items")
	coll.findErr = errBoom
	_, err = w.offsetPage(ctx, coll, nil, OffsetOptions{Page: 1, Limit: 10})
	assert.ErrorIs(t, err, errBoom)
}

func TestOffsetPage_EmptyResultIsNotNil(t *testing.T) {
	w, _ := newTestWrapper(t)

	page, err := w.offsetPage(context.Background(), newMemCollection("items"), bson.M{"status": "gone"},
		OffsetOptions{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
}

func TestOffsetPage_PipelineWiring(t *testing.T) {
	tracker, err := xquery.NewTracker()
	require.NoError(t, err)
	usage, err := xindex.NewUsageRecorder(100)
	require.NoError(t, err)

	w, _ := newTestWrapper(t,
		WithOptimizer(xquery.NewOptimizer()),
		WithTracker(tracker),
		WithUsageRecorder(usage),
	)
	coll := newMemCollection("items", seq(3)...)
	filter := bson.M{"status": "active", "owner": nil}

	_, err = w.offsetPage(context.Background(), coll, filter, OffsetOptions{Page: 1, Limit: 10, CountTotal: true})
	require.NoError(t, err)

	// 优化器移除了 nil 字段，调用方的 filter 未被修改
	require.Len(t, coll.filters(), 1)
	assert.Equal(t, bson.M{"status": "active"}, coll.filters()[0])
	assert.Contains(t, filter, "owner")

	metrics := tracker.Metrics()
	require.Len(t, metrics, 2)
	assert.Equal(t, "count", metrics[0].Operation)
	assert.Equal(t, "find", metrics[1].Operation)
	assert.Equal(t, "items", metrics[1].Collection)

	records := usage.Records("items")
	require.Len(t, records, 1)
	assert.Equal(t, "status", records[0].Field)
}

// =============================================================================
// 键集分页
// =============================================================================

func TestKeyPage_VisitsEveryItemOnce(t *testing.T) {
	for _, desc := range []bool{false, true} {
		w, _ := newTestWrapper(t)
		coll := newMemCollection("items", seq(23)...)

		var (
			seen  []int64
			after any
			pages int
		)
		for {
			page, err := w.keyPage(context.Background(), coll, nil, KeyOptions{
				After: after, Limit: 5, SortField: "_id", Descending: desc,
			})
			require.NoError(t, err)
			seen = append(seen, ids(t, page.Data)...)
			pages++
			if !page.HasMore {
				break
			}
			require.NotNil(t, page.NextKey)
			after = page.NextKey
		}

		assert.Equal(t, 5, pages)
		require.Len(t, seen, 23)
		for i := range seen {
			want := int64(i + 1)
			if desc {
				want = int64(23 - i)
			}
			assert.Equal(t, want, seen[i])
		}
	}
}

func TestKeyPage_RangeOperator(t *testing.T) {
	w, _ := newTestWrapper(t)
	coll := newMemCollection("items", seq(10)...)
	ctx := context.Background()

	_, err := w.keyPage(ctx, coll, nil, KeyOptions{After: 4, Limit: 2, SortField: "_id"})
	require.NoError(t, err)
	_, err = w.keyPage(ctx, coll, nil, KeyOptions{After: 4, Limit: 2, SortField: "_id", Descending: true})
	require.NoError(t, err)

	filters := coll.filters()
	assert.Equal(t, bson.M{"_id": bson.M{"$gt": 4}}, filters[0])
	assert.Equal(t, bson.M{"_id": bson.M{"$lt": 4}}, filters[1])
}

func TestKeyPage_ConstrainedFieldCombinedWithAnd(t *testing.T) {
	w, _ := newTestWrapper(t)
	coll := newMemCollection("items", seq(10)...)
	filter := bson.M{"_id": bson.M{"$lte": 8}}

	page, err := w.keyPage(context.Background(), coll, filter, KeyOptions{After: 5, Limit: 10, SortField: "_id"})
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 7, 8}, ids(t, page.Data))
	assert.False(t, page.HasMore)

	got := coll.filters()[0]
	assert.Contains(t, got, "$and")
	// 原 filter 未被修改
	assert.Equal(t, bson.M{"_id": bson.M{"$lte": 8}}, filter)
}

func TestKeyPage_Validation(t *testing.T) {
	w, _ := newTestWrapper(t)
	coll := newMemCollection("items")
	ctx := context.Background()

	_, err := w.keyPage(ctx, coll, nil, KeyOptions{Limit: 10})
	assert.ErrorIs(t, err, ErrMissingSortField)
	assert.ErrorIs(t, err, storageopt.ErrMissingSortField)

	_, err = w.keyPage(ctx, coll, nil, KeyOptions{SortField: "_id"})
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = w.keyPage(ctx, coll, nil, KeyOptions{SortField: "_id", Limit: MaxPageSize + 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestKeyPage_EmptyCollection(t *testing.T) {
	w, _ := newTestWrapper(t)

	page, err := w.keyPage(context.Background(), newMemCollection("items"), nil, KeyOptions{Limit: 5, SortField: "_id"})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Nil(t, page.NextKey)
	assert.False(t, page.HasMore)
}

func TestKeyPage_MissingSortKey(t *testing.T) {
	w, _ := newTestWrapper(t)
	// 模拟投影去掉了排序字段
	docs := []bson.M{{"name": "a"}, {"name": "b"}, {"name": "c"}}
	ctx := context.Background()

	_, err := w.keyPage(ctx, newMemCollection("items", docs...), nil, KeyOptions{Limit: 2, SortField: "rank"})
	require.ErrorIs(t, err, ErrMissingSortKey)
	assert.Contains(t, err.Error(), "items.rank")

	// 最后一页不需要下一页的起点
	page, err := w.keyPage(ctx, newMemCollection("items", docs...), nil, KeyOptions{Limit: 5, SortField: "rank"})
	require.NoError(t, err)
	assert.Len(t, page.Data, 3)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextKey)
}

func TestKeyPage_NestedSortField(t *testing.T) {
	w, _ := newTestWrapper(t)
	docs := []bson.M{
		{"_id": 1, "meta": bson.M{"rank": 10}},
		{"_id": 2, "meta": bson.M{"rank": 20}},
		{"_id": 3, "meta": bson.M{"rank": 30}},
	}

	page, err := w.keyPage(context.Background(), newMemCollection("items", docs...), nil, KeyOptions{Limit: 2, SortField: "meta.rank"})
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	n, ok := asInt(page.NextKey)
	require.True(t, ok, "unexpected NextKey %T", page.NextKey)
	assert.Equal(t, int64(20), n)
}

func TestLookupPath(t *testing.T) {
	doc := bson.M{
		"a.b": "literal",
		"m":   bson.M{"x": 1},
		"d":   bson.D{{Key: "y", Value: bson.D{{Key: "z", Value: "deep"}}}},
		"s":   "scalar",
	}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"a.b", "literal", true},
		{"m.x", 1, true},
		{"d.y.z", "deep", true},
		{"m.missing", nil, false},
		{"d.missing", nil, false},
		{"s.inner", nil, false},
		{"absent", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := lookupPath(doc, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyFilter(t *testing.T) {
	in := bson.M{"status": "active"}
	out := keyFilter(in, "_id", "$gt", 7)

	assert.Equal(t, bson.M{"status": "active", "_id": bson.M{"$gt": 7}}, out)
	assert.Equal(t, bson.M{"status": "active"}, in)

	assert.Equal(t, bson.M{"_id": bson.M{"$lt": 7}}, keyFilter(nil, "_id", "$lt", 7))
}
