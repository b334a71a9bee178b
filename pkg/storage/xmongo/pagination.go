package xmongo

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xdbtune/internal/storageopt"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
)

// =============================================================================
// 偏移分页
// =============================================================================

// OffsetPage 偏移分页查询。
func (w *mongoWrapper) OffsetPage(ctx context.Context, coll *mongo.Collection, filter bson.M, opts OffsetOptions) (*PageResult, error) {
	if err := w.guard(ctx, coll); err != nil {
		return nil, err
	}
	return w.offsetPage(ctx, adaptCollection(coll), filter, opts)
}

// convertPaginationError 将 storageopt 的分页错误转换为 xmongo 的错误类型。
func convertPaginationError(err error) error {
	switch {
	case errors.Is(err, storageopt.ErrInvalidPage):
		return ErrInvalidPage
	case errors.Is(err, storageopt.ErrInvalidPageSize):
		return ErrInvalidPageSize
	case errors.Is(err, storageopt.ErrPageOverflow):
		return ErrPageOverflow
	default:
		return err
	}
}

// offsetPage 偏移分页内部实现，使用接口便于测试。
func (w *mongoWrapper) offsetPage(ctx context.Context, coll collectionOperations, filter bson.M, opts OffsetOptions) (result *PageResult, err error) {
	skip, err := storageopt.ValidatePagination(opts.Page, opts.Limit)
	if err != nil {
		return nil, convertPaginationError(err)
	}

	ctx, cancel := storageopt.FallbackContext(ctx, w.options.QueryTimeout)
	defer cancel()

	coll, filter = w.prepare(ctx, coll, filter)
	ctx, span := w.startSpan(ctx, coll, "offset_page")
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	var total int64
	if opts.CountTotal {
		if total, err = coll.CountDocuments(ctx, filter); err != nil {
			return nil, fmt.Errorf("xmongo offset_page count %s: %w", coll.Name(), err)
		}
	}

	// 不计总数时多取一条判断是否还有下一页
	limit := opts.Limit
	if !opts.CountTotal {
		limit++
	}
	findOpts := options.Find().SetSkip(skip).SetLimit(limit)
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Projection != nil {
		findOpts.SetProjection(opts.Projection)
	}

	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("xmongo offset_page find %s: %w", coll.Name(), err)
	}
	data, err := decodeAll(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("xmongo offset_page %s: %w", coll.Name(), err)
	}

	result = &PageResult{
		Page:  opts.Page,
		Limit: opts.Limit,
	}
	if opts.CountTotal {
		result.Total = total
		result.TotalPages = storageopt.CalculateTotalPages(total, opts.Limit)
		// total-skip 不会溢出，skip+len 在极端页码下可能溢出
		result.HasMore = total-skip > int64(len(data))
	} else if int64(len(data)) > opts.Limit {
		data = data[:opts.Limit]
		result.HasMore = true
	}
	result.Data = data
	return result, nil
}

// =============================================================================
// 键集分页
// =============================================================================

// KeyPage 键集分页查询。
func (w *mongoWrapper) KeyPage(ctx context.Context, coll *mongo.Collection, filter bson.M, opts KeyOptions) (*KeyPageResult, error) {
	if err := w.guard(ctx, coll); err != nil {
		return nil, err
	}
	return w.keyPage(ctx, adaptCollection(coll), filter, opts)
}

// keyPage 键集分页内部实现。
//
// 排序仅按 SortField 一个字段；多取一条用于判断 HasMore，不返回给调用方。
func (w *mongoWrapper) keyPage(ctx context.Context, coll collectionOperations, filter bson.M, opts KeyOptions) (result *KeyPageResult, err error) {
	if opts.SortField == "" {
		return nil, ErrMissingSortField
	}
	if opts.Limit < 1 || opts.Limit > MaxPageSize {
		return nil, ErrInvalidLimit
	}

	ctx, cancel := storageopt.FallbackContext(ctx, w.options.QueryTimeout)
	defer cancel()

	coll, filter = w.prepare(ctx, coll, filter)
	if opts.After != nil {
		filter = keyFilter(filter, opts.SortField, storageopt.KeyRange(opts.Descending), opts.After)
	}

	ctx, span := w.startSpan(ctx, coll, "key_page")
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	findOpts := options.Find().
		SetSort(bson.D{{Key: opts.SortField, Value: storageopt.SortDirection(opts.Descending)}}).
		SetLimit(opts.Limit + 1)
	if opts.Projection != nil {
		findOpts.SetProjection(opts.Projection)
	}

	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("xmongo key_page find %s: %w", coll.Name(), err)
	}
	data, err := decodeAll(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("xmongo key_page %s: %w", coll.Name(), err)
	}

	result = &KeyPageResult{}
	if int64(len(data)) > opts.Limit {
		data = data[:opts.Limit]
		result.HasMore = true
	}
	if len(data) > 0 {
		key, ok := lookupPath(data[len(data)-1], opts.SortField)
		// 还有下一页却拿不到键时，调用方只能从第一页重新开始，会无限循环
		if !ok && result.HasMore {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingSortKey, coll.Name(), opts.SortField)
		}
		result.NextKey = key
	}
	result.Data = data
	return result, nil
}

// lookupPath 按点分路径读取字段，嵌套文档可能解码为 bson.M 或 bson.D。
func lookupPath(doc bson.M, path string) (any, bool) {
	if v, ok := doc[path]; ok {
		return v, true
	}
	var cur any = doc
	for part := range strings.SplitSeq(path, ".") {
		switch d := cur.(type) {
		case bson.M:
			v, ok := d[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			idx := slices.IndexFunc(d, func(e bson.E) bool { return e.Key == part })
			if idx < 0 {
				return nil, false
			}
			cur = d[idx].Value
		default:
			return nil, false
		}
	}
	return cur, true
}

// keyFilter 在 filter 上追加排序字段的范围条件，不修改原 filter。
//
// filter 已约束该字段时（如 {created_at: {$gte: t}}），两者以 $and 组合，
// 避免覆盖调用方条件。
func keyFilter(filter bson.M, field, op string, after any) bson.M {
	rangeCond := bson.M{field: bson.M{op: after}}
	if _, constrained := filter[field]; constrained {
		return bson.M{"$and": bson.A{filter, rangeCond}}
	}
	out := maps.Clone(filter)
	if out == nil {
		out = bson.M{}
	}
	out[field] = rangeCond[field]
	return out
}
