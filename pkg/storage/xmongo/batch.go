package xmongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xdbtune/internal/storageopt"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
)

const defaultBatchField = "_id"

// BatchFind 按键列表分批查询。
func (w *mongoWrapper) BatchFind(ctx context.Context, coll *mongo.Collection, ids []any, opts BatchOptions) ([]bson.M, error) {
	if err := w.guard(ctx, coll); err != nil {
		return nil, err
	}
	return w.batchFind(ctx, adaptCollection(coll), ids, opts)
}

// batchFind 批量查询内部实现。
//
// 键先去重再按 BatchSize 切块，每块一次 {field: {$in: chunk}} 查询。
// 默认顺序执行；Parallelism > 1 时用 errgroup 限流并发，任一块失败即取消其余块。
// 结果按 _id 去重（投影排除 _id 时不去重）。
func (w *mongoWrapper) batchFind(ctx context.Context, coll collectionOperations, ids []any, opts BatchOptions) (docs []bson.M, err error) {
	if len(ids) == 0 {
		return nil, ErrEmptyIDs
	}
	opts, err = normalizeBatchOptions(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := storageopt.FallbackContext(ctx, w.options.QueryTimeout)
	defer cancel()

	chunks := chunkIDs(dedupeIDs(ids), opts.BatchSize)

	w.recordUsage(coll, []string{opts.Field})
	coll = withTracking(coll, w.options.Tracker)
	ctx, span := w.startSpan(ctx, coll, "batch_find")
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{
			xmetrics.Int("batch.chunks", len(chunks)),
			xmetrics.Int("batch.parallelism", opts.Parallelism),
		}})
	}()

	results := make([][]bson.M, len(chunks))
	fetch := func(ctx context.Context, i int) error {
		data, err := w.fetchChunk(ctx, coll, opts, chunks[i])
		if err != nil {
			return fmt.Errorf("xmongo batch_find %s chunk %d/%d: %w", coll.Name(), i+1, len(chunks), err)
		}
		results[i] = data
		return nil
	}

	if opts.Parallelism > 1 && len(chunks) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Parallelism)
		for i := range chunks {
			g.Go(func() error { return fetch(gctx, i) })
		}
		if err = g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range chunks {
			if err = fetch(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	return mergeDocs(results), nil
}

func (w *mongoWrapper) fetchChunk(ctx context.Context, coll collectionOperations, opts BatchOptions, chunk []any) ([]bson.M, error) {
	filter := bson.M{opts.Field: bson.M{"$in": chunk}}
	var findOpts []options.Lister[options.FindOptions]
	if opts.Projection != nil {
		findOpts = append(findOpts, options.Find().SetProjection(opts.Projection))
	}
	cursor, err := coll.Find(ctx, filter, findOpts...)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor)
}

func normalizeBatchOptions(opts BatchOptions) (BatchOptions, error) {
	if opts.Field == "" {
		opts.Field = defaultBatchField
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize > MaxBatchSize {
		return opts, fmt.Errorf("%w: %d > %d", ErrInvalidBatchSize, opts.BatchSize, MaxBatchSize)
	}
	if opts.Parallelism < 0 {
		opts.Parallelism = 0
	}
	return opts, nil
}

// chunkIDs 按 size 切块，最后一块可能不满。
func chunkIDs(ids []any, size int) [][]any {
	chunks := make([][]any, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// dedupeIDs 保序去重。以 BSON 编码作为比较键，ObjectID、bson.D 等类型均可比较。
// 无法编码的值原样保留，由服务端报错。
func dedupeIDs(ids []any) []any {
	seen := make(map[string]struct{}, len(ids))
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		key, ok := valueKey(id)
		if ok {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, id)
	}
	return out
}

// mergeDocs 合并各块结果并按 _id 去重。
// 数组字段可能让同一文档命中多个块。
func mergeDocs(results [][]bson.M) []bson.M {
	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]bson.M, 0, total)
	seen := make(map[string]struct{}, total)
	for _, r := range results {
		for _, doc := range r {
			if id, has := doc["_id"]; has {
				if key, ok := valueKey(id); ok {
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
				}
			}
			out = append(out, doc)
		}
	}
	return out
}

func valueKey(v any) (string, bool) {
	t, data, err := bson.MarshalValue(v)
	if err != nil {
		return "", false
	}
	return string(byte(t)) + string(data), true
}
