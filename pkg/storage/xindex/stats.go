package xindex

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/observability/xmetrics"
)

// IndexInfo 单个索引的元数据与大小。
type IndexInfo struct {
	Name               string
	Keys               bson.D
	Unique             bool
	Sparse             bool
	ExpireAfterSeconds *int32
	SizeBytes          int64
}

// IndexStats 集合的索引统计。
type IndexStats struct {
	Collection     string
	IndexCount     int
	Indexes        []IndexInfo
	TotalSizeBytes int64
}

// Stats 返回集合的索引列表与大小。
//
// 索引元数据来自 listIndexes，大小来自 collStats；
// 两者之间新建的索引大小按 0 计。
func (m *Manager) Stats(ctx context.Context, coll *mongo.Collection) (IndexStats, error) {
	target, err := adapt(coll)
	if err != nil {
		return IndexStats{}, err
	}
	return m.stats(ctx, target)
}

func (m *Manager) stats(ctx context.Context, target indexTarget) (out IndexStats, err error) {
	collection := target.Name()
	ctx, span := m.start(ctx, "stats", collection)
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Int("index_count", out.IndexCount)}})
	}()

	existing, err := target.ListIndexes(ctx)
	if err != nil {
		m.logger.Warn(ctx, "list indexes failed", xlog.Collection(collection), xlog.Err(err))
		return IndexStats{}, fmt.Errorf("%w: %s: %w", ErrListIndexes, collection, err)
	}
	cs, err := target.CollStats(ctx)
	if err != nil {
		m.logger.Warn(ctx, "collStats failed", xlog.Collection(collection), xlog.Err(err))
		return IndexStats{}, fmt.Errorf("%w: %s: %w", ErrIndexStats, collection, err)
	}

	out = IndexStats{
		Collection:     collection,
		IndexCount:     len(existing),
		Indexes:        make([]IndexInfo, 0, len(existing)),
		TotalSizeBytes: cs.TotalIndexSize,
	}
	for _, e := range existing {
		out.Indexes = append(out.Indexes, IndexInfo{
			Name:               e.Name,
			Keys:               cloneD(e.Key),
			Unique:             e.Unique,
			Sparse:             e.Sparse,
			ExpireAfterSeconds: e.ExpireAfterSeconds,
			SizeBytes:          cs.IndexSizes[e.Name],
		})
	}
	return out, nil
}

// Report 以表格形式输出索引统计。
func (s IndexStats) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Indexes of %s: %d, total size %s\n", s.Collection, s.IndexCount, humanize.IBytes(nonNegative(s.TotalSizeBytes)))
	if len(s.Indexes) == 0 {
		return b.String()
	}

	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Name", "Keys", "Options", "Size"})
	table.SetAutoWrapText(false)
	for _, idx := range s.Indexes {
		table.Append([]string{
			idx.Name,
			formatKeys(idx.Keys),
			idx.options(),
			humanize.IBytes(nonNegative(idx.SizeBytes)),
		})
	}
	table.Render()
	return b.String()
}

func (i IndexInfo) options() string {
	var opts []string
	if i.Unique {
		opts = append(opts, "unique")
	}
	if i.Sparse {
		opts = append(opts, "sparse")
	}
	if i.ExpireAfterSeconds != nil {
		opts = append(opts, "ttl="+strconv.Itoa(int(*i.ExpireAfterSeconds))+"s")
	}
	return strings.Join(opts, ",")
}

func formatKeys(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.Key+":"+keyValueString(k.Value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func nonNegative(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
