package xindex

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/olekukonko/tablewriter"
)

// ErrInvalidCapacity 表示使用记录容量小于 1。
var ErrInvalidCapacity = errors.New("xindex: usage capacity must be >= 1")

// 建议阈值：字段出现在至少 SuggestMinUses 个模式中才建议建索引，
// 达到 SuggestHighUses 时优先级为 high。
const (
	SuggestMinUses  = 5
	SuggestHighUses = 10
)

// idField _id 自带索引，不参与建议。
const idField = "_id"

// Priority 建议优先级。
type Priority string

// 建议优先级。
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// UsageRecord 单个 (集合, 字段) 的使用计数，只增不减。
type UsageRecord struct {
	Collection   string
	Field        string
	UsageCount   int64
	LastAccessed time.Time
}

// Suggestion 索引建议。由计数推导，不持久化。
type Suggestion struct {
	Collection string
	Field      string
	Kind       Kind
	Priority   Priority
	Reason     string
	Uses       int64
}

type usageKey struct {
	collection string
	field      string
}

// UsageRecorder 记录查询谓词字段的使用频率。
//
// 设计决策: 以 LRU 限制记录条数，长时间运行的进程中冷门字段会被淘汰，
// 内存不随字段种类无限增长。LRU 自身线程安全，但"读取-加一-写回"
// 需要原子完成，因此外层再加一把互斥锁。
type UsageRecorder struct {
	mu      sync.Mutex
	cache   *lru.Cache[usageKey, UsageRecord]
	now     func() time.Time
	evicted atomic.Int64
}

// UsageOption 配置 UsageRecorder。
type UsageOption func(*UsageRecorder)

// WithUsageClock 替换时钟，测试用。
func WithUsageClock(now func() time.Time) UsageOption {
	return func(r *UsageRecorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewUsageRecorder 创建最多保留 capacity 条记录的使用记录器。
func NewUsageRecorder(capacity int, opts ...UsageOption) (*UsageRecorder, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	r := &UsageRecorder{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	cache, err := lru.NewWithEvict(capacity, func(usageKey, UsageRecord) {
		r.evicted.Add(1)
	})
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

// RecordPattern 为一次查询的谓词字段各加一次计数。
// 同一模式中重复的字段只计一次，空字段名被忽略。
func (r *UsageRecorder) RecordPattern(collection string, fields []string) {
	if len(fields) == 0 {
		return
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range dedupe(fields) {
		key := usageKey{collection: collection, field: f}
		rec, ok := r.cache.Get(key)
		if !ok {
			rec = UsageRecord{Collection: collection, Field: f}
		}
		rec.UsageCount++
		rec.LastAccessed = now
		r.cache.Add(key, rec)
	}
}

// Records 返回集合的使用记录，按计数降序、字段名升序。
func (r *UsageRecorder) Records(collection string) []UsageRecord {
	r.mu.Lock()
	values := r.cache.Values()
	r.mu.Unlock()

	out := make([]UsageRecord, 0, len(values))
	for _, v := range values {
		if v.Collection == collection {
			out = append(out, v)
		}
	}
	sortRecords(out)
	return out
}

// All 返回全部使用记录，按集合、计数降序、字段名排序。
func (r *UsageRecorder) All() []UsageRecord {
	r.mu.Lock()
	out := r.cache.Values()
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b UsageRecord) int {
		if c := cmp.Compare(a.Collection, b.Collection); c != 0 {
			return c
		}
		return compareRecord(a, b)
	})
	return out
}

// Len 返回当前记录条数。
func (r *UsageRecorder) Len() int {
	return r.cache.Len()
}

// Evicted 返回因容量限制被淘汰的记录数。
func (r *UsageRecorder) Evicted() int64 {
	return r.evicted.Load()
}

// SuggestFromUsage 按已记录的计数生成建议，阈值与 SuggestIndexes 相同。
func (r *UsageRecorder) SuggestFromUsage(collection string) []Suggestion {
	counts := make(map[string]int64)
	for _, rec := range r.Records(collection) {
		if rec.Field != idField {
			counts[rec.Field] = rec.UsageCount
		}
	}
	return suggest(collection, counts)
}

// SuggestIndexes 统计每个字段出现在多少个模式中，为出现次数 >= 5 的字段建议单字段索引，
// >= 10 为 high，否则为 medium。
//
// 只是频率启发，不考虑选择性和已有索引；复合索引建议不在此范围内。
func SuggestIndexes(collection string, patterns [][]string) []Suggestion {
	counts := make(map[string]int64)
	for _, p := range patterns {
		for _, f := range dedupe(p) {
			if f != idField {
				counts[f]++
			}
		}
	}
	return suggest(collection, counts)
}

func suggest(collection string, counts map[string]int64) []Suggestion {
	var out []Suggestion
	for field, n := range counts {
		if n < SuggestMinUses {
			continue
		}
		priority := PriorityMedium
		if n >= SuggestHighUses {
			priority = PriorityHigh
		}
		out = append(out, Suggestion{
			Collection: collection,
			Field:      field,
			Kind:       KindSingle,
			Priority:   priority,
			Reason:     fmt.Sprintf("field %q used in %d query patterns", field, n),
			Uses:       n,
		})
	}
	slices.SortFunc(out, func(a, b Suggestion) int {
		if c := cmp.Compare(b.Uses, a.Uses); c != 0 {
			return c
		}
		return cmp.Compare(a.Field, b.Field)
	})
	return out
}

// Report 以表格形式输出全部使用记录。
func (r *UsageRecorder) Report() string {
	records := r.All()

	var b strings.Builder
	b.WriteString("Index Usage Report\n")
	if len(records) == 0 {
		b.WriteString("No usage recorded.\n")
		return b.String()
	}

	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Collection", "Field", "Uses", "Last Accessed"})
	table.SetAutoWrapText(false)
	for _, rec := range records {
		table.Append([]string{
			rec.Collection,
			rec.Field,
			strconv.FormatInt(rec.UsageCount, 10),
			rec.LastAccessed.UTC().Format(time.RFC3339),
		})
	}
	table.Render()
	return b.String()
}

func dedupe(fields []string) []string {
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func sortRecords(records []UsageRecord) {
	slices.SortFunc(records, compareRecord)
}

func compareRecord(a, b UsageRecord) int {
	if c := cmp.Compare(b.UsageCount, a.UsageCount); c != 0 {
		return c
	}
	return cmp.Compare(a.Field, b.Field)
}
