package xquery

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xdbtune/pkg/observability/xlog"
)

// AdvisoryKind 优化建议类型。
type AdvisoryKind string

// AdvisoryPrefixRange 锚定前缀的正则可以改写为范围查询以利用普通索引。
const AdvisoryPrefixRange AdvisoryKind = "prefix_range"

// Advisory 查询优化建议。只是提示，不会改写查询。
type Advisory struct {
	Kind    AdvisoryKind
	Field   string
	Pattern string
	Message string
}

// Analyze 规范化查询条件并返回优化建议。
//
// 返回的 filter 是新的 map，filter 本身不会被修改。nil 输入返回 nil。
func Analyze(filter bson.M) (bson.M, []Advisory) {
	if filter == nil {
		return nil, nil
	}

	out := make(bson.M, len(filter))
	for key, value := range filter {
		if isNullValue(value) {
			continue
		}
		if key == "$or" {
			value = sortAlternatives(value)
		}
		out[key] = value
	}

	return out, collectAdvisories(out, nil)
}

// isNullValue 判断是否为 nil、BSON null 或 undefined。
// 这类值会匹配"字段为 null 或不存在"的文档，通常是调用方漏传参数。
func isNullValue(v any) bool {
	switch v.(type) {
	case nil, bson.Null, bson.Undefined:
		return true
	default:
		return false
	}
}

// =============================================================================
// $or 排序
// =============================================================================

// sortAlternatives 按子条件键数降序稳定排序，保持原切片类型。
// 不认识的类型原样返回。
func sortAlternatives(v any) any {
	switch alts := v.(type) {
	case bson.A:
		return bson.A(sortByKeyCount([]any(alts)))
	case []any:
		return sortByKeyCount(alts)
	case []bson.M:
		sorted := slices.Clone(alts)
		slices.SortStableFunc(sorted, func(a, b bson.M) int { return len(b) - len(a) })
		return sorted
	case []bson.D:
		sorted := slices.Clone(alts)
		slices.SortStableFunc(sorted, func(a, b bson.D) int { return len(b) - len(a) })
		return sorted
	case []map[string]any:
		sorted := slices.Clone(alts)
		slices.SortStableFunc(sorted, func(a, b map[string]any) int { return len(b) - len(a) })
		return sorted
	default:
		return v
	}
}

func sortByKeyCount(alts []any) []any {
	sorted := slices.Clone(alts)
	slices.SortStableFunc(sorted, func(a, b any) int { return keyCount(b) - keyCount(a) })
	return sorted
}

func keyCount(v any) int {
	switch p := v.(type) {
	case bson.M:
		return len(p)
	case map[string]any:
		return len(p)
	case bson.D:
		return len(p)
	default:
		return 0
	}
}

// =============================================================================
// 正则建议
// =============================================================================

func collectAdvisories(filter bson.M, advisories []Advisory) []Advisory {
	// map 遍历无序，按键排序保证建议顺序稳定
	for _, key := range sortedKeys(filter) {
		value := filter[key]
		if isLogical(key) {
			for _, sub := range subPredicates(value) {
				advisories = collectAdvisories(sub, advisories)
			}
			continue
		}
		if pattern, options, ok := regexOf(value); ok && isPrefixAnchored(pattern, options) {
			advisories = append(advisories, Advisory{
				Kind:    AdvisoryPrefixRange,
				Field:   key,
				Pattern: pattern,
				Message: "anchored regex can be rewritten as a range query ($gte/$lt) to use a standard index",
			})
		}
	}
	return advisories
}

// regexOf 识别 bson.Regex、*regexp.Regexp 和 {$regex, $options} 三种写法。
func regexOf(v any) (pattern, options string, ok bool) {
	switch r := v.(type) {
	case bson.Regex:
		return r.Pattern, r.Options, true
	case *regexp.Regexp:
		if r == nil {
			return "", "", false
		}
		return r.String(), "", true
	case bson.M:
		return regexFromOperator(r["$regex"], r["$options"])
	case map[string]any:
		return regexFromOperator(r["$regex"], r["$options"])
	case bson.D:
		var re, opts any
		for _, e := range r {
			switch e.Key {
			case "$regex":
				re = e.Value
			case "$options":
				opts = e.Value
			}
		}
		return regexFromOperator(re, opts)
	default:
		return "", "", false
	}
}

func regexFromOperator(re, opts any) (string, string, bool) {
	options, _ := opts.(string)
	switch p := re.(type) {
	case string:
		return p, options, true
	case bson.Regex:
		return p.Pattern, p.Options + options, true
	case *regexp.Regexp:
		if p == nil {
			return "", "", false
		}
		return p.String(), options, true
	default:
		return "", "", false
	}
}

// isPrefixAnchored 以 ^ 开头且不区分大小写、多行选项都未开启。
// Go 正则的内联标志 (?i) 出现在开头时，模式本身就不以 ^ 开头。
func isPrefixAnchored(pattern, options string) bool {
	return strings.HasPrefix(pattern, "^") && !strings.ContainsAny(options, "im")
}

// =============================================================================
// Optimizer
// =============================================================================

// Optimizer 执行 Analyze 并将建议记录到日志。
type Optimizer struct {
	logger xlog.Logger
}

// OptimizerOption 配置 Optimizer。
type OptimizerOption func(*Optimizer)

// WithOptimizerLogger 设置日志器，nil 被忽略。
func WithOptimizerLogger(logger xlog.Logger) OptimizerOption {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOptimizer 创建 Optimizer，默认丢弃日志。
func NewOptimizer(opts ...OptimizerOption) *Optimizer {
	o := &Optimizer{logger: xlog.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Optimize 规范化查询条件，建议以 Info 级别记录。
func (o *Optimizer) Optimize(ctx context.Context, filter bson.M) bson.M {
	out, advisories := Analyze(filter)
	for _, a := range advisories {
		o.logger.Info(ctx, "query advisory",
			slog.String("kind", string(a.Kind)),
			slog.String("field", a.Field),
			slog.String("pattern", a.Pattern),
			slog.String("hint", a.Message),
		)
	}
	return out
}
