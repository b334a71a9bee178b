package xquery

import (
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// PredicateFields 返回查询条件引用的字段名（去重、升序）。
// 递归展开 $and/$or/$nor，其余以 $ 开头的顶层操作符（如 $text、$expr）被忽略。
func PredicateFields(filter bson.M) []string {
	seen := make(map[string]struct{})
	collectFields(filter, seen)

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

func collectFields(filter bson.M, seen map[string]struct{}) {
	for key, value := range filter {
		if isLogical(key) {
			for _, sub := range subPredicates(value) {
				collectFields(sub, seen)
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			continue
		}
		seen[key] = struct{}{}
	}
}

// Shape 返回查询形状指纹：只取决于字段集合，与取值和顺序无关。
// 同一形状的查询通常命中同一索引，用于在报告中归并慢查询。
func Shape(filter bson.M) uint64 {
	fields := PredicateFields(filter)
	if len(fields) == 0 {
		return 0
	}
	return xxhash.Sum64String(strings.Join(fields, ","))
}

func isLogical(key string) bool {
	return key == "$and" || key == "$or" || key == "$nor"
}

// subPredicates 将逻辑操作符的参数转为 bson.M 列表，无法识别的元素被跳过。
func subPredicates(v any) []bson.M {
	var items []any
	switch list := v.(type) {
	case bson.A:
		items = list
	case []any:
		items = list
	case []bson.M:
		return list
	case []bson.D:
		out := make([]bson.M, 0, len(list))
		for _, d := range list {
			out = append(out, docToMap(d))
		}
		return out
	case []map[string]any:
		out := make([]bson.M, 0, len(list))
		for _, m := range list {
			out = append(out, bson.M(m))
		}
		return out
	default:
		return nil
	}

	out := make([]bson.M, 0, len(items))
	for _, item := range items {
		switch p := item.(type) {
		case bson.M:
			out = append(out, p)
		case map[string]any:
			out = append(out, bson.M(p))
		case bson.D:
			out = append(out, docToMap(p))
		}
	}
	return out
}

func docToMap(d bson.D) bson.M {
	m := make(bson.M, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}

func sortedKeys(m bson.M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
