package xmetrics

import "time"

const (
	attrCollection = "db.collection"
	attrSlow       = "slow"
)

func String(key, value string) Attr { return Attr{Key: key, Value: value} }

func Bool(key string, value bool) Attr { return Attr{Key: key, Value: value} }

func Int(key string, value int) Attr { return Attr{Key: key, Value: value} }

func Int64(key string, value int64) Attr { return Attr{Key: key, Value: value} }

// Duration 时间间隔属性，导出为毫秒。
func Duration(key string, value time.Duration) Attr { return Attr{Key: key, Value: value} }

// DBAttrs 返回 MongoDB 调用的语义属性，空的 database 或 collection 被省略。
func DBAttrs(database, collection string) []Attr {
	attrs := []Attr{String("db.system", "mongodb")}
	if database != "" {
		attrs = append(attrs, String("db.name", database))
	}
	if collection != "" {
		attrs = append(attrs, String(attrCollection, collection))
	}
	return attrs
}

// SlowAttrs 慢查询标记，slow 为 false 时返回 nil。
func SlowAttrs(slow bool, threshold time.Duration) []Attr {
	if !slow {
		return nil
	}
	return []Attr{
		Bool(attrSlow, true),
		Int64("slow_threshold_ms", threshold.Milliseconds()),
	}
}
