package xlog

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redacted 脱敏后的占位值。
const Redacted = "***"

// sensitiveKeys 值整体替换为占位符的字段名（小写比较）。
var sensitiveKeys = map[string]struct{}{
	"password": {},
	"passwd":   {},
	"pwd":      {},
	"secret":   {},
	"token":    {},
}

// credentialPattern 匹配连接串中的 user:password@ 片段。
var credentialPattern = regexp.MustCompile(`(mongodb(?:\+srv)?://[^:/@\s]+):[^@\s]*@`)

// RedactString 遮蔽文本中所有连接串携带的密码。
func RedactString(s string) string {
	if !strings.Contains(s, "://") {
		return s
	}
	return credentialPattern.ReplaceAllString(s, "${1}:"+Redacted+"@")
}

// RedactAttr 内置脱敏规则，签名与 slog.HandlerOptions.ReplaceAttr 一致。
//
// 敏感字段名的值被整体替换；其他字符串值（包括日志消息）中的连接串密码被遮蔽。
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindString {
		if s := v.String(); strings.Contains(s, "://") {
			return slog.String(a.Key, RedactString(s))
		}
	}
	return a
}
