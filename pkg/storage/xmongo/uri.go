package xmongo

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/omeyang/xdbtune/pkg/observability/xlog"
)

// HostInfo 连接目标。
type HostInfo struct {
	// Hosts host:port 列表；SRV 模式下只能有一个不带端口的域名。
	Hosts      []string
	Database   string
	AuthSource string
	ReplicaSet string
	AppName    string
	SRV        bool
}

// Credentials 认证信息。
type Credentials struct {
	Username string
	Password string
}

// LogValue 实现 slog.LogValuer，密码不会出现在日志中。
func (c Credentials) LogValue() slog.Value {
	password := ""
	if c.Password != "" {
		password = xlog.Redacted
	}
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", password),
	)
}

// ConnectionURI 构建好的连接串。
//
// String、GoString 与 LogValue 都返回脱敏形式（user:***@），
// 只有 Raw 返回带密码的完整连接串，用于交给驱动。
type ConnectionURI struct {
	raw      string
	redacted string
}

// Raw 返回完整连接串（含密码），不要写入日志。
func (u ConnectionURI) Raw() string { return u.raw }

// String 返回脱敏连接串。
func (u ConnectionURI) String() string { return u.redacted }

// GoString 返回脱敏连接串，%#v 同样不会泄漏密码。
func (u ConnectionURI) GoString() string { return strconv.Quote(u.redacted) }

// LogValue 实现 slog.LogValuer。
func (u ConnectionURI) LogValue() slog.Value { return slog.StringValue(u.redacted) }

// IsZero 判断是否为零值。
func (u ConnectionURI) IsZero() bool { return u.raw == "" }

// BuildURI 根据连接目标、认证信息与连接池配置构建连接串。纯函数，结果确定。
//
// 用户名和密码按 RFC 3986 百分号编码（空格编码为 %20 而非 +）；
// 查询参数按键名排序，空的可选参数（authSource、replicaSet、appName、compressors）不输出。
// 参数非法时返回包装 ErrInvalidConfig 的错误。
func BuildURI(host HostInfo, cred Credentials, cfg PoolConfig) (ConnectionURI, error) {
	if err := validateHosts(host); err != nil {
		return ConnectionURI{}, err
	}
	if cred.Password != "" && cred.Username == "" {
		return ConnectionURI{}, fmt.Errorf("%w: password without username", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return ConnectionURI{}, err
	}

	query := encodeParams(host, cfg)
	raw := assembleURI(host, userinfo(cred.Username, escape(cred.Password)), query)
	redacted := raw
	if cred.Password != "" {
		redacted = assembleURI(host, userinfo(cred.Username, xlog.Redacted), query)
	}
	return ConnectionURI{raw: raw, redacted: redacted}, nil
}

func validateHosts(host HostInfo) error {
	if len(host.Hosts) == 0 {
		return fmt.Errorf("%w: no hosts", ErrInvalidConfig)
	}
	for i, h := range host.Hosts {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("%w: empty host at index %d", ErrInvalidConfig, i)
		}
	}
	if !host.SRV {
		return nil
	}
	if len(host.Hosts) != 1 {
		return fmt.Errorf("%w: srv requires exactly one host, got %d", ErrInvalidConfig, len(host.Hosts))
	}
	if _, _, err := net.SplitHostPort(host.Hosts[0]); err == nil {
		return fmt.Errorf("%w: srv host %q must not carry a port", ErrInvalidConfig, host.Hosts[0])
	}
	return nil
}

// userinfo 返回 "user:password@" 片段，password 须已编码。
func userinfo(username, encodedPassword string) string {
	if username == "" {
		return ""
	}
	if encodedPassword == "" {
		return escape(username) + "@"
	}
	return escape(username) + ":" + encodedPassword + "@"
}

func assembleURI(host HostInfo, auth, query string) string {
	var b strings.Builder
	if host.SRV {
		b.WriteString("mongodb+srv://")
	} else {
		b.WriteString("mongodb://")
	}
	b.WriteString(auth)
	b.WriteString(strings.Join(host.Hosts, ","))
	b.WriteByte('/')
	b.WriteString(url.PathEscape(host.Database))
	b.WriteByte('?')
	b.WriteString(query)
	return b.String()
}

func encodeParams(host HostInfo, cfg PoolConfig) string {
	params := map[string]string{
		"maxPoolSize":              strconv.FormatUint(cfg.MaxPoolSize, 10),
		"minPoolSize":              strconv.FormatUint(cfg.MinPoolSize, 10),
		"maxIdleTimeMS":            millis(cfg.MaxIdleTime),
		"waitQueueTimeoutMS":       millis(cfg.WaitQueueTimeout),
		"socketTimeoutMS":          millis(cfg.SocketTimeout),
		"connectTimeoutMS":         millis(cfg.ConnectTimeout),
		"serverSelectionTimeoutMS": millis(cfg.ServerSelectionTimeout),
		"retryWrites":              strconv.FormatBool(cfg.RetryWrites),
		"retryReads":               strconv.FormatBool(cfg.RetryReads),
	}
	optional := map[string]string{
		"compressors": strings.Join(cfg.Compressors, ","),
		"authSource":  host.AuthSource,
		"replicaSet":  host.ReplicaSet,
		"appName":     host.AppName,
	}
	for k, v := range optional {
		if v != "" {
			params[k] = v
		}
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+escape(params[k]))
	}
	return strings.Join(pairs, "&")
}

// escape 按 RFC 3986 编码，QueryEscape 会把空格编码成 +，这里改回 %20。
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func millis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
