package xconf

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/omeyang/xdbtune/pkg/context/xenv"
	"github.com/omeyang/xdbtune/pkg/observability/xlog"
)

// Settings xdbtune 的完整配置。
type Settings struct {
	Tier    string                   `koanf:"tier"`
	Mongo   MongoSettings            `koanf:"mongo"`
	Query   QuerySettings            `koanf:"query"`
	Health  HealthSettings           `koanf:"health"`
	Log     LogSettings              `koanf:"log"`
	Indexes map[string]IndexSettings `koanf:"indexes"`
}

// MongoSettings 连接参数。
type MongoSettings struct {
	Hosts      []string `koanf:"hosts"`
	Database   string   `koanf:"database"`
	Username   string   `koanf:"username"`
	Password   string   `koanf:"password"`
	AuthSource string   `koanf:"auth_source"`
	ReplicaSet string   `koanf:"replica_set"`
	AppName    string   `koanf:"app_name"`
	SRV        bool     `koanf:"srv"`
}

// LogValue 实现 slog.LogValuer，密码不会出现在日志中。
func (m MongoSettings) LogValue() slog.Value {
	password := ""
	if m.Password != "" {
		password = xlog.Redacted
	}
	return slog.GroupValue(
		slog.String("hosts", strings.Join(m.Hosts, ",")),
		slog.String("database", m.Database),
		slog.String("username", m.Username),
		slog.String("password", password),
		slog.String("auth_source", m.AuthSource),
		slog.String("replica_set", m.ReplicaSet),
		slog.Bool("srv", m.SRV),
	)
}

// QuerySettings 查询埋点参数。
type QuerySettings struct {
	// SlowThreshold 慢查询阈值，0 表示关闭慢查询检测。
	SlowThreshold time.Duration `koanf:"slow_threshold"`
	// MetricsCapacity 指标环形缓冲区容量。
	MetricsCapacity int `koanf:"metrics_capacity"`
	// MetricsRetention 指标保留时长，0 表示仅受容量约束。
	MetricsRetention time.Duration `koanf:"metrics_retention"`
	// UsageCapacity 索引使用记录的 LRU 容量。
	UsageCapacity int `koanf:"usage_capacity"`
}

// HealthSettings 连接池健康监控参数。
type HealthSettings struct {
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`
	Retries  uint          `koanf:"retries"`
}

// LogSettings 日志参数。
type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File 非空时写入文件并按大小轮转。
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	// Verbose 为 true 时每个查询都输出一行 Debug 日志。
	Verbose bool `koanf:"verbose"`
}

// IndexSettings 单个集合的索引配置，覆盖内置的集合角色表。
type IndexSettings struct {
	Role         string   `koanf:"role"`
	OwnerField   string   `koanf:"owner_field"`
	TimeField    string   `koanf:"time_field"`
	Flags        []string `koanf:"flags"`
	Identifiers  []string `koanf:"identifiers"`
	ModuleField  string   `koanf:"module_field"`
	ItemField    string   `koanf:"item_field"`
	PublishField string   `koanf:"publish_field"`
	Tags         []string `koanf:"tags"`
}

// 默认值。
const (
	DefaultSlowThreshold   = 100 * time.Millisecond
	DefaultMetricsCapacity = 10000
	DefaultUsageCapacity   = 4096
	DefaultHealthInterval  = 30 * time.Second
	DefaultHealthTimeout   = 5 * time.Second
	DefaultHealthRetries   = 3
)

// DefaultSettings 返回默认配置。
func DefaultSettings() *Settings {
	return &Settings{
		Tier: string(xenv.TierDevelopment),
		Mongo: MongoSettings{
			Hosts:    []string{"localhost:27017"},
			Database: "app",
		},
		Query: QuerySettings{
			SlowThreshold:   DefaultSlowThreshold,
			MetricsCapacity: DefaultMetricsCapacity,
			UsageCapacity:   DefaultUsageCapacity,
		},
		Health: HealthSettings{
			Interval: DefaultHealthInterval,
			Timeout:  DefaultHealthTimeout,
			Retries:  DefaultHealthRetries,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// TierValue 返回解析后的部署层级。Validate 通过后不会出错。
func (s *Settings) TierValue() (xenv.Tier, error) {
	return xenv.Parse(s.Tier)
}

// Validate 校验配置，返回所有问题的合并错误。
func (s *Settings) Validate() error {
	var errs []error

	if _, err := s.TierValue(); err != nil {
		errs = append(errs, err)
	}
	if len(s.Mongo.Hosts) == 0 {
		errs = append(errs, errors.New("mongo.hosts is empty"))
	}
	if s.Mongo.Database == "" {
		errs = append(errs, errors.New("mongo.database is empty"))
	}
	if s.Mongo.Password != "" && s.Mongo.Username == "" {
		errs = append(errs, errors.New("mongo.password set without mongo.username"))
	}
	if s.Query.SlowThreshold < 0 {
		errs = append(errs, errors.New("query.slow_threshold must be >= 0"))
	}
	if s.Query.MetricsCapacity < 1 {
		errs = append(errs, errors.New("query.metrics_capacity must be >= 1"))
	}
	if s.Query.MetricsRetention < 0 {
		errs = append(errs, errors.New("query.metrics_retention must be >= 0"))
	}
	if s.Query.UsageCapacity < 1 {
		errs = append(errs, errors.New("query.usage_capacity must be >= 1"))
	}
	if s.Health.Interval <= 0 {
		errs = append(errs, errors.New("health.interval must be > 0"))
	}
	if s.Health.Timeout <= 0 {
		errs = append(errs, errors.New("health.timeout must be > 0"))
	}
	if _, err := xlog.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(s.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q (expected text or json)", s.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}

// Decode 将 Config 反序列化到默认配置之上并校验。
func Decode(cfg Config) (*Settings, error) {
	settings := DefaultSettings()
	if err := cfg.Unmarshal("", settings); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Load 从文件加载配置并叠加环境变量覆盖。
// 同时返回 Config，供 Watch 使用。
func Load(path string, opts ...Option) (*Settings, Config, error) {
	cfg, err := New(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	settings, err := Decode(cfg)
	if err != nil {
		return nil, nil, err
	}
	return settings, cfg, nil
}

// LoadBytes 从字节数据加载配置并叠加环境变量覆盖。
func LoadBytes(data []byte, format Format, opts ...Option) (*Settings, error) {
	cfg, err := NewFromBytes(data, format, opts...)
	if err != nil {
		return nil, err
	}
	return Decode(cfg)
}
