package xconf

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// koanfConfig 是 Config 接口的 koanf 实现。
type koanfConfig struct {
	k      *koanf.Koanf
	path   string
	format Format
	opts   *Options
	mu     sync.RWMutex
}

// New 从文件路径创建配置实例。
// 根据文件扩展名检测格式（.yaml/.yml 或 .json），文件内容之上叠加环境变量覆盖。
func New(path string, opts ...Option) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	options := applyOptions(opts)
	k, err := load(path, format, options)
	if err != nil {
		return nil, err
	}

	return &koanfConfig{k: k, path: path, format: format, opts: options}, nil
}

// NewFromBytes 从字节数据创建配置实例，空数据得到空配置（仍叠加环境变量）。
func NewFromBytes(data []byte, format Format, opts ...Option) (Config, error) {
	if format.parser() == nil {
		return nil, ErrUnsupportedFormat
	}

	options := applyOptions(opts)
	k := koanf.New(options.Delim)
	if len(data) > 0 {
		if err := loadData(k, data, format); err != nil {
			return nil, err
		}
	}
	if err := loadEnv(k, options); err != nil {
		return nil, err
	}

	return &koanfConfig{k: k, format: format, opts: options}, nil
}

func applyOptions(opts []Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

// Client 返回底层的 koanf 实例。
func (c *koanfConfig) Client() *koanf.Koanf {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k
}

// Unmarshal 将指定路径的配置反序列化到目标结构体。
func (c *koanfConfig) Unmarshal(path string, target any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: c.opts.Tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Reload 重新加载配置文件。失败时保留旧配置。
func (c *koanfConfig) Reload() error {
	if c.path == "" {
		return ErrNotWatchable
	}

	newK, err := load(c.path, c.format, c.opts)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.k = newK
	c.mu.Unlock()
	return nil
}

// Path 返回配置文件路径。
func (c *koanfConfig) Path() string {
	return c.path
}

// Format 返回配置格式。
func (c *koanfConfig) Format() Format {
	return c.format
}

// =============================================================================
// 内部辅助函数
// =============================================================================

func load(path string, format Format, opts *Options) (*koanf.Koanf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	k := koanf.New(opts.Delim)
	if err := loadData(k, data, format); err != nil {
		return nil, err
	}
	if err := loadEnv(k, opts); err != nil {
		return nil, err
	}
	return k, nil
}

func loadData(k *koanf.Koanf, data []byte, format Format) error {
	parser := format.parser()
	if parser == nil {
		return ErrUnsupportedFormat
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}

// loadEnv 叠加环境变量覆盖。
//
// 命名规则：去掉前缀后转小写，双下划线表示层级，例如
// XDBTUNE_MONGO__AUTH_SOURCE -> mongo.auth_source。
// 列表型键（见 isListKey）的值按逗号拆分。
func loadEnv(k *koanf.Koanf, opts *Options) error {
	if opts.EnvPrefix == "" {
		return nil
	}
	provider := env.ProviderWithValue(opts.EnvPrefix, opts.Delim, func(key, value string) (string, any) {
		return envKey(key, opts.EnvPrefix, opts.Delim), envValue(key, value, opts.EnvPrefix, opts.Delim)
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("%w: env: %w", ErrLoadFailed, err)
	}
	return nil
}

// 以逗号分隔的列表型配置键：mongo.hosts 以及 indexes.<集合>.flags/identifiers/tags。
func isListKey(key, delim string) bool {
	if key == "mongo"+delim+"hosts" {
		return true
	}
	if !strings.HasPrefix(key, "indexes"+delim) {
		return false
	}
	for _, suffix := range []string{"flags", "identifiers", "tags"} {
		if strings.HasSuffix(key, delim+suffix) {
			return true
		}
	}
	return false
}

func envKey(name, prefix, delim string) string {
	trimmed := strings.TrimPrefix(name, prefix)
	if trimmed == "" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(trimmed), "__", delim)
}

func envValue(name, value, prefix, delim string) any {
	if !isListKey(envKey(name, prefix, delim), delim) {
		return value
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
