package xconf

// Options 定义配置加载选项。
type Options struct {
	// Delim 配置键的分隔符，默认为 "."。
	Delim string

	// Tag 结构体标签名，默认为 "koanf"。
	Tag string

	// EnvPrefix 环境变量覆盖前缀，默认 "XDBTUNE_"，为空时不读取环境变量。
	EnvPrefix string
}

// Option 定义配置选项函数类型。
type Option func(*Options)

// DefaultEnvPrefix 默认环境变量前缀。
const DefaultEnvPrefix = "XDBTUNE_"

func defaultOptions() *Options {
	return &Options{
		Delim:     ".",
		Tag:       "koanf",
		EnvPrefix: DefaultEnvPrefix,
	}
}

// WithTag 设置结构体标签名。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

// WithEnvPrefix 设置环境变量覆盖前缀，传空字符串禁用环境变量覆盖。
func WithEnvPrefix(prefix string) Option {
	return func(o *Options) {
		o.EnvPrefix = prefix
	}
}
