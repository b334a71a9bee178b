package xconf

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
)

// Config 是加载后的原始配置树，Decode 将其解码为 Settings。
// 未覆盖的读取操作直接使用 Client() 返回的 koanf 实例。
type Config interface {
	Client() *koanf.Koanf

	// Unmarshal 将 path 下的子树解码到 target，path 为空时解码整棵树。
	Unmarshal(path string, target any) error

	// Reload 重新读取文件并重新叠加环境变量，失败时保留旧的配置树。
	// 从字节数据创建的 Config 返回 ErrNotWatchable。
	Reload() error

	// Path 返回配置文件路径，从字节数据创建时为空。
	Path() string

	Format() Format
}

// Format 配置文件格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// formatOf 按扩展名判断格式，.yaml/.yml 与 .json 之外的扩展名返回 ErrUnsupportedFormat。
func formatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

// parser 返回格式对应的 koanf 解析器，未知格式返回 nil。
func (f Format) parser() koanf.Parser {
	switch f {
	case FormatYAML:
		return yaml.Parser()
	case FormatJSON:
		return json.Parser()
	default:
		return nil
	}
}
