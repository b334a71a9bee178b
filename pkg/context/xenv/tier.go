package xenv

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Tier 表示部署层级。
type Tier string

const (
	// TierTest 测试环境。
	TierTest Tier = "test"

	// TierDevelopment 开发环境。
	TierDevelopment Tier = "development"

	// TierProduction 生产环境。
	TierProduction Tier = "production"
)

// EnvTier 部署层级环境变量名。
const EnvTier = "XDBTUNE_TIER"

var (
	// ErrMissingEnv 环境变量 XDBTUNE_TIER 未设置或为空。
	ErrMissingEnv = errors.New("xenv: XDBTUNE_TIER env var not set")

	// ErrInvalidTier 部署层级非法。
	ErrInvalidTier = errors.New("xenv: invalid tier")
)

// String 返回层级名称。
func (t Tier) String() string {
	return string(t)
}

// IsValid 判断是否为已知层级。
func (t Tier) IsValid() bool {
	switch t {
	case TierTest, TierDevelopment, TierProduction:
		return true
	default:
		return false
	}
}

// Parse 解析字符串为 Tier。
//
// 支持大小写不敏感匹配以及常见缩写：
//   - "test", "testing" -> TierTest
//   - "dev", "development" -> TierDevelopment
//   - "prod", "production" -> TierProduction
func Parse(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "test", "testing":
		return TierTest, nil
	case "dev", "development":
		return TierDevelopment, nil
	case "prod", "production":
		return TierProduction, nil
	default:
		return "", fmt.Errorf("%w: %q (expected test, development or production)", ErrInvalidTier, s)
	}
}

// FromEnv 从 XDBTUNE_TIER 读取部署层级。
//
// 错误场景：
//   - 环境变量未设置或为空白: ErrMissingEnv
//   - 值非法: ErrInvalidTier
func FromEnv() (Tier, error) {
	return lookup(os.LookupEnv)
}

// FromEnvOr 从环境变量读取部署层级，未设置时返回 fallback。
// 值非法时仍返回错误，避免拼写错误被静默吞掉。
func FromEnvOr(fallback Tier) (Tier, error) {
	t, err := FromEnv()
	if errors.Is(err, ErrMissingEnv) {
		return fallback, nil
	}
	return t, err
}

func lookup(lookupEnv func(string) (string, bool)) (Tier, error) {
	v, ok := lookupEnv(EnvTier)
	if !ok || strings.TrimSpace(v) == "" {
		return "", ErrMissingEnv
	}
	return Parse(v)
}
