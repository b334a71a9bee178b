package storageopt

import (
	"errors"
	"math"
)

// 分页相关错误。
var (
	// ErrInvalidPage 表示页码无效（必须 >= 1）。
	ErrInvalidPage = errors.New("storageopt: invalid page number, must be >= 1")

	// ErrInvalidPageSize 表示每页大小无效（必须 >= 1）。
	ErrInvalidPageSize = errors.New("storageopt: invalid page size, must be >= 1")

	// ErrPageOverflow 表示分页计算溢出。
	// 当 (page-1) * pageSize 超过 int64 最大值时返回此错误。
	ErrPageOverflow = errors.New("storageopt: page calculation overflow, reduce page number or page size")

	// ErrMissingSortField 表示键集分页未指定排序字段。
	ErrMissingSortField = errors.New("storageopt: key pagination requires a sort field")
)

// MaxPageSize 单页文档数上限。
const MaxPageSize = 10000

// ValidatePagination 验证分页参数并返回计算后的 offset。
//
// 返回：
//   - offset: 计算后的偏移量 (page-1) * pageSize
//   - err: ErrInvalidPage、ErrInvalidPageSize 或 ErrPageOverflow
func ValidatePagination(page, pageSize int64) (offset int64, err error) {
	if page < 1 {
		return 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return 0, ErrInvalidPageSize
	}

	// page-1 > MaxInt64/pageSize 时乘法会溢出
	if page-1 > math.MaxInt64/pageSize {
		return 0, ErrPageOverflow
	}

	return (page - 1) * pageSize, nil
}

// CalculateTotalPages 计算总页数。
// total 或 pageSize <= 0 时返回 0。
func CalculateTotalPages(total, pageSize int64) int64 {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	totalPages := total / pageSize
	if total%pageSize > 0 {
		totalPages++
	}
	return totalPages
}

// KeyRange 返回键集分页的范围操作符。
// 升序翻页取 "$gt"，降序翻页取 "$lt"。
func KeyRange(descending bool) string {
	if descending {
		return "$lt"
	}
	return "$gt"
}

// SortDirection 返回 sort 文档中的方向值。
func SortDirection(descending bool) int {
	if descending {
		return -1
	}
	return 1
}
