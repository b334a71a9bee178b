package xpoolmon

import "errors"

var (
	// ErrNilSource 表示未提供连接池数据源。
	ErrNilSource = errors.New("xpoolmon: nil source")

	// ErrInvalidInterval 表示定时检查间隔无效（必须 >= 1s）。
	ErrInvalidInterval = errors.New("xpoolmon: check interval must be >= 1s")

	// ErrAlreadyStarted 表示监控已经启动。
	ErrAlreadyStarted = errors.New("xpoolmon: monitor already started")

	// ErrStopped 表示监控已停止，不能再次启动。
	ErrStopped = errors.New("xpoolmon: monitor stopped")

	// ErrEmptyPool 表示连接池没有任何连接。
	ErrEmptyPool = errors.New("xpoolmon: pool has no connections")
)
