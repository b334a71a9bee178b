package xquery

import "errors"

var (
	// ErrNilFunc 表示传入的执行函数为 nil。
	ErrNilFunc = errors.New("xquery: nil query func")

	// ErrNilTracker 表示 tracker 为 nil。
	ErrNilTracker = errors.New("xquery: nil tracker")
)

// errPanicked 仅用于标记 span 状态，不会返回给调用方。
var errPanicked = errors.New("xquery: query func panicked")
