package xmetrics

import "errors"

// ErrCreateInstrument 表示向 MeterProvider 注册指标失败。
var ErrCreateInstrument = errors.New("xmetrics: create instrument failed")
