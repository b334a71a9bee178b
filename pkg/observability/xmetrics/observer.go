package xmetrics

import "context"

// Kind 跨度类型。访问 MongoDB 的调用使用 KindClient。
type Kind int

const (
	KindInternal Kind = iota
	KindClient
)

// Status 操作结果，作为指标的 status 维度。
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Attr 键值属性，Value 支持 string、bool、int、int64、float64 与 time.Duration，
// 其他类型按 fmt.Sprint 转为字符串。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 跨度参数。Attrs 中的 db.collection 同时作为指标维度。
type SpanOptions struct {
	Component string
	Operation string
	Kind      Kind
	Attrs     []Attr
}

// Result 跨度结束时的结果。Status 为空时由 Err 推导；
// Attrs 中的 slow 同时作为指标维度。
type Result struct {
	Status Status
	Err    error
	Attrs  []Attr
}

// Span 一次观测跨度，End 可重复调用，只有第一次生效。
type Span interface {
	End(result Result)
}

// Observer 存储层组件依赖的观测接口。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 不记录任何内容，是各组件未注入 Observer 时的默认值。
type NoopObserver struct{}

func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 空跨度。
type NoopSpan struct{}

func (NoopSpan) End(Result) {}

// Start 使用 observer 开始观测，返回的 context 与 Span 一定非 nil，
// 调用方可以无条件 defer span.End。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}

// statusOf 推导 Result 的最终状态。
func statusOf(result Result) Status {
	switch {
	case result.Status != "":
		return result.Status
	case result.Err != nil:
		return StatusError
	default:
		return StatusOK
	}
}
