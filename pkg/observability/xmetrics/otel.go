package xmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xdbtune/pkg/observability/xmetrics"

	// MetricOperations 按 component/operation/collection/status/slow 计数的操作总数。
	MetricOperations = "xdbtune.db.operations"
	// MetricOperationDuration 操作耗时直方图（秒）。
	MetricOperationDuration = "xdbtune.db.operation.duration"

	unknown = "unknown"
)

// 查询耗时的直方图桶（秒）：覆盖 1ms 到 10s，默认慢查询阈值 100ms 落在桶边界上。
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type otelConfig struct {
	name           string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option 配置 NewOTelObserver。
type Option func(*otelConfig)

// WithInstrumentationName 设置 instrumentation scope 名称，空字符串被忽略。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider，nil 被忽略。
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithMeterProvider 设置 MeterProvider，nil 被忽略。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer，未指定 Provider 时使用全局 Provider。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		name:           defaultInstrumentationName,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	meter := cfg.meterProvider.Meter(cfg.name)
	operations, err := meter.Int64Counter(MetricOperations,
		metric.WithDescription("MongoDB operations observed by the access layer"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateInstrument, MetricOperations, err)
	}
	duration, err := meter.Float64Histogram(MetricOperationDuration,
		metric.WithDescription("MongoDB operation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateInstrument, MetricOperationDuration, err)
	}

	return &otelObserver{
		tracer:     cfg.tracerProvider.Tracer(cfg.name),
		operations: operations,
		duration:   duration,
	}, nil
}

type otelObserver struct {
	tracer     trace.Tracer
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &otelSpan{
		observer:   o,
		component:  orUnknown(opts.Component),
		operation:  orUnknown(opts.Operation),
		collection: lookupString(opts.Attrs, attrCollection),
	}

	kind := trace.SpanKindInternal
	if opts.Kind == KindClient {
		kind = trace.SpanKindClient
	}
	attrs := append([]attribute.KeyValue{
		attribute.String("component", s.component),
		attribute.String("operation", s.operation),
	}, toOTel(opts.Attrs)...)

	ctx, s.span = o.tracer.Start(ctx, s.component+"."+s.operation,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
	s.ctx = ctx
	s.start = time.Now()
	return ctx, s
}

type otelSpan struct {
	observer   *otelObserver
	span       trace.Span
	ctx        context.Context
	component  string
	operation  string
	collection string
	start      time.Time
	once       sync.Once
}

func (s *otelSpan) End(result Result) {
	if s == nil {
		return
	}
	s.once.Do(func() { s.end(result) })
}

func (s *otelSpan) end(result Result) {
	elapsed := time.Since(s.start)
	status := statusOf(result)

	if result.Err != nil {
		s.span.RecordError(result.Err)
	}
	switch {
	case status != StatusError:
		s.span.SetStatus(codes.Ok, "")
	case result.Err != nil:
		s.span.SetStatus(codes.Error, result.Err.Error())
	default:
		s.span.SetStatus(codes.Error, "operation failed")
	}
	if len(result.Attrs) > 0 {
		s.span.SetAttributes(toOTel(result.Attrs)...)
	}
	s.span.End()

	dims := []attribute.KeyValue{
		attribute.String("component", s.component),
		attribute.String("operation", s.operation),
		attribute.String("status", string(status)),
		attribute.Bool(attrSlow, lookupBool(result.Attrs, attrSlow)),
	}
	if s.collection != "" {
		dims = append(dims, attribute.String(attrCollection, s.collection))
	}
	// 请求 context 可能已取消，指标仍需记录
	ctx := context.WithoutCancel(s.ctx)
	set := metric.WithAttributes(dims...)
	s.observer.operations.Add(ctx, 1, set)
	s.observer.duration.Record(ctx, elapsed.Seconds(), set)
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

func lookupString(attrs []Attr, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			if v, ok := a.Value.(string); ok {
				return v
			}
		}
	}
	return ""
}

func lookupBool(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			if v, ok := a.Value.(bool); ok {
				return v
			}
		}
	}
	return false
}

func toOTel(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if a.Key == "" || a.Value == nil {
			continue
		}
		switch v := a.Value.(type) {
		case string:
			out = append(out, attribute.String(a.Key, v))
		case bool:
			out = append(out, attribute.Bool(a.Key, v))
		case int:
			out = append(out, attribute.Int(a.Key, v))
		case int64:
			out = append(out, attribute.Int64(a.Key, v))
		case float64:
			out = append(out, attribute.Float64(a.Key, v))
		case time.Duration:
			out = append(out, attribute.Int64(a.Key, v.Milliseconds()))
		default:
			out = append(out, attribute.String(a.Key, fmt.Sprint(v)))
		}
	}
	return out
}
