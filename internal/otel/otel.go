package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanpama/scidbgo/internal/eventbus"
	"github.com/hanpama/scidbgo/internal/events"
	"github.com/hanpama/scidbgo/internal/opid"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := newSubscriber(otel.Tracer("scidbgo")).register()

	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

type subscriber struct {
	tracer       trace.Tracer
	querySpans   sync.Map // opid -> trace.Span
	gatewaySpans sync.Map // opid -> trace.Span
}

func newSubscriber(tracer trace.Tracer) *subscriber { return &subscriber{tracer: tracer} }

func (s *subscriber) register() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.QueryStart) {
			id, _ := opid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "scidb.query")
			span.SetAttributes(
				attribute.String("scidb.kind", e.Kind),
				attribute.String("db.statement", e.Query),
			)
			s.querySpans.Store(id, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
			id, _ := opid.FromContext(ctx)
			v, ok := s.querySpans.LoadAndDelete(id)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int64("scidb.rows", e.Rows))
			finish(span, e.Err)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GatewayStart) {
			id, _ := opid.FromContext(ctx)
			parent := ctx
			if v, ok := s.querySpans.Load(id); ok {
				parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
			_, span := s.tracer.Start(parent, "scidb.gateway")
			span.SetAttributes(
				attribute.String("scidb.endpoint", e.Endpoint),
				attribute.String("scidb.session", e.Session),
			)
			s.gatewaySpans.Store(id, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GatewayFinish) {
			id, _ := opid.FromContext(ctx)
			v, ok := s.gatewaySpans.LoadAndDelete(id)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.Int("scidb.bytes", e.Bytes),
			)
			finish(span, e.Err)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
