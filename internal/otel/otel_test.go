package otel

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/scidbgo/internal/eventbus"
	"github.com/hanpama/scidbgo/internal/events"
	"github.com/hanpama/scidbgo/internal/opid"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "scidbq")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestGatewaySpanIsChildOfQuerySpan(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := newSubscriber(tp.Tracer("test")).register()
	defer unsubscribe()

	ctx, _ := opid.NewContext(context.Background())
	eventbus.Publish(ctx, events.QueryStart{Kind: events.KindFetch, Query: "list()"})
	eventbus.Publish(ctx, events.GatewayStart{Endpoint: "execute_query", Session: "7"})
	eventbus.Publish(ctx, events.GatewayFinish{Endpoint: "execute_query", Session: "7", Status: 500, Err: errors.New("boom")})
	eventbus.Publish(ctx, events.QueryFinish{Kind: events.KindFetch, Query: "list()", Rows: 3})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	gw, q := spans[0], spans[1]
	require.Equal(t, "scidb.gateway", gw.Name())
	require.Equal(t, "scidb.query", q.Name())
	require.Equal(t, q.SpanContext().SpanID(), gw.Parent().SpanID())
	require.Equal(t, codes.Error, gw.Status().Code)
	require.Equal(t, codes.Unset, q.Status().Code)
}
