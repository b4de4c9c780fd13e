package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/scidbgo/internal/eventbus"
	"github.com/hanpama/scidbgo/internal/events"
)

func TestCollectorsCountEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	reg := prometheus.NewRegistry()
	c, unsubscribe := Register(reg)
	defer unsubscribe()

	ctx := context.Background()
	eventbus.Publish(ctx, events.GatewayFinish{Endpoint: "new_session", Status: 200, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.GatewayFinish{Endpoint: "new_session", Status: 200})
	eventbus.Publish(ctx, events.GatewayFinish{Endpoint: "execute_query", Err: errors.New("dial")})
	eventbus.Publish(ctx, events.QueryFinish{Kind: events.KindFetch})
	eventbus.Publish(ctx, events.QueryFinish{Kind: events.KindExecute, Err: errors.New("bad")})

	require.Equal(t, 2.0, testutil.ToFloat64(c.GatewayRequests.WithLabelValues("new_session", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.GatewayRequests.WithLabelValues("execute_query", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Queries.WithLabelValues("fetch", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Queries.WithLabelValues("execute", "error")))
	require.Equal(t, 2, testutil.CollectAndCount(c.GatewayDuration))
}
