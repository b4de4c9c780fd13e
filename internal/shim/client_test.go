package shim

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hanpama/scidbgo/internal/eventbus"
	"github.com/hanpama/scidbgo/internal/events"
	"github.com/hanpama/scidbgo/internal/shim/shimtest"
)

func echo(query, save string) ([]byte, error) { return []byte(query + "|" + save), nil }

func TestSessionCycle(t *testing.T) {
	gw := shimtest.New(echo)
	defer gw.Close()
	c, err := New(gw.URL())
	require.NoError(t, err)

	ctx := context.Background()
	var got []byte
	err = c.WithSession(ctx, func(s *Session) error {
		if _, err := s.Execute(ctx, "list()", Save("tsv")); err != nil {
			return err
		}
		head, err := s.ReadBytes(ctx, 3)
		if err != nil {
			return err
		}
		rest, err := s.ReadAll(ctx)
		got = append(head, rest...)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "list()|tsv", string(got))

	want := []string{"new_session", "execute_query", "read_bytes", "read_bytes", "release_session"}
	if diff := cmp.Diff(want, gw.Endpoints()); diff != "" {
		t.Fatalf("endpoints mismatch (-want +got):\n%s", diff)
	}
	calls := gw.Calls()
	require.Equal(t, "1", calls[1].Params.Get("id"))
	require.Equal(t, "3", calls[2].Params.Get("n"))
	require.Equal(t, "0", calls[3].Params.Get("n"))
	require.Empty(t, gw.OpenSessions())
}

func TestExecuteWithReleaseSkipsSecondRelease(t *testing.T) {
	gw := shimtest.New(nil)
	defer gw.Close()
	c, err := New(gw.URL())
	require.NoError(t, err)

	ctx := context.Background()
	err = c.WithSession(ctx, func(s *Session) error {
		_, err := s.Execute(ctx, "remove(a)", Release())
		require.True(t, s.Released())
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []string{"new_session", "execute_query"}, gw.Endpoints())
	require.Equal(t, "1", gw.Calls()[1].Params.Get("release"))
}

func TestTransportErrorCarriesBody(t *testing.T) {
	gw := shimtest.New(func(string, string) ([]byte, error) {
		return nil, errors.New("UserQueryException: array not found")
	})
	defer gw.Close()
	c, err := New(gw.URL())
	require.NoError(t, err)

	ctx := context.Background()
	err = c.WithSession(ctx, func(s *Session) error {
		_, err := s.Execute(ctx, "scan(nope)")
		return err
	})
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	require.Equal(t, http.StatusInternalServerError, te.StatusCode)
	require.Equal(t, "execute_query", te.Endpoint)
	require.Equal(t, "UserQueryException: array not found", te.Body)
	// released despite the failure
	require.Empty(t, gw.OpenSessions())
}

func TestReleaseFailureIsSecondary(t *testing.T) {
	gw := shimtest.New(func(string, string) ([]byte, error) { return nil, errors.New("bad query") })
	defer gw.Close()
	gw.FailNext("release_session", http.StatusBadGateway, "release broke")
	c, err := New(gw.URL())
	require.NoError(t, err)

	ctx := context.Background()
	err = c.WithSession(ctx, func(s *Session) error {
		_, err := s.Execute(ctx, "scan(a)")
		return err
	})
	var te *TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "bad query", te.Body)
	require.Contains(t, fmt.Sprintf("%+v", err), "release broke")
}

func TestReleaseFailureOnSuccessIsReturned(t *testing.T) {
	gw := shimtest.New(nil)
	defer gw.Close()
	gw.FailNext("release_session", http.StatusBadGateway, "release broke")
	c, err := New(gw.URL())
	require.NoError(t, err)

	err = c.WithSession(context.Background(), func(*Session) error { return nil })
	var te *TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "release_session", te.Endpoint)
}

func TestUpload(t *testing.T) {
	gw := shimtest.New(nil)
	defer gw.Close()
	c, err := New(gw.URL())
	require.NoError(t, err)

	ctx := context.Background()
	var token string
	err = c.WithSession(ctx, func(s *Session) error {
		token, err = s.Upload(ctx, []byte{1, 2, 3})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "/tmp/shim_input_buf_1", token)
	require.Equal(t, []byte{1, 2, 3}, gw.Uploaded(token))
	up := gw.Calls()[1]
	require.Equal(t, http.MethodPost, up.Method)
	require.Equal(t, "1", up.Params.Get("id"))
}

func TestDigestAuth(t *testing.T) {
	gw := shimtest.New(echo)
	defer gw.Close()
	gw.RequireDigest("web", "secret")
	c, err := New(gw.URL(), WithDigestAuth("web", "secret"))
	require.NoError(t, err)

	ctx := context.Background()
	payload := []byte{0, 1, 2, 253, 254, 255}
	var got []byte
	err = c.WithSession(ctx, func(s *Session) error {
		token, err := s.Upload(ctx, payload)
		if err != nil {
			return err
		}
		if _, err := s.Execute(ctx, "input(<v:int8>[i], '"+token+"', 0, '(int8)')", Save("tsv")); err != nil {
			return err
		}
		got, err = s.ReadAll(ctx)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "input(<v:int8>[i], '/tmp/shim_input_buf_1', 0, '(int8)')|tsv", string(got))
	require.Equal(t, payload, gw.Uploaded("/tmp/shim_input_buf_1"))

	want := []string{"new_session", "upload", "execute_query", "read_bytes", "release_session"}
	if diff := cmp.Diff(want, gw.Endpoints()); diff != "" {
		t.Fatalf("endpoints mismatch (-want +got):\n%s", diff)
	}
	for _, call := range gw.Calls() {
		require.Equal(t, "web", call.DigestUser, call.Endpoint)
		require.False(t, call.HasAuth, call.Endpoint)
	}
	require.Equal(t, http.MethodPost, gw.Calls()[1].Method)
	require.Equal(t, payload, gw.Calls()[1].Body)
	// the first challenge is reused for the rest of the cycle
	require.Equal(t, 1, gw.Challenges())
	require.Empty(t, gw.OpenSessions())
}

func TestDigestAuthRejected(t *testing.T) {
	gw := shimtest.New(nil)
	defer gw.Close()
	gw.RequireDigest("web", "secret")
	c, err := New(gw.URL(), WithDigestAuth("web", "wrong"))
	require.NoError(t, err)

	err = c.WithSession(context.Background(), func(*Session) error { return nil })
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	require.Equal(t, "new_session", te.Endpoint)
	require.Equal(t, http.StatusUnauthorized, te.StatusCode)
	require.Empty(t, gw.Calls())
}

func TestDatabaseAuthRequiresHTTPS(t *testing.T) {
	_, err := New("http://localhost:8080", WithDatabaseAuth("scidbadmin", "pw"))
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce), "got %v", err)

	_, err = New("ftp://localhost", WithBasicAuth("u", "p"))
	require.True(t, errors.As(err, &ce))
}

func TestDatabaseAuthOnlyOnExecuteAndCancel(t *testing.T) {
	gw := shimtest.NewTLS(nil)
	defer gw.Close()
	c, err := New(gw.URL(),
		WithHTTPClient(gw.Client()),
		WithDatabaseAuth("scidbadmin", "pw"),
		WithBasicAuth("web", "secret"),
	)
	require.NoError(t, err)

	ctx := context.Background()
	err = c.WithSession(ctx, func(s *Session) error {
		if _, err := s.Execute(ctx, "list()"); err != nil {
			return err
		}
		return s.Cancel(ctx)
	})
	require.NoError(t, err)

	for _, call := range gw.Calls() {
		require.True(t, call.HasAuth, call.Endpoint)
		require.Equal(t, "web", call.User)
		switch call.Endpoint {
		case "execute_query", "cancel":
			require.Equal(t, "scidbadmin", call.Params.Get("user"))
			require.Equal(t, "pw", call.Params.Get("password"))
		default:
			require.False(t, call.Params.Has("user"), call.Endpoint)
		}
	}
}

func TestGatewayEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	var finished []events.GatewayFinish
	eventbus.Subscribe(func(_ context.Context, e events.GatewayFinish) { finished = append(finished, e) })

	gw := shimtest.New(nil)
	defer gw.Close()
	c, err := New(gw.URL(), WithRateLimit(rate.NewLimiter(rate.Inf, 1)))
	require.NoError(t, err)

	require.NoError(t, c.WithSession(context.Background(), func(*Session) error { return nil }))
	require.Len(t, finished, 2)
	require.Equal(t, "new_session", finished[0].Endpoint)
	require.Equal(t, http.StatusOK, finished[0].Status)
	require.Equal(t, "release_session", finished[1].Endpoint)
	require.Equal(t, "1", finished[1].Session)
}
