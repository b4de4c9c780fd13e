package scidbgo

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/scidbgo/internal/eventbus"
	"github.com/hanpama/scidbgo/internal/events"
	"github.com/hanpama/scidbgo/internal/shim/shimtest"
)

// server answers catalog listings, show() and registered data queries.
type server struct {
	mu      sync.Mutex
	ops     []string
	arrays  []string
	schemas map[string]string
	data    map[string][]byte
}

func newServer() *server {
	return &server{
		ops:     []string{"apply", "build", "cast", "create_array", "input", "join", "limit", "list", "load", "project", "remove", "scan", "show", "store"},
		arrays:  []string{"A"},
		schemas: make(map[string]string),
		data:    make(map[string][]byte),
	}
}

func (s *server) respond(query, save string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case query == operatorsQuery:
		return []byte(strings.Join(s.ops, "\n") + "\n"), nil
	case query == arraysQuery:
		return []byte(strings.Join(s.arrays, "\n") + "\n"), nil
	case strings.HasPrefix(query, "show('"):
		inner := strings.TrimSuffix(strings.TrimPrefix(query, "show('"), "', 'afl')")
		inner = strings.ReplaceAll(inner, `\'`, "'")
		text, ok := s.schemas[inner]
		if !ok {
			return nil, errors.Newf("no schema for %s", inner)
		}
		return []byte(text + "\n"), nil
	}
	return s.data[query], nil
}

func connect(t *testing.T, srv *server, opts ...Option) (*DB, *shimtest.Gateway) {
	t.Helper()
	gw := shimtest.New(srv.respond)
	t.Cleanup(gw.Close)
	db, err := Connect(context.Background(), gw.URL(), opts...)
	require.NoError(t, err)
	return db, gw
}

// queriesAfterConnect drops the two catalog listings issued by Connect.
func queriesAfterConnect(gw *shimtest.Gateway) []string { return gw.Queries()[2:] }

type rows struct{ bytes.Buffer }

func (r *rows) int64(v int64) *rows {
	binary.Write(&r.Buffer, binary.LittleEndian, v)
	return r
}

func (r *rows) code(c byte) *rows {
	r.WriteByte(c)
	return r
}

func TestConnectSnapshotsCatalog(t *testing.T) {
	db, gw := connect(t, newServer())

	require.Contains(t, db.Operators(), "store")
	require.NotContains(t, db.Operators(), "filter")
	op, err := db.Op("STORE")
	require.NoError(t, err)
	require.True(t, op.Hungry)

	_, err = db.Op("filter")
	var ue *UnknownNameError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "operator", ue.Kind)

	require.ElementsMatch(t, []string{operatorsQuery, arraysQuery}, gw.Queries())
	require.Empty(t, gw.OpenSessions())
}

func TestFetchScenario(t *testing.T) {
	srv := newServer()
	srv.schemas["scan(A)"] = "A<x:int64 NOT NULL>[i=0:2,1000,0]"
	var buf rows
	for i := range int64(3) {
		buf.int64(i).int64(i)
	}
	srv.data["project(apply(scan(A), i, i), i, x)"] = buf.Bytes()

	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)
	db, gw := connect(t, srv, WithAllocator(mem))

	rec, err := db.Fetch(context.Background(), "scan(A)")
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(3), rec.NumRows())
	require.Equal(t, "i", rec.ColumnName(0))
	require.Equal(t, "x", rec.ColumnName(1))
	require.Equal(t, []int64{0, 1, 2}, rec.Column(0).(*array.Int64).Int64Values())
	require.Equal(t, []int64{0, 1, 2}, rec.Column(1).(*array.Int64).Int64Values())

	want := []string{"show('scan(A)', 'afl')", "project(apply(scan(A), i, i), i, x)"}
	if diff := cmp.Diff(want, queriesAfterConnect(gw)); diff != "" {
		t.Fatalf("queries mismatch (-want +got):\n%s", diff)
	}
	calls := gw.Calls()
	require.Equal(t, "(int64,int64)", calls[len(calls)-3].Params.Get("save"))
	require.Empty(t, gw.OpenSessions())
}

func TestFetchPromotedNulls(t *testing.T) {
	srv := newServer()
	var buf rows
	buf.int64(0).code(255).int64(0)
	buf.int64(1).code(0).int64(0)
	buf.int64(2).code(255).int64(2)
	srv.data["project(apply(scan(A), i, i), i, x)"] = buf.Bytes()
	db, gw := connect(t, srv)

	s, err := ParseSchema("<x:int64>[i=0:2,1000,0]")
	require.NoError(t, err)
	rec, err := db.Fetch(context.Background(), "scan(A)", WithSchema(s), Promote())
	require.NoError(t, err)
	defer rec.Release()

	x := rec.Column(1).(*array.Int64)
	require.False(t, x.IsNull(0))
	require.True(t, x.IsNull(1))
	require.Equal(t, int64(2), x.Value(2))
	require.Equal(t, []string{"project(apply(scan(A), i, i), i, x)"}, queriesAfterConnect(gw))
}

func TestFetchAttsOnly(t *testing.T) {
	srv := newServer()
	var buf rows
	buf.code(255).int64(7)
	srv.data["scan(A)"] = buf.Bytes()
	db, gw := connect(t, srv)

	s, err := ParseSchema("<x:int64>[i=0:2,1000,0]")
	require.NoError(t, err)
	rec, err := db.Fetch(context.Background(), "scan(A)", WithSchema(s), AttsOnly())
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(1), rec.NumCols())
	x := rec.Column(0).(*array.Struct)
	require.Equal(t, uint8(255), x.Field(0).(*array.Uint8).Value(0))
	require.Equal(t, int64(7), x.Field(1).(*array.Int64).Value(0))

	calls := gw.Calls()
	require.Equal(t, "(int64 null)", calls[len(calls)-3].Params.Get("save"))
	require.Equal(t, []string{"scan(A)"}, queriesAfterConnect(gw))
}

func TestFetchCastsCollidingDimension(t *testing.T) {
	srv := newServer()
	srv.schemas["scan(B)"] = "B<i:int64 NOT NULL>[i=0:9,10,0]"
	db, gw := connect(t, srv)

	rec, err := db.Fetch(context.Background(), "scan(B)")
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, "i_2", rec.ColumnName(0))
	require.Equal(t, "i", rec.ColumnName(1))
	want := "project(apply(cast(scan(B), <i:int64 NOT NULL>[i_2=0:9,10,0]), i_2, i_2), i_2, i)"
	require.Equal(t, want, queriesAfterConnect(gw)[1])
}

func TestFetchTruncatedData(t *testing.T) {
	srv := newServer()
	var buf rows
	buf.int64(0).int64(0).int64(1)
	srv.data["project(apply(scan(A), i, i), i, x)"] = buf.Bytes()
	db, gw := connect(t, srv)

	s, err := ParseSchema("<x:int64 NOT NULL>[i=0:2,1000,0]")
	require.NoError(t, err)
	_, err = db.Fetch(context.Background(), "scan(A)", WithSchema(s))
	var te *TruncatedDataError
	require.True(t, errors.As(err, &te))
	require.Equal(t, 1, te.Row)
	require.Empty(t, gw.OpenSessions())
}

func TestQueryReleasesInSameCall(t *testing.T) {
	db, gw := connect(t, newServer())
	before := len(gw.Calls())

	require.NoError(t, db.Query(context.Background(), "remove(A)"))

	calls := gw.Calls()[before:]
	var endpoints []string
	for _, c := range calls {
		endpoints = append(endpoints, c.Endpoint)
	}
	require.Equal(t, []string{"new_session", "execute_query"}, endpoints)
	require.Equal(t, "1", calls[1].Params.Get("release"))
	require.Empty(t, gw.OpenSessions())
}

func TestReadLines(t *testing.T) {
	srv := newServer()
	srv.data["list('instances')"] = []byte("0\tlocalhost\t1239\n1\tlocalhost\t1240\n")
	db, _ := connect(t, srv)

	lines, err := db.ReadLines(context.Background(), "list('instances')")
	require.NoError(t, err)
	want := [][]string{{"0", "localhost", "1239"}, {"1", "localhost", "1240"}}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestShow(t *testing.T) {
	srv := newServer()
	srv.schemas["filter(A, s = 'a')"] = "A<s:string>[i=0:*,*,0]"
	db, _ := connect(t, srv)

	s, err := db.Show(context.Background(), "filter(A, s = 'a')")
	require.NoError(t, err)
	require.Equal(t, "A<s:string>[i=0:*,*,0]", RenderSchema(s))
}

func TestUploadArray(t *testing.T) {
	db, gw := connect(t, newServer())
	s, err := ParseSchema("<x:int64 NOT NULL>[i=0:*,*,0]")
	require.NoError(t, err)

	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues([]int64{1, 2}, nil)
	arr := b.NewInt64Array()
	defer arr.Release()

	err = db.UploadArray(context.Background(), "store(input(<x:int64 NOT NULL>[i=0:*,*,0], '{file}', {instance}, '{format}'), B)", arr, s)
	require.NoError(t, err)

	want := "store(input(<x:int64 NOT NULL>[i=0:*,*,0], '/tmp/shim_input_buf_3', 0, '(int64)'), B)"
	require.Equal(t, []string{want}, queriesAfterConnect(gw))
	var payload rows
	payload.int64(1).int64(2)
	require.Equal(t, payload.Bytes(), gw.Uploaded("/tmp/shim_input_buf_3"))
	require.Empty(t, gw.OpenSessions())
}

func TestUploadBareToken(t *testing.T) {
	db, gw := connect(t, newServer())

	require.NoError(t, db.Upload(context.Background(), "load(A, '{}', -2, '(int64)')", []byte{1, 0, 0, 0, 0, 0, 0, 0}))
	require.Equal(t, []string{"load(A, '/tmp/shim_input_buf_3', -2, '(int64)')"}, queriesAfterConnect(gw))
}

func TestArrayLookup(t *testing.T) {
	srv := newServer()
	db, gw := connect(t, srv)
	ctx := context.Background()

	a, err := db.Array(ctx, "A")
	require.NoError(t, err)
	require.False(t, a.Owned())
	require.Empty(t, queriesAfterConnect(gw))

	srv.mu.Lock()
	srv.arrays = append(srv.arrays, "B")
	srv.mu.Unlock()
	_, err = db.Array(ctx, "B")
	require.NoError(t, err)

	_, err = db.Array(ctx, "C")
	var ue *UnknownNameError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, UnknownNameError{Kind: "array", Name: "C"}, *ue)
	require.Equal(t, []string{arraysQuery, arraysQuery}, queriesAfterConnect(gw))
}

func TestStoreWithPrefixAndClose(t *testing.T) {
	db, gw := connect(t, newServer(), WithArrayPrefix("t"))
	ctx := context.Background()

	n, err := db.Invoke(ctx, "store", Lit("build(<x:int64>[i=0:2], i)"))
	require.NoError(t, err)
	require.Equal(t, "t_1", n.Result().Name())
	require.NoError(t, n.Result().Close(ctx))
	require.NoError(t, n.Result().Close(ctx))

	want := []string{"store(build(<x:int64>[i=0:2], i), t_1)", "remove(t_1)"}
	if diff := cmp.Diff(want, queriesAfterConnect(gw)); diff != "" {
		t.Fatalf("queries mismatch (-want +got):\n%s", diff)
	}
}

func TestPapplyAndLimit(t *testing.T) {
	db, gw := connect(t, newServer())
	ctx := context.Background()

	a, err := db.Array(ctx, "A")
	require.NoError(t, err)
	p, err := db.Papply(ctx, a, "y", a.Attr("x").Mul(Lit(2)))
	require.NoError(t, err)
	l, err := db.Limit(ctx, p, 5)
	require.NoError(t, err)
	require.Equal(t, "limit(project(apply(A, y, (A.x * 2)), y), 5)", l.Query())
	require.Empty(t, queriesAfterConnect(gw))
}

func TestReleaseOnReadFailure(t *testing.T) {
	srv := newServer()
	db, gw := connect(t, srv)
	gw.FailNext("read_bytes", 500, "read broke")

	s, err := ParseSchema("<x:int64>[i=0:2,1000,0]")
	require.NoError(t, err)
	_, err = db.Fetch(context.Background(), "scan(A)", WithSchema(s))
	var te *TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "read broke", te.Body)
	require.Empty(t, gw.OpenSessions())
}

func TestSciDBAuthRequiresHTTPS(t *testing.T) {
	gw := shimtest.New(nil)
	defer gw.Close()

	_, err := Connect(context.Background(), gw.URL(), WithSciDBAuth("scidb", "secret"))
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	require.Empty(t, gw.Calls())
}

func TestQueryEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	var (
		mu       sync.Mutex
		finished []events.QueryFinish
	)
	eventbus.Subscribe(func(_ context.Context, e events.QueryFinish) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, e)
	})

	srv := newServer()
	var buf rows
	buf.code(255).int64(1).code(255).int64(2)
	srv.data["scan(A)"] = buf.Bytes()
	db, _ := connect(t, srv)
	s, err := ParseSchema("<x:int64>[i=0:2,1000,0]")
	require.NoError(t, err)
	rec, err := db.Fetch(context.Background(), "scan(A)", WithSchema(s), AttsOnly())
	require.NoError(t, err)
	rec.Release()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finished, 3)
	last := finished[2]
	require.Equal(t, events.KindFetch, last.Kind)
	require.Equal(t, "scan(A)", last.Query)
	require.Equal(t, int64(2), last.Rows)
	require.NoError(t, last.Err)
}
