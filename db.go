// Package scidbgo is a client for an array database reached through its
// stateless HTTP gateway. It executes array query language text, downloads
// results as Arrow records, uploads binary data for ingestion and builds
// operator expressions whose immediately-effectful operators run at call
// time while the rest stay deferred until fetched.
//
//	db, err := scidbgo.Connect(ctx, "http://localhost:8080")
//	...
//	rec, err := db.Fetch(ctx, "build(<x:int64>[i=0:2], i)")
//	...
//	defer rec.Release()
package scidbgo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/scidbgo/internal/afl"
	"github.com/hanpama/scidbgo/internal/catalog"
	"github.com/hanpama/scidbgo/internal/eventbus"
	"github.com/hanpama/scidbgo/internal/events"
	"github.com/hanpama/scidbgo/internal/opid"
	"github.com/hanpama/scidbgo/internal/schema"
	"github.com/hanpama/scidbgo/internal/shim"
)

const (
	operatorsQuery = "project(list('operators'), name)"
	arraysQuery    = "project(list(), name)"
)

// DB is a connection to one gateway. It holds no session between calls:
// every operation opens and releases its own, so a DB is safe for concurrent
// use.
type DB struct {
	client *shim.Client
	opts   *options
	logger log.Logger
	names  *afl.NameGenerator
	rt     *runtime

	mu       sync.RWMutex
	registry *catalog.Registry
	arrays   map[string]bool
}

// Connect validates the options, then snapshots the server's operator and
// array catalogs.
func Connect(ctx context.Context, url string, opts ...Option) (*DB, error) {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	client, err := shim.New(url, o.shim...)
	if err != nil {
		return nil, err
	}
	db := &DB{client: client, opts: o, logger: o.logger}
	if o.arrayPrefix != "" {
		db.names = afl.NewPrefixedNameGenerator(o.arrayPrefix)
	} else {
		db.names = afl.NewNameGenerator()
	}
	db.rt = &runtime{db: db}
	if err := db.Refresh(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// URL returns the gateway URL.
func (db *DB) URL() string { return db.client.URL() }

// Refresh re-reads the operator and array catalogs.
func (db *DB) Refresh(ctx context.Context) error {
	var ops, arrays [][]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ops, err = db.ReadLines(gctx, operatorsQuery)
		return err
	})
	g.Go(func() (err error) {
		arrays, err = db.ReadLines(gctx, arraysQuery)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	registry := catalog.Builtin().Restrict(firstFields(ops))
	db.mu.Lock()
	db.registry = registry
	db.arrays = nameSet(firstFields(arrays))
	db.mu.Unlock()
	return nil
}

func firstFields(lines [][]string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if len(l) > 0 && l[0] != "" {
			out = append(out, l[0])
		}
	}
	return out
}

func nameSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// operation runs fn in a fresh session, publishing query events around it.
// fn returns the number of rows it produced.
func (db *DB) operation(ctx context.Context, kind, query string, fn func(context.Context, *shim.Session) (int64, error)) error {
	ctx, _ = opid.NewContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.QueryStart{Kind: kind, Query: query})
	var rows int64
	err := db.client.WithSession(ctx, func(s *shim.Session) (err error) {
		rows, err = fn(ctx, s)
		return err
	})
	eventbus.Publish(ctx, events.QueryFinish{
		Kind:     kind,
		Query:    query,
		Rows:     rows,
		Err:      err,
		Duration: time.Since(start),
	})
	return err
}

// Query executes q without downloading a result. The session is released by
// the same request.
func (db *DB) Query(ctx context.Context, q string) error {
	return db.operation(ctx, events.KindExecute, q, func(ctx context.Context, s *shim.Session) (int64, error) {
		_, err := s.Execute(ctx, q, shim.Release())
		return 0, err
	})
}

// ReadLines executes q saving its result as tab-separated text and returns
// each line split on tabs.
func (db *DB) ReadLines(ctx context.Context, q string) ([][]string, error) {
	var lines [][]string
	err := db.operation(ctx, events.KindLines, q, func(ctx context.Context, s *shim.Session) (int64, error) {
		if _, err := s.Execute(ctx, q, shim.Save("tsv")); err != nil {
			return 0, err
		}
		data, err := s.ReadAll(ctx)
		if err != nil {
			return 0, err
		}
		lines = splitLines(string(data))
		return int64(len(lines)), nil
	})
	return lines, err
}

func splitLines(text string) [][]string {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	out := make([][]string, len(raw))
	for i, l := range raw {
		out[i] = strings.Split(strings.TrimSuffix(l, "\r"), "\t")
	}
	return out
}

// Show returns the schema of q's result.
func (db *DB) Show(ctx context.Context, q string) (*Schema, error) {
	var s *schema.Schema
	err := db.operation(ctx, events.KindShow, q, func(ctx context.Context, sess *shim.Session) (n int64, err error) {
		s, err = show(ctx, sess, q)
		return 0, err
	})
	return s, err
}

func show(ctx context.Context, s *shim.Session, q string) (*schema.Schema, error) {
	query := "show('" + strings.ReplaceAll(q, "'", `\'`) + "', 'afl')"
	if _, err := s.Execute(ctx, query, shim.Save("tsv")); err != nil {
		return nil, err
	}
	data, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	field, _, _ := strings.Cut(line, "\t")
	return schema.Parse(strings.TrimSpace(field))
}

// runtime runs expression nodes against the DB.
type runtime struct{ db *DB }

func (r *runtime) Registry() *catalog.Registry {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.registry
}

func (r *runtime) Execute(ctx context.Context, q string) error { return r.db.Query(ctx, q) }

func (r *runtime) Fetch(ctx context.Context, q string, opts afl.FetchOptions) (arrow.Record, error) {
	return r.db.fetch(ctx, q, opts)
}

func (r *runtime) Schema(ctx context.Context, q string) (*schema.Schema, error) {
	return r.db.Show(ctx, q)
}

func (r *runtime) Upload(ctx context.Context, data []byte, render func(string) string) error {
	return r.db.upload(ctx, data, render)
}

func (r *runtime) NewArrayName() string { return r.db.names.Next() }

func (r *runtime) Logger() log.Logger { return r.db.logger }
