package scidbgo

import (
	"context"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log/level"

	"github.com/hanpama/scidbgo/internal/afl"
	"github.com/hanpama/scidbgo/internal/events"
	"github.com/hanpama/scidbgo/internal/schema"
	"github.com/hanpama/scidbgo/internal/shim"
	"github.com/hanpama/scidbgo/internal/wire"
)

// Fetch executes q and decodes its result into one Arrow record. Unless
// AttsOnly is given, the record leads with one int64 column per dimension.
// The caller must Release the record.
func (db *DB) Fetch(ctx context.Context, q string, opts ...FetchOption) (arrow.Record, error) {
	var o fetchOptions
	for _, f := range opts {
		f(&o)
	}
	return db.fetch(ctx, q, afl.FetchOptions{AttsOnly: o.attsOnly, Promote: o.promote, Schema: o.schema})
}

func (db *DB) fetch(ctx context.Context, q string, opts afl.FetchOptions) (arrow.Record, error) {
	var rec arrow.Record
	err := db.operation(ctx, events.KindFetch, q, func(ctx context.Context, sess *shim.Session) (int64, error) {
		s := opts.Schema
		if s == nil {
			var err error
			if s, err = show(ctx, sess, q); err != nil {
				return 0, err
			}
		}
		query, s := rewriteFetch(q, s, opts.AttsOnly)
		format := wire.FormatSpec(s)
		if !opts.AttsOnly {
			format = wire.FormatSpec(schema.DimensionsAsAttributes(s))
		}
		level.Debug(db.logger).Log("msg", "fetch", "query", query, "schema", schema.Render(s), "format", format)

		if _, err := sess.Execute(ctx, query, shim.Save(format)); err != nil {
			return 0, err
		}
		data, err := sess.ReadAll(ctx)
		if err != nil {
			return 0, err
		}
		rec, err = wire.Decode(data, s, wire.DecodeOptions{
			WithDimensions: !opts.AttsOnly,
			Promote:        opts.Promote,
			Allocator:      db.opts.alloc,
		})
		if err != nil {
			return 0, err
		}
		return rec.NumRows(), nil
	})
	if err != nil {
		if rec != nil {
			rec.Release()
		}
		return nil, err
	}
	return rec, nil
}

// rewriteFetch returns the query text to execute and the schema its saved
// rows follow. With dimensions requested, colliding names are cast apart and
// the dimensions are projected in front of the attributes.
func rewriteFetch(q string, s *schema.Schema, attsOnly bool) (string, *schema.Schema) {
	if attsOnly || len(s.Dimensions) == 0 {
		return q, s
	}
	if renamed, changed := schema.Disambiguate(s); changed {
		q = "cast(" + q + ", " + schema.RenderAnonymous(renamed) + ")"
		s = renamed
	}
	dims := s.DimensionNames()
	var b strings.Builder
	b.WriteString("project(apply(")
	b.WriteString(q)
	for _, d := range dims {
		b.WriteString(", " + d + ", " + d)
	}
	b.WriteString("), ")
	b.WriteString(strings.Join(append(dims, s.AttributeNames()...), ", "))
	b.WriteByte(')')
	return b.String(), s
}
