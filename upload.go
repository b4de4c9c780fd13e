package scidbgo

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hanpama/scidbgo/internal/afl"
	"github.com/hanpama/scidbgo/internal/events"
	"github.com/hanpama/scidbgo/internal/shim"
	"github.com/hanpama/scidbgo/internal/wire"
)

// Upload posts data to the gateway and executes template with the file
// placeholders replaced by the server file token. "{}" may be used for the
// bare token, e.g. "load(A, '{}', -2, '(int64)')".
func (db *DB) Upload(ctx context.Context, template string, data []byte) error {
	return db.upload(ctx, data, func(token string) string { return afl.Substitute(template, token, "") })
}

// UploadRecord encodes rec with the layout of s, then uploads it like Upload.
// The '{format}' placeholder is replaced by the binary format of s.
func (db *DB) UploadRecord(ctx context.Context, template string, rec arrow.Record, s *Schema) error {
	data, err := wire.Encode(rec, s)
	if err != nil {
		return err
	}
	format := wire.FormatSpec(s)
	return db.upload(ctx, data, func(token string) string { return afl.Substitute(template, token, format) })
}

// UploadArray uploads a single column into a one-attribute schema.
func (db *DB) UploadArray(ctx context.Context, template string, arr arrow.Array, s *Schema) error {
	data, err := wire.EncodeArray(arr, s)
	if err != nil {
		return err
	}
	format := wire.FormatSpec(s)
	return db.upload(ctx, data, func(token string) string { return afl.Substitute(template, token, format) })
}

// upload runs one upload-then-execute cycle in a single session. The query
// is only known once the server returned the file token.
func (db *DB) upload(ctx context.Context, data []byte, render func(token string) string) error {
	return db.operation(ctx, events.KindUpload, render("{file}"), func(ctx context.Context, s *shim.Session) (int64, error) {
		token, err := s.Upload(ctx, data)
		if err != nil {
			return 0, err
		}
		_, err = s.Execute(ctx, render(token), shim.Release())
		return 0, err
	})
}
