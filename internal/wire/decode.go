package wire

import (
	"encoding/binary"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cockroachdb/errors"

	"github.com/hanpama/scidbgo/internal/schema"
)

var le = binary.LittleEndian

// DecodeOptions controls Decode.
type DecodeOptions struct {
	// WithDimensions decodes rows that lead with one int64 column per
	// dimension, as produced by a dimensions-as-attributes projection.
	WithDimensions bool
	// Promote maps nullable cells to Arrow nulls (any code other than 255)
	// instead of {null, val} structs preserving the null code.
	Promote bool
	// Allocator defaults to memory.DefaultAllocator.
	Allocator memory.Allocator
}

// Decode scans buf row by row using the layout of s and returns the rows as
// one Arrow record. The caller owns the record and must Release it.
func Decode(buf []byte, s *schema.Schema, opts DecodeOptions) (arrow.Record, error) {
	if opts.WithDimensions {
		s = schema.DimensionsAsAttributes(s)
	}
	cells, err := Layout(s)
	if err != nil {
		return nil, err
	}
	// rows without cells have no width to advance by
	if len(cells) == 0 && len(buf) > 0 {
		return nil, errors.Wrapf(ErrNoAttributes, "wire: %d bytes of row data", len(buf))
	}
	mem := opts.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	rb := array.NewRecordBuilder(mem, ArrowSchema(cells, opts.Promote))
	defer rb.Release()

	off := 0
	for row := 0; off < len(buf); row++ {
		for i, c := range cells {
			size, err := c.Size(buf, off)
			if err != nil {
				te := err.(*TruncatedDataError)
				te.Row, te.Offset = row, off
				return nil, te
			}
			if off+size > len(buf) {
				return nil, &TruncatedDataError{Row: row, Offset: off, Need: size, Have: len(buf) - off}
			}
			decodeCell(rb.Field(i), c, buf[off:off+size], opts.Promote)
			off += size
		}
	}
	return rb.NewRecord(), nil
}

func decodeCell(b array.Builder, c Cell, cell []byte, promote bool) {
	value := cell[c.header():]
	if !c.Nullable {
		appendValue(b, c.Type, value)
		return
	}
	code := cell[0]
	if promote {
		if code != NullCodeValid {
			b.AppendNull()
			return
		}
		appendValue(b, c.Type, value)
		return
	}
	sb := b.(*array.StructBuilder)
	sb.Append(true)
	sb.FieldBuilder(0).(*array.Uint8Builder).Append(code)
	appendValue(sb.FieldBuilder(1), c.Type, value)
}

func appendValue(b array.Builder, t schema.Type, v []byte) {
	switch t {
	case schema.Bool:
		b.(*array.BooleanBuilder).Append(v[0] != 0)
	case schema.Char:
		b.(*array.FixedSizeBinaryBuilder).Append(v[:1])
	case schema.Int8:
		b.(*array.Int8Builder).Append(int8(v[0]))
	case schema.Int16:
		b.(*array.Int16Builder).Append(int16(le.Uint16(v)))
	case schema.Int32:
		b.(*array.Int32Builder).Append(int32(le.Uint32(v)))
	case schema.Int64:
		b.(*array.Int64Builder).Append(int64(le.Uint64(v)))
	case schema.Uint8:
		b.(*array.Uint8Builder).Append(v[0])
	case schema.Uint16:
		b.(*array.Uint16Builder).Append(le.Uint16(v))
	case schema.Uint32:
		b.(*array.Uint32Builder).Append(le.Uint32(v))
	case schema.Uint64:
		b.(*array.Uint64Builder).Append(le.Uint64(v))
	case schema.Float:
		b.(*array.Float32Builder).Append(math.Float32frombits(le.Uint32(v)))
	case schema.Double:
		b.(*array.Float64Builder).Append(math.Float64frombits(le.Uint64(v)))
	case schema.Datetime:
		b.(*array.TimestampBuilder).Append(arrow.Timestamp(int64(le.Uint64(v))))
	case schema.DatetimeTZ:
		sb := b.(*array.StructBuilder)
		sb.Append(true)
		sb.FieldBuilder(0).(*array.TimestampBuilder).Append(arrow.Timestamp(int64(le.Uint64(v))))
		sb.FieldBuilder(1).(*array.DurationBuilder).Append(arrow.Duration(int64(le.Uint64(v[8:]))))
	case schema.String:
		if n := len(v); n > 0 && v[n-1] == 0 {
			v = v[:n-1]
		}
		b.(*array.StringBuilder).Append(string(v))
	case schema.Binary:
		b.(*array.BinaryBuilder).Append(v)
	}
}
