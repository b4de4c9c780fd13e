package wire

import (
	"bytes"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/cockroachdb/errors"

	"github.com/hanpama/scidbgo/internal/schema"
)

// Encode serializes rec into the binary row format of s. Columns map to
// attributes by position. A nullable attribute accepts either a
// {null, val} struct column, whose codes are written verbatim, or a plain
// column whose nulls are written with code 0 and a zero value.
func Encode(rec arrow.Record, s *schema.Schema) ([]byte, error) {
	if int(rec.NumCols()) != len(s.Attributes) {
		return nil, &AttributeCountMismatchError{Values: int(rec.NumCols()), Attributes: len(s.Attributes)}
	}
	cells, err := Layout(s)
	if err != nil {
		return nil, err
	}
	cols := rec.Columns()
	for i, c := range cells {
		if err := checkColumn(cols[i], c); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	for row := 0; row < int(rec.NumRows()); row++ {
		for i, c := range cells {
			if err := encodeCell(&buf, cols[i], row, c); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

// EncodeArray serializes a single column against a one-attribute schema.
func EncodeArray(arr arrow.Array, s *schema.Schema) ([]byte, error) {
	if len(s.Attributes) != 1 {
		return nil, &AttributeCountMismatchError{Values: 0, Attributes: len(s.Attributes)}
	}
	as := arrow.NewSchema([]arrow.Field{{Name: s.Attributes[0].Name, Type: arr.DataType(), Nullable: true}}, nil)
	rec := array.NewRecord(as, []arrow.Array{arr}, int64(arr.Len()))
	defer rec.Release()
	return Encode(rec, s)
}

func isNullableStruct(dt arrow.DataType) (*arrow.StructType, bool) {
	st, ok := dt.(*arrow.StructType)
	if !ok || st.NumFields() != 2 {
		return nil, false
	}
	code, val := st.Field(0), st.Field(1)
	if code.Name != NullField || code.Type.ID() != arrow.UINT8 || val.Name != ValueField {
		return nil, false
	}
	return st, true
}

func checkColumn(col arrow.Array, c Cell) error {
	dt := col.DataType()
	if c.Nullable {
		if st, ok := isNullableStruct(dt); ok {
			dt = st.Field(1).Type
		}
	}
	want, _ := ValueType(c.Type)
	if !arrow.TypeEqual(dt, want) {
		return errors.Newf("wire: attribute %q of type %s cannot be encoded from %s", c.Name, c.Type, col.DataType())
	}
	return nil
}

func encodeCell(w *bytes.Buffer, col arrow.Array, row int, c Cell) error {
	values := col
	if !c.Nullable {
		if col.IsNull(row) {
			return errors.Newf("wire: null in non-nullable attribute %q at row %d", c.Name, row)
		}
		writeValue(w, values, row, c)
		return nil
	}

	code := NullCodeValid
	if st, ok := col.(*array.Struct); ok {
		if _, nullable := isNullableStruct(st.DataType()); nullable {
			code = st.Field(0).(*array.Uint8).Value(row)
			values = st.Field(1)
		}
	}
	if values == col && col.IsNull(row) {
		code = 0
	}
	w.WriteByte(code)
	if values.IsNull(row) {
		writeZero(w, c)
		return nil
	}
	writeValue(w, values, row, c)
	return nil
}

func writeZero(w *bytes.Buffer, c Cell) {
	if c.Variable {
		w.Write(make([]byte, lengthPrefix))
		return
	}
	w.Write(make([]byte, c.Width))
}

func writeValue(w *bytes.Buffer, arr arrow.Array, row int, c Cell) {
	var b [16]byte
	switch c.Type {
	case schema.Bool:
		if arr.(*array.Boolean).Value(row) {
			b[0] = 1
		}
	case schema.Char:
		b[0] = arr.(*array.FixedSizeBinary).Value(row)[0]
	case schema.Int8:
		b[0] = byte(arr.(*array.Int8).Value(row))
	case schema.Int16:
		le.PutUint16(b[:], uint16(arr.(*array.Int16).Value(row)))
	case schema.Int32:
		le.PutUint32(b[:], uint32(arr.(*array.Int32).Value(row)))
	case schema.Int64:
		le.PutUint64(b[:], uint64(arr.(*array.Int64).Value(row)))
	case schema.Uint8:
		b[0] = arr.(*array.Uint8).Value(row)
	case schema.Uint16:
		le.PutUint16(b[:], arr.(*array.Uint16).Value(row))
	case schema.Uint32:
		le.PutUint32(b[:], arr.(*array.Uint32).Value(row))
	case schema.Uint64:
		le.PutUint64(b[:], arr.(*array.Uint64).Value(row))
	case schema.Float:
		le.PutUint32(b[:], math.Float32bits(arr.(*array.Float32).Value(row)))
	case schema.Double:
		le.PutUint64(b[:], math.Float64bits(arr.(*array.Float64).Value(row)))
	case schema.Datetime:
		le.PutUint64(b[:], uint64(arr.(*array.Timestamp).Value(row)))
	case schema.DatetimeTZ:
		st := arr.(*array.Struct)
		le.PutUint64(b[:], uint64(st.Field(0).(*array.Timestamp).Value(row)))
		le.PutUint64(b[8:], uint64(st.Field(1).(*array.Duration).Value(row)))
	case schema.String:
		v := arr.(*array.String).Value(row)
		le.PutUint32(b[:], uint32(len(v)+1))
		w.Write(b[:lengthPrefix])
		w.WriteString(v)
		w.WriteByte(0)
		return
	case schema.Binary:
		v := arr.(*array.Binary).Value(row)
		le.PutUint32(b[:], uint32(len(v)))
		w.Write(b[:lengthPrefix])
		w.Write(v)
		return
	}
	w.Write(b[:c.Width])
}
