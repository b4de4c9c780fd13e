package wire

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hanpama/scidbgo/internal/schema"
)

// Field names of the struct used for unpromoted nullable columns.
const (
	NullField  = "null"
	ValueField = "val"
)

var datetimeTZType = arrow.StructOf(
	arrow.Field{Name: "time", Type: arrow.FixedWidthTypes.Timestamp_s},
	arrow.Field{Name: "offset", Type: arrow.FixedWidthTypes.Duration_s},
)

// ValueType maps an element type to the Arrow type holding its values.
func ValueType(t schema.Type) (arrow.DataType, bool) {
	switch t {
	case schema.Bool:
		return arrow.FixedWidthTypes.Boolean, true
	case schema.Char:
		return &arrow.FixedSizeBinaryType{ByteWidth: 1}, true
	case schema.Int8:
		return arrow.PrimitiveTypes.Int8, true
	case schema.Int16:
		return arrow.PrimitiveTypes.Int16, true
	case schema.Int32:
		return arrow.PrimitiveTypes.Int32, true
	case schema.Int64:
		return arrow.PrimitiveTypes.Int64, true
	case schema.Uint8:
		return arrow.PrimitiveTypes.Uint8, true
	case schema.Uint16:
		return arrow.PrimitiveTypes.Uint16, true
	case schema.Uint32:
		return arrow.PrimitiveTypes.Uint32, true
	case schema.Uint64:
		return arrow.PrimitiveTypes.Uint64, true
	case schema.Float:
		return arrow.PrimitiveTypes.Float32, true
	case schema.Double:
		return arrow.PrimitiveTypes.Float64, true
	case schema.Datetime:
		return arrow.FixedWidthTypes.Timestamp_s, true
	case schema.DatetimeTZ:
		return datetimeTZType, true
	case schema.String:
		return arrow.BinaryTypes.String, true
	case schema.Binary:
		return arrow.BinaryTypes.Binary, true
	}
	return nil, false
}

// NullableType is the unpromoted representation of a nullable attribute:
// a struct carrying the raw null code next to the value.
func NullableType(value arrow.DataType) *arrow.StructType {
	return arrow.StructOf(
		arrow.Field{Name: NullField, Type: arrow.PrimitiveTypes.Uint8},
		arrow.Field{Name: ValueField, Type: value},
	)
}

// ArrowSchema returns the Arrow schema Decode produces for cells.
func ArrowSchema(cells []Cell, promote bool) *arrow.Schema {
	fields := make([]arrow.Field, len(cells))
	for i, c := range cells {
		vt, _ := ValueType(c.Type)
		f := arrow.Field{Name: c.Name, Type: vt}
		if c.Nullable {
			if promote {
				f.Nullable = true
			} else {
				f.Type = NullableType(vt)
			}
		}
		fields[i] = f
	}
	return arrow.NewSchema(fields, nil)
}
