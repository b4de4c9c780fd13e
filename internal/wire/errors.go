package wire

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/hanpama/scidbgo/internal/schema"
)

// ErrNoAttributes is returned by Decode for a non-empty buffer whose layout
// has no cells, e.g. an attributes-only fetch of a dimensions-only schema.
var ErrNoAttributes = errors.New("schema has no attributes to decode")

// TruncatedDataError reports a buffer that ends in the middle of a record.
type TruncatedDataError struct {
	Row    int
	Offset int
	Need   int
	Have   int
}

func (e *TruncatedDataError) Error() string {
	return fmt.Sprintf("wire: truncated record %d at offset %d: need %d bytes, have %d", e.Row, e.Offset, e.Need, e.Have)
}

// errShort is filled in with row information by the decoder.
func errShort(need, have int) *TruncatedDataError {
	return &TruncatedDataError{Need: need, Have: have}
}

// AttributeCountMismatchError reports upload values whose shape does not
// match the target schema. Values is 0 for a single unlabeled column.
type AttributeCountMismatchError struct {
	Values     int
	Attributes int
}

func (e *AttributeCountMismatchError) Error() string {
	return fmt.Sprintf("wire: number of values (%d) is different than number of attributes (%d)", e.Values, e.Attributes)
}

// UnsupportedTypeError reports an attribute type the codec cannot lay out.
type UnsupportedTypeError struct {
	Attribute string
	Type      schema.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("wire: attribute %q has unsupported type %q", e.Attribute, e.Type)
}
