// Package wire converts between the gateway's binary row format and Arrow
// record batches.
//
// A row is the concatenation, in attribute order, of one cell per attribute.
// Nullable cells start with a null-code byte (255 means the value is valid,
// anything else is a server-defined null reason) followed by the value bytes,
// which are present even when the cell is null. Fixed-width values are little
// endian. Variable-width values carry a uint32 little-endian length prefix;
// string payloads include a trailing NUL that is counted by the prefix.
package wire

import (
	"encoding/binary"
	"strings"

	"github.com/hanpama/scidbgo/internal/schema"
)

// NullCodeValid marks a nullable cell whose value is present.
const NullCodeValid uint8 = 255

const lengthPrefix = 4

var fixedWidths = map[schema.Type]int{
	schema.Bool:       1,
	schema.Char:       1,
	schema.Int8:       1,
	schema.Int16:      2,
	schema.Int32:      4,
	schema.Int64:      8,
	schema.Uint8:      1,
	schema.Uint16:     2,
	schema.Uint32:     4,
	schema.Uint64:     8,
	schema.Float:      4,
	schema.Double:     8,
	schema.Datetime:   8,
	schema.DatetimeTZ: 16,
}

// Cell describes how one attribute is laid out inside a row.
type Cell struct {
	Name     string
	Type     schema.Type
	Nullable bool
	// Width is the value width in bytes for fixed-width types, 0 otherwise.
	Width int
	// Variable is set for length-prefixed types (string, binary).
	Variable bool
}

// Layout computes the per-row cell layout of s.
func Layout(s *schema.Schema) ([]Cell, error) {
	cells := make([]Cell, len(s.Attributes))
	for i, a := range s.Attributes {
		c := Cell{Name: a.Name, Type: a.Type, Nullable: a.Nullable}
		switch a.Type {
		case schema.String, schema.Binary:
			c.Variable = true
		default:
			w, ok := fixedWidths[a.Type]
			if !ok {
				return nil, &UnsupportedTypeError{Attribute: a.Name, Type: a.Type}
			}
			c.Width = w
		}
		cells[i] = c
	}
	return cells, nil
}

// header is the number of bytes preceding the value payload.
func (c Cell) header() int {
	n := 0
	if c.Nullable {
		n++
	}
	if c.Variable {
		n += lengthPrefix
	}
	return n
}

// Size returns the encoded size of the cell starting at off. For
// variable-width cells the length prefix is consulted.
func (c Cell) Size(buf []byte, off int) (int, error) {
	if !c.Variable {
		n := c.Width
		if c.Nullable {
			n++
		}
		return n, nil
	}
	p := off
	if c.Nullable {
		p++
	}
	if p+lengthPrefix > len(buf) {
		return 0, errShort(p+lengthPrefix, len(buf))
	}
	return c.header() + int(binary.LittleEndian.Uint32(buf[p:])), nil
}

// FormatSpec returns the binary format selector for s, e.g.
// "(int64 null,string)", passed as the save format of data queries and as
// the format operand of ingestion operators.
func FormatSpec(s *schema.Schema) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, a := range s.Attributes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(a.Type))
		if a.Nullable {
			b.WriteString(" null")
		}
	}
	b.WriteByte(')')
	return b.String()
}
