package schema

import (
	"github.com/cockroachdb/errors"
)

// Builder assembles a Schema with chained calls.
//
//	s := schema.New("foo").
//		AddAttribute("x", schema.Int64, false).
//		AddDimension(schema.NewDimension("i", 0, 2)).
//		Schema()
type Builder struct {
	s *Schema
}

// New starts a schema with the given array name (may be empty).
func New(name string) *Builder {
	return &Builder{s: &Schema{Name: name}}
}

// AddAttribute appends an attribute.
func (b *Builder) AddAttribute(name string, typ Type, nullable bool) *Builder {
	b.s.Attributes = append(b.s.Attributes, Attribute{Name: name, Type: typ, Nullable: nullable})
	return b
}

// AddDimension appends a dimension.
func (b *Builder) AddDimension(d Dimension) *Builder {
	b.s.Dimensions = append(b.s.Dimensions, d)
	return b
}

// Schema returns a copy of the schema built so far.
func (b *Builder) Schema() *Schema {
	return b.s.Clone()
}

// DimensionsAsAttributes returns a copy of s whose attribute list is led by
// one non-nullable int64 attribute per dimension, in dimension order. This
// matches the layout produced when a query is wrapped as
//
//	project(apply(q, d1, d1, ...), d1, ..., a1, ...)
//
// Dimensions themselves are kept unchanged.
func DimensionsAsAttributes(s *Schema) *Schema {
	out := s.Clone()
	atts := make([]Attribute, 0, len(s.Dimensions)+len(s.Attributes))
	for _, d := range s.Dimensions {
		atts = append(atts, Attribute{Name: d.Name, Type: Int64})
	}
	out.Attributes = append(atts, s.Attributes...)
	return out
}

// DimensionChange overrides parts of one dimension. Empty or nil fields keep
// the current value.
type DimensionChange struct {
	Name    string
	High    *int64
	Chunk   *int64
	Overlap *int64
}

// ChangeDimension returns a copy of s with the dimension at axis modified.
func ChangeDimension(s *Schema, axis int, c DimensionChange) (*Schema, error) {
	if axis < 0 || axis >= len(s.Dimensions) {
		return nil, errors.Newf("schema: axis %d out of range (%d dimensions)", axis, len(s.Dimensions))
	}
	out := s.Clone()
	d := &out.Dimensions[axis]
	if c.Name != "" {
		d.Name = c.Name
	}
	if c.High != nil {
		d.High = *c.High
	}
	if c.Chunk != nil {
		d.Chunk = *c.Chunk
	}
	if c.Overlap != nil {
		d.Overlap = *c.Overlap
	}
	return out, nil
}
