package schema

// Schema describes an array: an optional array name, an ordered list of
// attributes and an ordered list of dimensions.
//
// Values are treated as immutable. Every helper in this package that derives
// a schema (renaming, projection, dimension changes) returns a fresh copy and
// never reorders attributes or dimensions.
type Schema struct {
	Name       string
	Attributes []Attribute
	Dimensions []Dimension
}

// Attribute is a named, typed value column.
type Attribute struct {
	Name     string
	Type     Type
	Nullable bool
	// Default and Compression keep the raw text found after the DEFAULT and
	// COMPRESSION keywords. They are carried through rendering only.
	Default     string
	Compression string
}

// Dimension is a named axis with inclusive bounds and chunking metadata.
type Dimension struct {
	Name    string
	Low     int64
	High    int64
	Chunk   int64 // 0 means automatic ("*")
	Overlap int64
}

// Coordinate bounds used for "*" in dimension text.
const (
	MaxCoordinate int64 = 1<<62 - 1
	MinCoordinate int64 = -MaxCoordinate
)

// NewDimension returns a dimension bounded by low and high with automatic
// chunking and no overlap.
func NewDimension(name string, low, high int64) Dimension {
	return Dimension{Name: name, Low: low, High: high}
}

// Unbounded reports whether the upper bound is open.
func (d Dimension) Unbounded() bool { return d.High == MaxCoordinate }

// Clone returns a deep copy of s.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{Name: s.Name}
	if s.Attributes != nil {
		out.Attributes = append([]Attribute(nil), s.Attributes...)
	}
	if s.Dimensions != nil {
		out.Dimensions = append([]Dimension(nil), s.Dimensions...)
	}
	return out
}

// AttributeNames returns attribute names in declared order.
func (s *Schema) AttributeNames() []string {
	names := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		names[i] = a.Name
	}
	return names
}

// DimensionNames returns dimension names in declared order.
func (s *Schema) DimensionNames() []string {
	names := make([]string, len(s.Dimensions))
	for i, d := range s.Dimensions {
		names[i] = d.Name
	}
	return names
}

// Attribute returns the attribute with the given name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Equal reports whether two schemas have the same name, attributes and
// dimensions in the same order.
func Equal(a, b *Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name || len(a.Attributes) != len(b.Attributes) || len(a.Dimensions) != len(b.Dimensions) {
		return false
	}
	for i := range a.Attributes {
		if a.Attributes[i] != b.Attributes[i] {
			return false
		}
	}
	for i := range a.Dimensions {
		if a.Dimensions[i] != b.Dimensions[i] {
			return false
		}
	}
	return true
}
