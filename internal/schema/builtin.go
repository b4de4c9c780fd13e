package schema

// Type is an attribute element type name as it appears in schema text.
type Type string

// Built-in element types understood by the wire codec.
const (
	Bool       Type = "bool"
	Char       Type = "char"
	Int8       Type = "int8"
	Int16      Type = "int16"
	Int32      Type = "int32"
	Int64      Type = "int64"
	Uint8      Type = "uint8"
	Uint16     Type = "uint16"
	Uint32     Type = "uint32"
	Uint64     Type = "uint64"
	Float      Type = "float"
	Double     Type = "double"
	Datetime   Type = "datetime"
	DatetimeTZ Type = "datetimetz"
	String     Type = "string"
	Binary     Type = "binary"
)

var builtinTypes = map[Type]struct{}{
	Bool: {}, Char: {},
	Int8: {}, Int16: {}, Int32: {}, Int64: {},
	Uint8: {}, Uint16: {}, Uint32: {}, Uint64: {},
	Float: {}, Double: {},
	Datetime: {}, DatetimeTZ: {},
	String: {}, Binary: {},
}

// IsBuiltin reports whether t is one of the built-in element types.
func (t Type) IsBuiltin() bool {
	_, ok := builtinTypes[t]
	return ok
}
