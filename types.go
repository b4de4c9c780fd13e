package scidbgo

import (
	"github.com/hanpama/scidbgo/internal/afl"
	"github.com/hanpama/scidbgo/internal/catalog"
	"github.com/hanpama/scidbgo/internal/schema"
	"github.com/hanpama/scidbgo/internal/shim"
	"github.com/hanpama/scidbgo/internal/wire"
)

type (
	Schema    = schema.Schema
	Attribute = schema.Attribute
	Dimension = schema.Dimension

	Operator = catalog.Operator

	Operand = afl.Operand
	Literal = afl.Literal
	AttrRef = afl.AttrRef
	Node    = afl.Node
	Array   = afl.Array
)

type (
	TransportError              = shim.TransportError
	ConfigurationError          = shim.ConfigurationError
	SchemaSyntaxError           = schema.SyntaxError
	TruncatedDataError          = wire.TruncatedDataError
	AttributeCountMismatchError = wire.AttributeCountMismatchError
	ArityError                  = afl.ArityError
	UnknownNameError            = catalog.UnknownNameError
)

var (
	Lit   = afl.Lit
	Litf  = afl.Litf
	Quote = afl.Quote
	Ref   = afl.Ref

	ParseSchema  = schema.Parse
	RenderSchema = schema.Render
)

// Upload placeholders understood by Upload, UploadRecord and UploadArray.
const (
	FilePlaceholder     = afl.FilePlaceholder
	InstancePlaceholder = afl.InstancePlaceholder
	FormatPlaceholder   = afl.FormatPlaceholder
)
