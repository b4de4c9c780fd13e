package afl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hanpama/scidbgo/internal/schema"
)

// Operand is one argument of an operator invocation. The set of operand
// kinds is closed: Literal, AttrRef, *Array and *Node.
type Operand interface {
	operand()
}

// Literal is rendered verbatim. Strings are not quoted; use Quote for
// string constants.
type Literal string

// AttrRef is an attribute or dimension expression such as "x" or
// "(A.x + 1)".
type AttrRef string

func (Literal) operand() {}
func (AttrRef) operand() {}
func (*Array) operand()  {}
func (*Node) operand()   {}

// Render formats an operand as query text. An evaluated node renders as the
// name of its result array.
func Render(o Operand) string {
	switch v := o.(type) {
	case Literal:
		return string(v)
	case AttrRef:
		return string(v)
	case *Array:
		return v.Name()
	case *Node:
		return v.ref()
	case nil:
		return ""
	}
	panic(fmt.Sprintf("afl: unknown operand %T", o))
}

// Lit renders v as a literal: strings verbatim, booleans as true/false,
// schemas in anonymous form, everything else with its default format.
func Lit(v any) Literal {
	switch x := v.(type) {
	case Literal:
		return x
	case string:
		return Literal(x)
	case bool:
		return Literal(strconv.FormatBool(x))
	case float32:
		return Literal(strconv.FormatFloat(float64(x), 'g', -1, 32))
	case float64:
		return Literal(strconv.FormatFloat(x, 'g', -1, 64))
	case *schema.Schema:
		return Literal(schema.RenderAnonymous(x))
	case fmt.Stringer:
		return Literal(x.String())
	}
	return Literal(fmt.Sprint(v))
}

// Litf formats a literal with fmt.Sprintf.
func Litf(format string, args ...any) Literal { return Literal(fmt.Sprintf(format, args...)) }

// Quote wraps s in single quotes, escaping embedded quotes.
func Quote(s string) Literal {
	return Literal("'" + strings.ReplaceAll(s, "'", `\'`) + "'")
}

// Ref references an attribute or dimension by name.
func Ref(name string) AttrRef { return AttrRef(name) }

func (a AttrRef) infix(op string, o Operand) AttrRef {
	return AttrRef("(" + string(a) + " " + op + " " + Render(o) + ")")
}

func (a AttrRef) Add(o Operand) AttrRef { return a.infix("+", o) }
func (a AttrRef) Sub(o Operand) AttrRef { return a.infix("-", o) }
func (a AttrRef) Mul(o Operand) AttrRef { return a.infix("*", o) }
func (a AttrRef) Div(o Operand) AttrRef { return a.infix("/", o) }
func (a AttrRef) Mod(o Operand) AttrRef { return a.infix("%", o) }

// As aliases the expression, as in "A as B".
func (a AttrRef) As(alias string) AttrRef { return AttrRef(string(a) + " as " + alias) }

func renderList(operands []Operand) string {
	parts := make([]string, len(operands))
	for i, o := range operands {
		parts[i] = Render(o)
	}
	return strings.Join(parts, ", ")
}
