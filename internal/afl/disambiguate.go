package afl

import (
	"context"

	"github.com/hanpama/scidbgo/internal/catalog"
	"github.com/hanpama/scidbgo/internal/schema"
)

var castOperator = catalog.Operator{Name: "cast", Arity: catalog.Exactly(2)}

// Disambiguate renames colliding attribute and dimension names across the
// array-valued operands (arrays and nodes). Every operand whose schema
// changed is wrapped in cast(operand, <renamed schema>); other operands are
// returned as is.
func Disambiguate(ctx context.Context, rt Runtime, operands []Operand) ([]Operand, error) {
	schemas := make([]*schema.Schema, len(operands))
	for i, o := range operands {
		var q string
		switch v := o.(type) {
		case *Array:
			q = v.Name()
		case *Node:
			q = v.ref()
		default:
			continue
		}
		s, err := rt.Schema(ctx, q)
		if err != nil {
			return nil, err
		}
		schemas[i] = s
	}
	unique, changed := schema.Unique(schemas...)
	out := make([]Operand, len(operands))
	for i, o := range operands {
		out[i] = o
		if changed[i] {
			out[i] = &Node{
				rt:       rt,
				op:       castOperator,
				operands: []Operand{o, Literal(schema.RenderAnonymous(unique[i]))},
			}
		}
	}
	return out, nil
}
