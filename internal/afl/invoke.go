package afl

import (
	"context"
	"fmt"
	"strings"

	"github.com/hanpama/scidbgo/internal/catalog"
)

// Placeholders left in ingestion queries until Upload supplies the values.
const (
	FilePlaceholder     = "'{file}'"
	InstancePlaceholder = "{instance}"
	FormatPlaceholder   = "'{format}'"
)

// UploadInstance is the instance id the gateway stores uploaded files on.
const UploadInstance = "0"

// ArityError reports an operand count outside an operator's signature.
type ArityError struct {
	Operator string
	Exact    bool
	Required int
	Given    int
}

func (e *ArityError) Error() string {
	a := catalog.Arity{Min: e.Required, Variadic: !e.Exact}
	return fmt.Sprintf("afl: %s() takes %s (%d given)", e.Operator, a, e.Given)
}

// Invoke builds a node applying the operator name to operands. Missing
// trailing operands are defaulted first:
//   - store without a target gets a generated array owned by the node;
//   - create_array without a temporariness flag gets false;
//   - input and load get file, instance and format placeholders.
//
// Operands of operators combining arrays are disambiguated. Hungry operators
// are executed before Invoke returns, unless they still carry upload
// placeholders.
func Invoke(ctx context.Context, rt Runtime, name string, operands ...Operand) (*Node, error) {
	op, err := rt.Registry().Resolve(name)
	if err != nil {
		return nil, err
	}
	operands, generated := defaults(rt, op, operands)
	if !op.Arity.Accepts(len(operands)) {
		return nil, &ArityError{Operator: op.Name, Exact: !op.Arity.Variadic, Required: op.Arity.Min, Given: len(operands)}
	}
	if op.Compose {
		if operands, err = Disambiguate(ctx, rt, operands); err != nil {
			return nil, err
		}
	}
	n := &Node{rt: rt, op: op, operands: operands}
	if op.Hungry && !n.PendingUpload() {
		if _, err := n.Eval(ctx); err != nil {
			if generated != nil {
				generated.Detach()
			}
			return nil, err
		}
	}
	return n, nil
}

func defaults(rt Runtime, op catalog.Operator, operands []Operand) ([]Operand, *Array) {
	operands = append([]Operand(nil), operands...)
	switch strings.ToLower(op.Name) {
	case "store":
		if len(operands) == 1 {
			dst := NewArray(rt, rt.NewArrayName(), true)
			return append(operands, dst), dst
		}
	case "create_array":
		if len(operands) == 2 {
			operands = append(operands, Lit(false))
		}
	case "input", "load":
		tail := []Operand{Literal(FilePlaceholder), Literal(InstancePlaceholder), Literal(FormatPlaceholder)}
		if n := len(operands); n >= 1 && n < 4 {
			operands = append(operands, tail[n-1:]...)
		}
	}
	return operands, nil
}

// Substitute replaces upload placeholders in query: the file token, the
// upload instance and the format spec. "{}" is replaced by the bare token.
func Substitute(query, token, format string) string {
	return strings.NewReplacer(
		"{file}", token,
		InstancePlaceholder, UploadInstance,
		"{format}", format,
		"{}", token,
	).Replace(query)
}

func hasPlaceholder(query string) bool {
	return strings.Contains(query, "{file}") ||
		strings.Contains(query, InstancePlaceholder) ||
		strings.Contains(query, "{format}")
}
