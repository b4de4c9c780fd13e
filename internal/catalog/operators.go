package catalog

import "fmt"

// Arity is the operand-count signature of an operator: exactly Min operands,
// or at least Min when Variadic is set.
type Arity struct {
	Min      int
	Variadic bool
}

// Exactly returns an exact signature.
func Exactly(n int) Arity { return Arity{Min: n} }

// AtLeast returns a variadic signature.
func AtLeast(n int) Arity { return Arity{Min: n, Variadic: true} }

// Accepts reports whether n operands satisfy the signature.
func (a Arity) Accepts(n int) bool {
	if a.Variadic {
		return n >= a.Min
	}
	return n == a.Min
}

func (a Arity) String() string {
	word := "operands"
	if a.Min == 1 {
		word = "operand"
	}
	if a.Variadic {
		return fmt.Sprintf("at least %d %s", a.Min, word)
	}
	return fmt.Sprintf("exactly %d %s", a.Min, word)
}

// Operator describes one query-language operator.
type Operator struct {
	Name  string
	Arity Arity
	// Hungry operators run as soon as they are invoked; all others stay
	// deferred until their result is materialized.
	Hungry bool
	// Target is the 1-based position of the operand naming the array the
	// operator writes into, 0 when it writes none.
	Target int
	// Compose marks operators combining several arrays whose attribute and
	// dimension names must not collide.
	Compose bool
}

// Storing reports whether the operator writes into a named array.
func (o Operator) Storing() bool { return o.Target > 0 }

// lazy returns a deferred operator descriptor.
func lazy(name string, a Arity) Operator { return Operator{Name: name, Arity: a} }

func hungry(name string, a Arity, target int) Operator {
	return Operator{Name: name, Arity: a, Hungry: true, Target: target}
}

func compose(name string, a Arity) Operator { return Operator{Name: name, Arity: a, Compose: true} }

var builtinOperators = []Operator{
	lazy("aggregate", AtLeast(2)),
	lazy("apply", AtLeast(3)),
	lazy("attributes", Exactly(1)),
	lazy("avg_rank", AtLeast(1)),
	lazy("bernoulli", AtLeast(2)),
	lazy("between", AtLeast(1)),
	lazy("build", AtLeast(2)),
	lazy("cancel", Exactly(1)),
	lazy("cast", Exactly(2)),
	lazy("consume", AtLeast(1)),
	hungry("create_array", Exactly(3), 1),
	compose("cross_join", AtLeast(2)),
	lazy("cumulate", AtLeast(2)),
	hungry("delete", Exactly(2), 1),
	lazy("dimensions", Exactly(1)),
	lazy("filter", Exactly(2)),
	lazy("flatten", AtLeast(1)),
	lazy("help", AtLeast(0)),
	lazy("index_lookup", AtLeast(3)),
	hungry("input", AtLeast(1), 0),
	hungry("insert", Exactly(2), 2),
	compose("join", Exactly(2)),
	lazy("limit", AtLeast(2)),
	lazy("list", AtLeast(0)),
	hungry("load", AtLeast(1), 1),
	lazy("load_library", Exactly(1)),
	compose("merge", AtLeast(2)),
	lazy("project", AtLeast(2)),
	lazy("quantile", AtLeast(2)),
	lazy("rank", AtLeast(1)),
	lazy("redimension", AtLeast(2)),
	lazy("regrid", AtLeast(2)),
	hungry("remove", Exactly(1), 0),
	hungry("remove_versions", AtLeast(1), 0),
	hungry("rename", Exactly(2), 2),
	lazy("repart", AtLeast(2)),
	lazy("reshape", Exactly(2)),
	lazy("save", AtLeast(2)),
	lazy("scan", AtLeast(1)),
	lazy("show", AtLeast(1)),
	lazy("slice", AtLeast(1)),
	lazy("sort", AtLeast(1)),
	hungry("store", AtLeast(2), 2),
	lazy("subarray", AtLeast(1)),
	lazy("substitute", AtLeast(2)),
	lazy("summarize", AtLeast(1)),
	lazy("transpose", Exactly(1)),
	lazy("unfold", Exactly(1)),
	lazy("uniq", AtLeast(1)),
	lazy("unload_library", Exactly(1)),
	lazy("unpack", AtLeast(2)),
	lazy("variable_window", AtLeast(4)),
	lazy("versions", Exactly(1)),
	lazy("window", AtLeast(1)),
	lazy("xgrid", AtLeast(2)),
	// linear algebra and scalar helpers without a published signature
	lazy("abs", AtLeast(0)),
	lazy("gemm", AtLeast(0)),
	lazy("gesvd", AtLeast(0)),
	lazy("pow", AtLeast(0)),
}
