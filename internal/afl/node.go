package afl

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cockroachdb/errors"

	"github.com/hanpama/scidbgo/internal/catalog"
)

// Node is one operator invocation. It starts Built and becomes Evaluated
// once executed; an evaluated node caches its result handle and renders as
// the result's name when nested in other expressions.
type Node struct {
	rt       Runtime
	op       catalog.Operator
	operands []Operand

	mu        sync.Mutex
	evaluated bool
	result    *Array
}

// Operator returns the node's operator descriptor.
func (n *Node) Operator() catalog.Operator { return n.op }

// Operands returns a copy of the operands.
func (n *Node) Operands() []Operand {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Operand(nil), n.operands...)
}

// Query renders the invocation, e.g. "filter(A, x > 1)". Nested evaluated
// nodes render as their result names.
func (n *Node) Query() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text()
}

func (n *Node) String() string { return n.Query() }

func (n *Node) text() string { return n.op.Name + "(" + renderList(n.operands) + ")" }

func (n *Node) ref() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.evaluated && n.result != nil {
		return n.result.Name()
	}
	return n.text()
}

// Evaluated reports whether the node ran.
func (n *Node) Evaluated() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.evaluated
}

// Result returns the cached result handle, nil before evaluation or for
// operators without a result array.
func (n *Node) Result() *Array {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result
}

// PendingUpload reports whether the query still carries upload placeholders.
func (n *Node) PendingUpload() bool { return hasPlaceholder(n.Query()) }

// Append adds operands to a node that has not been evaluated yet.
func (n *Node) Append(operands ...Operand) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.evaluated {
		return errors.Newf("afl: %s() already evaluated", n.op.Name)
	}
	n.operands = append(n.operands, operands...)
	return nil
}

// Chain invokes name with the node as first operand.
func (n *Node) Chain(ctx context.Context, name string, operands ...Operand) (*Node, error) {
	return Invoke(ctx, n.rt, name, append([]Operand{n}, operands...)...)
}

// Eval executes the node once. Hungry operators run as rendered and yield
// their target array, if any. Deferred operators are stored into a generated
// array owned by the returned handle. Later calls return the cached handle.
func (n *Node) Eval(ctx context.Context) (*Array, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.evaluated {
		return n.result, nil
	}
	q := n.text()
	if hasPlaceholder(q) {
		return nil, errors.Newf("afl: %s() is waiting for an upload", n.op.Name)
	}
	if n.op.Hungry {
		if err := n.rt.Execute(ctx, q); err != nil {
			return nil, err
		}
		n.result = n.target()
		n.evaluated = true
		return n.result, nil
	}
	dst := NewArray(n.rt, n.rt.NewArrayName(), true)
	if err := n.storeInto(ctx, q, dst); err != nil {
		dst.Detach()
		return nil, err
	}
	return dst, nil
}

// EvalInto stores a deferred node into dst, which keeps its ownership, and
// caches dst as the node's result. Hungry operators name their own target
// and are rejected. An evaluated node returns its cached handle.
func (n *Node) EvalInto(ctx context.Context, dst *Array) (*Array, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.evaluated {
		return n.result, nil
	}
	if n.op.Hungry {
		return nil, errors.Newf("afl: %s() cannot be stored into %s", n.op.Name, dst.Name())
	}
	q := n.text()
	if hasPlaceholder(q) {
		return nil, errors.Newf("afl: %s() is waiting for an upload", n.op.Name)
	}
	if err := n.storeInto(ctx, q, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

func (n *Node) storeInto(ctx context.Context, q string, dst *Array) error {
	if err := n.rt.Execute(ctx, "store("+q+", "+dst.Name()+")"); err != nil {
		return err
	}
	n.result = dst
	n.evaluated = true
	return nil
}

// Exec runs the node without keeping its result. Deferred nodes stay
// unevaluated, so every call runs the query again; hungry nodes are
// evaluated as by Eval.
func (n *Node) Exec(ctx context.Context) error {
	if n.op.Hungry {
		_, err := n.Eval(ctx)
		return err
	}
	n.mu.Lock()
	q, evaluated := n.text(), n.evaluated
	n.mu.Unlock()
	if evaluated {
		return nil
	}
	if hasPlaceholder(q) {
		return errors.Newf("afl: %s() is waiting for an upload", n.op.Name)
	}
	return n.rt.Execute(ctx, q)
}

// target returns the handle of the array a storing operator writes to.
func (n *Node) target() *Array {
	i := n.op.Target - 1
	if i < 0 || i >= len(n.operands) {
		return nil
	}
	if a, ok := n.operands[i].(*Array); ok {
		return a
	}
	return NewArray(n.rt, Render(n.operands[i]), false)
}

// Fetch downloads the node's result. An evaluated node scans its result
// array; a deferred node runs its query text directly without caching.
func (n *Node) Fetch(ctx context.Context, opts FetchOptions) (arrow.Record, error) {
	n.mu.Lock()
	q, evaluated, result := n.text(), n.evaluated, n.result
	n.mu.Unlock()
	switch {
	case result != nil:
		q = "scan(" + result.Name() + ")"
	case evaluated || n.op.Hungry:
		return nil, errors.Newf("afl: %s() has no result to fetch", n.op.Name)
	}
	return n.rt.Fetch(ctx, q, opts)
}

// Upload posts data and runs the node with its placeholders replaced by the
// file token, the upload instance and format.
func (n *Node) Upload(ctx context.Context, data []byte, format string) (*Array, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.evaluated {
		return nil, errors.Newf("afl: %s() already evaluated", n.op.Name)
	}
	q := n.text()
	if err := n.rt.Upload(ctx, data, func(token string) string { return Substitute(q, token, format) }); err != nil {
		return nil, err
	}
	n.evaluated = true
	n.result = n.target()
	return n.result, nil
}
