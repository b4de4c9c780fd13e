// Package catalog holds the operator descriptor table and the immutable
// registry snapshot a connection resolves operator names against.
package catalog

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// UnknownNameError reports a lookup of an operator or array the connection's
// catalog does not know.
type UnknownNameError struct {
	Kind string // "operator" or "array"
	Name string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("catalog: unknown %s %q", e.Kind, e.Name)
}

// Registry is an immutable name -> Operator mapping. Names are matched
// case-insensitively.
type Registry struct {
	ops   map[string]Operator
	names []string
}

// NewRegistry builds a registry from ops. Later duplicates win.
func NewRegistry(ops ...Operator) *Registry {
	r := &Registry{ops: make(map[string]Operator, len(ops))}
	for _, op := range ops {
		r.ops[strings.ToLower(op.Name)] = op
	}
	for _, op := range r.ops {
		r.names = append(r.names, op.Name)
	}
	slices.Sort(r.names)
	return r
}

var builtin = sync.OnceValue(func() *Registry { return NewRegistry(builtinOperators...) })

// Builtin returns the registry of every operator in the static table.
func Builtin() *Registry { return builtin() }

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Operator, bool) {
	op, ok := r.ops[strings.ToLower(name)]
	return op, ok
}

// Resolve is Lookup returning an UnknownNameError for missing names.
func (r *Registry) Resolve(name string) (Operator, error) {
	op, ok := r.Lookup(name)
	if !ok {
		return Operator{}, &UnknownNameError{Kind: "operator", Name: name}
	}
	return op, nil
}

// Names returns the sorted operator names.
func (r *Registry) Names() []string { return slices.Clone(r.names) }

// Len returns the number of operators.
func (r *Registry) Len() int { return len(r.ops) }

// Restrict returns the registry of the operators a server reports. Names in
// r keep their descriptor; names r does not know, such as operators from
// plugin libraries, become deferred operators accepting any operand count.
func (r *Registry) Restrict(serverNames []string) *Registry {
	ops := make([]Operator, 0, len(serverNames))
	for _, name := range serverNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		op, ok := r.Lookup(name)
		if !ok {
			op = lazy(name, AtLeast(0))
		}
		ops = append(ops, op)
	}
	return NewRegistry(ops...)
}
