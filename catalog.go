package scidbgo

import (
	"context"
	"slices"

	"github.com/hanpama/scidbgo/internal/afl"
	"github.com/hanpama/scidbgo/internal/catalog"
)

func (db *DB) ops() *catalog.Registry { return db.rt.Registry() }

// Operators returns the sorted names of the operators the server reported at
// the last refresh.
func (db *DB) Operators() []string { return db.ops().Names() }

// Op returns the descriptor of an operator known to the connection.
func (db *DB) Op(name string) (Operator, error) { return db.ops().Resolve(name) }

// Invoke builds name(operands...). Hungry operators such as store and remove
// run before Invoke returns; others run when the node is fetched or
// evaluated.
//
//	n, err := db.Invoke(ctx, "store", scidbgo.Lit("build(<x:int64>[i=0:9], i)"))
//	...
//	defer n.Result().Close(ctx)
func (db *DB) Invoke(ctx context.Context, name string, operands ...Operand) (*Node, error) {
	return afl.Invoke(ctx, db.rt, name, operands...)
}

// Arrays lists the arrays on the server and refreshes the snapshot Array
// resolves names against.
func (db *DB) Arrays(ctx context.Context) ([]string, error) {
	lines, err := db.ReadLines(ctx, arraysQuery)
	if err != nil {
		return nil, err
	}
	names := firstFields(lines)
	db.mu.Lock()
	db.arrays = nameSet(names)
	db.mu.Unlock()
	slices.Sort(names)
	return names, nil
}

// Array returns a non-owning handle for an existing array. A name missing
// from the snapshot triggers one re-listing before failing with
// UnknownNameError.
func (db *DB) Array(ctx context.Context, name string) (*Array, error) {
	if !db.hasArray(name) {
		if _, err := db.Arrays(ctx); err != nil {
			return nil, err
		}
		if !db.hasArray(name) {
			return nil, &catalog.UnknownNameError{Kind: "array", Name: name}
		}
	}
	return afl.NewArray(db.rt, name, false), nil
}

func (db *DB) hasArray(name string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.arrays[name]
}

// Remove removes the named array.
func (db *DB) Remove(ctx context.Context, name string) error {
	if _, err := db.Invoke(ctx, "remove", Lit(name)); err != nil {
		return err
	}
	db.mu.Lock()
	delete(db.arrays, name)
	db.mu.Unlock()
	return nil
}

// Papply builds project(apply(src, attr, expr), attr): src reduced to one new
// attribute computed by expr.
func (db *DB) Papply(ctx context.Context, src Operand, attr string, expr Operand) (*Node, error) {
	applied, err := db.Invoke(ctx, "apply", src, Ref(attr), expr)
	if err != nil {
		return nil, err
	}
	return applied.Chain(ctx, "project", Ref(attr))
}

// Limit builds limit(src, n).
func (db *DB) Limit(ctx context.Context, src Operand, n int64) (*Node, error) {
	return db.Invoke(ctx, "limit", src, Lit(n))
}
