package afl

import (
	"context"
	"runtime"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log/level"

	"github.com/hanpama/scidbgo/internal/schema"
)

// Array is a handle to a named array on the server. A handle created for an
// auto-generated storage target owns the array and removes it on Close.
// Owned handles that are garbage collected without Close issue a
// best-effort remove in the background.
type Array struct {
	rt   Runtime
	name string

	mu         sync.Mutex
	owned      bool
	closed     bool
	hasCleanup bool
	cleanup    runtime.Cleanup
}

type leaked struct {
	rt   Runtime
	name string
}

// NewArray returns a handle for name. When owned is set, Close removes the
// array.
func NewArray(rt Runtime, name string, owned bool) *Array {
	a := &Array{rt: rt, name: name, owned: owned}
	if owned {
		a.cleanup = runtime.AddCleanup(a, removeLeaked, leaked{rt: rt, name: name})
		a.hasCleanup = true
	}
	return a
}

func removeLeaked(l leaked) {
	go func() {
		if err := l.rt.Execute(context.Background(), "remove("+l.name+")"); err != nil {
			level.Warn(l.rt.Logger()).Log("msg", "remove leaked array", "array", l.name, "err", err)
		}
	}()
}

// Name returns the array name.
func (a *Array) Name() string { return a.name }

func (a *Array) String() string { return a.name }

// Owned reports whether Close will remove the array.
func (a *Array) Owned() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owned && !a.closed
}

// Attr references an attribute or dimension of the array, as "A.x".
func (a *Array) Attr(name string) AttrRef { return AttrRef(a.name + "." + name) }

// Schema asks the server for the array's schema.
func (a *Array) Schema(ctx context.Context) (*schema.Schema, error) {
	return a.rt.Schema(ctx, a.name)
}

// Fetch downloads the whole array.
func (a *Array) Fetch(ctx context.Context, opts FetchOptions) (arrow.Record, error) {
	return a.rt.Fetch(ctx, "scan("+a.name+")", opts)
}

// Close removes the array if the handle owns it. Only the first call has an
// effect.
func (a *Array) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.stopCleanup()
	if !a.owned {
		return nil
	}
	return a.rt.Execute(ctx, "remove("+a.name+")")
}

// Detach gives up ownership: the array outlives the handle.
func (a *Array) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.owned = false
	a.stopCleanup()
}

func (a *Array) stopCleanup() {
	if a.hasCleanup {
		a.cleanup.Stop()
		a.hasCleanup = false
	}
}
