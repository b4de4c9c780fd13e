package afl

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// NameGenerator produces array names unique to one connection:
// prefix_1, prefix_2, ...
type NameGenerator struct {
	mu     sync.Mutex
	prefix string
	n      uint64
}

// NewNameGenerator returns a generator with a random "go_xxxxxxxx" prefix, so
// names from different connections do not collide.
func NewNameGenerator() *NameGenerator {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return NewPrefixedNameGenerator("go_" + id[:8])
}

// NewPrefixedNameGenerator returns a generator using prefix.
func NewPrefixedNameGenerator(prefix string) *NameGenerator {
	return &NameGenerator{prefix: prefix}
}

// Next returns the next name.
func (g *NameGenerator) Next() string {
	g.mu.Lock()
	g.n++
	n := g.n
	g.mu.Unlock()
	return g.prefix + "_" + strconv.FormatUint(n, 10)
}
