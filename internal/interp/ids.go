package interp

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces subscription identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator produces time-sortable UUIDv7 identifiers.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialGenerator produces "prefix-1", "prefix-2", ... for tests and
// golden traces.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequentialGenerator(prefix string) *SequentialGenerator {
	return &SequentialGenerator{prefix: prefix}
}

func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
