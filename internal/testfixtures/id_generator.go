package testfixtures

import (
	"strconv"
	"sync"

	"github.com/example/roombooking/internal/domain"
)

// IDGenerator hands out deterministic numeric ids the way the backend
// assigns them on create.
type IDGenerator struct {
	mu      sync.Mutex
	start   int64
	counter int64
}

// NewIDGenerator returns a generator whose first id is start. A start below
// one is treated as one.
func NewIDGenerator(start int64) *IDGenerator {
	if start < 1 {
		start = 1
	}
	return &IDGenerator{start: start}
}

// Next returns the next id in the sequence.
func (g *IDGenerator) Next() domain.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.start + g.counter
	g.counter++
	return domain.ID(strconv.FormatInt(id, 10))
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func() domain.ID {
	if g == nil {
		return func() domain.ID { return "" }
	}
	return g.Next
}

// Reset rewinds the sequence so the next id is start again.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counter = 0
	g.mu.Unlock()
}
