package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates run ids "<prefix>-1", "<prefix>-2", ...
//
// Unlike engine.FixedGenerator it never runs out, which suits scenarios
// whose number of runs is data-driven. It satisfies engine.RunIDGenerator.
//
// Thread-safety: SequentialRunIDs is safe for concurrent use.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator. An empty prefix becomes "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
