// Package dag tracks the CONTAINS hierarchy claimed during one build.
// Every node has at most one parent; a second parent or a cycle is rejected
// before anything is written to the store.
package dag

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
)

var (
	// ErrSecondParent means a child was already claimed by a different parent.
	ErrSecondParent = errors.New("node already has a different parent")
	// ErrCycle means the claim would make a node its own ancestor.
	ErrCycle = errors.New("containment cycle")
)

// Graph is a forest of containment edges, safe for concurrent use.
type Graph struct {
	mu      sync.Mutex
	parents map[graph.Identity]graph.Identity // child -> parent
}

// NewGraph creates an empty containment graph.
func NewGraph() *Graph {
	return &Graph{
		parents: make(map[graph.Identity]graph.Identity),
	}
}

// Claim records parent -> child. Claiming the same pair twice is a no-op.
func (g *Graph) Claim(parent, child graph.Identity) error {
	if parent == child {
		return fmt.Errorf("%w: %s contains itself", ErrCycle, parent)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.parents[child]; ok {
		if existing == parent {
			return nil
		}
		return fmt.Errorf("%w: %s is contained by %s, not %s", ErrSecondParent, child, existing, parent)
	}

	// Walk up from parent; reaching child means the claim closes a loop.
	for cur, ok := parent, true; ok; cur, ok = g.parents[cur] {
		if cur == child {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrCycle, child, parent)
		}
	}

	g.parents[child] = parent
	return nil
}
