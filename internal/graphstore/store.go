// Package graphstore persists the vaultgraph property graph.
//
// Store is the only seam between the builder, lineage and search components
// and the backing database. MemoryStore and SQLiteStore live here; the Neo4j
// implementation lives in the neo4j subpackage.
package graphstore

import (
	"context"
	"sort"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
)

// Store is a typed property graph with upsert-only writes.
//
// Implementations must be safe for concurrent use. Upserts are atomic per
// node or edge; concurrent upserts of one identity converge on a single
// merged node. Connectivity failures are reported as graph.ErrStoreUnavailable
// and are never retried internally.
type Store interface {
	// UpsertNode creates the node if absent, otherwise merges props into the
	// stored properties (last write wins per property). created reports
	// whether the node was new.
	UpsertNode(ctx context.Context, id graph.Identity, props graph.Properties) (ref graph.NodeRef, created bool, err error)

	// UpsertEdge creates or merges the edge keyed by (kind, from, to).
	// Both endpoints must exist.
	UpsertEdge(ctx context.Context, kind graph.RelKind, from, to graph.NodeRef, props graph.Properties) (ref graph.EdgeRef, created bool, err error)

	// GetNode returns the node or an error wrapping graph.ErrNotFound.
	GetNode(ctx context.Context, id graph.Identity) (graph.Node, error)

	// Neighbors returns the edges of the given kinds touching ref and the node
	// on the far side, ordered by (edge kind, neighbor identity). An empty
	// kinds slice means every kind.
	Neighbors(ctx context.Context, ref graph.NodeRef, kinds []graph.RelKind, dir graph.Direction) ([]graph.Hop, error)

	// FindNodes returns the nodes matching filter ordered by identity.
	FindNodes(ctx context.Context, filter NodeFilter) ([]graph.Node, error)

	// Stats counts nodes and edges per kind.
	Stats(ctx context.Context) (graph.Stats, error)

	// Clear deletes every node and edge.
	Clear(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// NodeFilter selects nodes in FindNodes.
type NodeFilter struct {
	// Kinds restricts the result to these kinds. Empty means all kinds.
	Kinds []graph.NodeKind
	// Match, when set, must return true for a node to be included.
	Match func(graph.Node) bool
}

// AcceptsKind reports whether nodes of kind k pass the kind filter.
func (f NodeFilter) AcceptsKind(k graph.NodeKind) bool {
	if len(f.Kinds) == 0 {
		return true
	}
	for _, want := range f.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Accepts reports whether n passes both the kind filter and Match.
func (f NodeFilter) Accepts(n graph.Node) bool {
	return f.AcceptsKind(n.Kind()) && (f.Match == nil || f.Match(n))
}

// SortHops orders hops by (edge kind, neighbor identity). Ties between an
// outgoing and incoming edge of one kind fall back to edge ID.
func SortHops(hops []graph.Hop) {
	sort.Slice(hops, func(i, j int) bool {
		a, b := hops[i], hops[j]
		if a.Edge.Kind != b.Edge.Kind {
			return a.Edge.Kind < b.Edge.Kind
		}
		if a.Node.Identity != b.Node.Identity {
			return a.Node.Identity < b.Node.Identity
		}
		return a.Edge.ID < b.Edge.ID
	})
}

func kindSet(kinds []graph.RelKind) map[graph.RelKind]bool {
	if len(kinds) == 0 {
		return nil
	}
	set := make(map[graph.RelKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

// ValidateEdge validates an edge request against the relationship vocabulary.
func ValidateEdge(kind graph.RelKind, from, to graph.NodeRef) error {
	if !kind.Valid() {
		return graph.InvalidArgument("unknown relationship kind %q", kind)
	}
	if !graph.ValidEndpoints(kind, from.Kind(), to.Kind()) {
		return graph.InvalidArgument("%s cannot connect %s to %s", kind, from.Kind(), to.Kind())
	}
	return nil
}

// ValidateNode validates a node identity before it is written.
func ValidateNode(id graph.Identity) error {
	if !id.Kind().Valid() {
		return graph.InvalidArgument("identity %q has unknown kind", id)
	}
	if len(id.Fields()) != id.Kind().KeyArity() {
		return graph.InvalidArgument("identity %q has wrong key arity", id)
	}
	return nil
}

// EmptyStats returns Stats with every kind present at zero.
func EmptyStats() graph.Stats {
	s := graph.Stats{
		Nodes: make(map[graph.NodeKind]int, len(graph.AllNodeKinds)),
		Edges: make(map[graph.RelKind]int, len(graph.AllRelKinds)),
	}
	for _, k := range graph.AllNodeKinds {
		s.Nodes[k] = 0
	}
	for _, k := range graph.AllRelKinds {
		s.Edges[k] = 0
	}
	return s
}
