package graphstore

import (
	"context"
	"sort"
	"sync"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
)

type edgeKey struct {
	kind     graph.RelKind
	from, to graph.Identity
}

// MemoryStore is an in-process Store guarded by a single RWMutex.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[graph.Identity]graph.Properties
	edges map[edgeKey]graph.Properties
	// out and in index edge keys by endpoint.
	out map[graph.Identity][]edgeKey
	in  map[graph.Identity][]edgeKey
	// closed is set by Close; later calls report the store unavailable.
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.nodes = make(map[graph.Identity]graph.Properties)
	s.edges = make(map[edgeKey]graph.Properties)
	s.out = make(map[graph.Identity][]edgeKey)
	s.in = make(map[graph.Identity][]edgeKey)
}

func (s *MemoryStore) check(ctx context.Context) error {
	if s.closed {
		return graph.Unavailable(nil, "memory store closed")
	}
	return ctx.Err()
}

// UpsertNode implements Store.
func (s *MemoryStore) UpsertNode(ctx context.Context, id graph.Identity, props graph.Properties) (graph.NodeRef, bool, error) {
	if err := ValidateNode(id); err != nil {
		return graph.NodeRef{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return graph.NodeRef{}, false, err
	}

	ref := graph.NodeRef{ID: graph.NodeID(id), Identity: id}
	existing, ok := s.nodes[id]
	if !ok {
		s.nodes[id] = props.Clone()
		return ref, true, nil
	}
	s.nodes[id] = existing.Merge(props)
	return ref, false, nil
}

// UpsertEdge implements Store.
func (s *MemoryStore) UpsertEdge(ctx context.Context, kind graph.RelKind, from, to graph.NodeRef, props graph.Properties) (graph.EdgeRef, bool, error) {
	if err := ValidateEdge(kind, from, to); err != nil {
		return graph.EdgeRef{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return graph.EdgeRef{}, false, err
	}

	if _, ok := s.nodes[from.Identity]; !ok {
		return graph.EdgeRef{}, false, graph.NotFound("edge source %s", from.Identity)
	}
	if _, ok := s.nodes[to.Identity]; !ok {
		return graph.EdgeRef{}, false, graph.NotFound("edge target %s", to.Identity)
	}

	key := edgeKey{kind: kind, from: from.Identity, to: to.Identity}
	ref := graph.EdgeRef{ID: graph.EdgeID(kind, from.Identity, to.Identity), Kind: kind, From: from.Identity, To: to.Identity}

	existing, ok := s.edges[key]
	if !ok {
		s.edges[key] = props.Clone()
		s.out[from.Identity] = append(s.out[from.Identity], key)
		s.in[to.Identity] = append(s.in[to.Identity], key)
		return ref, true, nil
	}
	s.edges[key] = existing.Merge(props)
	return ref, false, nil
}

// GetNode implements Store.
func (s *MemoryStore) GetNode(ctx context.Context, id graph.Identity) (graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return graph.Node{}, err
	}

	props, ok := s.nodes[id]
	if !ok {
		return graph.Node{}, graph.NotFound("node %s", id)
	}
	return s.node(id, props), nil
}

func (s *MemoryStore) node(id graph.Identity, props graph.Properties) graph.Node {
	return graph.Node{
		NodeRef:    graph.NodeRef{ID: graph.NodeID(id), Identity: id},
		Properties: props.Clone(),
	}
}

func (s *MemoryStore) edge(key edgeKey) graph.Edge {
	return graph.Edge{
		EdgeRef: graph.EdgeRef{
			ID:   graph.EdgeID(key.kind, key.from, key.to),
			Kind: key.kind,
			From: key.from,
			To:   key.to,
		},
		Properties: s.edges[key].Clone(),
	}
}

// Neighbors implements Store.
func (s *MemoryStore) Neighbors(ctx context.Context, ref graph.NodeRef, kinds []graph.RelKind, dir graph.Direction) ([]graph.Hop, error) {
	if !dir.Valid() {
		return nil, graph.InvalidArgument("unknown direction %q", dir)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	want := kindSet(kinds)
	var hops []graph.Hop
	collect := func(keys []edgeKey, far func(edgeKey) graph.Identity) {
		for _, key := range keys {
			if want != nil && !want[key.kind] {
				continue
			}
			other := far(key)
			hops = append(hops, graph.Hop{Edge: s.edge(key), Node: s.node(other, s.nodes[other])})
		}
	}

	if dir == graph.Downstream || dir == graph.Both {
		collect(s.out[ref.Identity], func(k edgeKey) graph.Identity { return k.to })
	}
	if dir == graph.Upstream || dir == graph.Both {
		collect(s.in[ref.Identity], func(k edgeKey) graph.Identity { return k.from })
	}

	SortHops(hops)
	return hops, nil
}

// FindNodes implements Store.
func (s *MemoryStore) FindNodes(ctx context.Context, filter NodeFilter) ([]graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var nodes []graph.Node
	for id, props := range s.nodes {
		if !filter.AcceptsKind(id.Kind()) {
			continue
		}
		n := s.node(id, props)
		if filter.Match != nil && !filter.Match(n) {
			continue
		}
		nodes = append(nodes, n)
	}

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Identity < nodes[j].Identity
	})
	return nodes, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context) (graph.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return graph.Stats{}, err
	}

	stats := EmptyStats()
	for id := range s.nodes {
		stats.Nodes[id.Kind()]++
	}
	for key := range s.edges {
		stats.Edges[key.kind]++
	}
	return stats, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.reset()
	return nil
}

// Close implements Store. The store reports unavailability afterwards.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
