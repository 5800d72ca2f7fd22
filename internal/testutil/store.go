package testutil

import (
	"context"
	"sync/atomic"

	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
)

// FailingStore wraps a Store and reports it unavailable once FailAfter
// writes have succeeded. Reads always pass through.
type FailingStore struct {
	graphstore.Store
	FailAfter int64

	writes atomic.Int64
}

func (s *FailingStore) fail() error {
	if s.writes.Add(1) > s.FailAfter {
		return graph.Unavailable(nil, "injected outage")
	}
	return nil
}

// UpsertNode implements graphstore.Store.
func (s *FailingStore) UpsertNode(ctx context.Context, id graph.Identity, props graph.Properties) (graph.NodeRef, bool, error) {
	if err := s.fail(); err != nil {
		return graph.NodeRef{}, false, err
	}
	return s.Store.UpsertNode(ctx, id, props)
}

// UpsertEdge implements graphstore.Store.
func (s *FailingStore) UpsertEdge(ctx context.Context, kind graph.RelKind, from, to graph.NodeRef, props graph.Properties) (graph.EdgeRef, bool, error) {
	if err := s.fail(); err != nil {
		return graph.EdgeRef{}, false, err
	}
	return s.Store.UpsertEdge(ctx, kind, from, to, props)
}
