// Package storetest holds the conformance suite every graphstore.Store
// implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) graphstore.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s graphstore.Store)
	}{
		{"UpsertNodeCreatesThenMerges", testUpsertNode},
		{"GetNodeNotFound", testGetNodeNotFound},
		{"UpsertEdgeCreatesThenMerges", testUpsertEdge},
		{"UpsertEdgeRejectsBadEndpoints", testUpsertEdgeBadEndpoints},
		{"UpsertEdgeMissingNode", testUpsertEdgeMissingNode},
		{"NeighborsDirectionAndOrder", testNeighbors},
		{"FindNodes", testFindNodes},
		{"StatsAndClear", testStatsAndClear},
		{"ConcurrentUpsertsConverge", testConcurrentUpserts},
		{"Cancelled", testCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func upsert(t *testing.T, s graphstore.Store, id graph.Identity, props graph.Properties) graph.NodeRef {
	t.Helper()
	ref, _, err := s.UpsertNode(context.Background(), id, props)
	require.NoError(t, err)
	return ref
}

func testUpsertNode(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	id := graph.MustIdentity(graph.KindTable, "sales", "customers")

	ref, created, err := s.UpsertNode(ctx, id, graph.Properties{"name": "customers", "description": "old"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, graph.NodeID(id), ref.ID)
	assert.Equal(t, id, ref.Identity)

	ref2, created, err := s.UpsertNode(ctx, id, graph.Properties{"description": "new", "owner": "crm"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, ref, ref2)

	node, err := s.GetNode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "customers", node.Properties.String("name"))
	assert.Equal(t, "new", node.Properties.String("description"))
	assert.Equal(t, "crm", node.Properties.String("owner"))
	assert.Equal(t, graph.KindTable, node.Kind())
}

func testGetNodeNotFound(t *testing.T, s graphstore.Store) {
	_, err := s.GetNode(context.Background(), graph.MustIdentity(graph.KindTable, "nope", "nope"))
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func testUpsertEdge(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	a := upsert(t, s, graph.MustIdentity(graph.KindColumn, "raw", "customers", "id"), nil)
	b := upsert(t, s, graph.MustIdentity(graph.KindColumn, "stg", "customers", "customer_id"), nil)

	ref, created, err := s.UpsertEdge(ctx, graph.RelMappedTo, a, b, graph.Properties{"transformation": "CAST(id AS INT)"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, graph.EdgeID(graph.RelMappedTo, a.Identity, b.Identity), ref.ID)

	_, created, err = s.UpsertEdge(ctx, graph.RelMappedTo, a, b, graph.Properties{"transformation": "id"})
	require.NoError(t, err)
	assert.False(t, created)

	hops, err := s.Neighbors(ctx, a, nil, graph.Downstream)
	require.NoError(t, err)
	require.Len(t, hops, 1)
	assert.Equal(t, "id", hops[0].Edge.Properties.String("transformation"))
	assert.Equal(t, b.Identity, hops[0].Node.Identity)
}

func testUpsertEdgeBadEndpoints(t *testing.T, s graphstore.Store) {
	table := upsert(t, s, graph.MustIdentity(graph.KindTable, "sales", "customers"), nil)
	col := upsert(t, s, graph.MustIdentity(graph.KindColumn, "sales", "customers", "id"), nil)

	_, _, err := s.UpsertEdge(context.Background(), graph.RelMappedTo, table, col, nil)
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)

	_, _, err = s.UpsertEdge(context.Background(), graph.RelKind("OWNS"), col, col, nil)
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func testUpsertEdgeMissingNode(t *testing.T, s graphstore.Store) {
	a := upsert(t, s, graph.MustIdentity(graph.KindColumn, "sales", "orders", "customer_id"), nil)
	ghost := graph.NodeRef{Identity: graph.MustIdentity(graph.KindColumn, "sales", "customers", "id")}

	_, _, err := s.UpsertEdge(context.Background(), graph.RelReferences, a, ghost, nil)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func testNeighbors(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	table := upsert(t, s, graph.MustIdentity(graph.KindTable, "sales", "orders"), nil)
	center := upsert(t, s, graph.MustIdentity(graph.KindColumn, "sales", "orders", "customer_id"), nil)
	up := upsert(t, s, graph.MustIdentity(graph.KindColumn, "raw", "orders", "cust"), nil)
	downB := upsert(t, s, graph.MustIdentity(graph.KindColumn, "mart", "orders", "b"), nil)
	downA := upsert(t, s, graph.MustIdentity(graph.KindColumn, "mart", "orders", "a"), nil)
	ref := upsert(t, s, graph.MustIdentity(graph.KindColumn, "sales", "customers", "id"), nil)

	edges := []struct {
		kind     graph.RelKind
		from, to graph.NodeRef
	}{
		{graph.RelContains, table, center},
		{graph.RelMappedTo, up, center},
		{graph.RelMappedTo, center, downB},
		{graph.RelMappedTo, center, downA},
		{graph.RelReferences, center, ref},
	}
	for _, e := range edges {
		_, _, err := s.UpsertEdge(ctx, e.kind, e.from, e.to, nil)
		require.NoError(t, err)
	}

	down, err := s.Neighbors(ctx, center, nil, graph.Downstream)
	require.NoError(t, err)
	assert.Equal(t, []graph.Identity{downA.Identity, downB.Identity, ref.Identity}, hopIDs(down))

	upHops, err := s.Neighbors(ctx, center, nil, graph.Upstream)
	require.NoError(t, err)
	assert.Equal(t, []graph.Identity{table.Identity, up.Identity}, hopIDs(upHops))

	lineageOnly, err := s.Neighbors(ctx, center, graph.ColumnLineageKinds, graph.Both)
	require.NoError(t, err)
	assert.Equal(t, []graph.Identity{downA.Identity, downB.Identity, up.Identity, ref.Identity}, hopIDs(lineageOnly))

	for _, h := range lineageOnly {
		assert.NotEqual(t, graph.RelContains, h.Edge.Kind)
	}

	_, err = s.Neighbors(ctx, center, nil, graph.Direction("sideways"))
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func hopIDs(hops []graph.Hop) []graph.Identity {
	ids := make([]graph.Identity, 0, len(hops))
	for _, h := range hops {
		ids = append(ids, h.Node.Identity)
	}
	return ids
}

func testFindNodes(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	upsert(t, s, graph.MustIdentity(graph.KindTable, "sales", "orders"), graph.Properties{"name": "orders"})
	upsert(t, s, graph.MustIdentity(graph.KindTable, "sales", "customers"), graph.Properties{"name": "customers"})
	upsert(t, s, graph.MustIdentity(graph.KindColumn, "sales", "customers", "id"), graph.Properties{"name": "id"})

	all, err := s.FindNodes(ctx, graphstore.NodeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, graph.MustIdentity(graph.KindColumn, "sales", "customers", "id"), all[0].Identity)

	tables, err := s.FindNodes(ctx, graphstore.NodeFilter{Kinds: []graph.NodeKind{graph.KindTable}})
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "customers", tables[0].Name())
	assert.Equal(t, "orders", tables[1].Name())

	matched, err := s.FindNodes(ctx, graphstore.NodeFilter{
		Match: func(n graph.Node) bool { return n.Properties.String("name") == "orders" },
	})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, graph.KindTable, matched[0].Kind())
}

func testStatsAndClear(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	sys := upsert(t, s, graph.MustIdentity(graph.KindSourceSystem, "crm"), nil)
	schema := upsert(t, s, graph.MustIdentity(graph.KindSchema, "crm", "sales"), nil)
	_, _, err := s.UpsertEdge(ctx, graph.RelContains, sys, schema, nil)
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Nodes[graph.KindSourceSystem])
	assert.Equal(t, 1, stats.Nodes[graph.KindSchema])
	assert.Equal(t, 0, stats.Nodes[graph.KindColumn])
	assert.Equal(t, 1, stats.Edges[graph.RelContains])
	assert.Equal(t, 2, stats.TotalNodes())

	require.NoError(t, s.Clear(ctx))

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalNodes())
	assert.Equal(t, 0, stats.TotalEdges())
}

func testConcurrentUpserts(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	id := graph.MustIdentity(graph.KindTable, "sales", "customers")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, err := s.UpsertNode(ctx, id, graph.Properties{fmt.Sprintf("p%d", i): i})
			assert.NoError(t, err)
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)

	node, err := s.GetNode(ctx, id)
	require.NoError(t, err)
	for i := range workers {
		assert.Contains(t, node.Properties, fmt.Sprintf("p%d", i))
	}

	nodes, err := s.FindNodes(ctx, graphstore.NodeFilter{})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func testCancelled(t *testing.T, s graphstore.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.UpsertNode(ctx, graph.MustIdentity(graph.KindTable, "sales", "customers"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
