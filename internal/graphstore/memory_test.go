package graphstore_test

import (
	"context"
	"testing"

	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/internal/graphstore/storetest"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) graphstore.Store {
		return graphstore.NewMemoryStore()
	})
}

func TestMemoryStore_ClosedIsUnavailable(t *testing.T) {
	s := graphstore.NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.GetNode(context.Background(), graph.MustIdentity(graph.KindTable, "a", "b"))
	assert.ErrorIs(t, err, graph.ErrStoreUnavailable)
}

func TestMemoryStore_PropertiesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := graphstore.NewMemoryStore()
	id := graph.MustIdentity(graph.KindTable, "sales", "customers")

	props := graph.Properties{"name": "customers"}
	_, _, err := s.UpsertNode(ctx, id, props)
	require.NoError(t, err)
	props["name"] = "mutated"

	node, err := s.GetNode(ctx, id)
	require.NoError(t, err)
	node.Properties["name"] = "mutated again"

	again, err := s.GetNode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "customers", again.Properties.String("name"))
}
