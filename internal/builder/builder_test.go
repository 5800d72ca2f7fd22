package builder_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leapstack-labs/vaultgraph/internal/builder"
	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/internal/testutil"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(t *testing.T, store graphstore.Store, workers int) *builder.Builder {
	t.Helper()
	return builder.New(store, builder.Config{Workers: workers, Logger: testutil.NewTestLogger(t)})
}

func allNodes(t *testing.T, store graphstore.Store) []graph.Node {
	t.Helper()
	nodes, err := store.FindNodes(context.Background(), graphstore.NodeFilter{})
	require.NoError(t, err)
	return nodes
}

func TestBuild_CustomersScenario(t *testing.T) {
	ctx := context.Background()
	store := graphstore.NewMemoryStore()

	summary, err := newBuilder(t, store, 1).Build(ctx, testutil.CustomersSnapshot())
	require.NoError(t, err)
	assert.Empty(t, summary.Warnings)
	assert.Equal(t, 10, summary.NodesCreated)
	assert.Equal(t, 11, summary.EdgesCreated)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Nodes[graph.KindSourceSystem])
	assert.Equal(t, 1, stats.Nodes[graph.KindSchema])
	assert.Equal(t, 2, stats.Nodes[graph.KindTable])
	assert.Equal(t, 4, stats.Nodes[graph.KindColumn])
	assert.Equal(t, 2, stats.Nodes[graph.KindDataVaultComponent])
	assert.Equal(t, 7, stats.Edges[graph.RelContains])
	assert.Equal(t, 1, stats.Edges[graph.RelReferences])
	assert.Equal(t, 2, stats.Edges[graph.RelSourceOf])
	assert.Equal(t, 1, stats.Edges[graph.RelPartOf])

	hub, err := store.GetNode(ctx, graph.MustIdentity(graph.KindDataVaultComponent, "vault", "HUB_CUSTOMERS"))
	require.NoError(t, err)
	assert.Equal(t, "hub", hub.Properties.String(graph.PropComponentType))
	assert.Equal(t, "CRM", hub.Properties.String(graph.PropCollisionCode))
	assert.Equal(t, []string{"customer_id"}, hub.Properties[graph.PropBusinessKeys])

	col, err := store.GetNode(ctx, graph.MustIdentity(graph.KindColumn, "sales", "orders", "customer_id"))
	require.NoError(t, err)
	assert.True(t, col.Properties.Bool(graph.PropForeignKey))
	assert.True(t, col.Properties.Bool(graph.PropNullable))
	assert.Equal(t, 2, col.Properties[graph.PropOrdinal])

	table, err := store.GetNode(ctx, graph.MustIdentity(graph.KindTable, "sales", "customers"))
	require.NoError(t, err)
	assert.Equal(t, "Customer master", table.Properties.String(graph.PropDescription))

	system, err := store.GetNode(ctx, graph.MustIdentity(graph.KindSourceSystem, "crm"))
	require.NoError(t, err)
	assert.Equal(t, "Customer relationship management", system.Properties.String(graph.PropDescription))
}

func TestBuild_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := graphstore.NewMemoryStore()
	b := newBuilder(t, store, 4)

	_, err := b.Build(ctx, testutil.CustomersSnapshot())
	require.NoError(t, err)
	before := allNodes(t, store)
	statsBefore, err := store.Stats(ctx)
	require.NoError(t, err)

	summary, err := b.Build(ctx, testutil.CustomersSnapshot())
	require.NoError(t, err)
	assert.Zero(t, summary.NodesCreated)
	assert.Zero(t, summary.EdgesCreated)
	assert.False(t, summary.Changed())
	assert.Empty(t, summary.Warnings)

	statsAfter, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, statsBefore, statsAfter)
	assert.Equal(t, before, allNodes(t, store))
}

func TestBuild_ConcurrentBuildsConverge(t *testing.T) {
	ctx := context.Background()
	store := graphstore.NewMemoryStore()
	b := newBuilder(t, store, 2)

	const builds = 4
	summaries := make([]builder.Summary, builds)
	var wg sync.WaitGroup
	for i := range builds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := b.Build(ctx, testutil.CustomersSnapshot())
			assert.NoError(t, err)
			summaries[i] = s
		}()
	}
	wg.Wait()

	created := 0
	for _, s := range summaries {
		created += s.NodesCreated
	}
	assert.Equal(t, 10, created, "each identity is created exactly once")
	assert.Len(t, allNodes(t, store), 10)
}

func TestBuild_DeferredReferenceUnresolved(t *testing.T) {
	snap := metadata.Snapshot{
		SourceSystem: "crm",
		Records: []metadata.Record{{
			Schema: "sales", Table: "orders", Column: "product_id", IsForeignKey: true,
			References: &metadata.ColumnRef{Table: "products", Column: "id"},
		}},
	}

	store := graphstore.NewMemoryStore()
	summary, err := newBuilder(t, store, 1).Build(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, summary.Warnings, 1)
	assert.Equal(t, "sales.orders.product_id", summary.Warnings[0].Record)
	assert.Contains(t, summary.Warnings[0].Message, "Column/sales/products/id not found")
	assert.Equal(t, 4, summary.NodesCreated)
}

func TestBuild_InvalidRecordsBecomeWarnings(t *testing.T) {
	snap := metadata.Snapshot{
		Records: []metadata.Record{
			{Schema: "sales", Table: "customers", Column: "id"},
			{Schema: "sales", Table: "customers"},
			{Schema: "sales", Table: "orders", Column: "x", References: &metadata.ColumnRef{Table: "customers", Column: "id"}},
		},
	}

	store := graphstore.NewMemoryStore()
	summary, err := newBuilder(t, store, 2).Build(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, summary.Warnings, 2)
	assert.Equal(t, "sales.customers.", summary.Warnings[0].Record)
	assert.Contains(t, summary.Warnings[0].Message, "column is required")
	assert.Equal(t, "sales.orders.x", summary.Warnings[1].Record)

	_, err = store.GetNode(context.Background(), graph.MustIdentity(graph.KindSourceSystem, builder.DefaultSourceSystem))
	assert.NoError(t, err, "records without a source system fall back to the default")
}

func TestBuild_SecondParentRejected(t *testing.T) {
	ctx := context.Background()

	t.Run("within batch", func(t *testing.T) {
		snap := metadata.Snapshot{
			SourceSystem: "crm",
			Records: []metadata.Record{
				{Schema: "sales", Table: "customers", Column: "id"},
				{SourceSystem: "erp", Schema: "sales", Table: "customers", Column: "name"},
			},
		}
		store := graphstore.NewMemoryStore()
		summary, err := newBuilder(t, store, 1).Build(ctx, snap)
		require.NoError(t, err)

		require.Len(t, summary.Warnings, 1)
		assert.Equal(t, "sales.customers.name", summary.Warnings[0].Record)

		hops, err := store.Neighbors(ctx, graph.NodeRef{Identity: graph.MustIdentity(graph.KindTable, "sales", "customers")},
			[]graph.RelKind{graph.RelContains}, graph.Upstream)
		require.NoError(t, err)
		require.Len(t, hops, 1)
		assert.Equal(t, graph.MustIdentity(graph.KindSchema, "crm", "sales"), hops[0].Node.Identity)
	})

	t.Run("against stored graph", func(t *testing.T) {
		store := graphstore.NewMemoryStore()
		b := newBuilder(t, store, 1)

		_, err := b.Build(ctx, metadata.Snapshot{
			SourceSystem: "crm",
			Records:      []metadata.Record{{Schema: "sales", Table: "customers", Column: "id"}},
		})
		require.NoError(t, err)

		summary, err := b.Build(ctx, metadata.Snapshot{
			SourceSystem: "erp",
			Records:      []metadata.Record{{Schema: "sales", Table: "customers", Column: "email"}},
		})
		require.NoError(t, err)
		require.Len(t, summary.Warnings, 1)
		assert.Contains(t, summary.Warnings[0].Message, "already contained by Schema/crm/sales")

		_, err = store.GetNode(ctx, graph.MustIdentity(graph.KindColumn, "sales", "customers", "email"))
		assert.ErrorIs(t, err, graph.ErrNotFound)
	})
}

func TestBuild_ComponentWarnings(t *testing.T) {
	snap := metadata.Snapshot{
		SourceSystem: "crm",
		Records:      []metadata.Record{{Schema: "sales", Table: "customers", Column: "customer_id"}},
		Components: []metadata.Component{
			{
				ComponentType:   metadata.TypeHub,
				TargetSchema:    "vault",
				TargetTable:     "HUB_CUSTOMERS",
				SourceColumns:   []metadata.ColumnRef{{Schema: "sales", Table: "customers", Column: "customer_id"}},
				ParentComponent: &metadata.ComponentRef{Table: "HUB_OTHER"},
			},
			{
				ComponentType: metadata.TypeSatellite,
				TargetSchema:  "vault",
				TargetTable:   "SAT_ORPHAN",
				SourceColumns: []metadata.ColumnRef{{Schema: "sales", Table: "customers", Column: "missing"}},
			},
			{
				ComponentType:   metadata.TypeLinkSatellite,
				TargetSchema:    "vault",
				TargetTable:     "LSAT_X",
				ParentComponent: &metadata.ComponentRef{Table: "LNK_UNKNOWN"},
			},
			{
				ComponentType: metadata.TypeLink,
				TargetSchema:  "vault",
				TargetTable:   "LNK_CUSTOMER_ORDER",
				RelatedHubs:   []metadata.ComponentRef{{Table: "HUB_CUSTOMERS"}, {Table: "SAT_ORPHAN"}},
			},
			{ComponentType: "bridge", TargetSchema: "vault", TargetTable: "BRG"},
		},
	}

	store := graphstore.NewMemoryStore()
	summary, err := newBuilder(t, store, 1).Build(context.Background(), snap)
	require.NoError(t, err)

	messages := map[string]string{}
	for _, w := range summary.Warnings {
		messages[w.Record] += w.Message + "\n"
	}
	assert.Len(t, summary.Warnings, 6)
	assert.Contains(t, messages["vault.HUB_CUSTOMERS"], "hub cannot have a parent component")
	assert.Contains(t, messages["vault.SAT_ORPHAN"], "source column sales.customers.missing not found")
	assert.Contains(t, messages["vault.SAT_ORPHAN"], "satellite has no parent component")
	assert.Contains(t, messages["vault.LSAT_X"], "parent component vault.LNK_UNKNOWN not found")
	assert.Contains(t, messages["vault.LNK_CUSTOMER_ORDER"], "related hub vault.SAT_ORPHAN is a satellite")
	assert.Contains(t, messages["vault.BRG"], "invalid component")

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Nodes[graph.KindDataVaultComponent])
	assert.Equal(t, 1, stats.Edges[graph.RelSourceOf])
	assert.Equal(t, 1, stats.Edges[graph.RelPartOf], "only the link to its hub")
}

func TestBuild_Transformations(t *testing.T) {
	ctx := context.Background()
	snap := metadata.Snapshot{
		SourceSystem: "crm",
		Records: []metadata.Record{
			{Schema: "raw", Table: "customers", Column: "first"},
			{Schema: "raw", Table: "customers", Column: "last"},
			{Schema: "stg", Table: "customers", Column: "full_name"},
		},
		Transformations: []metadata.Transformation{
			{
				Kind:       metadata.TransformMappedTo,
				Source:     metadata.ColumnRef{Schema: "raw", Table: "customers", Column: "first"},
				Target:     metadata.ColumnRef{Schema: "stg", Table: "customers", Column: "full_name"},
				Expression: "first || ' ' || last",
			},
			{
				Kind:       metadata.TransformDerivedFrom,
				Source:     metadata.ColumnRef{Schema: "raw", Table: "customers", Column: "last"},
				Target:     metadata.ColumnRef{Schema: "stg", Table: "customers", Column: "full_name"},
				Expression: "UPPER(last)",
			},
			{
				Kind:   metadata.TransformMappedTo,
				Source: metadata.ColumnRef{Schema: "raw", Table: "customers", Column: "ghost"},
				Target: metadata.ColumnRef{Schema: "stg", Table: "customers", Column: "full_name"},
			},
		},
	}

	store := graphstore.NewMemoryStore()
	summary, err := newBuilder(t, store, 2).Build(ctx, snap)
	require.NoError(t, err)
	require.Len(t, summary.Warnings, 1)
	assert.Equal(t, "raw.customers.ghost -> stg.customers.full_name", summary.Warnings[0].Record)

	target := graph.NodeRef{Identity: graph.MustIdentity(graph.KindColumn, "stg", "customers", "full_name")}
	hops, err := store.Neighbors(ctx, target, graph.ColumnLineageKinds, graph.Upstream)
	require.NoError(t, err)
	require.Len(t, hops, 2)
	assert.Equal(t, graph.RelDerivedFrom, hops[0].Edge.Kind)
	assert.Equal(t, "UPPER(last)", hops[0].Edge.Properties.String(graph.PropDerivation))
	assert.Equal(t, graph.RelMappedTo, hops[1].Edge.Kind)
	assert.Equal(t, "first || ' ' || last", hops[1].Edge.Properties.String(graph.PropTransformation))
}

func TestBuild_StoreUnavailableAborts(t *testing.T) {
	store := &testutil.FailingStore{Store: graphstore.NewMemoryStore(), FailAfter: 3}

	summary, err := newBuilder(t, store, 1).Build(context.Background(), testutil.CustomersSnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrStoreUnavailable)
	assert.Equal(t, 2, summary.NodesCreated, "writes before the outage stay counted")
	assert.Equal(t, 1, summary.EdgesCreated)
	assert.Empty(t, summary.Warnings)
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newBuilder(t, graphstore.NewMemoryStore(), 1).Build(ctx, testutil.CustomersSnapshot())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
