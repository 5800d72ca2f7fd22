package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/vaultgraph/internal/builder"
	"github.com/leapstack-labs/vaultgraph/internal/cli/output"
	"github.com/leapstack-labs/vaultgraph/internal/config"
	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/internal/search"
	"github.com/leapstack-labs/vaultgraph/internal/testutil"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns the default config pointed at a fresh SQLite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.Path = filepath.Join(t.TempDir(), "graph", "graph.db")
	cfg.Output = string(output.ModeJSON)
	return cfg
}

func execute(t *testing.T, cfg *config.Config, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	ctx := WithConfig(WithLogger(context.Background(), testutil.NewTestLogger(t)), cfg)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(testutil.CustomersSnapshot())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		flags []string
	}{
		{NewBuildCommand(), []string{"snapshot", "watch", "workers", "source-system", "build-timeout"}},
		{NewLineageCommand(), []string{"direction", "depth", "max-depth", "lineage-timeout"}},
		{NewSearchCommand(), []string{"kind", "limit"}},
		{NewClearCommand(), []string{"yes"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			for _, name := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(name), "missing flag --%s", name)
			}
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotNil(t, tt.cmd.RunE)
		})
	}
}

func TestParseLineageArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		direction string
		wantKind  graph.NodeKind
		wantKey   []string
		wantErr   bool
	}{
		{"separate fields", []string{"column", "sales", "customers", "name"}, "downstream", graph.KindColumn, []string{"sales", "customers", "name"}, false},
		{"dotted key", []string{"table", "sales.orders"}, "upstream", graph.KindTable, []string{"sales", "orders"}, false},
		{"dotted name as fields", []string{"column", "sales", "orders.v2", "id"}, "downstream", graph.KindColumn, []string{"sales", "orders.v2", "id"}, false},
		{"short kind", []string{"dv", "HUB_CUSTOMERS"}, "both", graph.KindDataVaultComponent, []string{"HUB_CUSTOMERS"}, false},
		{"unknown kind", []string{"view", "x"}, "downstream", "", nil, true},
		{"bad direction", []string{"table", "x"}, "sideways", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parseLineageArgs(tt.args, &LineageOptions{Direction: tt.direction, Depth: 3})
			if tt.wantErr {
				require.ErrorIs(t, err, graph.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, req.Kind)
			assert.Equal(t, tt.wantKey, req.Key)
			assert.Equal(t, 3, req.MaxDepth)
		})
	}
}

func TestClear_RequiresConfirmation(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(t, cfg, NewClearCommand())
	require.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	t.Run("memory", func(t *testing.T) {
		s, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverMemory}, logger)
		require.NoError(t, err)
		defer func() { _ = s.Close() }()
		assert.IsType(t, &graphstore.MemoryStore{}, s)
	})

	t.Run("sqlite creates directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "graph.db")
		s, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverSQLite, Path: path}, logger)
		require.NoError(t, err)
		defer func() { _ = s.Close() }()
		assert.DirExists(t, filepath.Dir(path))
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenStore(ctx, config.StoreConfig{Driver: "oracle"}, logger)
		require.Error(t, err)
	})
}

func TestCommands_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	snapshot := writeSnapshot(t)

	out, err := execute(t, cfg, NewBuildCommand(), "--snapshot", snapshot)
	require.NoError(t, err)
	var summary struct {
		NodesCreated int `json:"nodes_created"`
		EdgesCreated int `json:"edges_created"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 10, summary.NodesCreated)
	assert.Equal(t, 11, summary.EdgesCreated)

	t.Run("status", func(t *testing.T) {
		out, err := execute(t, cfg, NewStatusCommand())
		require.NoError(t, err)
		var status StatusOutput
		require.NoError(t, json.Unmarshal([]byte(out), &status))
		assert.Equal(t, 10, status.TotalNodes)
		assert.Equal(t, 11, status.TotalEdges)
		assert.Equal(t, 4, status.Nodes[graph.KindColumn])
	})

	t.Run("lineage", func(t *testing.T) {
		out, err := execute(t, cfg, NewLineageCommand(), "column", "sales.customers.customer_id", "--depth", "1")
		require.NoError(t, err)
		var res LineageOutput
		require.NoError(t, json.Unmarshal([]byte(out), &res))

		hub := graph.MustIdentity(graph.KindDataVaultComponent, "vault", "HUB_CUSTOMERS")
		assert.Equal(t, graph.MustIdentity(graph.KindColumn, "sales", "customers", "customer_id"), res.Seed)
		assert.Equal(t, graph.Downstream, res.Direction)

		var found bool
		for _, n := range res.Nodes {
			if n.Identity == hub {
				found = true
				assert.Equal(t, 1, n.Depth)
			}
		}
		assert.True(t, found, "hub missing from lineage")
	})

	t.Run("lineage unknown node", func(t *testing.T) {
		_, err := execute(t, cfg, NewLineageCommand(), "column", "sales.customers.missing")
		require.ErrorIs(t, err, graph.ErrNotFound)
	})

	t.Run("search", func(t *testing.T) {
		out, err := execute(t, cfg, NewSearchCommand(), "customer", "--kind", "table")
		require.NoError(t, err)
		var results []search.Result
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		require.Len(t, results, 1)
		assert.Equal(t, graph.MustIdentity(graph.KindTable, "sales", "customers"), results[0].Node.Identity)
		assert.Equal(t, search.MatchPrefix, results[0].Match)
	})

	t.Run("clear", func(t *testing.T) {
		_, err := execute(t, cfg, NewClearCommand(), "--yes")
		require.NoError(t, err)

		out, err := execute(t, cfg, NewStatusCommand())
		require.NoError(t, err)
		var status StatusOutput
		require.NoError(t, json.Unmarshal([]byte(out), &status))
		assert.Zero(t, status.TotalNodes)
		assert.Zero(t, status.TotalEdges)
	})
}

func TestRenderLineage_Markdown(t *testing.T) {
	seed := graph.MustIdentity(graph.KindTable, "sales", "orders")
	target := graph.MustIdentity(graph.KindTable, "sales", "customers")
	sub := graph.SubGraph{
		Seed: seed,
		Nodes: []graph.Node{
			{NodeRef: graph.NodeRef{Identity: target}},
			{NodeRef: graph.NodeRef{Identity: seed}},
		},
		Edges: []graph.Edge{{
			EdgeRef:    graph.EdgeRef{Kind: graph.RelReferences, From: seed, To: target},
			Properties: graph.Properties{graph.PropColumns: []string{"sales.orders.customer_id -> sales.customers.customer_id"}},
		}},
		Depths: map[graph.Identity]int{seed: 0, target: 1},
	}

	var buf bytes.Buffer
	r := output.NewRendererWithTTY(&buf, io.Discard, false, output.ModeMarkdown)
	require.NoError(t, renderLineage(r, graph.Upstream, sub))

	got := buf.String()
	assert.Contains(t, got, "# Lineage for Table sales.orders (upstream)")
	assert.Contains(t, got, "## Nodes (2)")
	assert.Contains(t, got, "REFERENCES")
	assert.Contains(t, got, "sales.orders.customer_id -> sales.customers.customer_id")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("| 0 ")), bytes.Index(buf.Bytes(), []byte("| 1 ")), "seed row first")
}

func TestKeyFlags(t *testing.T) {
	tests := []struct {
		props graph.Properties
		want  string
	}{
		{graph.Properties{graph.PropPrimaryKey: true}, "PK"},
		{graph.Properties{graph.PropPrimaryKey: true, graph.PropForeignKey: true}, "PK,FK"},
		{graph.Properties{graph.PropForeignKey: true}, "FK"},
		{graph.Properties{graph.PropPrimaryKey: "yes"}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyFlags(tt.props))
	}
}

func TestRenderSummary_Unchanged(t *testing.T) {
	var buf bytes.Buffer
	r := output.NewRendererWithTTY(&buf, io.Discard, false, output.ModeText)
	require.NoError(t, renderSummary(r, "snapshot.yaml", builder.Summary{NodesMerged: 10, EdgesMerged: 11}, time.Second))
	assert.Contains(t, buf.String(), "already up to date")

	buf.Reset()
	require.NoError(t, renderSummary(r, "snapshot.yaml", builder.Summary{NodesCreated: 1}, time.Second))
	assert.NotContains(t, buf.String(), "already up to date")
}

func TestRenderSearch_Empty(t *testing.T) {
	var buf bytes.Buffer
	r := output.NewRendererWithTTY(&buf, io.Discard, false, output.ModeJSON)
	require.NoError(t, renderSearch(r, "nothing", nil))
	assert.JSONEq(t, "[]", buf.String())
}
