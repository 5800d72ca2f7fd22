package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"build", "lineage", "search", "status", "clear", "version", "completion"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "driver", "db", "neo4j-uri", "log-level", "log-format", "output", "metrics-textfile"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing flag --%s", flag)
	}
	assert.Contains(t, root.PersistentFlags().Lookup("driver").Usage, "not persisted")
}

func TestVersion(t *testing.T) {
	out, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vaultgraph v"+Version)
}

func TestStatus_MemoryStore(t *testing.T) {
	out, err := runRoot(t, "status", "--driver", "memory", "-o", "json")
	require.NoError(t, err)

	var status struct {
		Driver     string `json:"driver"`
		TotalNodes int    `json:"total_nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "memory", status.Driver)
	assert.Zero(t, status.TotalNodes)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := runRoot(t, "status", "--driver", "memory", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLineage_BadKindExitCode(t *testing.T) {
	_, err := runRoot(t, "lineage", "view", "x", "--driver", "memory")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestCompletion(t *testing.T) {
	out, err := runRoot(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "vaultgraph")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"invalid argument", graph.InvalidArgument("bad depth"), ExitUsage},
		{"not found", fmt.Errorf("lookup: %w", graph.NotFound("no such node")), ExitUsage},
		{"unavailable", graph.Unavailable(errors.New("dial tcp"), "store down"), ExitError},
		{"other", errors.New("boom"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "value", rec["key"])
}
