package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

const snapshotYAML = `
source_system: crm
description: Customer relationship management
records:
  - schema: sales
    table: customers
    column: customer_id
    data_type: int
    is_primary_key: true
  - schema: sales
    table: orders
    column: customer_id
    is_foreign_key: true
    references:
      table: customers
      column: customer_id
components:
  - component_type: hub
    target_schema: vault
    target_table: HUB_CUSTOMERS
    business_keys: [customer_id]
    source_columns:
      - schema: sales
        table: customers
        column: customer_id
`

const snapshotJSON = `{
  "source_system": "crm",
  "records": [
    {"schema": "sales", "table": "customers", "column": "customer_id", "is_primary_key": true}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "snapshot.yaml", snapshotYAML)

	snap, err := New().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "crm", snap.SourceSystem)
	assert.Equal(t, "Customer relationship management", snap.Description)
	require.Len(t, snap.Records, 2)
	assert.True(t, snap.Records[0].IsPrimaryKey)
	require.NotNil(t, snap.Records[1].References)
	assert.Equal(t, "customers", snap.Records[1].References.Table)
	require.Len(t, snap.Components, 1)
	assert.Equal(t, metadata.TypeHub, snap.Components[0].ComponentType)
	assert.Equal(t, []string{"customer_id"}, snap.Components[0].BusinessKeys)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "snapshot.json", snapshotJSON)

	snap, err := New().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "customer_id", snap.Records[0].Column)
}

func TestLoad_FileURL(t *testing.T) {
	path := writeFile(t, "snapshot.yml", snapshotYAML)

	snap, err := New().Load(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Len(t, snap.Records, 2)
}

func TestLoad_MemURL(t *testing.T) {
	ctx := context.Background()
	url := "mem://localhost/snapshots/crm.yaml"
	require.NoError(t, afs.New().Upload(ctx, url, 0o644, strings.NewReader(snapshotYAML)))

	snap, err := New().Load(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "crm", snap.SourceSystem)
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	for _, location := range []string{"s3://bucket/metadata.json", "gs://bucket/metadata.yaml"} {
		_, err := New().Load(context.Background(), location)
		assert.ErrorIs(t, err, graph.ErrInvalidArgument, location)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeFile(t, "snapshot.yaml", "source_system: crm\ntables: []\n")

	_, err := New().Load(context.Background(), path)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, path, pe.Location)
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}

func TestRead_DetectsFormat(t *testing.T) {
	snap, err := Read(strings.NewReader(snapshotJSON), "")
	require.NoError(t, err)
	assert.Equal(t, "crm", snap.SourceSystem)

	snap, err = Read(strings.NewReader(snapshotYAML), "")
	require.NoError(t, err)
	assert.Len(t, snap.Components, 1)
}

func TestParse_Empty(t *testing.T) {
	snap, err := Parse([]byte(""), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		location string
		data     string
		want     Format
	}{
		{"a.json", "", FormatJSON},
		{"a.YML", "", FormatYAML},
		{"a.yaml", "{}", FormatYAML},
		{"", "  {\"records\": []}", FormatJSON},
		{"", "records: []", FormatYAML},
		{"mem://localhost/snapshot", "records: []", FormatYAML},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectFormat(tt.location, []byte(tt.data)), tt.location+tt.data)
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("x"), "toml")
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
}
