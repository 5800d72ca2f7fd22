package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name    string
		kind    NodeKind
		fields  []string
		want    Identity
		wantErr bool
	}{
		{name: "source system", kind: KindSourceSystem, fields: []string{"crm"}, want: "SourceSystem/crm"},
		{name: "schema", kind: KindSchema, fields: []string{"crm", "sales"}, want: "Schema/crm/sales"},
		{name: "table", kind: KindTable, fields: []string{"sales", "customers"}, want: "Table/sales/customers"},
		{name: "column trims fields", kind: KindColumn, fields: []string{" sales", "customers ", "id"}, want: "Column/sales/customers/id"},
		{name: "slash is escaped", kind: KindTable, fields: []string{"raw", "a/b"}, want: "Table/raw/a%2Fb"},
		{name: "component", kind: KindDataVaultComponent, fields: []string{"vault", "HUB_CUSTOMERS"}, want: "DataVaultComponent/vault/HUB_CUSTOMERS"},
		{name: "wrong arity", kind: KindColumn, fields: []string{"sales", "customers"}, wantErr: true},
		{name: "empty field", kind: KindTable, fields: []string{"sales", "  "}, wantErr: true},
		{name: "unknown kind", kind: NodeKind("View"), fields: []string{"x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewIdentity(tt.kind, tt.fields...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentity_RoundTrip(t *testing.T) {
	id := MustIdentity(KindColumn, "raw", "orders/2024", "amount usd")

	assert.Equal(t, KindColumn, id.Kind())
	assert.Equal(t, []string{"raw", "orders/2024", "amount usd"}, id.Fields())
	assert.Equal(t, "amount usd", id.Name())
}

func TestIdentity_Uniqueness(t *testing.T) {
	// Same fields under different kinds never collide.
	a := MustIdentity(KindTable, "sales", "customers")
	b := MustIdentity(KindDataVaultComponent, "sales", "customers")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, NodeID(a), NodeID(b))

	// Separators inside names never collide with the delimiter.
	c := MustIdentity(KindColumn, "s", "t/x", "c")
	d := MustIdentity(KindColumn, "s/t", "x", "c")
	assert.NotEqual(t, c, d)
}

func TestIdentity_Parent(t *testing.T) {
	parent, ok := MustIdentity(KindColumn, "sales", "customers", "id").Parent()
	require.True(t, ok)
	assert.Equal(t, MustIdentity(KindTable, "sales", "customers"), parent)

	parent, ok = MustIdentity(KindSchema, "crm", "sales").Parent()
	require.True(t, ok)
	assert.Equal(t, MustIdentity(KindSourceSystem, "crm"), parent)

	_, ok = MustIdentity(KindTable, "sales", "customers").Parent()
	assert.False(t, ok)
}

func TestNodeID_Deterministic(t *testing.T) {
	id := MustIdentity(KindTable, "sales", "customers")
	assert.Equal(t, NodeID(id), NodeID(id))

	from := MustIdentity(KindColumn, "sales", "orders", "customer_id")
	to := MustIdentity(KindColumn, "sales", "customers", "id")
	assert.Equal(t, EdgeID(RelReferences, from, to), EdgeID(RelReferences, from, to))
	assert.NotEqual(t, EdgeID(RelReferences, from, to), EdgeID(RelReferences, to, from))
	assert.NotEqual(t, EdgeID(RelReferences, from, to), EdgeID(RelMappedTo, from, to))
}
