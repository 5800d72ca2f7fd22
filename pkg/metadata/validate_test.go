package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Record(t *testing.T) {
	pos := 0
	tests := []struct {
		name    string
		record  Record
		wantErr string
	}{
		{
			name:   "valid",
			record: Record{Schema: "sales", Table: "customers", Column: "id", IsPrimaryKey: true},
		},
		{
			name:    "missing column",
			record:  Record{Schema: "sales", Table: "customers"},
			wantErr: "column is required",
		},
		{
			name:    "ordinal must be positive",
			record:  Record{Schema: "sales", Table: "customers", Column: "id", OrdinalPosition: &pos},
			wantErr: "ordinal_position must be >= 1",
		},
		{
			name: "reference without fk flag",
			record: Record{
				Schema: "sales", Table: "orders", Column: "customer_id",
				References: &ColumnRef{Table: "customers", Column: "id"},
			},
			wantErr: "references given but is_foreign_key is false",
		},
		{
			name: "reference missing column",
			record: Record{
				Schema: "sales", Table: "orders", Column: "customer_id", IsForeignKey: true,
				References: &ColumnRef{Table: "customers"},
			},
			wantErr: "references.column is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.record)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Component(t *testing.T) {
	hub := Component{ComponentType: TypeHub, TargetSchema: "vault", TargetTable: "HUB_CUSTOMERS"}
	assert.NoError(t, Validate(hub))

	bad := hub
	bad.ComponentType = "bridge"
	err := Validate(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component_type must be one of")

	sat := Component{
		ComponentType:   TypeSatellite,
		TargetSchema:    "vault",
		TargetTable:     "SAT_CUSTOMERS",
		ParentComponent: &ComponentRef{},
	}
	err = Validate(sat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parent_component.table is required")

	hub.RelatedHubs = []ComponentRef{{Table: "HUB_ORDERS"}}
	err = Validate(hub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "related_hubs is only allowed on links")
}

func TestValidate_Transformation(t *testing.T) {
	tr := Transformation{
		Kind:   TransformMappedTo,
		Source: ColumnRef{Schema: "raw", Table: "customers", Column: "id"},
		Target: ColumnRef{Schema: "staging", Table: "stg_customers", Column: "customer_id"},
	}
	assert.NoError(t, Validate(tr))

	tr.Target.Schema = ""
	err := Validate(tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target.schema is required")

	tr.Kind = "joins"
	err = Validate(tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind must be one of")
}

func TestColumnRef_WithDefaultSchema(t *testing.T) {
	ref := ColumnRef{Table: "customers", Column: "id"}
	assert.Equal(t, "sales.customers.id", ref.WithDefaultSchema("sales").String())

	ref.Schema = "crm"
	assert.Equal(t, "crm.customers.id", ref.WithDefaultSchema("sales").String())
}
