package testutil

import (
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
)

// CustomersSnapshot is a small sales schema with a hub and a satellite over
// customers. orders is listed first so its foreign key has to be deferred.
func CustomersSnapshot() metadata.Snapshot {
	yes := true
	one, two := 1, 2
	return metadata.Snapshot{
		SourceSystem: "crm",
		Description:  "Customer relationship management",
		Records: []metadata.Record{
			{Schema: "sales", Table: "orders", Column: "order_id", DataType: "int", IsPrimaryKey: true, OrdinalPosition: &one},
			{
				Schema: "sales", Table: "orders", Column: "customer_id", DataType: "int",
				IsForeignKey: true, Nullable: &yes, OrdinalPosition: &two,
				References: &metadata.ColumnRef{Table: "customers", Column: "customer_id"},
			},
			{
				Schema: "sales", Table: "customers", TableDescription: "Customer master",
				Column: "customer_id", DataType: "int", IsPrimaryKey: true, OrdinalPosition: &one,
			},
			{Schema: "sales", Table: "customers", Column: "name", DataType: "varchar", Description: "Full customer name", OrdinalPosition: &two},
		},
		Components: []metadata.Component{
			{
				ComponentType:   metadata.TypeSatellite,
				TargetSchema:    "vault",
				TargetTable:     "SAT_CUSTOMERS",
				SourceColumns:   []metadata.ColumnRef{{Schema: "sales", Table: "customers", Column: "name"}},
				ParentComponent: &metadata.ComponentRef{Table: "HUB_CUSTOMERS"},
			},
			{
				ComponentType: metadata.TypeHub,
				TargetSchema:  "vault",
				TargetTable:   "HUB_CUSTOMERS",
				SourceColumns: []metadata.ColumnRef{{Schema: "sales", Table: "customers", Column: "customer_id"}},
				BusinessKeys:  []string{"customer_id"},
				CollisionCode: "CRM",
				Description:   "Customer business keys",
			},
		},
	}
}
