// Package lineage answers "what feeds this?" and "what does this feed?"
// questions over the property graph.
//
// Traversal is a bounded breadth-first search with an explicit visited set,
// so circular references terminate and every node appears once.
//
// # Granularity
//
//   - Column and DataVaultComponent seeds use column-level lineage: only
//     MAPPED_TO, DERIVED_FROM, REFERENCES, SOURCE_OF and PART_OF are followed.
//   - Table seeds use table-level lineage: the table's columns are found via
//     CONTAINS, their column lineage is followed, and each reached column is
//     replaced by its owning table. Components stay components. Edges in the
//     result are aggregated per (kind, from, to) with the underlying column
//     pairs listed under the "columns" property.
//
// # Direction
//
// Downstream follows edges as declared, upstream reversed. Both is the union
// of an upstream and a downstream traversal from the seed, so it never walks
// down a branch that was reached going up.
//
// # Basic Usage
//
//	r := lineage.New(store, lineage.Config{DefaultDepth: 5, MaxDepth: 50})
//	sub, err := r.Resolve(ctx, lineage.Request{
//	    Kind:      graph.KindColumn,
//	    Key:       []string{"customers", "customer_id"},
//	    Direction: graph.Downstream,
//	    MaxDepth:  1,
//	})
package lineage
