package builder

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
	"golang.org/x/sync/errgroup"
)

// tableGroup is every record of one table, in input order.
type tableGroup struct {
	table   graph.Identity
	records []metadata.Record

	// storedParent is the schema already containing the table in the store.
	storedParent       graph.Identity
	storedParentLoaded bool
	upserted           bool
}

// groupRecords validates records and groups the valid ones by table,
// preserving first-appearance order.
func (r *run) groupRecords() []*tableGroup {
	var groups []*tableGroup
	index := make(map[graph.Identity]*tableGroup)

	for _, rec := range r.snap.Records {
		if err := metadata.Validate(rec); err != nil {
			r.tally.warn(rec.Label(), "invalid record: "+err.Error())
			continue
		}
		table, err := graph.TableID(rec.Schema, rec.Table)
		if err != nil {
			r.tally.warn(rec.Label(), err.Error())
			continue
		}
		g, ok := index[table]
		if !ok {
			g = &tableGroup{table: table}
			index[table] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, rec)
	}
	return groups
}

func (r *run) buildTables(ctx context.Context, groups []*tableGroup) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.b.workers)

	for _, grp := range groups {
		g.Go(func() error {
			return r.buildGroup(gctx, grp)
		})
	}
	return g.Wait()
}

func (r *run) buildGroup(ctx context.Context, grp *tableGroup) error {
	r.b.logger.Debug("building table", "table", string(grp.table), "columns", len(grp.records))

	for _, rec := range grp.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.check(rec.Label(), r.buildRecord(ctx, grp, rec)); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) systemName(rec metadata.Record) string {
	switch {
	case rec.SourceSystem != "":
		return rec.SourceSystem
	case r.snap.SourceSystem != "":
		return r.snap.SourceSystem
	}
	return r.b.sourceSystem
}

func (r *run) buildRecord(ctx context.Context, grp *tableGroup, rec metadata.Record) error {
	system := r.systemName(rec)
	systemID, err := graph.SourceSystemID(system)
	if err != nil {
		return err
	}
	schemaID, err := graph.SchemaID(system, rec.Schema)
	if err != nil {
		return err
	}
	columnID, err := graph.ColumnID(rec.Schema, rec.Table, rec.Column)
	if err != nil {
		return err
	}

	// A table has exactly one parent schema, in the store and in this batch.
	if err := r.loadStoredParent(ctx, grp); err != nil {
		return err
	}
	if grp.storedParent != "" && grp.storedParent != schemaID {
		return fmt.Errorf("table already contained by %s, rejected second parent %s", grp.storedParent, schemaID)
	}
	if err := r.contains.Claim(systemID, schemaID); err != nil {
		return err
	}
	if err := r.contains.Claim(schemaID, grp.table); err != nil {
		return err
	}
	if err := r.contains.Claim(grp.table, columnID); err != nil {
		return err
	}

	if err := r.upsertSchema(ctx, system, systemID, rec.Schema, schemaID); err != nil {
		return err
	}

	if !grp.upserted {
		if _, err := r.node(ctx, grp.table, tableProps(grp)); err != nil {
			return err
		}
		if err := r.edge(ctx, graph.RelContains, ref(schemaID), ref(grp.table), nil); err != nil {
			return err
		}
		grp.upserted = true
	}

	colRef, err := r.node(ctx, columnID, columnProps(rec))
	if err != nil {
		return err
	}
	if err := r.edge(ctx, graph.RelContains, ref(grp.table), colRef, nil); err != nil {
		return err
	}

	if rec.IsForeignKey && rec.References != nil {
		return r.reference(ctx, rec, colRef)
	}
	return nil
}

// loadStoredParent reads the table's existing CONTAINS parent once per group.
func (r *run) loadStoredParent(ctx context.Context, grp *tableGroup) error {
	if grp.storedParentLoaded {
		return nil
	}
	hops, err := r.b.store.Neighbors(ctx, ref(grp.table), []graph.RelKind{graph.RelContains}, graph.Upstream)
	if err != nil {
		return err
	}
	if len(hops) > 0 {
		grp.storedParent = hops[0].Node.Identity
	}
	grp.storedParentLoaded = true
	return nil
}

// upsertSchema writes the source system, the schema and the CONTAINS edge
// between them once per build.
func (r *run) upsertSchema(ctx context.Context, system string, systemID graph.Identity, schema string, schemaID graph.Identity) error {
	err := r.do(string(systemID), func() error {
		props := graph.Properties{graph.PropName: system}
		if system == r.snap.SourceSystem {
			setIf(props, graph.PropDescription, r.snap.Description)
		}
		_, err := r.node(ctx, systemID, props)
		return err
	})
	if err != nil {
		return err
	}

	return r.do(string(schemaID), func() error {
		if _, err := r.node(ctx, schemaID, graph.Properties{graph.PropName: schema}); err != nil {
			return err
		}
		return r.edge(ctx, graph.RelContains, ref(systemID), ref(schemaID), nil)
	})
}

func tableProps(grp *tableGroup) graph.Properties {
	props := graph.Properties{graph.PropName: grp.table.Name()}
	for _, rec := range grp.records {
		if rec.TableDescription != "" {
			props[graph.PropDescription] = rec.TableDescription
			break
		}
	}
	return props
}

func columnProps(rec metadata.Record) graph.Properties {
	props := graph.Properties{
		graph.PropName:       rec.Column,
		graph.PropPrimaryKey: rec.IsPrimaryKey,
		graph.PropForeignKey: rec.IsForeignKey,
	}
	setIf(props, graph.PropDataType, rec.DataType)
	setIf(props, graph.PropDescription, rec.Description)
	if rec.Nullable != nil {
		props[graph.PropNullable] = *rec.Nullable
	}
	if rec.OrdinalPosition != nil {
		props[graph.PropOrdinal] = *rec.OrdinalPosition
	}
	return props
}
