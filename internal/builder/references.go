package builder

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
)

// reference writes the REFERENCES edge for a foreign key column. A target
// that does not exist yet is deferred until every table has been written.
func (r *run) reference(ctx context.Context, rec metadata.Record, from graph.NodeRef) error {
	target := rec.References.WithDefaultSchema(rec.Schema)
	targetID, err := graph.ColumnID(target.Schema, target.Table, target.Column)
	if err != nil {
		return err
	}

	err = r.edge(ctx, graph.RelReferences, from, ref(targetID), nil)
	if errors.Is(err, graph.ErrNotFound) {
		r.mu.Lock()
		r.deferred = append(r.deferred, pendingRef{label: rec.Label(), from: from, to: ref(targetID)})
		r.mu.Unlock()
		return nil
	}
	return err
}

// resolveDeferred retries deferred references once.
func (r *run) resolveDeferred(ctx context.Context) error {
	r.mu.Lock()
	pending := r.deferred
	r.deferred = nil
	r.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].label < pending[j].label
	})
	if len(pending) > 0 {
		r.b.logger.Debug("resolving deferred references", "count", len(pending))
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.edge(ctx, graph.RelReferences, p.from, p.to, nil)
		if errors.Is(err, graph.ErrNotFound) {
			err = fmt.Errorf("referenced column %s not found", p.to.Identity)
		}
		if err := r.check(p.label, err); err != nil {
			return err
		}
	}
	return nil
}
