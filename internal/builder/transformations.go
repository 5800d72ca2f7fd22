package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
)

// buildTransformations writes MAPPED_TO and DERIVED_FROM edges. Expressions
// are stored as given.
func (r *run) buildTransformations(ctx context.Context) error {
	for _, t := range r.snap.Transformations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := metadata.Validate(t); err != nil {
			r.tally.warn(t.Label(), "invalid transformation: "+err.Error())
			continue
		}
		if err := r.check(t.Label(), r.transformation(ctx, t)); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) transformation(ctx context.Context, t metadata.Transformation) error {
	kind, prop := graph.RelMappedTo, graph.PropTransformation
	if t.Kind == metadata.TransformDerivedFrom {
		kind, prop = graph.RelDerivedFrom, graph.PropDerivation
	}

	src, err := graph.ColumnID(t.Source.Schema, t.Source.Table, t.Source.Column)
	if err != nil {
		return err
	}
	dst, err := graph.ColumnID(t.Target.Schema, t.Target.Table, t.Target.Column)
	if err != nil {
		return err
	}

	var props graph.Properties
	if t.Expression != "" {
		props = graph.Properties{prop: t.Expression}
	}

	err = r.edge(ctx, kind, ref(src), ref(dst), props)
	if errors.Is(err, graph.ErrNotFound) {
		return fmt.Errorf("column not found for %s", kind)
	}
	return err
}
