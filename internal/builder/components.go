package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
)

type component struct {
	def metadata.Component
	ref graph.NodeRef
}

// buildComponents writes Data-Vault components in two passes so PART_OF
// edges can point at components defined later in the input.
func (r *run) buildComponents(ctx context.Context) error {
	var defined []component
	types := make(map[graph.Identity]string)

	// Pass 1: nodes.
	for _, c := range r.snap.Components {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := metadata.Validate(c); err != nil {
			r.tally.warn(c.Label(), "invalid component: "+err.Error())
			continue
		}
		id, err := graph.ComponentID(c.TargetSchema, c.TargetTable)
		if err != nil {
			r.tally.warn(c.Label(), err.Error())
			continue
		}
		nref, err := r.node(ctx, id, componentProps(c))
		if err := r.check(c.Label(), err); err != nil {
			return err
		}
		if nref.Identity == "" {
			continue
		}
		defined = append(defined, component{def: c, ref: nref})
		types[id] = c.ComponentType
	}

	// Pass 2: edges.
	for _, c := range defined {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.componentEdges(ctx, c, types); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) componentEdges(ctx context.Context, c component, types map[graph.Identity]string) error {
	def := c.def
	label := def.Label()

	for _, src := range def.SourceColumns {
		col := src.WithDefaultSchema(def.TargetSchema)
		colID, err := graph.ColumnID(col.Schema, col.Table, col.Column)
		if err == nil {
			err = r.edge(ctx, graph.RelSourceOf, ref(colID), c.ref, nil)
			if errors.Is(err, graph.ErrNotFound) {
				err = fmt.Errorf("source column %s not found", col)
			}
		}
		if err := r.check(label, err); err != nil {
			return err
		}
	}

	ctype := graph.ComponentType(def.ComponentType)
	switch {
	case def.ParentComponent != nil && !ctype.HasParent():
		r.tally.warn(label, fmt.Sprintf("%s cannot have a parent component, ignored %s", ctype, def.ParentComponent.Table))
	case def.ParentComponent != nil:
		parent := def.ParentComponent.WithDefaultSchema(def.TargetSchema)
		if err := r.check(label, r.partOf(ctx, c.ref, parent, "parent component")); err != nil {
			return err
		}
	case ctype == graph.ComponentSatellite || ctype == graph.ComponentLinkSatellite:
		r.tally.warn(label, fmt.Sprintf("%s has no parent component", ctype))
	}

	for _, hub := range def.RelatedHubs {
		hub = hub.WithDefaultSchema(def.TargetSchema)
		hubID, err := graph.ComponentID(hub.Schema, hub.Table)
		if err == nil {
			if t, ok := types[hubID]; ok && t != metadata.TypeHub {
				err = fmt.Errorf("related hub %s.%s is a %s", hub.Schema, hub.Table, t)
			} else {
				err = r.partOf(ctx, c.ref, hub, "related hub")
			}
		}
		if err := r.check(label, err); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) partOf(ctx context.Context, from graph.NodeRef, to metadata.ComponentRef, what string) error {
	toID, err := graph.ComponentID(to.Schema, to.Table)
	if err != nil {
		return err
	}
	err = r.edge(ctx, graph.RelPartOf, from, ref(toID), nil)
	if errors.Is(err, graph.ErrNotFound) {
		return fmt.Errorf("%s %s.%s not found", what, to.Schema, to.Table)
	}
	return err
}

func componentProps(c metadata.Component) graph.Properties {
	props := graph.Properties{
		graph.PropName:          c.DisplayName(),
		graph.PropComponentType: c.ComponentType,
	}
	setIf(props, graph.PropCollisionCode, c.CollisionCode)
	setIf(props, graph.PropDescription, c.Description)
	if len(c.BusinessKeys) > 0 {
		props[graph.PropBusinessKeys] = append([]string(nil), c.BusinessKeys...)
	}
	return props
}
