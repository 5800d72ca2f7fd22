package graphstore

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
)

// UpsertEdge implements Store. A missing endpoint fails the foreign key and
// is reported as graph.ErrNotFound.
func (s *SQLiteStore) UpsertEdge(ctx context.Context, kind graph.RelKind, from, to graph.NodeRef, props graph.Properties) (graph.EdgeRef, bool, error) {
	if err := ValidateEdge(kind, from, to); err != nil {
		return graph.EdgeRef{}, false, err
	}
	if err := s.ready(); err != nil {
		return graph.EdgeRef{}, false, err
	}

	raw, err := encodeProps(props)
	if err != nil {
		return graph.EdgeRef{}, false, err
	}

	ref := graph.EdgeRef{
		ID:   graph.EdgeID(kind, from.Identity, to.Identity),
		Kind: kind,
		From: from.Identity,
		To:   to.Identity,
	}

	ts := now()
	var revision int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO edges (id, kind, from_identity, to_identity, properties, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (kind, from_identity, to_identity) DO UPDATE SET
			properties = json_patch(edges.properties, excluded.properties),
			revision = edges.revision + 1,
			updated_at = excluded.updated_at
		RETURNING revision`,
		ref.ID, string(kind), string(from.Identity), string(to.Identity), raw, ts, ts,
	).Scan(&revision)
	if err != nil {
		return graph.EdgeRef{}, false, mapErr(err, "upsert %s edge %s -> %s", kind, from.Identity, to.Identity)
	}

	return ref, revision == 1, nil
}

const hopColumns = `e.id, e.kind, e.from_identity, e.to_identity, e.properties, n.id, n.identity, n.properties`

// Neighbors implements Store.
func (s *SQLiteStore) Neighbors(ctx context.Context, ref graph.NodeRef, kinds []graph.RelKind, dir graph.Direction) ([]graph.Hop, error) {
	if !dir.Valid() {
		return nil, graph.InvalidArgument("unknown direction %q", dir)
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	kindClause := ""
	kindArgs := make([]any, 0, len(kinds))
	if len(kinds) > 0 {
		kindClause = ` AND e.kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			kindArgs = append(kindArgs, string(k))
		}
	}

	var parts []string
	var args []any
	if dir == graph.Downstream || dir == graph.Both {
		parts = append(parts, `SELECT `+hopColumns+` FROM edges e
			JOIN nodes n ON n.identity = e.to_identity
			WHERE e.from_identity = ?`+kindClause)
		args = append(append(args, string(ref.Identity)), kindArgs...)
	}
	if dir == graph.Upstream || dir == graph.Both {
		parts = append(parts, `SELECT `+hopColumns+` FROM edges e
			JOIN nodes n ON n.identity = e.from_identity
			WHERE e.to_identity = ?`+kindClause)
		args = append(append(args, string(ref.Identity)), kindArgs...)
	}

	query := parts[0]
	if len(parts) == 2 {
		query = fmt.Sprintf("%s UNION ALL %s", parts[0], parts[1])
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "query neighbors of %s", ref.Identity)
	}
	defer func() { _ = rows.Close() }()

	var hops []graph.Hop
	for rows.Next() {
		var (
			edgeID, kind, from, to, edgeRaw string
			nodeID, identity, nodeRaw       string
		)
		if err := rows.Scan(&edgeID, &kind, &from, &to, &edgeRaw, &nodeID, &identity, &nodeRaw); err != nil {
			return nil, mapErr(err, "scan neighbor")
		}
		edgeProps, err := decodeProps(edgeRaw)
		if err != nil {
			return nil, err
		}
		nodeProps, err := decodeProps(nodeRaw)
		if err != nil {
			return nil, err
		}
		hops = append(hops, graph.Hop{
			Edge: graph.Edge{
				EdgeRef: graph.EdgeRef{
					ID:   edgeID,
					Kind: graph.RelKind(kind),
					From: graph.Identity(from),
					To:   graph.Identity(to),
				},
				Properties: edgeProps,
			},
			Node: graph.Node{
				NodeRef:    graph.NodeRef{ID: nodeID, Identity: graph.Identity(identity)},
				Properties: nodeProps,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate neighbors")
	}

	SortHops(hops)
	return hops, nil
}
