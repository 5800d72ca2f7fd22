package graphstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
)

// UpsertNode implements Store. The merge happens inside one statement, so
// concurrent upserts of one identity cannot lose properties.
func (s *SQLiteStore) UpsertNode(ctx context.Context, id graph.Identity, props graph.Properties) (graph.NodeRef, bool, error) {
	if err := ValidateNode(id); err != nil {
		return graph.NodeRef{}, false, err
	}
	if err := s.ready(); err != nil {
		return graph.NodeRef{}, false, err
	}

	raw, err := encodeProps(props)
	if err != nil {
		return graph.NodeRef{}, false, err
	}

	ts := now()
	var revision int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO nodes (id, identity, kind, name, properties, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (identity) DO UPDATE SET
			properties = json_patch(nodes.properties, excluded.properties),
			name = CASE WHEN excluded.name = '' THEN nodes.name ELSE excluded.name END,
			revision = nodes.revision + 1,
			updated_at = excluded.updated_at
		RETURNING revision`,
		graph.NodeID(id), string(id), string(id.Kind()), props.String(graph.PropName), raw, ts, ts,
	).Scan(&revision)
	if err != nil {
		return graph.NodeRef{}, false, mapErr(err, "upsert node %s", id)
	}

	return graph.NodeRef{ID: graph.NodeID(id), Identity: id}, revision == 1, nil
}

// GetNode implements Store.
func (s *SQLiteStore) GetNode(ctx context.Context, id graph.Identity) (graph.Node, error) {
	if err := s.ready(); err != nil {
		return graph.Node{}, err
	}

	var nodeID, identity, raw string
	err := s.reader.QueryRowContext(ctx,
		`SELECT id, identity, properties FROM nodes WHERE identity = ?`, string(id),
	).Scan(&nodeID, &identity, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.Node{}, graph.NotFound("node %s", id)
	}
	if err != nil {
		return graph.Node{}, mapErr(err, "get node %s", id)
	}

	props, err := decodeProps(raw)
	if err != nil {
		return graph.Node{}, err
	}
	return graph.Node{
		NodeRef:    graph.NodeRef{ID: nodeID, Identity: graph.Identity(identity)},
		Properties: props,
	}, nil
}

// FindNodes implements Store. The kind filter runs in SQL, the predicate in Go.
func (s *SQLiteStore) FindNodes(ctx context.Context, filter NodeFilter) ([]graph.Node, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `SELECT id, identity, properties FROM nodes`
	args := make([]any, 0, len(filter.Kinds))
	if len(filter.Kinds) > 0 {
		query += ` WHERE kind IN (` + placeholders(len(filter.Kinds)) + `)`
		for _, k := range filter.Kinds {
			args = append(args, string(k))
		}
	}
	query += ` ORDER BY identity`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "find nodes")
	}
	defer func() { _ = rows.Close() }()

	var nodes []graph.Node
	for rows.Next() {
		var nodeID, identity, raw string
		if err := rows.Scan(&nodeID, &identity, &raw); err != nil {
			return nil, mapErr(err, "scan node")
		}
		props, err := decodeProps(raw)
		if err != nil {
			return nil, err
		}
		n := graph.Node{
			NodeRef:    graph.NodeRef{ID: nodeID, Identity: graph.Identity(identity)},
			Properties: props,
		}
		if filter.Accepts(n) {
			nodes = append(nodes, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate nodes")
	}
	return nodes, nil
}
