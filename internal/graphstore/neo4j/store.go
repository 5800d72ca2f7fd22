// Package neo4j implements graphstore.Store on a Neo4j database.
//
// Node kinds become labels and relationship kinds become relationship types.
// Both are checked against the closed vocabulary in pkg/graph before they are
// spliced into Cypher; every other value travels as a query parameter.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Bookkeeping properties kept on every node and relationship. They are
// stripped from the property bag on read.
const (
	keyIdentity  = "identity"
	keyNodeID    = "node_id"
	keyEdgeID    = "edge_id"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"
)

var internalKeys = map[string]bool{
	keyIdentity:  true,
	keyNodeID:    true,
	keyEdgeID:    true,
	keyCreatedAt: true,
	keyUpdatedAt: true,
}

// Config holds connection settings.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Logger   *slog.Logger
}

// Store implements graphstore.Store over the Neo4j Bolt driver.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

var _ graphstore.Store = (*Store)(nil)

// Open connects to Neo4j, verifies connectivity and ensures the identity
// uniqueness constraints exist.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{driver: driver, database: cfg.Database, logger: logger}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, mapErr(err, "connect to %s", cfg.URI)
	}
	if err := s.ensureConstraints(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureConstraints(ctx context.Context) error {
	for _, kind := range graph.AllNodeKinds {
		query := fmt.Sprintf(
			"CREATE CONSTRAINT %s_identity IF NOT EXISTS FOR (n:%s) REQUIRE n.identity IS UNIQUE",
			kind, label(kind))
		if _, err := s.write(ctx, func(tx runner) (any, error) {
			_, err := tx.Run(ctx, query, nil)
			return nil, err
		}); err != nil {
			return mapErr(err, "create constraint for %s", kind)
		}
	}
	s.logger.Debug("neo4j constraints ensured", "labels", len(graph.AllNodeKinds))
	return nil
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// runner is the part of a transaction the queries use.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error)
}

type txWork func(tx runner) (any, error)

func (s *Store) write(ctx context.Context, work txWork) (any, error) {
	return s.inTx(ctx, neo4j.AccessModeWrite, work)
}

func (s *Store) read(ctx context.Context, work txWork) (any, error) {
	return s.inTx(ctx, neo4j.AccessModeRead, work)
}

// inTx runs work in one explicit transaction. Explicit transactions are
// never retried by the driver, so a failure surfaces on the first attempt.
func (s *Store) inTx(ctx context.Context, mode neo4j.AccessMode, work txWork) (any, error) {
	session := s.session(ctx, mode)
	defer func() { _ = session.Close(ctx) }()

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Close(ctx) }()

	out, err := work(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertNode implements graphstore.Store.
func (s *Store) UpsertNode(ctx context.Context, id graph.Identity, props graph.Properties) (graph.NodeRef, bool, error) {
	if err := graphstore.ValidateNode(id); err != nil {
		return graph.NodeRef{}, false, err
	}

	now := timestamp()
	query := fmt.Sprintf(`
		MERGE (n:%s {identity: $identity})
		ON CREATE SET n.node_id = $node_id, n.created_at = $now
		SET n += $props, n.updated_at = $now
		RETURN n.created_at = $now AS created`, label(id.Kind()))

	created, err := s.write(ctx, func(tx runner) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"identity": string(id),
			"node_id":  graph.NodeID(id),
			"now":      now,
			"props":    toParams(props),
		})
		if err != nil {
			return false, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return false, err
		}
		v, _ := rec.Get("created")
		b, _ := v.(bool)
		return b, nil
	})
	if err != nil {
		return graph.NodeRef{}, false, mapErr(err, "upsert node %s", id)
	}
	return graph.NodeRef{ID: graph.NodeID(id), Identity: id}, created.(bool), nil
}

// UpsertEdge implements graphstore.Store.
func (s *Store) UpsertEdge(ctx context.Context, kind graph.RelKind, from, to graph.NodeRef, props graph.Properties) (graph.EdgeRef, bool, error) {
	if err := graphstore.ValidateEdge(kind, from, to); err != nil {
		return graph.EdgeRef{}, false, err
	}

	ref := graph.EdgeRef{
		ID:   graph.EdgeID(kind, from.Identity, to.Identity),
		Kind: kind,
		From: from.Identity,
		To:   to.Identity,
	}

	now := timestamp()
	query := fmt.Sprintf(`
		MATCH (a:%s {identity: $from}), (b:%s {identity: $to})
		MERGE (a)-[r:%s]->(b)
		ON CREATE SET r.edge_id = $edge_id, r.created_at = $now
		SET r += $props, r.updated_at = $now
		RETURN r.created_at = $now AS created`,
		label(from.Kind()), label(to.Kind()), relType(kind))

	created, err := s.write(ctx, func(tx runner) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"from":    string(from.Identity),
			"to":      string(to.Identity),
			"edge_id": ref.ID,
			"now":     now,
			"props":   toParams(props),
		})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, graph.NotFound("%s edge endpoint missing: %s -> %s", kind, from.Identity, to.Identity)
		}
		v, _ := res.Record().Get("created")
		b, _ := v.(bool)
		return b, nil
	})
	if err != nil {
		return graph.EdgeRef{}, false, mapErr(err, "upsert %s edge %s -> %s", kind, from.Identity, to.Identity)
	}
	return ref, created.(bool), nil
}

// GetNode implements graphstore.Store.
func (s *Store) GetNode(ctx context.Context, id graph.Identity) (graph.Node, error) {
	if !id.Kind().Valid() {
		return graph.Node{}, graph.InvalidArgument("identity %q has unknown kind", id)
	}

	query := fmt.Sprintf(`MATCH (n:%s {identity: $identity}) RETURN properties(n) AS props`, label(id.Kind()))
	out, err := s.read(ctx, func(tx runner) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"identity": string(id)})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, graph.NotFound("node %s", id)
		}
		return nodeFromRecord(res.Record(), "props"), nil
	})
	if err != nil {
		return graph.Node{}, mapErr(err, "get node %s", id)
	}
	return out.(graph.Node), nil
}

// Neighbors implements graphstore.Store.
func (s *Store) Neighbors(ctx context.Context, ref graph.NodeRef, kinds []graph.RelKind, dir graph.Direction) ([]graph.Hop, error) {
	if !dir.Valid() {
		return nil, graph.InvalidArgument("unknown direction %q", dir)
	}
	types := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if !k.Valid() {
			return nil, graph.InvalidArgument("unknown relationship kind %q", k)
		}
		types = append(types, string(k))
	}

	var patterns []string
	if dir == graph.Downstream || dir == graph.Both {
		patterns = append(patterns, "(a)-[r]->(b)")
	}
	if dir == graph.Upstream || dir == graph.Both {
		patterns = append(patterns, "(a)<-[r]-(b)")
	}

	out, err := s.read(ctx, func(tx runner) (any, error) {
		var hops []graph.Hop
		for _, pattern := range patterns {
			query := fmt.Sprintf(`
				MATCH (a:%s {identity: $identity})
				MATCH %s
				WHERE size($types) = 0 OR type(r) IN $types
				RETURN type(r) AS kind, startNode(r).identity AS from, endNode(r).identity AS to,
				       properties(r) AS rprops, properties(b) AS nprops`,
				label(ref.Kind()), pattern)
			res, err := tx.Run(ctx, query, map[string]any{"identity": string(ref.Identity), "types": types})
			if err != nil {
				return nil, err
			}
			for res.Next(ctx) {
				hops = append(hops, hopFromRecord(res.Record()))
			}
			if err := res.Err(); err != nil {
				return nil, err
			}
		}
		return hops, nil
	})
	if err != nil {
		return nil, mapErr(err, "query neighbors of %s", ref.Identity)
	}

	hops, _ := out.([]graph.Hop)
	graphstore.SortHops(hops)
	return hops, nil
}

// FindNodes implements graphstore.Store.
func (s *Store) FindNodes(ctx context.Context, filter graphstore.NodeFilter) ([]graph.Node, error) {
	labels := make([]string, 0, len(filter.Kinds))
	for _, k := range filter.Kinds {
		labels = append(labels, string(k))
	}

	out, err := s.read(ctx, func(tx runner) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n)
			WHERE n.identity IS NOT NULL
			  AND (size($labels) = 0 OR any(l IN labels(n) WHERE l IN $labels))
			RETURN properties(n) AS props
			ORDER BY n.identity`, map[string]any{"labels": labels})
		if err != nil {
			return nil, err
		}
		var nodes []graph.Node
		for res.Next(ctx) {
			n := nodeFromRecord(res.Record(), "props")
			if filter.Accepts(n) {
				nodes = append(nodes, n)
			}
		}
		return nodes, res.Err()
	})
	if err != nil {
		return nil, mapErr(err, "find nodes")
	}
	nodes, _ := out.([]graph.Node)
	return nodes, nil
}

// Stats implements graphstore.Store.
func (s *Store) Stats(ctx context.Context) (graph.Stats, error) {
	stats := graphstore.EmptyStats()
	_, err := s.read(ctx, func(tx runner) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n) WHERE n.identity IS NOT NULL UNWIND labels(n) AS kind RETURN kind, count(*) AS n`, nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			kind, n := countFromRecord(res.Record())
			if graph.NodeKind(kind).Valid() {
				stats.Nodes[graph.NodeKind(kind)] = n
			}
		}
		if err := res.Err(); err != nil {
			return nil, err
		}

		res, err = tx.Run(ctx, `MATCH ()-[r]->() RETURN type(r) AS kind, count(*) AS n`, nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			kind, n := countFromRecord(res.Record())
			if graph.RelKind(kind).Valid() {
				stats.Edges[graph.RelKind(kind)] = n
			}
		}
		return nil, res.Err()
	})
	if err != nil {
		return graph.Stats{}, mapErr(err, "count graph")
	}
	return stats, nil
}

// Clear implements graphstore.Store.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.write(ctx, func(tx runner) (any, error) {
		_, err := tx.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
		return nil, err
	})
	return mapErr(err, "clear graph")
}

// Close implements graphstore.Store.
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// label returns the Cypher label for a kind. Callers validate the kind first.
func label(kind graph.NodeKind) string {
	return "`" + string(kind) + "`"
}

func relType(kind graph.RelKind) string {
	return "`" + string(kind) + "`"
}

// toParams drops internal keys so callers cannot overwrite bookkeeping.
func toParams(props graph.Properties) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if internalKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// fromDriver converts driver values back to the shapes the builder writes.
func fromDriver(raw map[string]any) graph.Properties {
	props := graph.Properties{}
	for k, v := range raw {
		if internalKeys[k] {
			continue
		}
		switch val := v.(type) {
		case int64:
			props[k] = int(val)
		case []any:
			strs := make([]string, 0, len(val))
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					strs = nil
					break
				}
				strs = append(strs, s)
			}
			if strs != nil {
				props[k] = strs
			} else {
				props[k] = val
			}
		default:
			props[k] = v
		}
	}
	return props
}

func nodeFromRecord(rec *neo4j.Record, key string) graph.Node {
	v, _ := rec.Get(key)
	raw, _ := v.(map[string]any)
	identity, _ := raw[keyIdentity].(string)
	id := graph.Identity(identity)
	return graph.Node{
		NodeRef:    graph.NodeRef{ID: graph.NodeID(id), Identity: id},
		Properties: fromDriver(raw),
	}
}

func hopFromRecord(rec *neo4j.Record) graph.Hop {
	get := func(key string) string {
		v, _ := rec.Get(key)
		s, _ := v.(string)
		return s
	}
	kind := graph.RelKind(get("kind"))
	from, to := graph.Identity(get("from")), graph.Identity(get("to"))
	rv, _ := rec.Get("rprops")
	rprops, _ := rv.(map[string]any)

	return graph.Hop{
		Edge: graph.Edge{
			EdgeRef:    graph.EdgeRef{ID: graph.EdgeID(kind, from, to), Kind: kind, From: from, To: to},
			Properties: fromDriver(rprops),
		},
		Node: nodeFromRecord(rec, "nprops"),
	}
}

func countFromRecord(rec *neo4j.Record) (string, int) {
	k, _ := rec.Get("kind")
	n, _ := rec.Get("n")
	kind, _ := k.(string)
	count, _ := n.(int64)
	return kind, int(count)
}

// mapErr translates driver errors into the graph error taxonomy. Errors that
// already carry a graph sentinel pass through unchanged.
func mapErr(err error, op string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(op, args...)

	switch {
	case errors.Is(err, graph.ErrNotFound), errors.Is(err, graph.ErrInvalidArgument), errors.Is(err, graph.ErrStoreUnavailable):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("failed to %s: %w", msg, err)
	case neo4j.IsConnectivityError(err), isTransient(err), isRetryLimit(err):
		return graph.Unavailable(err, "failed to %s", msg)
	}
	return fmt.Errorf("failed to %s: %w", msg, err)
}

func isRetryLimit(err error) bool {
	var limit *neo4j.TransactionExecutionLimit
	return errors.As(err, &limit)
}

func isTransient(err error) bool {
	var nerr *neo4j.Neo4jError
	return errors.As(err, &nerr) && nerr.Classification() == "TransientError"
}
