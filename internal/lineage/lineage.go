package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
)

// Depth defaults.
const (
	DefaultDepth    = 5
	DefaultMaxDepth = 50
)

// Config holds resolver configuration.
type Config struct {
	// DefaultDepth is used when a request leaves MaxDepth at zero.
	DefaultDepth int
	// MaxDepth is the largest depth a request may ask for.
	MaxDepth int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Request selects a seed node and how far to walk from it.
type Request struct {
	Kind graph.NodeKind
	// Key is the seed's natural key, or a suffix of it.
	Key       []string
	Direction graph.Direction
	// MaxDepth bounds the hop count. Zero means the configured default.
	MaxDepth int
}

// Resolver runs lineage queries. It never writes to the store.
type Resolver struct {
	store        graphstore.Store
	defaultDepth int
	maxDepth     int
	logger       *slog.Logger
}

// New creates a resolver over store.
func New(store graphstore.Store, cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	def := cfg.DefaultDepth
	if def <= 0 {
		def = DefaultDepth
	}
	if def > maxDepth {
		def = maxDepth
	}
	return &Resolver{store: store, defaultDepth: def, maxDepth: maxDepth, logger: logger}
}

// Resolve returns the sub-graph reachable from the seed within the depth bound.
func (r *Resolver) Resolve(ctx context.Context, req Request) (graph.SubGraph, error) {
	depth, err := r.depth(req.MaxDepth)
	if err != nil {
		return graph.SubGraph{}, err
	}
	if !req.Direction.Valid() {
		return graph.SubGraph{}, graph.InvalidArgument("unknown direction %q", req.Direction)
	}

	var expand expandFunc
	switch req.Kind {
	case graph.KindTable:
		expand = r.expandTable
	case graph.KindColumn, graph.KindDataVaultComponent:
		expand = r.expandColumn
	default:
		return graph.SubGraph{}, graph.InvalidArgument("lineage is not defined for %s nodes", req.Kind)
	}

	seed, err := r.resolveSeed(ctx, req.Kind, req.Key)
	if err != nil {
		return graph.SubGraph{}, err
	}

	r.logger.Debug("resolving lineage",
		"seed", string(seed.Identity),
		"direction", string(req.Direction),
		"depth", depth)

	c := newCollector(seed)
	dirs := []graph.Direction{req.Direction}
	if req.Direction == graph.Both {
		dirs = []graph.Direction{graph.Upstream, graph.Downstream}
	}
	for _, dir := range dirs {
		if err := r.bfs(ctx, seed, dir, depth, expand, c); err != nil {
			return graph.SubGraph{}, err
		}
	}

	sub := c.subGraph()
	r.logger.Debug("lineage resolved", "seed", string(seed.Identity), "nodes", len(sub.Nodes), "edges", len(sub.Edges))
	return sub, nil
}

func (r *Resolver) depth(requested int) (int, error) {
	switch {
	case requested == 0:
		return r.defaultDepth, nil
	case requested < 0:
		return 0, graph.InvalidArgument("depth must not be negative, got %d", requested)
	case requested > r.maxDepth:
		return 0, graph.InvalidArgument("depth %d exceeds the maximum of %d", requested, r.maxDepth)
	}
	return requested, nil
}

// resolveSeed finds the seed by full key, or by key suffix when the key is short.
func (r *Resolver) resolveSeed(ctx context.Context, kind graph.NodeKind, key []string) (graph.Node, error) {
	fields := make([]string, 0, len(key))
	for _, k := range key {
		k = strings.TrimSpace(k)
		if k == "" {
			return graph.Node{}, graph.InvalidArgument("%s key has an empty field", kind)
		}
		fields = append(fields, k)
	}

	switch {
	case len(fields) == 0:
		return graph.Node{}, graph.InvalidArgument("%s key is empty", kind)
	case len(fields) > kind.KeyArity():
		return graph.Node{}, graph.InvalidArgument("%s key has at most %d fields, got %d", kind, kind.KeyArity(), len(fields))
	case len(fields) == kind.KeyArity():
		id, err := graph.NewIdentity(kind, fields...)
		if err != nil {
			return graph.Node{}, err
		}
		return r.store.GetNode(ctx, id)
	}

	matches, err := r.store.FindNodes(ctx, graphstore.NodeFilter{
		Kinds: []graph.NodeKind{kind},
		Match: func(n graph.Node) bool { return hasSuffix(n.Identity.Fields(), fields) },
	})
	if err != nil {
		return graph.Node{}, err
	}

	switch len(matches) {
	case 0:
		return graph.Node{}, graph.NotFound("no %s matches %s", kind, strings.Join(fields, "."))
	case 1:
		return matches[0], nil
	}
	candidates := make([]string, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, strings.Join(m.Identity.Fields(), "."))
	}
	return graph.Node{}, graph.InvalidArgument("%s %s is ambiguous: %s",
		kind, strings.Join(fields, "."), strings.Join(candidates, ", "))
}

func hasSuffix(fields, suffix []string) bool {
	if len(suffix) > len(fields) {
		return false
	}
	offset := len(fields) - len(suffix)
	for i, s := range suffix {
		if fields[offset+i] != s {
			return false
		}
	}
	return true
}

// step is one traversed edge and the node it reaches at the current grain.
type step struct {
	edge graph.Edge
	// pair is the underlying column pair for aggregated table-level edges.
	pair string
	node graph.Node
}

type expandFunc func(ctx context.Context, n graph.Node, dir graph.Direction) ([]step, error)

// bfs walks level by level from seed. Nodes at the depth bound are reached
// but not expanded, so only edges leaving expanded nodes are collected.
func (r *Resolver) bfs(ctx context.Context, seed graph.Node, dir graph.Direction, maxDepth int, expand expandFunc, c *collector) error {
	visited := map[graph.Identity]bool{seed.Identity: true}
	frontier := []graph.Node{seed}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []graph.Node
		for _, n := range frontier {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("lineage traversal interrupted: %w", err)
			}
			steps, err := expand(ctx, n, dir)
			if err != nil {
				return err
			}
			for _, s := range steps {
				c.addEdge(s.edge, s.pair)
				if visited[s.node.Identity] {
					continue
				}
				visited[s.node.Identity] = true
				c.addNode(s.node, depth)
				next = append(next, s.node)
			}
		}
		frontier = next
	}
	return nil
}

func (r *Resolver) expandColumn(ctx context.Context, n graph.Node, dir graph.Direction) ([]step, error) {
	hops, err := r.store.Neighbors(ctx, n.NodeRef, graph.ColumnLineageKinds, dir)
	if err != nil {
		return nil, err
	}
	steps := make([]step, 0, len(hops))
	for _, h := range hops {
		steps = append(steps, step{edge: h.Edge, node: h.Node})
	}
	return steps, nil
}

// expandTable lifts column lineage to table grain. Tables expand through
// their columns; components expand directly.
func (r *Resolver) expandTable(ctx context.Context, n graph.Node, dir graph.Direction) ([]step, error) {
	sources := []graph.Node{n}
	if n.Kind() == graph.KindTable {
		cols, err := r.store.Neighbors(ctx, n.NodeRef, []graph.RelKind{graph.RelContains}, graph.Downstream)
		if err != nil {
			return nil, err
		}
		sources = sources[:0]
		for _, h := range cols {
			sources = append(sources, h.Node)
		}
	}

	owners := make(map[graph.Identity]graph.Node)
	var steps []step
	for _, src := range sources {
		hops, err := r.store.Neighbors(ctx, src.NodeRef, graph.ColumnLineageKinds, dir)
		if err != nil {
			return nil, err
		}
		for _, h := range hops {
			far, ok, err := r.owner(ctx, h.Node, owners)
			if err != nil {
				return nil, err
			}
			if !ok || far.Identity == n.Identity {
				continue
			}
			steps = append(steps, step{
				edge: tableEdge(h.Edge, n, far, dir),
				pair: columnPair(h.Edge),
				node: far,
			})
		}
	}
	return steps, nil
}

// owner maps a node reached by column lineage to its table-grain node:
// columns become their containing table, components stay themselves.
func (r *Resolver) owner(ctx context.Context, n graph.Node, cache map[graph.Identity]graph.Node) (graph.Node, bool, error) {
	if n.Kind() != graph.KindColumn {
		return n, true, nil
	}
	if t, ok := cache[n.Identity]; ok {
		return t, true, nil
	}
	tableID, ok := n.Identity.Parent()
	if !ok {
		return graph.Node{}, false, nil
	}
	table, err := r.store.GetNode(ctx, tableID)
	if errors.Is(err, graph.ErrNotFound) {
		return graph.Node{}, false, nil
	}
	if err != nil {
		return graph.Node{}, false, err
	}
	cache[n.Identity] = table
	return table, true, nil
}

// tableEdge re-targets a column-level edge onto table-grain endpoints while
// keeping its declared direction.
func tableEdge(e graph.Edge, near, far graph.Node, dir graph.Direction) graph.Edge {
	from, to := near.Identity, far.Identity
	if dir == graph.Upstream {
		from, to = far.Identity, near.Identity
	}
	return graph.Edge{EdgeRef: graph.EdgeRef{
		ID:   graph.EdgeID(e.Kind, from, to),
		Kind: e.Kind,
		From: from,
		To:   to,
	}}
}

func columnPair(e graph.Edge) string {
	return strings.Join(e.From.Fields(), ".") + " -> " + strings.Join(e.To.Fields(), ".")
}

// collector accumulates the result of one or more traversals from a seed.
type collector struct {
	seed   graph.Identity
	nodes  map[graph.Identity]graph.Node
	depths map[graph.Identity]int
	edges  map[string]graph.Edge
	pairs  map[string]map[string]bool
}

func newCollector(seed graph.Node) *collector {
	return &collector{
		seed:   seed.Identity,
		nodes:  map[graph.Identity]graph.Node{seed.Identity: seed},
		depths: map[graph.Identity]int{seed.Identity: 0},
		edges:  make(map[string]graph.Edge),
		pairs:  make(map[string]map[string]bool),
	}
}

// addNode records n, keeping the smallest depth seen across traversals.
func (c *collector) addNode(n graph.Node, depth int) {
	if d, ok := c.depths[n.Identity]; ok && d <= depth {
		return
	}
	c.nodes[n.Identity] = n
	c.depths[n.Identity] = depth
}

func (c *collector) addEdge(e graph.Edge, pair string) {
	if _, ok := c.edges[e.ID]; !ok {
		c.edges[e.ID] = e
	}
	if pair == "" {
		return
	}
	if c.pairs[e.ID] == nil {
		c.pairs[e.ID] = make(map[string]bool)
	}
	c.pairs[e.ID][pair] = true
}

func (c *collector) subGraph() graph.SubGraph {
	sub := graph.SubGraph{
		Seed:   c.seed,
		Nodes:  make([]graph.Node, 0, len(c.nodes)),
		Edges:  make([]graph.Edge, 0, len(c.edges)),
		Depths: c.depths,
	}
	for _, n := range c.nodes {
		sub.Nodes = append(sub.Nodes, n)
	}
	for id, e := range c.edges {
		if pairs := c.pairs[id]; len(pairs) > 0 {
			cols := make([]string, 0, len(pairs))
			for p := range pairs {
				cols = append(cols, p)
			}
			sort.Strings(cols)
			e.Properties = graph.Properties{graph.PropColumns: cols}
		}
		sub.Edges = append(sub.Edges, e)
	}
	sub.Sort()
	return sub
}
