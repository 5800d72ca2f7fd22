// Package search implements keyword lookup over node names and descriptions.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"golang.org/x/text/cases"
)

// DefaultLimit caps results when neither the query nor the config sets a limit.
const DefaultLimit = 50

// Match classifies how a node matched the query. Lower classes rank first.
type Match string

// Match classes in rank order.
const (
	MatchExact       Match = "exact"
	MatchPrefix      Match = "prefix"
	MatchName        Match = "name"
	MatchDescription Match = "description"
)

var matchRank = map[Match]int{
	MatchExact:       0,
	MatchPrefix:      1,
	MatchName:        2,
	MatchDescription: 3,
}

// kindRank orders kinds within one match class.
var kindRank = map[graph.NodeKind]int{
	graph.KindTable:              0,
	graph.KindColumn:             1,
	graph.KindDataVaultComponent: 2,
	graph.KindSchema:             3,
	graph.KindSourceSystem:       4,
}

// Query is a keyword search request.
type Query struct {
	Text string
	// Kinds restricts results to these kinds. Empty means all.
	Kinds []graph.NodeKind
	// Limit caps the number of results. Zero means the configured default.
	Limit int
}

// Result is one matching node.
type Result struct {
	Node  graph.Node `json:"node"`
	Match Match      `json:"match"`
}

// Config holds index configuration.
type Config struct {
	DefaultLimit int
	Logger       *slog.Logger
}

// Index searches nodes held in a store.
type Index struct {
	store  graphstore.Store
	limit  int
	logger *slog.Logger
}

// New creates an index over store.
func New(store graphstore.Store, cfg Config) *Index {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Index{store: store, limit: limit, logger: logger}
}

// Search returns nodes whose name or description contains the query text,
// compared under Unicode case folding.
func (x *Index) Search(ctx context.Context, q Query) ([]Result, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, graph.InvalidArgument("search text is empty")
	}
	limit := q.Limit
	switch {
	case limit < 0:
		return nil, graph.InvalidArgument("limit must not be negative, got %d", limit)
	case limit == 0:
		limit = x.limit
	}
	for _, k := range q.Kinds {
		if !k.Valid() {
			return nil, graph.InvalidArgument("unknown node kind %q", k)
		}
	}

	fold := cases.Fold()
	needle := fold.String(text)

	nodes, err := x.store.FindNodes(ctx, graphstore.NodeFilter{Kinds: q.Kinds})
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, n := range nodes {
		if m, ok := classify(fold, n, needle); ok {
			results = append(results, Result{Node: n, Match: m})
		}
	}
	Rank(results)

	x.logger.Debug("search completed", "query", text, "matches", len(results), "limit", limit)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func classify(fold cases.Caser, n graph.Node, needle string) (Match, bool) {
	name := fold.String(n.Name())
	switch {
	case name == needle:
		return MatchExact, true
	case strings.HasPrefix(name, needle):
		return MatchPrefix, true
	case strings.Contains(name, needle):
		return MatchName, true
	}
	if desc := n.Properties.String(graph.PropDescription); desc != "" && strings.Contains(fold.String(desc), needle) {
		return MatchDescription, true
	}
	return "", false
}

// Rank sorts results by match class, kind precedence, name, then identity.
func Rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if ra, rb := matchRank[a.Match], matchRank[b.Match]; ra != rb {
			return ra < rb
		}
		if ka, kb := kindRank[a.Node.Kind()], kindRank[b.Node.Kind()]; ka != kb {
			return ka < kb
		}
		if na, nb := a.Node.Name(), b.Node.Name(); na != nb {
			return na < nb
		}
		return a.Node.Identity < b.Node.Identity
	})
}
