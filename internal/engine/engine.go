// Package engine is the entry point for callers: it ties the graph store to
// the builder, the lineage resolver and the search index, and applies the
// configured timeouts and metrics to each operation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/vaultgraph/internal/builder"
	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/internal/lineage"
	"github.com/leapstack-labs/vaultgraph/internal/metrics"
	"github.com/leapstack-labs/vaultgraph/internal/search"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
)

// Config holds engine configuration.
type Config struct {
	// Workers bounds concurrent table groups per build
	Workers int
	// SourceSystem is used for records and snapshots that name none
	SourceSystem string
	// BuildTimeout bounds one build (0 = none)
	BuildTimeout time.Duration

	DefaultDepth   int
	MaxDepth       int
	LineageTimeout time.Duration // 0 = none

	SearchLimit int

	// Metrics receives per-operation observations (optional, a private set is created if nil)
	Metrics *metrics.Metrics
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine exposes build, clear, lineage, search and status over one store.
// It holds no graph state of its own and is safe for concurrent use.
type Engine struct {
	store    graphstore.Store
	builder  *builder.Builder
	resolver *lineage.Resolver
	index    *search.Index
	metrics  *metrics.Metrics
	logger   *slog.Logger

	buildTimeout   time.Duration
	lineageTimeout time.Duration
}

// New creates an engine over store. The engine owns the store from here on.
func New(store graphstore.Store, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &Engine{
		store: store,
		builder: builder.New(store, builder.Config{
			Workers:      cfg.Workers,
			SourceSystem: cfg.SourceSystem,
			Logger:       logger.With("component", "builder"),
		}),
		resolver: lineage.New(store, lineage.Config{
			DefaultDepth: cfg.DefaultDepth,
			MaxDepth:     cfg.MaxDepth,
			Logger:       logger.With("component", "lineage"),
		}),
		index: search.New(store, search.Config{
			DefaultLimit: cfg.SearchLimit,
			Logger:       logger.With("component", "search"),
		}),
		metrics:        m,
		logger:         logger,
		buildTimeout:   cfg.BuildTimeout,
		lineageTimeout: cfg.LineageTimeout,
	}
}

// Build projects a snapshot into the graph. See builder.Builder.Build.
func (e *Engine) Build(ctx context.Context, snap metadata.Snapshot) (builder.Summary, error) {
	ctx, cancel := withTimeout(ctx, e.buildTimeout)
	defer cancel()

	start := time.Now()
	summary, err := e.builder.Build(ctx, snap)
	e.metrics.ObserveBuild(time.Since(start), metrics.BuildWrites{
		NodesCreated: summary.NodesCreated,
		NodesMerged:  summary.NodesMerged,
		EdgesCreated: summary.EdgesCreated,
		EdgesMerged:  summary.EdgesMerged,
		Warnings:     len(summary.Warnings),
	}, err)

	if err != nil {
		e.logger.Error("build failed", "error", err, "nodes_created", summary.NodesCreated)
		return summary, err
	}
	e.logger.Info("build completed",
		"source_system", snap.SourceSystem,
		"nodes_created", summary.NodesCreated,
		"nodes_merged", summary.NodesMerged,
		"edges_created", summary.EdgesCreated,
		"edges_merged", summary.EdgesMerged,
		"warnings", len(summary.Warnings),
		"duration", time.Since(start))
	return summary, nil
}

// Clear removes every node and edge.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear graph: %w", err)
	}
	e.logger.Info("graph cleared")
	return nil
}

// ResolveLineage returns the lineage sub-graph around a seed node.
func (e *Engine) ResolveLineage(ctx context.Context, req lineage.Request) (graph.SubGraph, error) {
	ctx, cancel := withTimeout(ctx, e.lineageTimeout)
	defer cancel()

	start := time.Now()
	sub, err := e.resolver.Resolve(ctx, req)
	e.metrics.ObserveLineage(time.Since(start), string(req.Direction), len(sub.Nodes), err)
	return sub, err
}

// Search finds nodes by keyword.
func (e *Engine) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	start := time.Now()
	results, err := e.index.Search(ctx, q)
	e.metrics.ObserveSearch(time.Since(start), len(results), err)
	return results, err
}

// Status returns node and edge counts per kind.
func (e *Engine) Status(ctx context.Context) (graph.Stats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return graph.Stats{}, fmt.Errorf("failed to read graph stats: %w", err)
	}
	return stats, nil
}

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
