// Package builder projects metadata snapshots into the property graph.
//
// A build is idempotent: every write is an upsert keyed by identity, so
// replaying the same snapshot creates nothing and changes no properties.
// Problems with individual records become warnings; only an unavailable
// store or a cancelled context stops a build early.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/vaultgraph/internal/dag"
	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
)

// DefaultWorkers is the table-group concurrency used when Config.Workers is unset.
const DefaultWorkers = 4

// DefaultSourceSystem names records that carry no source system.
const DefaultSourceSystem = "default"

// Config holds builder configuration.
type Config struct {
	// Workers bounds how many table groups are written concurrently.
	Workers int
	// SourceSystem is used when neither the snapshot nor a record names one.
	SourceSystem string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Builder writes snapshots into a Store.
type Builder struct {
	store        graphstore.Store
	workers      int
	sourceSystem string
	logger       *slog.Logger
}

// New creates a builder over store.
func New(store graphstore.Store, cfg Config) *Builder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	system := cfg.SourceSystem
	if system == "" {
		system = DefaultSourceSystem
	}
	return &Builder{store: store, workers: workers, sourceSystem: system, logger: logger}
}

// Build projects snap into the store and reports what changed.
//
// On an unavailable store or a cancelled context the partial summary is
// returned together with the error; upserts already made stay committed.
func (b *Builder) Build(ctx context.Context, snap metadata.Snapshot) (Summary, error) {
	b.logger.Info("starting build",
		"records", len(snap.Records),
		"components", len(snap.Components),
		"transformations", len(snap.Transformations))

	r := &run{
		b:        b,
		snap:     snap,
		tally:    &tally{},
		contains: dag.NewGraph(),
	}
	err := r.execute(ctx)
	summary := r.tally.summary()

	if err != nil {
		b.logger.Info("build aborted", "error", err.Error())
		return summary, fmt.Errorf("build aborted: %w", err)
	}

	b.logger.Info("build completed",
		"nodes_created", summary.NodesCreated,
		"nodes_merged", summary.NodesMerged,
		"edges_created", summary.EdgesCreated,
		"edges_merged", summary.EdgesMerged,
		"warnings", len(summary.Warnings))
	return summary, nil
}

// run holds the state of one build.
type run struct {
	b        *Builder
	snap     metadata.Snapshot
	tally    *tally
	contains *dag.Graph

	// once dedups source system and schema writes shared across table groups.
	once sync.Map

	mu       sync.Mutex
	deferred []pendingRef
}

// pendingRef is a REFERENCES edge whose target column was not yet written.
type pendingRef struct {
	label    string
	from, to graph.NodeRef
}

type onceEntry struct {
	once sync.Once
	err  error
}

func (r *run) do(key string, fn func() error) error {
	v, _ := r.once.LoadOrStore(key, &onceEntry{})
	e := v.(*onceEntry)
	e.once.Do(func() { e.err = fn() })
	return e.err
}

func (r *run) execute(ctx context.Context) error {
	groups := r.groupRecords()
	if err := r.buildTables(ctx, groups); err != nil {
		return err
	}
	if err := r.resolveDeferred(ctx); err != nil {
		return err
	}
	if err := r.buildComponents(ctx); err != nil {
		return err
	}
	return r.buildTransformations(ctx)
}

// fatal reports whether err must stop the build.
func fatal(err error) bool {
	return errors.Is(err, graph.ErrStoreUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// check turns a non-fatal error into a warning and passes fatal ones up.
func (r *run) check(label string, err error) error {
	if err == nil {
		return nil
	}
	if fatal(err) {
		return err
	}
	r.tally.warn(label, err.Error())
	return nil
}

func ref(id graph.Identity) graph.NodeRef {
	return graph.NodeRef{ID: graph.NodeID(id), Identity: id}
}

func (r *run) node(ctx context.Context, id graph.Identity, props graph.Properties) (graph.NodeRef, error) {
	nref, created, err := r.b.store.UpsertNode(ctx, id, props)
	if err != nil {
		return graph.NodeRef{}, err
	}
	r.tally.node(created)
	return nref, nil
}

func (r *run) edge(ctx context.Context, kind graph.RelKind, from, to graph.NodeRef, props graph.Properties) error {
	if !graph.ValidEndpoints(kind, from.Kind(), to.Kind()) {
		return graph.InvalidArgument("%s cannot connect %s to %s", kind, from.Kind(), to.Kind())
	}
	_, created, err := r.b.store.UpsertEdge(ctx, kind, from, to, props)
	if err != nil {
		return err
	}
	r.tally.edge(created)
	return nil
}

// setIf adds key to props when value is non-empty.
func setIf(props graph.Properties, key, value string) {
	if value != "" {
		props[key] = value
	}
}
