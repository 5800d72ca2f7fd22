// Package commands implements the vaultgraph subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/vaultgraph/internal/cli/output"
	"github.com/leapstack-labs/vaultgraph/internal/config"
	"github.com/leapstack-labs/vaultgraph/internal/engine"
	"github.com/leapstack-labs/vaultgraph/internal/graphstore"
	"github.com/leapstack-labs/vaultgraph/internal/graphstore/neo4j"
	"github.com/spf13/cobra"
)

// loggerKey and configKey store values in the command context.
type (
	loggerKey struct{}
	configKey struct{}
)

// WithLogger returns ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, loading the
// defaults when none was stored.
func GetConfig(ctx context.Context) (*config.Config, error) {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c, nil
	}
	return config.Load("", nil)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, nil, err
	}

	eng, err := createEngine(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		if path := cc.Cfg.Metrics.Textfile; path != "" {
			if err := eng.Metrics().WriteTextfile(path); err != nil {
				cc.Logger.Error("failed to export metrics", "path", path, "error", err)
			}
		}
		_ = eng.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need store access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := GetConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
	}, nil
}

// OpenStore opens the graph store selected by cfg.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (graphstore.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("memory store is not persisted; the graph is discarded when the command exits")
		return graphstore.NewMemoryStore(), nil

	case config.DriverNeo4j:
		return neo4j.Open(ctx, neo4j.Config{
			URI:      cfg.Neo4j.URI,
			User:     cfg.Neo4j.User,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
			Logger:   logger.With("component", "neo4j"),
		})

	case config.DriverSQLite, "":
		// Ensure store directory exists
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
		return graphstore.OpenSQLite(ctx, cfg.Path)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func createEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	store, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	logger.Debug("store opened", "driver", cfg.Store.Driver)

	return engine.New(store, engine.Config{
		Workers:        cfg.Build.Workers,
		SourceSystem:   cfg.Build.SourceSystem,
		BuildTimeout:   cfg.Build.Timeout,
		DefaultDepth:   cfg.Lineage.DefaultDepth,
		MaxDepth:       cfg.Lineage.MaxDepth,
		LineageTimeout: cfg.Lineage.Timeout,
		SearchLimit:    cfg.Search.Limit,
		Logger:         logger,
	}), nil
}
