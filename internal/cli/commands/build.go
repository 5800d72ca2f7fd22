package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/vaultgraph/internal/builder"
	"github.com/leapstack-labs/vaultgraph/internal/cli/output"
	"github.com/leapstack-labs/vaultgraph/internal/loader"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces bursts of file events from editors.
const watchDebounce = 200 * time.Millisecond

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Snapshot string
	Watch    bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Project a metadata snapshot into the graph",
		Long: `Load a metadata snapshot (YAML or JSON) and project its source systems,
schemas, tables, columns, foreign keys, Data-Vault components and column
transformations into the graph.

Builds are idempotent: re-running a snapshot merges properties and creates
nothing new. Records that cannot be applied are reported as warnings and the
rest of the snapshot is still built.`,
		Example: `  # Build from a local file
  vaultgraph build --snapshot metadata.yaml

  # Build from a URL (file://, mem://, http:// and https:// are supported)
  vaultgraph build --snapshot https://example.com/metadata.json

  # Read the snapshot from stdin
  cat metadata.yaml | vaultgraph build --snapshot -

  # Rebuild whenever the file changes
  vaultgraph build --snapshot metadata.yaml --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Snapshot, "snapshot", "f", "", "Snapshot file or URL (- for stdin)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Rebuild when the snapshot file changes")
	cmd.Flags().Int("workers", 0, "Concurrent table groups per build")
	cmd.Flags().String("source-system", "", "Source system for records that name none")
	cmd.Flags().Duration("build-timeout", 0, "Abort a build after this long (0 = no limit)")
	_ = cmd.MarkFlagRequired("snapshot")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	if opts.Watch && !isLocalFile(opts.Snapshot) {
		return graph.InvalidArgument("--watch needs a local snapshot file, got %q", opts.Snapshot)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if err := buildOnce(ctx, cmd, cmdCtx, opts.Snapshot); err != nil {
		return err
	}
	if !opts.Watch {
		return nil
	}
	return watchSnapshot(ctx, cmd, cmdCtx, opts.Snapshot)
}

func buildOnce(ctx context.Context, cmd *cobra.Command, cmdCtx *CommandContext, location string) error {
	snap, err := loadSnapshot(ctx, cmd, location)
	if err != nil {
		return err
	}

	start := time.Now()
	summary, err := cmdCtx.Engine.Build(ctx, snap)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return renderSummary(cmdCtx.Renderer, location, summary, time.Since(start))
}

func loadSnapshot(ctx context.Context, cmd *cobra.Command, location string) (metadata.Snapshot, error) {
	if location == "-" {
		return loader.Read(cmd.InOrStdin(), "")
	}
	return loader.New().Load(ctx, location)
}

func isLocalFile(location string) bool {
	return location != "" && location != "-" && !strings.Contains(location, "://")
}

// watchSnapshot rebuilds on writes to the snapshot file until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func watchSnapshot(ctx context.Context, cmd *cobra.Command, cmdCtx *CommandContext, location string) error {
	target, err := filepath.Abs(location)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", location, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	logger := cmdCtx.Logger
	logger.Info("watching snapshot", "path", target)
	cmdCtx.Renderer.Println(cmdCtx.Renderer.Styles().Muted.Render("Watching " + location + " (Ctrl+C to stop)"))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = time.After(watchDebounce)

		case <-pending:
			pending = nil
			logger.Debug("snapshot changed, rebuilding", "path", target)
			if err := buildOnce(ctx, cmd, cmdCtx, location); err != nil {
				// Keep watching; the next save may fix it.
				cmdCtx.Renderer.Error(err.Error())
				logger.Error("rebuild failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

func renderSummary(r *output.Renderer, location string, s builder.Summary, elapsed time.Duration) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if s.Warnings == nil {
			s.Warnings = []graph.Warning{}
		}
		return r.JSON(s)

	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Build"))
		r.Println("")
		r.Println(output.FormatKeyValue("Snapshot", location))
		r.Println(output.FormatKeyValue("Nodes", fmt.Sprintf("%d created, %d merged", s.NodesCreated, s.NodesMerged)))
		r.Println(output.FormatKeyValue("Edges", fmt.Sprintf("%d created, %d merged", s.EdgesCreated, s.EdgesMerged)))
		r.Println(output.FormatKeyValue("Warnings", fmt.Sprintf("%d", len(s.Warnings))))
		r.Println(output.FormatKeyValue("Changed", fmt.Sprintf("%t", s.Changed())))
		if len(s.Warnings) > 0 {
			r.Println("")
			r.Println(output.FormatHeader(2, "Warnings"))
			r.Println("")
			for _, w := range s.Warnings {
				r.Printf("- `%s`: %s\n", w.Record, w.Message)
			}
		}
		return nil
	}

	styles := r.Styles()
	r.Success(fmt.Sprintf("Built %s in %s", location, elapsed.Round(time.Millisecond)))
	r.Printf("  nodes: %d created, %d merged\n", s.NodesCreated, s.NodesMerged)
	r.Printf("  edges: %d created, %d merged\n", s.EdgesCreated, s.EdgesMerged)
	if !s.Changed() {
		r.Println(styles.Muted.Render("  graph already up to date"))
	}
	if len(s.Warnings) > 0 {
		r.Println("")
		r.Println(styles.Warning.Render(fmt.Sprintf("%d warnings:", len(s.Warnings))))
		for _, w := range s.Warnings {
			r.Printf("  %s %s\n", styles.Identity.Render(w.Record), w.Message)
		}
	}
	return nil
}
