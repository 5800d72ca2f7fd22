package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/vaultgraph/internal/cli/output"
	"github.com/leapstack-labs/vaultgraph/internal/search"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/spf13/cobra"
)

// SearchOptions holds options for the search command.
type SearchOptions struct {
	Kinds []string
	Limit int
}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	opts := &SearchOptions{}

	cmd := &cobra.Command{
		Use:   "search <text>...",
		Short: "Find nodes by name or description",
		Long: `Case-insensitive keyword search over node names and descriptions.

Results are ranked by how they matched (exact name, name prefix, name
substring, description), then by kind (tables, columns, components, schemas,
source systems), then by name.`,
		Example: `  vaultgraph search customer
  vaultgraph search customer --kind column --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Kinds, "kind", "k", nil, "Restrict to node kinds (table, column, component, schema, system)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Max results (0 = configured default)")

	return cmd
}

func runSearch(cmd *cobra.Command, text string, opts *SearchOptions) error {
	q := search.Query{Text: text, Limit: opts.Limit}
	for _, k := range opts.Kinds {
		kind, err := graph.ParseNodeKind(k)
		if err != nil {
			return err
		}
		q.Kinds = append(q.Kinds, kind)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := cmdCtx.Engine.Search(cmd.Context(), q)
	if err != nil {
		return err
	}
	return renderSearch(cmdCtx.Renderer, text, results)
}

func renderSearch(r *output.Renderer, text string, results []search.Result) error {
	if r.EffectiveMode() == output.ModeJSON {
		if results == nil {
			results = []search.Result{}
		}
		return r.JSON(results)
	}

	r.Header(1, fmt.Sprintf("Search: %q (%d)", text, len(results)))
	if len(results) == 0 {
		r.Println(r.Styles().Muted.Render("No matches."))
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{
			string(res.Match),
			string(res.Node.Kind()),
			keyOf(res.Node.Identity),
			res.Node.Properties.String(graph.PropDescription),
		})
	}
	r.Table([]string{"Match", "Kind", "Key", "Description"}, rows)
	return nil
}
