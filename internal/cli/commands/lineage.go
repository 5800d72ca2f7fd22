package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/vaultgraph/internal/cli/output"
	"github.com/leapstack-labs/vaultgraph/internal/lineage"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/spf13/cobra"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Direction string
	Depth     int
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <kind> <key>...",
		Short: "Show lineage for a table, column or Data-Vault component",
		Long: `Walk the graph from a seed node and show what feeds it (upstream) or what
it feeds (downstream).

Tables are traced at table level: column lineage is lifted to the owning
tables and the underlying column pairs are listed per edge. Columns and
Data-Vault components are traced at column level.

The key may be given as separate fields or dotted, and may be shortened to
its trailing fields as long as exactly one node matches. A single argument is
always split on dots, so names that contain a dot must be passed as separate
fields (for example: lineage column sales orders.v2 id).`,
		Example: `  # What does customers.customer_id feed?
  vaultgraph lineage column sales.customers.customer_id

  # Shortened key, one hop
  vaultgraph lineage column customers customer_id --depth 1

  # Where does a table's data come from?
  vaultgraph lineage table sales.orders --direction upstream

  # Both directions as JSON
  vaultgraph lineage component vault.HUB_CUSTOMERS -d both -o json`,
		Args: cobra.MinimumNArgs(2),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return []string{"table", "column", "component"}, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Direction, "direction", "d", string(graph.Downstream), "Traversal direction (upstream|downstream|both)")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max hops from the seed (0 = configured default)")
	cmd.Flags().Int("max-depth", 0, "Largest depth a query may ask for")
	cmd.Flags().Duration("lineage-timeout", 0, "Abort the traversal after this long (0 = no limit)")

	_ = cmd.RegisterFlagCompletionFunc("direction", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"upstream", "downstream", "both"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// parseLineageArgs turns "<kind> <key>..." into a request. A single dotted
// key is split into fields.
func parseLineageArgs(args []string, opts *LineageOptions) (lineage.Request, error) {
	kind, err := graph.ParseNodeKind(args[0])
	if err != nil {
		return lineage.Request{}, err
	}
	dir, err := graph.ParseDirection(opts.Direction)
	if err != nil {
		return lineage.Request{}, err
	}

	key := args[1:]
	if len(key) == 1 && strings.Contains(key[0], ".") {
		key = strings.Split(key[0], ".")
	}

	return lineage.Request{Kind: kind, Key: key, Direction: dir, MaxDepth: opts.Depth}, nil
}

func runLineage(cmd *cobra.Command, args []string, opts *LineageOptions) error {
	req, err := parseLineageArgs(args, opts)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sub, err := cmdCtx.Engine.ResolveLineage(cmd.Context(), req)
	if err != nil {
		return err
	}
	return renderLineage(cmdCtx.Renderer, req.Direction, sub)
}

// LineageOutput is the JSON shape of a lineage result.
type LineageOutput struct {
	Seed      graph.Identity  `json:"seed"`
	Direction graph.Direction `json:"direction"`
	Nodes     []LineageNode   `json:"nodes"`
	Edges     []graph.Edge    `json:"edges"`
}

// LineageNode is a node with its distance from the seed.
type LineageNode struct {
	graph.Node
	Depth int `json:"depth"`
}

func lineageNodes(sub graph.SubGraph) []LineageNode {
	nodes := make([]LineageNode, 0, len(sub.Nodes))
	for _, n := range sub.Nodes {
		nodes = append(nodes, LineageNode{Node: n, Depth: sub.Depths[n.Identity]})
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].Identity < nodes[j].Identity
	})
	return nodes
}

func keyOf(id graph.Identity) string {
	return strings.Join(id.Fields(), ".")
}

// keyFlags marks primary and foreign key columns.
func keyFlags(p graph.Properties) string {
	var flags []string
	if p.Bool(graph.PropPrimaryKey) {
		flags = append(flags, "PK")
	}
	if p.Bool(graph.PropForeignKey) {
		flags = append(flags, "FK")
	}
	return strings.Join(flags, ",")
}

func renderLineage(r *output.Renderer, dir graph.Direction, sub graph.SubGraph) error {
	nodes := lineageNodes(sub)

	if r.EffectiveMode() == output.ModeJSON {
		edges := sub.Edges
		if edges == nil {
			edges = []graph.Edge{}
		}
		return r.JSON(LineageOutput{Seed: sub.Seed, Direction: dir, Nodes: nodes, Edges: edges})
	}

	r.Header(1, fmt.Sprintf("Lineage for %s %s (%s)", sub.Seed.Kind(), keyOf(sub.Seed), dir))

	nodeRows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		nodeRows = append(nodeRows, []string{strconv.Itoa(n.Depth), string(n.Kind()), keyOf(n.Identity), n.Name(), keyFlags(n.Properties)})
	}
	r.Header(2, fmt.Sprintf("Nodes (%d)", len(nodes)))
	r.Table([]string{"Depth", "Kind", "Key", "Name", "Keys"}, nodeRows)

	if len(sub.Edges) == 0 {
		r.Println("")
		r.Println(r.Styles().Muted.Render("No lineage edges."))
		return nil
	}

	edgeRows := make([][]string, 0, len(sub.Edges))
	for _, e := range sub.Edges {
		detail := ""
		if cols, ok := e.Properties[graph.PropColumns].([]string); ok {
			detail = strings.Join(cols, ", ")
		} else if expr := e.Properties.String(graph.PropTransformation); expr != "" {
			detail = expr
		} else if expr := e.Properties.String(graph.PropDerivation); expr != "" {
			detail = expr
		}
		edgeRows = append(edgeRows, []string{string(e.Kind), keyOf(e.From), keyOf(e.To), detail})
	}
	r.Println("")
	r.Header(2, fmt.Sprintf("Edges (%d)", len(sub.Edges)))
	r.Table([]string{"Kind", "From", "To", "Detail"}, edgeRows)
	return nil
}
