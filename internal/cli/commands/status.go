package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/vaultgraph/internal/cli/output"
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node and relationship counts",
		Long:  `Display how many nodes of each kind and relationships of each type the graph holds.`,
		Example: `  vaultgraph status
  vaultgraph status -o json`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// StatusOutput is the JSON shape of the status command.
type StatusOutput struct {
	Driver     string                 `json:"driver"`
	Nodes      map[graph.NodeKind]int `json:"nodes"`
	Edges      map[graph.RelKind]int  `json:"edges"`
	TotalNodes int                    `json:"total_nodes"`
	TotalEdges int                    `json:"total_edges"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := cmdCtx.Engine.Status(cmd.Context())
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(StatusOutput{
			Driver:     cmdCtx.Cfg.Store.Driver,
			Nodes:      stats.Nodes,
			Edges:      stats.Edges,
			TotalNodes: stats.TotalNodes(),
			TotalEdges: stats.TotalEdges(),
		})
	}

	r.Header(1, "Graph Status")

	nodeRows := make([][]string, 0, len(graph.AllNodeKinds))
	for _, k := range graph.AllNodeKinds {
		nodeRows = append(nodeRows, []string{string(k), strconv.Itoa(stats.Nodes[k])})
	}
	r.Table([]string{"Node kind", "Count"}, nodeRows)
	r.Println("")

	edgeRows := make([][]string, 0, len(graph.AllRelKinds))
	for _, k := range graph.AllRelKinds {
		edgeRows = append(edgeRows, []string{string(k), strconv.Itoa(stats.Edges[k])})
	}
	r.Table([]string{"Relationship", "Count"}, edgeRows)
	r.Println("")

	r.Println(output.FormatKeyValue("Store", cmdCtx.Cfg.Store.Driver))
	r.Println(output.FormatKeyValue("Total", fmt.Sprintf("%d nodes, %d edges", stats.TotalNodes(), stats.TotalEdges())))
	return nil
}
