package commands

import (
	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/spf13/cobra"
)

// NewClearCommand creates the clear command.
func NewClearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "clear",
		Short:   "Delete every node and relationship",
		Long:    `Remove the whole graph. The store itself is kept; run build again to repopulate it.`,
		Example: `  vaultgraph clear --yes`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return graph.InvalidArgument("refusing to clear the graph without --yes")
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Engine.Clear(cmd.Context()); err != nil {
				return err
			}
			cmdCtx.Renderer.Success("Graph cleared")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}
