package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/sieve/internal/cli"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long: `Outputs a Mermaid diagram of the node transition table. With --session the
path that session has taken is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		return cli.PrintGraph(cmd.Context(), cmd.OutOrStdout(), flagsFrom(cmd, nil), sessionID)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the trail of this session")
}
