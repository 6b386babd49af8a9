package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/sieve/internal/cli"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Analyze, review and parse the rules in a directory",
	Long: `Starts a session: the rules are analyzed, the report is shown for review,
and once approved or skipped the rules are parsed and validated. In headless
mode the session stops at the review and is continued with 'sieve resume'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.RunOptions{Flags: flagsFrom(cmd, args)}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.RulesFile, _ = cmd.Flags().GetString("rules")
		opts.Instructions, _ = cmd.Flags().GetString("instructions")
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		return cli.Execute(opts)
	},
}

// parseCmd skips the analysis phase.
var parseCmd = &cobra.Command{
	Use:   "parse [dir]",
	Short: "Parse the rules without analysis or review",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.RunOptions{Flags: flagsFrom(cmd, args), ParseOnly: true, Headless: true}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.RulesFile, _ = cmd.Flags().GetString("rules")
		opts.Instructions, _ = cmd.Flags().GetString("instructions")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		return cli.Execute(opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(parseCmd)

	for _, c := range []*cobra.Command{runCmd, parseCmd} {
		c.Flags().String("session", "", "Session ID (generated when empty)")
		c.Flags().String("rules", "", "Rules file replacing rules.csv")
		c.Flags().String("instructions", "", "Extra instructions for the parse prompt")
		c.Flags().Bool("json", false, "Run in JSON mode (NDJSON outcomes out, commands in)")
	}
	runCmd.Flags().Bool("headless", false, "Stop at the review instead of prompting")
	runCmd.Flags().Bool("fresh", false, "Discard an existing session with the same ID first")

	rootCmd.RunE = runCmd.RunE
}
