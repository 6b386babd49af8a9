package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/sieve/internal/cli"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id> [command...]",
	Short: "Continue a session paused for review",
	Long: `Delivers a review command to a paused session:

  approve | skip | quit | reject <feedback> | edit <path>

Without a command the report is shown again and the prompt opens.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.ResumeOptions{
			Flags:     flagsFrom(cmd, nil),
			SessionID: args[0],
			Command:   strings.Join(args[1:], " "),
		}
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		return cli.Resume(opts)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.Flags().Bool("headless", false, "Stop at the next review instead of prompting")
	resumeCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON outcomes out, commands in)")
}
