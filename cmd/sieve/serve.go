package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/sieve/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes stored sessions over a JSON API so reviews can be made remotely.
Prometheus metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.ServeOptions{Flags: flagsFrom(cmd, nil)}
		opts.Port, _ = cmd.Flags().GetString("port")
		opts.AllowStart, _ = cmd.Flags().GetBool("allow-start")
		return cli.Serve(opts)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Bool("allow-start", false, "Accept POST /sessions to start new sessions")
}
