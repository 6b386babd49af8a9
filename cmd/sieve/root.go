package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/sieve/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "sieve",
	Short: "Sieve reviews and parses document prioritization rules",
	Long: `Sieve analyzes a CSV of prioritization rules with a language model, pauses
for human review, then turns the approved rules into validated JSON.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file (default ./sieve.yaml)")
	rootCmd.PersistentFlags().String("dir", "", "Directory holding rules.csv and client_keywords.csv")
	rootCmd.PersistentFlags().String("model", "", "Model name sent to the endpoint")
	rootCmd.PersistentFlags().String("store", "", "Session store: file, memory or redis")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL for the redis store")
	rootCmd.PersistentFlags().Int("max-iterations", 0, "Parse attempts before giving up (default 3)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every node transition to stderr")
}

// flagsFrom reads the persistent flags. A positional directory fills in
// for --dir when the flag was not set.
func flagsFrom(cmd *cobra.Command, args []string) cli.Flags {
	f := cli.Flags{}
	f.ConfigPath, _ = cmd.Flags().GetString("config")
	f.Dir, _ = cmd.Flags().GetString("dir")
	f.Model, _ = cmd.Flags().GetString("model")
	f.Store, _ = cmd.Flags().GetString("store")
	f.RedisURL, _ = cmd.Flags().GetString("redis-url")
	f.MaxIterations, _ = cmd.Flags().GetInt("max-iterations")
	f.Debug, _ = cmd.Flags().GetBool("debug")
	if !cmd.Flags().Changed("dir") && len(args) > 0 {
		f.Dir = args[0]
	}
	return f
}
