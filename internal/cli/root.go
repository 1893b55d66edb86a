package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// Build information, set by the main package from LDFLAGS.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func Run() ExitCode {
	// Load .env file if it exists
	_ = godotenv.Load()

	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "hybridqa",
		Short:        "Answer business questions over the Northwind database and its documents.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "set debug logging level")
	flags.StringP("config", "c", "", "path to a YAML config file")
	flags.String("metrics-addr", "", "address to serve prometheus metrics on (disabled when empty)")
	flags.String("provider", "", "language model provider (ollama, anthropic)")
	flags.String("model", "", "language model name")
	flags.String("db-driver", "", "database driver (sqlite, duckdb, postgres, clickhouse)")
	flags.String("dsn", "", "database data source name")
	flags.String("docs", "", "directory of markdown documents")

	rootCmd.AddCommand(
		NewBatchCmd().Command(),
		NewAskCmd().Command(),
		NewServeCmd().Command(),
	)
	return rootCmd
}
