// Command auditctl is the operator CLI: schema migrations, quota usage
// reports, signature debugging and plan tier listing.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"contentaudit/internal/config"
	"contentaudit/internal/logging"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "auditctl",
	Short:         "Operate the content audit reconciliation service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil && !errors.Is(err, config.ErrNoDatabase) {
			return err
		}
		logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func requireDatabase() error {
	if cfg.DatabaseURL == "" {
		return config.ErrNoDatabase
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
