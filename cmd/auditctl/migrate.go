package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	pg "contentaudit/internal/adapters/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status|reset]",
	Short:     "Apply or inspect the database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status", "reset"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDatabase(); err != nil {
			return err
		}
		command := "up"
		if len(args) == 1 {
			command = args[0]
		}
		db, err := pg.Connect(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(cmd.Context(), command); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s migrate %s\n", green("✓"), command)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
