package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"contentaudit/internal/config"
	"contentaudit/internal/domain"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "List plan tiers and their limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		printTiers(cmd.OutOrStdout(), cfg.Tiers, cfg.DefaultTier)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tiersCmd)
}

func printTiers(w io.Writer, tiers config.Tiers, def string) {
	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	slices.Sort(names)

	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintln(w, bold(fmt.Sprintf("%-12s %12s %12s", "TIER", "AUDITS/DAY", "DOMAINS")))
	for _, name := range names {
		t := tiers[name]
		label := name
		if name == def {
			label += "*"
		}
		fmt.Fprintf(w, "%-12s %12s %12s\n", label, limitString(t.MaxAuditsPerDay), limitString(t.MaxDomains))
	}
}

func limitString(n int) string {
	if n == domain.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(n)
}
