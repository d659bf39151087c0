package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	pg "contentaudit/internal/adapters/postgres"
	"contentaudit/internal/adapters/redisstore"
	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
	"contentaudit/internal/services/quota"
)

var (
	usageAccount string
	usageDomains []string
	usageDays    int
	usageTier    string
	usageOut     string
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print daily audit counts as a Markdown table",
	Long: `Print per-day audit counts for an account's domains over the last N UTC
days (today included) as a Markdown table, optionally saving it to a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if usageAccount == "" {
			return fmt.Errorf("--account is required")
		}
		if len(usageDomains) == 0 {
			return fmt.Errorf("at least one --domain is required")
		}
		counters, closeFn, err := openCounters(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		enforcer := quota.New(counters, logger)
		tier := cfg.Tiers.Resolve(usageTier, cfg.DefaultTier)
		rows, err := collectUsage(cmd.Context(), enforcer, usageAccount, usageDomains, usageDays)
		if err != nil {
			return err
		}

		table := renderUsageTable(rows, tier.MaxAuditsPerDay)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, table)

		if hit := limitDays(rows, tier.MaxAuditsPerDay); hit > 0 {
			red := color.New(color.FgRed, color.Bold).SprintFunc()
			fmt.Fprintf(out, "\n%s\n", red(fmt.Sprintf("daily limit (%d, tier %s) reached on %d day(s)", tier.MaxAuditsPerDay, tier.Name, hit)))
		}

		if usageOut != "" {
			if err := os.MkdirAll(filepath.Dir(usageOut), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(usageOut, []byte(table+"\n"), 0o644); err != nil {
				return err
			}
			logger.Info("usage report written", "path", usageOut)
		}
		return nil
	},
}

func init() {
	usageCmd.Flags().StringVar(&usageAccount, "account", "", "account id")
	usageCmd.Flags().StringSliceVar(&usageDomains, "domain", nil, "domain to report (repeatable)")
	usageCmd.Flags().IntVar(&usageDays, "days", 14, "number of UTC days, today included (max 31)")
	usageCmd.Flags().StringVar(&usageTier, "tier", "", "plan tier used for the limit column (default tier if empty)")
	usageCmd.Flags().StringVar(&usageOut, "out", "", "also write the table to this file")
	rootCmd.AddCommand(usageCmd)
}

// openCounters connects to the configured quota backend.
func openCounters(ctx context.Context) (ports.QuotaRepository, func(), error) {
	if cfg.QuotaBackend == "redis" {
		rdb, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.New(rdb), func() { _ = rdb.Close() }, nil
	}
	if err := requireDatabase(); err != nil {
		return nil, nil, err
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	return db, db.Close, nil
}

type usageRow struct {
	Day    time.Time
	Domain string
	Count  int
}

// collectUsage fetches every domain's history concurrently and returns rows
// grouped by day, domains in the order given.
func collectUsage(ctx context.Context, quotas ports.Quotas, accountID string, domains []string, days int) ([]usageRow, error) {
	normalized := make([]string, len(domains))
	for i, d := range domains {
		n, err := domain.RegistrableDomain(d)
		if err != nil {
			return nil, err
		}
		normalized[i] = n
	}

	histories := make([][]domain.DailyCount, len(normalized))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, d := range normalized {
		g.Go(func() error {
			h, err := quotas.History(ctx, accountID, d, days)
			if err != nil {
				return fmt.Errorf("history %s: %w", d, err)
			}
			histories[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []usageRow
	if len(histories) == 0 {
		return rows, nil
	}
	for day := range histories[0] {
		for i, d := range normalized {
			if day >= len(histories[i]) {
				continue
			}
			dc := histories[i][day]
			rows = append(rows, usageRow{Day: dc.Day, Domain: d, Count: dc.Count})
		}
	}
	return rows, nil
}

func limitDays(rows []usageRow, limit int) int {
	if limit == domain.Unlimited {
		return 0
	}
	seen := map[time.Time]bool{}
	for _, r := range rows {
		if r.Count >= limit {
			seen[r.Day] = true
		}
	}
	return len(seen)
}

// renderUsageTable formats rows as an aligned Markdown table. The date is
// printed once per day block; numeric columns are right-aligned.
func renderUsageTable(rows []usageRow, limit int) string {
	headers := []string{"UTC Date", "Domain", "Audits", "Limit", "Remaining"}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	cells := make([][]string, 0, len(rows))
	var prevDay time.Time
	for i, r := range rows {
		date := ""
		if i == 0 || !r.Day.Equal(prevDay) {
			date = r.Day.Format(time.DateOnly)
		}
		prevDay = r.Day
		remaining := "-"
		if limit != domain.Unlimited {
			remaining = strconv.Itoa(max(limit-r.Count, 0))
		}
		row := []string{date, r.Domain, strconv.Itoa(r.Count), limitString(limit), remaining}
		for j, c := range row {
			widths[j] = max(widths[j], len(c))
		}
		cells = append(cells, row)
	}

	var b strings.Builder
	writeRow := func(row []string, align func(col int) bool) {
		b.WriteString("|")
		for j, c := range row {
			if align(j) {
				fmt.Fprintf(&b, " %-*s |", widths[j], c)
			} else {
				fmt.Fprintf(&b, " %*s |", widths[j], c)
			}
		}
		b.WriteString("\n")
	}
	left := func(int) bool { return true }
	writeRow(headers, left)
	sep := make([]string, len(headers))
	for j := range sep {
		sep[j] = strings.Repeat("-", widths[j])
	}
	writeRow(sep, left)
	for _, row := range cells {
		writeRow(row, func(col int) bool { return col <= 1 })
	}
	return strings.TrimRight(b.String(), "\n")
}
