package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stylevault/resilience/internal/core/config"
	"github.com/stylevault/resilience/internal/infra/storage/postgres"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archived error report counts by category",
	Run:   runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Database.URL == "" {
		slog.Error("No database configured; stats requires a PostgreSQL sink")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewReportRepo(db)
	counts, err := repo.CountByCategory(ctx)
	if err != nil {
		slog.Error("Failed to query reports", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tCOUNT")
	total := 0
	for category, count := range counts {
		fmt.Fprintf(w, "%s\t%d\n", category, count)
		total += count
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	_ = w.Flush()
}
