package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"corkboard/internal/platform/postgres"
	"corkboard/pkg/platform/audit"
	auditpostgres "corkboard/pkg/platform/audit/store/postgres"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and maintain the audit log",
	Long: `Operator commands for the audit log. They read the Postgres store, so
database.url must be configured; the in-memory store only lives inside a
running server.`,
}

var (
	searchUser   string
	searchAction string
	searchSince  time.Duration
	searchLimit  int
	statsUser    string
	statsDays    int
)

var auditSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "List recent audit entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter := audit.Filter{UserID: searchUser, Limit: searchLimit}
		if searchAction != "" {
			action, err := audit.ParseAction(searchAction)
			if err != nil {
				return err
			}
			filter.Action = action
		}
		if searchSince > 0 {
			filter.Since = time.Now().Add(-searchSince)
		}
		return withRecorder(cmd.Context(), func(ctx context.Context, r *audit.Recorder) error {
			entries, total, err := r.Search(ctx, filter)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"entries": entries, "total": total})
		})
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize audit activity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRecorder(cmd.Context(), func(ctx context.Context, r *audit.Recorder) error {
			stats, err := r.Stats(ctx, statsUser, statsDays)
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

var auditPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete entries older than the retention period",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRecorder(cmd.Context(), func(ctx context.Context, r *audit.Recorder) error {
			n, err := r.Purge(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d entries\n", n)
			return nil
		})
	},
}

func init() {
	auditSearchCmd.Flags().StringVar(&searchUser, "user", "", "only entries for this user ID")
	auditSearchCmd.Flags().StringVar(&searchAction, "action", "", "only entries with this action")
	auditSearchCmd.Flags().DurationVar(&searchSince, "since", 24*time.Hour, "how far back to look")
	auditSearchCmd.Flags().IntVar(&searchLimit, "limit", audit.DefaultSearchLimit, "maximum entries to print")

	auditStatsCmd.Flags().StringVar(&statsUser, "user", "", "only count this user ID")
	auditStatsCmd.Flags().IntVar(&statsDays, "days", 7, "window in days")

	auditCmd.AddCommand(auditSearchCmd, auditStatsCmd, auditPurgeCmd)
}

func withRecorder(ctx context.Context, fn func(context.Context, *audit.Recorder) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("audit commands need database.url")
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	recorder := audit.NewRecorder(auditpostgres.New(db),
		audit.WithLogger(log),
		audit.WithRetention(cfg.Audit.Retention),
	)
	return fn(ctx, recorder)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
