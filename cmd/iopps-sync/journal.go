package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iopps/iopps-sync/pkg/journal"
	"github.com/iopps/iopps-sync/pkg/mcp"
	"github.com/iopps/iopps-sync/pkg/models"
)

var errJournalDisabled = errors.New("mutation journal is disabled (journal.enabled: false)")

func newJournalCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query and manage the optimistic mutation journal",
	}

	cmd.AddCommand(
		newJournalSearchCmd(configPath),
		newJournalStatsCmd(configPath),
		newJournalCleanupCmd(configPath),
	)
	return cmd
}

// openJournal returns the configured journal and a cleanup func.
func openJournal(configPath string) (*journal.Journal, func(), error) {
	a, err := openApp(configPath)
	if err != nil {
		return nil, nil, err
	}
	if a.journal == nil {
		a.close()
		return nil, nil, errJournalDisabled
	}
	return a.journal, a.close, nil
}

func newJournalSearchCmd(configPath *string) *cobra.Command {
	var (
		name    string
		key     string
		outcome string
		since   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search recorded mutation attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, cleanup, err := openJournal(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.JournalQueryOpts{
				Name:    name,
				Key:     key,
				Outcome: outcome,
				Limit:   limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			recs, err := j.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Print(mcp.FormatMutations(recs))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "filter by mutation name")
	cmd.Flags().StringVar(&key, "key", "", "filter by cache key")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (reconciled, rolled_back)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max records to return")
	return cmd
}

func newJournalStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show attempt counts by mutation, outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, cleanup, err := openJournal(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := j.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(mcp.FormatJournalStats(stats))
			return nil
		},
	}
}

func newJournalCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete records older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, cleanup, err := openJournal(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := j.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d journal records.\n", n)
			return nil
		},
	}
}
