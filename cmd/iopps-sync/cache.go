package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/mcp"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the local cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.cache.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nHits:    %d\nMisses:  %d\nExpired: %d\nCorrupt: %d\n",
				stats.Entries, stats.Hits, stats.Misses, stats.Expired, stats.Corrupt)
			return nil
		},
	}

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "List cached keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			keys, err := a.cache.Keys(context.Background())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the cached value for a key, e.g. jobs or savedJobs:<userId>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cache.ParseKey(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			raw, ok := a.cache.Lookup(context.Background(), key)
			if !ok {
				return fmt.Errorf("no valid entry for %s", key)
			}
			fmt.Println(mcp.FormatValue(raw))
			return nil
		},
	}

	var ttl string
	setCmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value under a key, e.g. to seed an offline cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cache.ParseKey(args[0])
			if err != nil {
				return err
			}
			d, err := cache.ParseTTL(ttl)
			if err != nil {
				return err
			}
			raw := json.RawMessage(args[1])
			if !json.Valid(raw) {
				return fmt.Errorf("value for %s is not valid JSON", key)
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			if !a.cache.PutIfUnchanged(ctx, key, raw, d, a.cache.Sequence(key)) {
				return fmt.Errorf("store %s: write failed (see log)", key)
			}
			fmt.Printf("Stored %s for %s.\n", key, d)
			return nil
		},
	}
	setCmd.Flags().StringVar(&ttl, "ttl", "medium", "tier (short, medium, long, very-long) or a duration such as 90s")

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			if expiredOnly {
				n := a.cache.ClearExpired(ctx)
				fmt.Printf("Removed %d expired cache entries.\n", n)
				return nil
			}
			a.cache.ClearAll(ctx)
			fmt.Println("All cache entries cleared.")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.AddCommand(statsCmd, keysCmd, getCmd, setCmd, clearCmd)
	return cmd
}
