package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve cache and journal inspection tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.cfg.Sweep.Enabled {
				s := cache.NewSweeper(a.cache, a.cfg.Sweep.Interval)
				defer s.Close()
			}

			var j mcp.Journal
			if a.journal != nil {
				j = a.journal
			}
			srv := mcp.New(a.cache, j, version, a.logger)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
