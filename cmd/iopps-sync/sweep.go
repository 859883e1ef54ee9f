package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iopps/iopps-sync/pkg/cache"
)

func newSweepCmd(configPath *string) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evict expired cache entries periodically until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if interval <= 0 {
				interval = a.cfg.Sweep.Interval
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := cache.NewSweeper(a.cache, interval)
			a.logger.Info("started cache sweeper", "interval", s.Interval(), "backend", a.cfg.Store.Backend)
			<-ctx.Done()
			s.Close()
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "sweep interval (defaults to sweep.interval)")
	return cmd
}
