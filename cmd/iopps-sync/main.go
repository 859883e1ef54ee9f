package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "iopps-sync",
		Short:         "Offline cache and optimistic sync for the IOPPS member app",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")

	root.AddCommand(
		newCacheCmd(&configPath),
		newSweepCmd(&configPath),
		newJobsCmd(&configPath),
		newNotificationsCmd(&configPath),
		newMessagesCmd(&configPath),
		newSavedCmd(&configPath),
		newJournalCmd(&configPath),
		newMCPCmd(&configPath),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
