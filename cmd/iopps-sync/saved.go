package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iopps/iopps-sync/pkg/screen"
)

func newSavedCmd(configPath *string) *cobra.Command {
	var (
		userID  string
		refresh bool
		toggle  string
	)

	cmd := &cobra.Command{
		Use:   "saved",
		Short: "List a member's saved jobs or toggle one",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			uid, err := a.userID(userID)
			if err != nil {
				return err
			}
			deps, err := a.screenDeps()
			if err != nil {
				return err
			}
			defer deps.Reads.Wait()

			ctx := context.Background()
			s := screen.NewSavedJobsScreen(deps, uid)
			if err := s.Load(ctx, refresh); err != nil {
				return err
			}
			printStatus(s.Status())

			if toggle != "" {
				if err := s.Toggle(ctx, toggle); err != nil {
					return fmt.Errorf("toggle saved job: %w", err)
				}
				state := "unsaved"
				if s.IsSaved(toggle) {
					state = "saved"
				}
				fmt.Printf("Job %s %s.\n", toggle, state)
			}

			saved := s.Saved()
			if saved.Count == 0 {
				fmt.Println("No saved jobs.")
				return nil
			}
			fmt.Printf("%d saved jobs:\n", saved.Count)
			for _, id := range saved.JobIDs {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "member ID (defaults to user.id)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache and fetch from the server")
	cmd.Flags().StringVar(&toggle, "toggle", "", "save or unsave a job by ID")
	return cmd
}
