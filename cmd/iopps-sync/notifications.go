package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iopps/iopps-sync/pkg/screen"
)

func newNotificationsCmd(configPath *string) *cobra.Command {
	var (
		userID      string
		refresh     bool
		markRead    string
		markAllRead bool
	)

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List a member's notifications and mark them read",
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
			s := screen.NewNotificationsScreen(deps, uid)
			if err := s.Load(ctx, refresh); err != nil {
				return err
			}
			printStatus(s.Status())

			switch {
			case markAllRead:
				if err := s.MarkAllRead(ctx); err != nil {
					return fmt.Errorf("mark all read: %w", err)
				}
			case markRead != "":
				if err := s.MarkRead(ctx, markRead); err != nil {
					return fmt.Errorf("mark read: %w", err)
				}
			}

			n := s.Notifications()
			if len(n.Items) == 0 {
				fmt.Println("No notifications.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tTITLE\tREAD\tCREATED")
			for _, item := range n.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					item.ID, item.Type, item.Title, item.Read, item.CreatedAt.Format("2006-01-02T15:04:05"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d unread\n", n.Unread)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "member ID (defaults to user.id)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache and fetch from the server")
	cmd.Flags().StringVar(&markRead, "mark-read", "", "mark one notification read")
	cmd.Flags().BoolVar(&markAllRead, "mark-all-read", false, "mark every notification read")
	cmd.MarkFlagsMutuallyExclusive("mark-read", "mark-all-read")
	return cmd
}
