package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/iopps/iopps-sync/pkg/models"
	"github.com/iopps/iopps-sync/pkg/screen"
)

func newMessagesCmd(configPath *string) *cobra.Command {
	var (
		userID         string
		refresh        bool
		conversationID string
		send           string
	)

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List conversations, show a thread or send a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			if send != "" && conversationID == "" {
				return fmt.Errorf("--send requires --conversation")
			}

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
			if conversationID == "" {
				s := screen.NewMessagesScreen(deps, uid)
				if err := s.Load(ctx, refresh); err != nil {
					return err
				}
				printStatus(s.Status())
				return printConversations(s.Conversations(), s.Unread())
			}

			s := screen.NewConversationScreen(deps, uid, conversationID)
			if err := s.Load(ctx, refresh); err != nil {
				return err
			}
			printStatus(s.Status())
			if send != "" {
				s.SetDraft(send)
				if err := s.Send(ctx); err != nil {
					return fmt.Errorf("send message: %w", err)
				}
			}
			return printThread(s.Thread().Messages, uid)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "member ID (defaults to user.id)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache and fetch from the server")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "show the messages of one conversation")
	cmd.Flags().StringVar(&send, "send", "", "send a message to --conversation")
	return cmd
}

func printConversations(convs []models.Conversation, unread int) error {
	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMPLOYER\tUNREAD\tLAST MESSAGE\tAT")
	for _, c := range convs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			c.ID, c.EmployerName, c.MemberUnread, truncate(c.LastMessage, 40), c.LastMessageAt.Format("2006-01-02T15:04:05"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d unread\n", unread)
	return nil
}

func printThread(msgs []models.Message, userID string) error {
	if len(msgs) == 0 {
		fmt.Println("No messages.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tFROM\tMESSAGE")
	for _, m := range msgs {
		from := string(m.SenderType)
		if m.SenderID == userID {
			from = "me"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.CreatedAt.Format("2006-01-02T15:04:05"), from, m.Content)
	}
	return w.Flush()
}

// truncate shortens s to n terminal columns.
func truncate(s string, n int) string {
	return runewidth.Truncate(s, n, "...")
}
