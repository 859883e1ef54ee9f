package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iopps/iopps-sync/pkg/screen"
)

func newJobsCmd(configPath *string) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List active job postings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			deps, err := a.screenDeps()
			if err != nil {
				return err
			}
			defer deps.Reads.Wait()

			s := screen.NewJobsScreen(deps)
			if err := s.Load(context.Background(), refresh); err != nil {
				return err
			}
			printStatus(s.Status())

			jobs := s.Jobs()
			if len(jobs) == 0 {
				fmt.Println("No active jobs.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tEMPLOYER\tLOCATION\tPOSTED")
			for _, j := range jobs {
				loc := j.Location
				if j.Remote {
					loc = "remote"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					j.ID, truncate(j.Title, 50), truncate(j.EmployerName, 30), loc, j.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache and fetch from the server")
	return cmd
}
