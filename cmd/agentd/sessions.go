package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/driftworks/agentd/internal/state"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		sessions, err := state.NewStore(db).List(cmd.Context(), sessionsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAGENT\tSTATE\tITER\tUPDATED\tTASK")
		for _, s := range sessions {
			task := s.Task
			if len(task) > 48 {
				task = task[:45] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				s.ID, s.Agent, s.State, s.Iteration, s.UpdatedAt.Format("2006-01-02 15:04"), task)
		}
		return w.Flush()
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 50, "maximum sessions to list")
}
