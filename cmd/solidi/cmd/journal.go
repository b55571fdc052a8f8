package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/internal/store"
	"github.com/solidifx/solidi-go/pkg/api"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the journal of mutating calls",
	Long: `Every withdrawal, order and address book change is journaled before it is
sent. Entries with status ambiguous may or may not have been applied by
the backend; reconcile them before repeating the call.`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries, newest first",
	Args:  cobra.NoArgs,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show one journal entry",
	Args:  cobra.ExactArgs(1),
}

func init() {
	journalListCmd.Flags().String("status", "", "filter by pending, succeeded, failed or ambiguous")
	journalListCmd.Flags().Int("limit", 20, "maximum number of entries")

	journalListCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		if err := a.requireJournal(); err != nil {
			return err
		}
		status, _ := journalListCmd.Flags().GetString("status")
		limit, _ := journalListCmd.Flags().GetInt("limit")
		if status != "" && !api.CallStatus(status).Valid() {
			return fmt.Errorf("invalid status %q", status)
		}

		entries, err := a.journal.List(ctx, store.ListFilter{Status: api.CallStatus(status), Limit: limit})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(journalListCmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "REQUEST ID\tCREATED\tMETHOD\tROUTE\tNONCE\tSTATUS")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				e.RequestID, e.CreatedAt.Format(time.RFC3339), e.Method, e.Route, e.Nonce, e.Status)
		}
		return w.Flush()
	})

	journalShowCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		if err := a.requireJournal(); err != nil {
			return err
		}
		e, err := a.journal.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(journalShowCmd, e)
	})

	journalCmd.AddCommand(journalListCmd, journalShowCmd)
	rootCmd.AddCommand(journalCmd)
}
