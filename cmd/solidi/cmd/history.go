package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/internal/solidi"
)

var depositCmd = &cobra.Command{
	Use:     "deposit <asset>",
	Short:   "Show where to send funds",
	Example: "  solidi deposit BTC\n  solidi deposit GBP",
	Args:    cobra.ExactArgs(1),
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List account transactions, newest first",
	Args:  cobra.NoArgs,
}

func init() {
	depositCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		d, err := a.svc.DepositDetails(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(depositCmd, d)
	})

	historyCmd.Flags().Int("limit", 0, "maximum transactions to show (0 for all)")
	historyCmd.Flags().Int("offset", 0, "transactions to skip")
	historyCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		var q solidi.TransactionQuery
		q.Limit, _ = historyCmd.Flags().GetInt("limit")
		q.Offset, _ = historyCmd.Flags().GetInt("offset")
		txns, err := a.svc.Transactions(ctx, q)
		if err != nil {
			return err
		}
		return printJSON(historyCmd, txns)
	})

	rootCmd.AddCommand(depositCmd, historyCmd)
}
