package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/internal/solidi"
	"github.com/solidifx/solidi-go/pkg/errors"
)

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <asset> <volume> <address>",
	Short: "Withdraw funds to an address or address book entry",
	Long: `Withdraw funds. The destination is a raw address or the UUID of an
address book entry.

A withdrawal is never retried automatically. If the outcome is unknown
(timeout or dropped connection), check 'solidi withdrawals' and
'solidi journal list --status ambiguous' before trying again.`,
	Args: cobra.ExactArgs(3),
}

var withdrawalsCmd = &cobra.Command{
	Use:   "withdrawals",
	Short: "List past withdrawals",
	Args:  cobra.NoArgs,
}

func init() {
	withdrawCmd.Flags().String("priority", "normal", "low, normal or high")

	withdrawCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		priority, _ := withdrawCmd.Flags().GetString("priority")
		res, err := a.svc.Withdraw(ctx, args[0], solidi.WithdrawRequest{
			Volume:   args[1],
			Address:  args[2],
			Priority: priority,
		})
		if errors.IsAmbiguous(err) {
			return fmt.Errorf("%w\nrun 'solidi withdrawals' to see whether it was applied", err)
		}
		if err != nil {
			return err
		}
		return printJSON(withdrawCmd, res)
	})

	withdrawalsCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		wds, err := a.svc.Withdrawals(ctx)
		if err != nil {
			return err
		}
		return printJSON(withdrawalsCmd, wds)
	})

	rootCmd.AddCommand(withdrawCmd, withdrawalsCmd)
}
