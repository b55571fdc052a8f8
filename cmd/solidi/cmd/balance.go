package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show account balances",
	Args:  cobra.NoArgs,
}

var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Show withdrawal fees per asset and priority",
	Args:  cobra.NoArgs,
}

func init() {
	balanceCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		b, err := a.svc.Balance(ctx)
		if err != nil {
			return err
		}
		return printJSON(balanceCmd, b)
	})
	feesCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		f, err := a.svc.Fees(ctx)
		if err != nil {
			return err
		}
		return printJSON(feesCmd, f)
	})
	rootCmd.AddCommand(balanceCmd, feesCmd)
}
