package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/internal/solidi"
)

var tickerCmd = &cobra.Command{
	Use:     "ticker <pair>",
	Short:   "Show the price of a currency pair",
	Example: "  solidi ticker BTC/GBP",
	Args:    cobra.ExactArgs(1),
}

var quoteCmd = &cobra.Command{
	Use:   "quote <pair> <side> <volume>",
	Short: "Price a trade without placing it",
	Long: `Price a trade without placing it. Side is buy or sell. With --basis base
the volume is in the first asset of the pair and the price is in the
second; with --basis quote it is the other way round.`,
	Example: "  solidi quote BTC/GBP buy 0.5\n  solidi quote BTC/GBP buy 100 --basis quote",
	Args:    cobra.ExactArgs(3),
}

func init() {
	quoteCmd.Flags().String("basis", "base", "base or quote")
	quoteCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		basis, _ := quoteCmd.Flags().GetString("basis")
		q, err := a.svc.Quote(ctx, solidi.QuoteRequest{Pair: args[0], Side: args[1], Basis: basis, Volume: args[2]})
		if err != nil {
			return err
		}
		return printJSON(quoteCmd, q)
	})


	tickerCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		t, err := a.svc.Ticker(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(tickerCmd, t)
	})
	rootCmd.AddCommand(tickerCmd, quoteCmd)
}
