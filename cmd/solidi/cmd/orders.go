package cmd

import (
	"context"
	"fmt"

	"github.com/gookit/goutil"
	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/internal/solidi"
)

var buyCmd = &cobra.Command{
	Use:     "buy <pair> <amount> <price>",
	Short:   "Place a buy order",
	Example: "  solidi buy BTC/GBP 0.01 30000",
	Args:    cobra.ExactArgs(3),
}

var sellCmd = &cobra.Command{
	Use:     "sell <pair> <amount> <price>",
	Short:   "Place a sell order",
	Example: "  solidi sell BTC/GBP 0.01 30000",
	Args:    cobra.ExactArgs(3),
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Inspect or cancel orders",
}

var orderStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show an order",
	Args:  cobra.ExactArgs(1),
}

var orderOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "List orders resting on the book",
	Args:  cobra.NoArgs,
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel an open order",
	Args:  cobra.ExactArgs(1),
}

func init() {
	placeOrder := func(cmd *cobra.Command, side string) func(*cobra.Command, []string) error {
		return run(func(ctx context.Context, a *app, args []string) error {
			req := solidi.OrderRequest{CurrencyPair: args[0], Amount: args[1], Price: args[2]}
			place := a.svc.Buy
			if side == "sell" {
				place = a.svc.Sell
			}
			o, err := place(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		})
	}
	buyCmd.RunE = placeOrder(buyCmd, "buy")
	sellCmd.RunE = placeOrder(sellCmd, "sell")

	orderStatusCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		id, err := orderID(args[0])
		if err != nil {
			return err
		}
		o, err := a.svc.OrderStatus(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(orderStatusCmd, o)
	})

	orderCancelCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		id, err := orderID(args[0])
		if err != nil {
			return err
		}
		if err := a.svc.CancelOrder(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(orderCancelCmd.OutOrStdout(), "Order %d cancelled.\n", id)
		return nil
	})

	orderOpenCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		orders, err := a.svc.OpenOrders(ctx)
		if err != nil {
			return err
		}
		return printJSON(orderOpenCmd, orders)
	})

	orderCmd.AddCommand(orderStatusCmd, orderOpenCmd, orderCancelCmd)
	rootCmd.AddCommand(buyCmd, sellCmd, orderCmd)
}

func orderID(s string) (int64, error) {
	id, err := goutil.ToInt(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", s)
	}
	return int64(id), nil
}
