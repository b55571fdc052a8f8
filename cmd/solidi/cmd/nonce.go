package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/pkg/api"
)

var nonceCmd = &cobra.Command{
	Use:   "nonce",
	Short: "Inspect the persisted nonce high-water marks",
}

var nonceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the last nonce used per API key",
	Args:  cobra.NoArgs,
}

var nonceResetCmd = &cobra.Command{
	Use:   "reset <api-key>",
	Short: "Forget the last nonce for an API key",
	Long: `Forget the last nonce for an API key. Later nonces fall back to the
current time in microseconds, which the backend accepts as long as the
clock has not gone backwards.`,
	Args: cobra.ExactArgs(1),
}

func init() {
	nonceListCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		if a.nonces == nil {
			return fmt.Errorf("nonces are only persisted with nonce_store: sqlite")
		}
		records, err := a.nonces.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(nonceListCmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "API KEY\tLAST NONCE\tUPDATED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%d\t%s\n", api.ShortKey(r.APIKey), r.LastNonce, r.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	})

	nonceResetCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		if a.nonces == nil {
			return fmt.Errorf("nonces are only persisted with nonce_store: sqlite")
		}
		return a.nonces.Reset(ctx, args[0])
	})

	nonceCmd.AddCommand(nonceListCmd, nonceResetCmd)
	rootCmd.AddCommand(nonceCmd)
}
