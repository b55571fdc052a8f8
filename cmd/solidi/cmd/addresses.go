package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/internal/solidi"
)

var addressesCmd = &cobra.Command{
	Use:   "addresses <asset>",
	Short: "List address book entries for an asset",
	Args:  cobra.ExactArgs(1),
}

var addressesAddCmd = &cobra.Command{
	Use:   "add <asset> <type>",
	Short: "Add an address book entry",
	Long: `Add an address book entry. Type is CRYPTO_UNHOSTED, CRYPTO_HOSTED or BANK.

Examples:
  solidi addresses add BTC CRYPTO_UNHOSTED --name cold --address tb1q...
  solidi addresses add GBP BANK --name main --sort-code 123456 --account-number 12345678`,
	Args: cobra.ExactArgs(2),
}

var addressesDeleteCmd = &cobra.Command{
	Use:   "delete <uuid>",
	Short: "Remove an address book entry",
	Args:  cobra.ExactArgs(1),
}

func init() {
	addressesCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		book, err := a.svc.AddressBook(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(addressesCmd, book)
	})

	f := addressesAddCmd.Flags()
	f.String("name", "", "label for the entry")
	f.String("address", "", "crypto address")
	f.String("sort-code", "", "bank sort code")
	f.String("account-number", "", "bank account number")
	_ = addressesAddCmd.MarkFlagRequired("name")

	addressesAddCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		var entry solidi.AddressEntry
		entry.Name, _ = f.GetString("name")
		entry.Address, _ = f.GetString("address")
		entry.SortCode, _ = f.GetString("sort-code")
		entry.AccountNumber, _ = f.GetString("account-number")

		id, err := a.svc.AddAddress(ctx, args[0], args[1], entry)
		if err != nil {
			return err
		}
		fmt.Fprintln(addressesAddCmd.OutOrStdout(), id)
		return nil
	})

	addressesDeleteCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		if err := a.svc.DeleteAddress(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(addressesDeleteCmd.OutOrStdout(), "Address %s deleted.\n", args[0])
		return nil
	})

	addressesCmd.AddCommand(addressesAddCmd, addressesDeleteCmd)
	rootCmd.AddCommand(addressesCmd)
}
