package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var helloCmd = &cobra.Command{
	Use:   "hello",
	Short: "Check connectivity with the backend",
	Args:  cobra.NoArgs,
}

func init() {
	helloCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		info, err := a.svc.Hello(ctx)
		if err != nil {
			return err
		}
		return printJSON(helloCmd, info)
	})
	rootCmd.AddCommand(helloCmd)
}
