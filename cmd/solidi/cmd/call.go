package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/pkg/api"
)

var callCmd = &cobra.Command{
	Use:   "call <route>",
	Short: "Issue a raw public or private API call",
	Long: `Issue a raw API call and print the data field.

Examples:
  solidi call hello --method GET
  solidi call ticker/BTC_GBP --method GET
  solidi call balance --private
  solidi call withdraw/BTC --private --params '{"volume":"0.001","address":"tb1q...","priority":"normal"}'`,
	Args: cobra.ExactArgs(1),
}

var signCmd = &cobra.Command{
	Use:   "sign <route>",
	Short: "Print the signed wire form of a private call without sending it",
	Args:  cobra.ExactArgs(1),
}

func init() {
	for _, c := range []*cobra.Command{callCmd, signCmd} {
		c.Flags().String("method", "POST", "HTTP method")
		c.Flags().String("params", "", "JSON object of parameters")
		c.Flags().String("api-version", "", "API version override (v0, v1, v2)")
	}
	callCmd.Flags().Bool("private", false, "sign the call with the saved API key pair")
	callCmd.Flags().Bool("mutating", false, "treat the call as non-idempotent")

	callCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		req, err := requestFromFlags(callCmd, args[0])
		if err != nil {
			return err
		}
		req.Mutating, _ = callCmd.Flags().GetBool("mutating")

		call := a.client.PublicMethod
		if private, _ := callCmd.Flags().GetBool("private"); private {
			call = a.client.PrivateMethod
		}
		resp, err := call(ctx, req)
		if err != nil {
			return err
		}
		return printResponse(callCmd, resp)
	})

	signCmd.RunE = run(func(ctx context.Context, a *app, args []string) error {
		req, err := requestFromFlags(signCmd, args[0])
		if err != nil {
			return err
		}
		signed, err := a.client.SignRequest(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(signCmd, map[string]any{
			"method":    signed.Method,
			"url":       signed.URL,
			"body":      string(signed.Body),
			"nonce":     signed.Nonce,
			"signature": signed.Signature,
		})
	})

	rootCmd.AddCommand(callCmd, signCmd)
}

func requestFromFlags(cmd *cobra.Command, route string) (api.Request, error) {
	method, _ := cmd.Flags().GetString("method")
	version, _ := cmd.Flags().GetString("api-version")
	raw, _ := cmd.Flags().GetString("params")

	params := api.Params{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return api.Request{}, fmt.Errorf("--params must be a JSON object: %w", err)
		}
	}
	return api.Request{HTTPMethod: method, APIRoute: route, Params: params, Version: version}, nil
}
