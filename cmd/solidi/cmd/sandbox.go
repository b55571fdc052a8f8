package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/solidifx/solidi-go/internal/sandbox"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run a local fake backend for development",
	Long: `Run an in-process fake of the backend. It verifies signatures and nonces
the same way the real backend does and keeps balances in memory.

The seeded user is demo@solidi.co with password demo-password. Point the
client at it with --scheme http --domain <addr>.

--users loads a YAML file with the sandbox configuration, for example:

  users:
    - email: alice@example.com
      password: secret
      tfa: "123456"
      balances: {BTC: "2", GBP: "500"}
  prices:
    BTC/GBP: "31000"`,
	Args: cobra.NoArgs,
}

func init() {
	sandboxCmd.Flags().String("addr", "", "listen address (default: sandbox_addr)")
	sandboxCmd.Flags().String("users", "", "YAML sandbox configuration")

	sandboxCmd.RunE = run(func(ctx context.Context, a *app, _ []string) error {
		cfg := sandbox.DefaultConfig()
		cfg.SigningDomain = a.cfg.SigningDomain
		if cfg.SigningDomain == "" {
			cfg.SigningDomain = a.cfg.Domain
		}

		if path, _ := sandboxCmd.Flags().GetString("users"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read sandbox config: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("failed to parse sandbox config: %w", err)
			}
		}

		addr, _ := sandboxCmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.SandboxAddr
		}

		srv, err := sandbox.New(cfg, a.log)
		if err != nil {
			return err
		}
		fmt.Fprintf(sandboxCmd.ErrOrStderr(), "sandbox listening on %s (signing domain %s)\n", addr, cfg.SigningDomain)
		return srv.ListenAndServe(ctx, addr)
	})
	rootCmd.AddCommand(sandboxCmd)
}
