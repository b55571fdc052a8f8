// Package cmd implements the solidi command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solidifx/solidi-go/internal/config"
)

// Version and BuildNumber are set at build time.
var (
	Version     = "dev"
	BuildNumber = "0"
)

var (
	configPath string
	loader     = config.NewLoader()
)

var rootCmd = &cobra.Command{
	Use:   "solidi",
	Short: "Command line client for the Solidi exchange API",
	Long: `Command line client for the Solidi exchange API.

Public routes need no credentials. Private routes use the key pair saved
by 'solidi login', or SOLIDI_API_KEY / SOLIDI_API_SECRET with
credentials_backend set to env.

Configuration is read from .solidi.yaml in /etc/solidi, $HOME or the
working directory, then from SOLIDI_* environment variables, then from
flags.

Examples:
  # Check connectivity
  solidi hello

  # Log in and show balances
  solidi login you@example.com
  solidi balance

  # Run against a local sandbox
  solidi sandbox &
  solidi --scheme http --domain 127.0.0.1:8089 --signing-domain www.solidi.co hello`,
	SilenceUsage: true,
	Version:      Version,
}

// Execute runs the root command with a context canceled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default: .solidi.yaml in /etc/solidi, $HOME or .)")
	flags.String("domain", "", "backend host name")
	flags.String("signing-domain", "", "host name covered by request signatures")
	flags.String("scheme", "", "https or http")
	flags.String("log-level", "", "trace, debug, info, warn or error")
	flags.String("log-format", "", "text or json")
	flags.Duration("timeout", 0, "per-request timeout")
	flags.Bool("trace", false, "print every API call event to stderr")

	v := loader.Viper()
	for key, flag := range map[string]string{
		"domain":         "domain",
		"signing_domain": "signing-domain",
		"scheme":         "scheme",
		"log_level":      "log-level",
		"log_format":     "log-format",
		"timeout":        "timeout",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return loader.LoadWithPath(configPath)
	}
	return loader.Load()
}
