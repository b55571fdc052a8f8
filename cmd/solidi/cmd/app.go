package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/solidifx/solidi-go/internal/client"
	"github.com/solidifx/solidi-go/internal/config"
	"github.com/solidifx/solidi-go/internal/credentials"
	"github.com/solidifx/solidi-go/internal/solidi"
	"github.com/solidifx/solidi-go/internal/store"
	"github.com/solidifx/solidi-go/pkg/api"
	"github.com/solidifx/solidi-go/pkg/events"
	"github.com/solidifx/solidi-go/pkg/logger"
)

const passphraseEnv = "SOLIDI_VAULT_PASSPHRASE"

// app is everything a command needs, wired from the loaded configuration.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	bus     events.EventBus
	creds   credentials.Provider
	store   credentials.Store
	db      *store.Store
	nonces  *store.NonceGenerator
	journal *store.Journal
	client  *client.Client
	svc     *solidi.Service
	trace   io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg: cfg,
		log: logger.New(cfg.Logger("cli", Version)),
	}
	a.bus = events.NewBus("solidi", a.log)

	if trace, _ := cmd.Flags().GetBool("trace"); trace {
		a.trace = cmd.ErrOrStderr()
		if err := subscribeTrace(a.bus, a.trace); err != nil {
			return nil, err
		}
	}

	switch cfg.CredentialsBackend {
	case config.CredentialsEnv:
		a.creds = credentials.Static{APIKey: cfg.APIKey, APISecret: cfg.APISecret}
	case config.CredentialsVault:
		vault := credentials.NewVaultStore(cfg.CredentialsPath, promptPassphrase(cmd))
		a.creds, a.store = vault, vault
	default:
		file := credentials.NewFileStore(cfg.CredentialsPath)
		a.creds, a.store = file, file
	}

	opts := []client.Option{client.WithEventBus(a.bus)}
	if cfg.NonceStore == config.NonceStoreSQLite {
		dbCfg := store.DefaultConfig()
		dbCfg.Path = cfg.NonceDBPath
		db, err := store.Open(dbCfg, a.log)
		if err != nil {
			return nil, fmt.Errorf("failed to open state database: %w", err)
		}
		a.db = db
		a.nonces = store.NewNonceGenerator(db, nil)
		a.journal = store.NewJournal(db)
		opts = append(opts, client.WithNonceGenerator(a.nonces), client.WithJournal(a.journal))
	}

	c, err := client.New(cfg.Client(), a.creds, a.log, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = c
	a.svc = solidi.New(c, a.store, a.log, solidi.WithOrigin(solidi.Origin{
		ClientType:     "cli",
		OS:             runtime.GOOS,
		AppVersion:     Version,
		AppBuildNumber: BuildNumber,
		AppTier:        cfg.AppTier,
	}))
	return a, nil
}

// Close releases the state database. With --trace it first reports the
// event bus health.
func (a *app) Close() {
	if a.bus != nil {
		if a.trace != nil {
			h := a.bus.Health()
			fmt.Fprintf(a.trace, "[bus] %s subscribers=%d published=%v", h.Status, h.Subscribers, h.Metadata["published"])
			if h.LastError != "" {
				fmt.Fprintf(a.trace, " last_error=%q", h.LastError)
			}
			fmt.Fprintln(a.trace)
		}
		_ = a.bus.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close state database", "error", err)
		}
	}
}

// run wires the app for one command invocation.
func run(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, args)
	}
}

func (a *app) requireJournal() error {
	if a.journal == nil {
		return fmt.Errorf("the request journal needs nonce_store: %s", config.NonceStoreSQLite)
	}
	return nil
}

func subscribeTrace(bus events.EventBus, w io.Writer) error {
	handler := events.CreateTypedHandler(func(_ context.Context, e *events.CallEvent) error {
		status := "ok"
		if e.Err != nil {
			status = e.ErrorKind + ": " + e.Err.Error()
		}
		fmt.Fprintf(w, "[%s] %s %s attempt=%d nonce=%d http=%d %s (%s)\n",
			e.Type(), e.Method, e.Route, e.Attempt, e.Nonce, e.StatusCode, e.Duration, status)
		return nil
	})
	for _, t := range []string{events.TypeCallCompleted, events.TypeCallFailed, events.TypeNonceRetried} {
		if _, err := bus.SubscribeWithPriority(t, handler, events.PriorityHigh); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", t, err)
		}
	}
	return nil
}

// promptPassphrase reads the vault passphrase from SOLIDI_VAULT_PASSPHRASE
// or, failing that, from the terminal.
func promptPassphrase(cmd *cobra.Command) credentials.PassphraseFunc {
	return func() ([]byte, error) {
		if p := os.Getenv(passphraseEnv); p != "" {
			return []byte(p), nil
		}
		return readSecret(cmd, "Vault passphrase: ")
	}
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret(cmd *cobra.Command, prompt string) ([]byte, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return b, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResponse prints the data field, or the whole envelope when there is
// no data.
func printResponse(cmd *cobra.Command, resp *api.Response) error {
	if resp == nil {
		return nil
	}
	if len(resp.Data) > 0 {
		return printJSON(cmd, resp.Data)
	}
	return printJSON(cmd, json.RawMessage(resp.Raw))
}
