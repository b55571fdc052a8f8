// Package sandbox is an in-process fake of the Solidi REST backend. It speaks
// the same wire protocol as production: {data}/{error} envelopes, API-Key and
// API-Sign headers and per-key nonce checks.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/solidifx/solidi-go/pkg/api"
	"github.com/solidifx/solidi-go/pkg/logger"
)

// Config configures the sandbox.
type Config struct {
	SigningDomain string `yaml:"signing_domain"`
	APIPrefix     string `yaml:"api_prefix"`
	Users         []User `yaml:"users"`
	// Prices maps a currency pair such as BTC/GBP to its last price.
	Prices map[string]string `yaml:"prices"`
}

// DefaultConfig returns a sandbox with one funded demo user.
func DefaultConfig() Config {
	return Config{
		SigningDomain: "www.solidi.co",
		APIPrefix:     "api2",
		Users: []User{{
			Email:    "demo@solidi.co",
			Password: "demo-password",
			Balances: map[string]string{"BTC": "1", "ETH": "10", "GBP": "10000"},
		}},
		Prices: map[string]string{
			"BTC/GBP": "30000",
			"ETH/GBP": "2000",
			"LTC/GBP": "70",
			"XRP/GBP": "0.5",
		},
	}
}

// Server is the fake backend.
type Server struct {
	cfg    Config
	router *mux.Router
	logger *logger.Logger

	mu        sync.Mutex
	users     map[string]*account // by email
	keys      map[string]keyPair  // by API key
	lastNonce map[string]int64
	nextOrder int64
	faults    faults
}

type keyPair struct {
	secret  string
	account *account
}

// New creates a sandbox server.
func New(cfg Config, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "api2"
	}
	if cfg.SigningDomain == "" {
		return nil, errors.New("sandbox: signing domain is required")
	}

	s := &Server{
		cfg:       cfg,
		router:    mux.NewRouter(),
		logger:    log.WithComponent("sandbox"),
		users:     make(map[string]*account),
		keys:      make(map[string]keyPair),
		lastNonce: make(map[string]int64),
		nextOrder: 7000,
		faults:    newFaults(),
	}
	for _, u := range cfg.Users {
		acct, err := newAccount(u)
		if err != nil {
			return nil, fmt.Errorf("sandbox: user %s: %w", u.Email, err)
		}
		s.users[strings.ToLower(u.Email)] = acct
	}

	s.setupRoutes()
	return s, nil
}

// Handler returns the HTTP handler, for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	base := s.router.PathPrefix("/" + strings.Trim(s.cfg.APIPrefix, "/") + "/{version}").Subrouter()

	base.HandleFunc("/hello", s.handleHello).Methods(http.MethodGet, http.MethodPost)
	base.HandleFunc("/ticker", s.handleTickers).Methods(http.MethodGet)
	base.HandleFunc("/ticker/{pair}", s.handleTicker).Methods(http.MethodGet)
	base.HandleFunc("/best_volume_price/{base}/{quote}/{side}/{basis}/{volume}", s.handleQuote).Methods(http.MethodGet)
	base.HandleFunc("/login_mobile/{email}", s.handleLogin).Methods(http.MethodPost)

	private := base.NewRoute().Subrouter()
	private.Use(s.authMiddleware)
	private.HandleFunc("/balance", s.handleBalance).Methods(http.MethodPost, http.MethodGet)
	private.HandleFunc("/fee", s.handleFees).Methods(http.MethodPost, http.MethodGet)
	private.HandleFunc("/addressBook/{asset}", s.handleAddressBook).Methods(http.MethodPost, http.MethodGet)
	// Registered ahead of {asset}/{type}, which would also match it.
	private.HandleFunc("/addressBook/delete/{uuid}", s.handleDeleteAddress).Methods(http.MethodPost)
	private.HandleFunc("/addressBook/{asset}/{type}", s.handleAddAddress).Methods(http.MethodPost)
	private.HandleFunc("/deposit_details/{asset}", s.handleDepositDetails).Methods(http.MethodPost, http.MethodGet)
	private.HandleFunc("/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	private.HandleFunc("/withdraw/{asset}", s.handleWithdraw).Methods(http.MethodPost)
	private.HandleFunc("/withdrawals", s.handleWithdrawals).Methods(http.MethodPost, http.MethodGet)
	private.HandleFunc("/buy", s.handleOrder("buy")).Methods(http.MethodPost)
	private.HandleFunc("/sell", s.handleOrder("sell")).Methods(http.MethodPost)
	private.HandleFunc("/order_status/{id}", s.handleOrderStatus).Methods(http.MethodPost, http.MethodGet)
	private.HandleFunc("/cancel_order", s.handleCancelOrder).Methods(http.MethodPost)
	private.HandleFunc("/open_orders", s.handleOpenOrders).Methods(http.MethodPost, http.MethodGet)
	private.HandleFunc("/transaction", s.handleTransactions).Methods(http.MethodPost, http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, api.Fail("Unknown API route: "+r.URL.Path))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, api.Fail("Method not allowed"))
	})

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.faultMiddleware)
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("sandbox listening", "addr", addr, "prefix", s.cfg.APIPrefix, "signing_domain", s.cfg.SigningDomain)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down sandbox: %w", err)
		}
		return nil
	}
}

// IssueCredentials creates a key pair for a seeded user without going
// through login.
func (s *Server) IssueCredentials(email string) (api.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.users[strings.ToLower(email)]
	if !ok {
		return api.Credentials{}, fmt.Errorf("sandbox: unknown user %s", email)
	}
	return s.issueLocked(acct), nil
}

func (s *Server) issueLocked(acct *account) api.Credentials {
	creds := api.Credentials{APIKey: randomToken(36), APISecret: randomToken(48)}
	s.keys[creds.APIKey] = keyPair{secret: creds.APISecret, account: acct}
	return creds
}

// LastNonce returns the highest nonce accepted for apiKey.
func (s *Server) LastNonce(apiKey string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastNonce[apiKey]
}

// Balance returns a user's balance for asset as a decimal string.
func (s *Server) Balance(email, asset string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.users[strings.ToLower(email)]
	if !ok {
		return ""
	}
	return formatAmount(acct.balance(strings.ToUpper(asset)))
}

// Deposit credits a user's balance as if funds had arrived from outside.
func (s *Server) Deposit(email, asset, amount string) error {
	v, ok := parseAmount(amount)
	if !ok || v.Sign() <= 0 {
		return fmt.Errorf("sandbox: invalid deposit amount %q", amount)
	}
	asset = strings.ToUpper(asset)

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.users[strings.ToLower(email)]
	if !ok {
		return fmt.Errorf("sandbox: unknown user %s", email)
	}
	bal := acct.balance(asset)
	bal.Add(bal, v)
	code := "FI"
	if asset == "GBP" {
		code = "PI"
	}
	acct.record(Transaction{
		Code:            code,
		BaseAsset:       asset,
		BaseAssetVolume: formatAmount(v),
		Description:     "Deposit",
	})
	return nil
}

// Withdrawals returns a copy of a user's withdrawals.
func (s *Server) Withdrawals(email string) []Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil
	}
	return append([]Withdrawal(nil), acct.withdrawals...)
}
