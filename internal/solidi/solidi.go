// Package solidi provides typed wrappers for the backend routes on top of
// the signed client.
package solidi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"strings"

	"github.com/solidifx/solidi-go/internal/credentials"
	"github.com/solidifx/solidi-go/pkg/api"
	"github.com/solidifx/solidi-go/pkg/errors"
	"github.com/solidifx/solidi-go/pkg/logger"
)

// ErrTFARequired is returned by Login when the account needs a two-factor
// code and none, or a wrong one, was given.
var ErrTFARequired = stderrors.New("two-factor authentication code required")

// Caller issues raw API calls. *client.Client implements it.
type Caller interface {
	PublicMethod(ctx context.Context, req api.Request) (*api.Response, error)
	PrivateMethod(ctx context.Context, req api.Request) (*api.Response, error)
}

// Service exposes the backend routes as typed methods.
type Service struct {
	api    Caller
	store  credentials.Store
	origin Origin
	logger *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithOrigin sets the application identity sent on login.
func WithOrigin(o Origin) Option {
	return func(s *Service) { s.origin = o }
}

// DefaultOrigin identifies an unversioned command line client.
func DefaultOrigin() Origin {
	return Origin{
		ClientType:     "cli",
		OS:             runtime.GOOS,
		AppVersion:     "dev",
		AppBuildNumber: "0",
		AppTier:        "prod",
	}
}

// New creates a Service. store receives credentials on Login and is
// cleared on Logout; it may be nil when neither is used.
func New(caller Caller, store credentials.Store, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		api:    caller,
		store:  store,
		origin: DefaultOrigin(),
		logger: log.WithComponent("solidi"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hello checks connectivity.
func (s *Service) Hello(ctx context.Context) (*HelloInfo, error) {
	resp, err := s.api.PublicMethod(ctx, api.Request{HTTPMethod: "GET", APIRoute: "hello"})
	if err != nil {
		return nil, err
	}
	return decode[*HelloInfo](resp, "hello")
}

// Ticker returns the price of pair, given as BTC/GBP or btc_gbp.
func (s *Service) Ticker(ctx context.Context, pair string) (*Ticker, error) {
	route := "ticker/" + url.PathEscape(pairRoute(pair))
	resp, err := s.api.PublicMethod(ctx, api.Request{HTTPMethod: "GET", APIRoute: route})
	if err != nil {
		return nil, err
	}
	return decode[*Ticker](resp, "ticker")
}

// Login exchanges an email and password for an API key pair and saves it
// in the credential store. tfa may be empty for accounts without two-factor
// authentication.
func (s *Service) Login(ctx context.Context, email, password, tfa string) (api.Credentials, error) {
	if s.store == nil {
		return api.Credentials{}, fmt.Errorf("login: no credential store configured")
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return api.Credentials{}, errors.NewValidationError("email and password are required", 0)
	}

	resp, err := s.api.PublicMethod(ctx, api.Request{
		HTTPMethod: "POST",
		APIRoute:   "login_mobile/" + url.PathEscape(email),
		Params: api.Params{
			"password":       password,
			"tfa":            tfa,
			"optionalParams": map[string]any{"origin": s.origin},
		},
	})
	if err != nil {
		if tfaRequired(resp) {
			return api.Credentials{}, ErrTFARequired
		}
		return api.Credentials{}, err
	}

	creds, err := decode[api.Credentials](resp, "login")
	if err != nil {
		return api.Credentials{}, err
	}
	if !creds.Valid() {
		return api.Credentials{}, errors.NewUnknownBackendError(errors.ErrCodeDecode,
			"login response carried no credentials", resp.StatusCode, string(resp.Raw), nil)
	}
	if err := s.store.Save(ctx, creds); err != nil {
		return api.Credentials{}, fmt.Errorf("failed to save credentials: %w", err)
	}

	s.logger.InfoContext(ctx, "logged in", slog.String("api_key_id", creds.KeyID()))
	return creds, nil
}

// Logout forgets the stored credentials.
func (s *Service) Logout(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	s.logger.InfoContext(ctx, "logged out")
	return nil
}

// Balance returns the account balances.
func (s *Service) Balance(ctx context.Context) (Balances, error) {
	return private[Balances](ctx, s, api.Request{APIRoute: "balance"})
}

// Fees returns the withdrawal fees for every asset.
func (s *Service) Fees(ctx context.Context) (Fees, error) {
	return private[Fees](ctx, s, api.Request{APIRoute: "fee"})
}

// AddressBook lists saved destinations for asset.
func (s *Service) AddressBook(ctx context.Context, asset string) ([]Address, error) {
	out, err := private[struct {
		Addresses []Address `json:"addresses"`
	}](ctx, s, api.Request{APIRoute: "addressBook/" + assetCode(asset)})
	if err != nil {
		return nil, err
	}
	return out.Addresses, nil
}

// DeleteAddress removes an address book entry by UUID.
func (s *Service) DeleteAddress(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.NewValidationError("address book entry id is required", 0)
	}
	_, err := s.api.PrivateMethod(ctx, api.Request{
		APIRoute: "addressBook/delete/" + url.PathEscape(id),
		Mutating: true,
	})
	return err
}

// AddAddress saves a destination under asset with addrType such as
// CRYPTO_UNHOSTED or BANK, returning the new entry's UUID.
func (s *Service) AddAddress(ctx context.Context, asset, addrType string, entry AddressEntry) (string, error) {
	params := api.Params{"name": entry.Name}
	if entry.Address != "" {
		params["address"] = entry.Address
	}
	if entry.SortCode != "" {
		params["sortCode"] = entry.SortCode
	}
	if entry.AccountNumber != "" {
		params["accountNumber"] = entry.AccountNumber
	}

	out, err := private[struct {
		UUID string `json:"uuid"`
	}](ctx, s, api.Request{
		APIRoute: fmt.Sprintf("addressBook/%s/%s", assetCode(asset), strings.ToUpper(addrType)),
		Params:   params,
		Mutating: true,
	})
	if err != nil {
		return "", err
	}
	return out.UUID, nil
}

// Withdraw queues a withdrawal. A timeout or dropped connection yields an
// ambiguous NetworkError; check Withdrawals before trying again.
func (s *Service) Withdraw(ctx context.Context, asset string, req WithdrawRequest) (*WithdrawResult, error) {
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}
	return private[*WithdrawResult](ctx, s, api.Request{
		APIRoute: "withdraw/" + assetCode(asset),
		Params: api.Params{
			"volume":   req.Volume,
			"address":  req.Address,
			"priority": priority,
		},
		Mutating: true,
	})
}

// DepositDetails returns where to send funds of asset. The backend keeps
// them stable, so repeated calls return the same destination.
func (s *Service) DepositDetails(ctx context.Context, asset string) (*DepositDetails, error) {
	return private[*DepositDetails](ctx, s, api.Request{APIRoute: "deposit_details/" + assetCode(asset)})
}

// Withdrawals lists past withdrawals. It is read-only and safe to repeat.
func (s *Service) Withdrawals(ctx context.Context) ([]Withdrawal, error) {
	return private[[]Withdrawal](ctx, s, api.Request{APIRoute: "withdrawals"})
}

// Buy places a buy order.
func (s *Service) Buy(ctx context.Context, req OrderRequest) (*Order, error) {
	return s.order(ctx, "buy", req)
}

// Sell places a sell order.
func (s *Service) Sell(ctx context.Context, req OrderRequest) (*Order, error) {
	return s.order(ctx, "sell", req)
}

func (s *Service) order(ctx context.Context, side string, req OrderRequest) (*Order, error) {
	return private[*Order](ctx, s, api.Request{
		APIRoute: side,
		Params: api.Params{
			"amount":        req.Amount,
			"price":         req.Price,
			"currency_pair": strings.ToLower(pairRoute(req.CurrencyPair)),
		},
		Mutating: true,
	})
}

// Quote asks for the best price of a trade before placing it. Basis
// defaults to base.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	base, quote, ok := strings.Cut(pairRoute(req.Pair), "_")
	if !ok || base == "" || quote == "" {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid currency pair %q", req.Pair), 0)
	}
	side := strings.ToUpper(strings.TrimSpace(req.Side))
	if side != "BUY" && side != "SELL" {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid side %q: must be BUY or SELL", req.Side), 0)
	}
	basis := strings.ToLower(strings.TrimSpace(req.Basis))
	if basis == "" {
		basis = "base"
	}
	if basis != "base" && basis != "quote" {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid basis %q: must be base or quote", req.Basis), 0)
	}
	volume := strings.TrimSpace(req.Volume)
	if volume == "" {
		return nil, errors.NewValidationError("volume is required", 0)
	}

	route := fmt.Sprintf("best_volume_price/%s/%s/%s/%s/%s", base, quote, side, basis, url.PathEscape(volume))
	resp, err := s.api.PublicMethod(ctx, api.Request{HTTPMethod: "GET", APIRoute: route})
	if err != nil {
		return nil, err
	}
	return decode[*Quote](resp, "best_volume_price")
}

// OpenOrders lists orders that are resting on the book.
func (s *Service) OpenOrders(ctx context.Context) ([]Order, error) {
	return private[[]Order](ctx, s, api.Request{APIRoute: "open_orders"})
}

// Transactions returns the account history, newest first.
func (s *Service) Transactions(ctx context.Context, q TransactionQuery) ([]Transaction, error) {
	params := api.Params{"search": []any{map[string]any{}}}
	if q.Limit > 0 {
		params["limit"] = q.Limit
	}
	if q.Offset > 0 {
		params["offset"] = q.Offset
	}
	out, err := private[struct {
		Txns []Transaction `json:"txns"`
	}](ctx, s, api.Request{APIRoute: "transaction", Params: params})
	if err != nil {
		return nil, err
	}
	return out.Txns, nil
}

// OrderStatus returns an order by id.
func (s *Service) OrderStatus(ctx context.Context, id int64) (*Order, error) {
	return private[*Order](ctx, s, api.Request{APIRoute: fmt.Sprintf("order_status/%d", id)})
}

// CancelOrder cancels an open order.
func (s *Service) CancelOrder(ctx context.Context, id int64) error {
	_, err := s.api.PrivateMethod(ctx, api.Request{
		APIRoute: "cancel_order",
		Params:   api.Params{"id": id},
		Mutating: true,
	})
	return err
}

func private[T any](ctx context.Context, s *Service, req api.Request) (T, error) {
	resp, err := s.api.PrivateMethod(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](resp, req.Route())
}

func decode[T any](resp *api.Response, route string) (T, error) {
	if resp == nil {
		var zero T
		return zero, errors.NewUnknownBackendError(errors.ErrCodeDecode,
			fmt.Sprintf("empty %s response", route), 0, "", nil)
	}
	out, err := api.Decode[T](resp)
	if err != nil {
		return out, errors.NewUnknownBackendError(errors.ErrCodeDecode,
			fmt.Sprintf("unexpected %s response", route), resp.StatusCode, string(resp.Raw), err)
	}
	return out, nil
}

// tfaRequired reports whether a login error object asks for a 2FA code.
func tfaRequired(resp *api.Response) bool {
	if resp == nil || !resp.HasError() {
		return false
	}
	var e struct {
		Details struct {
			TFARequired bool `json:"tfa_required"`
		} `json:"details"`
	}
	if err := json.Unmarshal(resp.Error, &e); err != nil {
		return false
	}
	return e.Details.TFARequired
}

func pairRoute(pair string) string {
	return strings.ToUpper(strings.NewReplacer("/", "_", "-", "_").Replace(strings.TrimSpace(pair)))
}

func assetCode(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
