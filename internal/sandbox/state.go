package sandbox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a sandbox account holder.
type User struct {
	Email    string            `yaml:"email"`
	Password string            `yaml:"password"`
	TFA      string            `yaml:"tfa"`
	Balances map[string]string `yaml:"balances"`
}

// Address is an address book entry.
type Address struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
}

// Withdrawal is a queued withdrawal.
type Withdrawal struct {
	ID        string    `json:"id"`
	Asset     string    `json:"asset"`
	Volume    string    `json:"volume"`
	Fee       string    `json:"fee"`
	Address   string    `json:"address"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is a buy or sell order. Orders priced through the last trade
// fill at once; the rest stay open with their funds reserved.
type Order struct {
	ID           int64     `json:"id"`
	Side         string    `json:"side"`
	CurrencyPair string    `json:"currency_pair"`
	Amount       string    `json:"amount"`
	Price        string    `json:"price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`

	reserved      *big.Rat
	reservedAsset string
}

// Transaction is an account history entry. Codes follow the backend:
// PI/PO for fiat in and out, FI/FO for crypto, BY/SL for fills.
type Transaction struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	BaseAsset        string    `json:"baseAsset"`
	BaseAssetVolume  string    `json:"baseAssetVolume"`
	QuoteAsset       string    `json:"quoteAsset,omitempty"`
	QuoteAssetVolume string    `json:"quoteAssetVolume,omitempty"`
	Fee              string    `json:"fee"`
	FeeAsset         string    `json:"feeAsset,omitempty"`
	Status           string    `json:"status"`
	Description      string    `json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// DepositDetails tells a user where to send funds.
type DepositDetails struct {
	Asset         string `json:"asset"`
	Address       string `json:"address,omitempty"`
	AccountName   string `json:"accountName,omitempty"`
	SortCode      string `json:"sortCode,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	Reference     string `json:"reference,omitempty"`
}

const (
	bech32Chars = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
	base58Chars = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	hexChars    = "0123456789abcdef"
	refChars    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type account struct {
	user         User
	balances     map[string]*big.Rat
	addresses    map[string][]Address
	withdrawals  []Withdrawal
	orders       map[int64]*Order
	transactions []Transaction
	deposits     map[string]DepositDetails
}

func newAccount(u User) (*account, error) {
	a := &account{
		user:      u,
		balances:  make(map[string]*big.Rat),
		addresses: make(map[string][]Address),
		orders:    make(map[int64]*Order),
		deposits:  make(map[string]DepositDetails),
	}
	for asset, v := range u.Balances {
		r, ok := parseAmount(v)
		if !ok {
			return nil, fmt.Errorf("invalid balance %q for %s", v, asset)
		}
		a.balances[strings.ToUpper(asset)] = r
	}
	return a, nil
}

func (a *account) balance(asset string) *big.Rat {
	if b, ok := a.balances[asset]; ok {
		return b
	}
	b := new(big.Rat)
	a.balances[asset] = b
	return b
}

func (a *account) balanceView() map[string]string {
	out := make(map[string]string, len(a.balances))
	for asset, v := range a.balances {
		out[asset] = formatAmount(v)
	}
	return out
}

func (a *account) findAddress(asset, ref string) (Address, bool) {
	for _, addr := range a.addresses[asset] {
		if addr.UUID == ref || addr.Address == ref {
			return addr, true
		}
	}
	return Address{}, false
}

func (a *account) deleteAddress(id string) bool {
	for asset, entries := range a.addresses {
		for i, entry := range entries {
			if entry.UUID == id {
				a.addresses[asset] = append(entries[:i:i], entries[i+1:]...)
				return true
			}
		}
	}
	return false
}

func (a *account) record(tx Transaction) {
	tx.ID = uuid.NewString()
	if tx.Status == "" {
		tx.Status = "completed"
	}
	if tx.Fee == "" {
		tx.Fee = "0"
	}
	tx.CreatedAt = time.Now().UTC()
	a.transactions = append(a.transactions, tx)
}

// history returns transactions newest first.
func (a *account) history() []Transaction {
	out := make([]Transaction, len(a.transactions))
	for i, tx := range a.transactions {
		out[len(out)-1-i] = tx
	}
	return out
}

// depositDetails returns the account's deposit destination for asset,
// allocating one on first use.
func (a *account) depositDetails(asset string) (DepositDetails, bool) {
	if d, ok := a.deposits[asset]; ok {
		return d, true
	}
	d := DepositDetails{Asset: asset}
	switch asset {
	case "BTC":
		d.Address = "tb1q" + randomString(bech32Chars, 38)
	case "LTC":
		d.Address = "ltc1q" + randomString(bech32Chars, 38)
	case "ETH":
		d.Address = "0x" + randomString(hexChars, 40)
	case "XRP":
		d.Address = "r" + randomString(base58Chars, 33)
	case "GBP":
		d.AccountName = "Solidi Sandbox Ltd"
		d.SortCode = "040511"
		d.AccountNumber = "71234567"
		d.Reference = "SBX" + randomString(refChars, 8)
	default:
		return DepositDetails{}, false
	}
	a.deposits[asset] = d
	return d, true
}

func (a *account) sortedOrders() []*Order {
	out := make([]*Order, 0, len(a.orders))
	for _, o := range a.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// parseAmount accepts positive or zero decimal strings.
func parseAmount(s string) (*big.Rat, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "eE/") {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() < 0 {
		return nil, false
	}
	return r, true
}

func formatAmount(r *big.Rat) string {
	s := r.FloatString(8)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func randomString(alphabet string, n int) string {
	size := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			panic(fmt.Sprintf("sandbox: crypto/rand failed: %v", err))
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b)
}

func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("sandbox: crypto/rand failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
