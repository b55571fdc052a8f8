package solidi

import "time"

// HelloInfo is returned by the hello route.
type HelloInfo struct {
	Message    string `json:"message"`
	APIVersion string `json:"api_version"`
	ServerTime string `json:"server_time"`
}

// Ticker is the last price of a currency pair.
type Ticker struct {
	Pair  string `json:"pair"`
	Price string `json:"price"`
	Bid   string `json:"bid"`
	Ask   string `json:"ask"`
}

// Balances maps an asset code to its available balance as a decimal string.
type Balances map[string]string

// FeeLevels are the withdrawal fees for one asset by priority.
type FeeLevels struct {
	Low    string `json:"lowFee"`
	Normal string `json:"normalFee"`
	High   string `json:"highFee"`
}

// AssetFees groups the fees charged for an asset.
type AssetFees struct {
	Withdraw FeeLevels `json:"withdraw"`
}

// Fees maps an asset code to its fees.
type Fees map[string]AssetFees

// For returns the withdrawal fee for asset at priority.
func (f Fees) For(asset, priority string) (string, bool) {
	af, ok := f[asset]
	if !ok {
		return "", false
	}
	switch priority {
	case "low":
		return af.Withdraw.Low, true
	case "", "normal":
		return af.Withdraw.Normal, true
	case "high":
		return af.Withdraw.High, true
	}
	return "", false
}

// Address is an address book entry.
type Address struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
}

// AddressEntry describes a new address book entry. Crypto destinations set
// Address; bank destinations set SortCode and AccountNumber.
type AddressEntry struct {
	Name          string
	Address       string
	SortCode      string
	AccountNumber string
}

// WithdrawRequest is a withdrawal instruction. Address may be a raw
// destination or the UUID of an address book entry.
type WithdrawRequest struct {
	Volume   string
	Address  string
	Priority string
}

// WithdrawResult acknowledges a queued withdrawal.
type WithdrawResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Withdrawal is a past withdrawal as reported by the backend.
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

// OrderRequest is a limit order. CurrencyPair uses the backend form such
// as btc_gbp.
type OrderRequest struct {
	Amount       string
	Price        string
	CurrencyPair string
}

// Order is an order as reported by the backend.
type Order struct {
	ID           int64     `json:"id"`
	Side         string    `json:"side"`
	CurrencyPair string    `json:"currency_pair"`
	Amount       string    `json:"amount"`
	Price        string    `json:"price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Origin identifies the client application to the backend on login.
type Origin struct {
	ClientType     string `json:"clientType"`
	OS             string `json:"os"`
	AppVersion     string `json:"appVersion"`
	AppBuildNumber string `json:"appBuildNumber"`
	AppTier        string `json:"appTier"`
}

// DepositDetails tells a user where to send funds. Crypto assets carry an
// Address; GBP carries bank details and a payment reference.
type DepositDetails struct {
	Asset         string `json:"asset"`
	Address       string `json:"address,omitempty"`
	AccountName   string `json:"accountName,omitempty"`
	SortCode      string `json:"sortCode,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	Reference     string `json:"reference,omitempty"`
}

// QuoteRequest asks what Volume of one side of Pair is worth. Side is BUY
// or SELL; Basis says whether Volume is in the base or the quote asset.
type QuoteRequest struct {
	Pair   string
	Side   string
	Basis  string
	Volume string
}

// Quote is the best available price for a QuoteRequest. Price is the volume
// of the other asset: GBP for a base-denominated request, the base asset
// for a quote-denominated one.
type Quote struct {
	Price string `json:"price"`
}

// Transaction is one entry of the account history. Code is PI/PO for fiat
// payments in and out, FI/FO for crypto funds in and out, BY and SL for
// trades.
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

// TransactionQuery pages through the history. Zero values use the
// backend defaults.
type TransactionQuery struct {
	Limit  int
	Offset int
}
