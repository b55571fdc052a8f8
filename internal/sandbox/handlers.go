package sandbox

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/goutil"
	"github.com/gorilla/mux"

	"github.com/solidifx/solidi-go/pkg/api"
)

var (
	// Loose per-asset address shapes; enough to reject obvious garbage.
	addressPatterns = map[string]*regexp.Regexp{
		"BTC": regexp.MustCompile(`^(bc1|tb1)[0-9a-z]{20,80}$|^[13mn2][1-9A-HJ-NP-Za-km-z]{25,34}$`),
		"ETH": regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`),
		"LTC": regexp.MustCompile(`^(ltc1)[0-9a-z]{20,80}$|^[LM3][1-9A-HJ-NP-Za-km-z]{25,34}$`),
		"XRP": regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`),
	}

	withdrawFees = map[string]map[string]string{
		"BTC": {"low": "0.00001", "normal": "0.00002", "high": "0.00005"},
		"ETH": {"low": "0.001", "normal": "0.002", "high": "0.004"},
		"LTC": {"low": "0.0001", "normal": "0.0002", "high": "0.0005"},
		"XRP": {"low": "0.02", "normal": "0.05", "high": "0.1"},
		"GBP": {"low": "0", "normal": "0.5", "high": "2"},
	}
)

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.OK(map[string]any{
		"message":     "Hello from the Solidi sandbox",
		"api_version": mux.Vars(r)["version"],
		"server_time": time.Now().UTC().Format(time.RFC3339),
	}))
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any, len(s.cfg.Prices))
	for pair, price := range s.cfg.Prices {
		out[pair] = map[string]string{"price": price}
	}
	writeJSON(w, http.StatusOK, api.OK(out))
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	pair := normalizePair(mux.Vars(r)["pair"])
	price, ok := s.cfg.Prices[pair]
	if !ok {
		writeJSON(w, http.StatusBadRequest, api.Fail("Unknown currency pair: "+pair))
		return
	}
	bid, ask := s.quotes(pair)
	writeJSON(w, http.StatusOK, api.OK(map[string]string{
		"pair":  pair,
		"price": price,
		"bid":   formatAmount(bid),
		"ask":   formatAmount(ask),
	}))
}

// quotes returns the bid and ask for a known pair, half a percent either
// side of the last price.
func (s *Server) quotes(pair string) (bid, ask *big.Rat) {
	p, _ := parseAmount(s.cfg.Prices[pair])
	spread := new(big.Rat).Mul(p, big.NewRat(1, 200))
	return new(big.Rat).Sub(p, spread), new(big.Rat).Add(p, spread)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pair := normalizePair(vars["base"] + "/" + vars["quote"])
	if _, ok := s.cfg.Prices[pair]; !ok {
		writeJSON(w, http.StatusBadRequest, api.Fail("Unknown currency pair: "+pair))
		return
	}
	bid, ask := s.quotes(pair)

	var px *big.Rat
	switch strings.ToUpper(vars["side"]) {
	case "BUY":
		px = ask
	case "SELL":
		px = bid
	default:
		writeJSON(w, http.StatusOK, api.Fail("Invalid side: must be BUY or SELL"))
		return
	}
	volume, ok := parseAmount(vars["volume"])
	if !ok || volume.Sign() <= 0 {
		writeJSON(w, http.StatusOK, api.Fail("Invalid volume"))
		return
	}

	var price *big.Rat
	switch strings.ToLower(vars["basis"]) {
	case "base":
		price = new(big.Rat).Mul(volume, px)
	case "quote":
		price = new(big.Rat).Quo(volume, px)
	default:
		writeJSON(w, http.StatusOK, api.Fail("Invalid basis: must be base or quote"))
		return
	}
	writeJSON(w, http.StatusOK, api.OK(map[string]string{"price": formatAmount(price)}))
}

type loginRequest struct {
	Password       string         `json:"password"`
	TFA            string         `json:"tfa"`
	OptionalParams map[string]any `json:"optionalParams"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(mux.Vars(r)["email"])

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, api.Fail("Invalid JSON payload"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.users[email]
	if !ok || acct.user.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, api.Fail("Invalid username or password"))
		return
	}
	if acct.user.TFA != "" && req.TFA != acct.user.TFA {
		writeJSON(w, http.StatusOK, map[string]any{"error": map[string]any{
			"code":    400,
			"message": "Two-factor authentication code required",
			"details": map[string]any{"tfa_required": true},
		}})
		return
	}

	writeJSON(w, http.StatusOK, api.OK(s.issueLocked(acct)))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)
	s.mu.Lock()
	view := acct.balanceView()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.OK(view))
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any, len(withdrawFees))
	for asset, fees := range withdrawFees {
		out[asset] = map[string]any{"withdraw": map[string]string{
			"lowFee":    fees["low"],
			"normalFee": fees["normal"],
			"highFee":   fees["high"],
		}}
	}
	writeJSON(w, http.StatusOK, api.OK(out))
}

func (s *Server) handleAddressBook(w http.ResponseWriter, r *http.Request) {
	asset := strings.ToUpper(mux.Vars(r)["asset"])
	acct := accountFrom(r)

	s.mu.Lock()
	addrs := append([]Address{}, acct.addresses[asset]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.OK(map[string]any{"addresses": addrs}))
}

func (s *Server) handleAddAddress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	asset := strings.ToUpper(vars["asset"])
	addrType := strings.ToUpper(vars["type"])
	params := paramsFrom(r)

	name := paramString(params, "name")
	address := paramString(params, "address")
	if name == "" {
		writeJSON(w, http.StatusOK, api.Fail("Missing required parameter: name"))
		return
	}
	if addrType == "BANK" {
		sortCode := paramString(params, "sortCode")
		account := paramString(params, "accountNumber")
		if len(sortCode) != 6 || len(account) != 8 {
			writeJSON(w, http.StatusOK, api.Fail("Invalid bank account details"))
			return
		}
		address = sortCode + ":" + account
	} else if !validAddress(asset, address) {
		writeJSON(w, http.StatusOK, api.Fail("Invalid address for "+asset))
		return
	}

	entry := Address{UUID: uuid.NewString(), Name: name, Type: addrType, Address: address}
	acct := accountFrom(r)
	s.mu.Lock()
	acct.addresses[asset] = append(acct.addresses[asset], entry)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.OK(map[string]string{"uuid": entry.UUID}))
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]
	acct := accountFrom(r)

	s.mu.Lock()
	found := acct.deleteAddress(id)
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusOK, api.Fail("Address book entry not found"))
		return
	}
	writeJSON(w, http.StatusOK, api.OK(map[string]string{"uuid": id}))
}

func (s *Server) handleDepositDetails(w http.ResponseWriter, r *http.Request) {
	asset := strings.ToUpper(mux.Vars(r)["asset"])
	acct := accountFrom(r)

	s.mu.Lock()
	details, ok := acct.depositDetails(asset)
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusOK, api.Fail("Invalid asset: "+asset))
		return
	}
	writeJSON(w, http.StatusOK, api.OK(details))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	params := paramsFrom(r)
	asset := strings.ToUpper(mux.Vars(r)["asset"])
	if asset == "" {
		asset = strings.ToUpper(paramString(params, "asset"))
	}
	if asset == "" {
		writeJSON(w, http.StatusOK, api.Fail("Missing required parameter: asset"))
		return
	}

	fees, ok := withdrawFees[asset]
	if !ok {
		writeJSON(w, http.StatusOK, api.Fail("Withdrawals not supported for "+asset))
		return
	}
	volume, ok := parseAmount(paramString(params, "volume"))
	if !ok || volume.Sign() <= 0 {
		writeJSON(w, http.StatusOK, api.Fail("Invalid volume"))
		return
	}
	priority := paramString(params, "priority")
	if priority == "" {
		priority = "normal"
	}
	feeStr, ok := fees[priority]
	if !ok {
		writeJSON(w, http.StatusOK, api.Fail("Invalid priority: must be low, normal or high"))
		return
	}
	fee, _ := parseAmount(feeStr)

	acct := accountFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	dest := paramString(params, "address")
	if dest == "" {
		dest = paramString(params, "account_id")
	}
	if book, found := acct.findAddress(asset, dest); found {
		dest = book.Address
	} else if !validAddress(asset, dest) {
		writeJSON(w, http.StatusOK, api.Fail("Invalid address"))
		return
	}

	total := new(big.Rat).Add(volume, fee)
	bal := acct.balance(asset)
	if bal.Cmp(total) < 0 {
		writeJSON(w, http.StatusOK, api.Fail(fmt.Sprintf("Insufficient balance: %s %s available", formatAmount(bal), asset)))
		return
	}
	bal.Sub(bal, total)

	wd := Withdrawal{
		ID:        uuid.NewString(),
		Asset:     asset,
		Volume:    formatAmount(volume),
		Fee:       feeStr,
		Address:   dest,
		Priority:  priority,
		Status:    "queued",
		CreatedAt: time.Now().UTC(),
	}
	acct.withdrawals = append(acct.withdrawals, wd)
	code := "FO"
	if asset == "GBP" {
		code = "PO"
	}
	acct.record(Transaction{
		Code:            code,
		BaseAsset:       asset,
		BaseAssetVolume: wd.Volume,
		Fee:             feeStr,
		FeeAsset:        asset,
		Description:     "Withdrawal to " + dest,
	})

	writeJSON(w, http.StatusOK, api.OK(map[string]string{"id": wd.ID, "status": wd.Status}))
}

func (s *Server) handleWithdrawals(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)
	s.mu.Lock()
	out := append([]Withdrawal{}, acct.withdrawals...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.OK(out))
}

func (s *Server) handleOrder(side string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := paramsFrom(r)

		pair := normalizePair(paramString(params, "currency_pair"))
		base, quote, ok := strings.Cut(pair, "/")
		if !ok {
			writeJSON(w, http.StatusOK, api.Fail("Missing required parameter: currency_pair"))
			return
		}
		last, known := s.cfg.Prices[pair]
		if !known {
			writeJSON(w, http.StatusOK, api.Fail("Invalid currency_pair: "+pair))
			return
		}
		amount, ok := parseAmount(paramString(params, "amount"))
		if !ok || amount.Sign() <= 0 {
			writeJSON(w, http.StatusOK, api.Fail("Invalid amount"))
			return
		}
		price, ok := parseAmount(paramString(params, "price"))
		if !ok || price.Sign() <= 0 {
			writeJSON(w, http.StatusOK, api.Fail("Invalid price"))
			return
		}
		cost := new(big.Rat).Mul(amount, price)
		lastPrice, _ := parseAmount(last)
		// A buy below or a sell above the last trade rests on the book.
		resting := (side == "buy" && price.Cmp(lastPrice) < 0) || (side == "sell" && price.Cmp(lastPrice) > 0)

		acct := accountFrom(r)
		s.mu.Lock()
		defer s.mu.Unlock()

		baseBal, quoteBal := acct.balance(base), acct.balance(quote)
		if side == "buy" && quoteBal.Cmp(cost) < 0 {
			writeJSON(w, http.StatusOK, api.Fail("Insufficient "+quote+" balance"))
			return
		}
		if side == "sell" && baseBal.Cmp(amount) < 0 {
			writeJSON(w, http.StatusOK, api.Fail("Insufficient "+base+" balance"))
			return
		}

		s.nextOrder++
		o := &Order{
			ID:           s.nextOrder,
			Side:         side,
			CurrencyPair: strings.ToLower(base + "_" + quote),
			Amount:       formatAmount(amount),
			Price:        formatAmount(price),
			Status:       "filled",
			CreatedAt:    time.Now().UTC(),
		}

		switch side {
		case "buy":
			quoteBal.Sub(quoteBal, cost)
			if resting {
				o.reserved, o.reservedAsset = cost, quote
				break
			}
			baseBal.Add(baseBal, amount)
		default:
			baseBal.Sub(baseBal, amount)
			if resting {
				o.reserved, o.reservedAsset = amount, base
				break
			}
			quoteBal.Add(quoteBal, cost)
		}

		if resting {
			o.Status = "open"
		} else {
			code := "BY"
			if side == "sell" {
				code = "SL"
			}
			acct.record(Transaction{
				Code:             code,
				BaseAsset:        base,
				BaseAssetVolume:  o.Amount,
				QuoteAsset:       quote,
				QuoteAssetVolume: formatAmount(cost),
				Description:      fmt.Sprintf("Order %d filled at %s", o.ID, o.Price),
			})
		}
		acct.orders[o.ID] = o

		writeJSON(w, http.StatusOK, api.OK(o))
	}
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, api.Fail("Invalid order id"))
		return
	}

	acct := accountFrom(r)
	s.mu.Lock()
	o, ok := acct.orders[id]
	var view Order
	if ok {
		view = *o
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusOK, api.Fail(fmt.Sprintf("Order %d not found", id)))
		return
	}
	writeJSON(w, http.StatusOK, api.OK(view))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	n, err := goutil.ToInt(paramString(paramsFrom(r), "id"))
	id := int64(n)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusOK, api.Fail("Invalid order id"))
		return
	}

	acct := accountFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := acct.orders[id]
	switch {
	case !ok:
		writeJSON(w, http.StatusOK, api.Fail(fmt.Sprintf("Order %d not found", id)))
	case o.Status != "open":
		writeJSON(w, http.StatusOK, api.Fail(fmt.Sprintf("Order %d is already %s", id, o.Status)))
	default:
		bal := acct.balance(o.reservedAsset)
		bal.Add(bal, o.reserved)
		o.reserved = nil
		o.Status = "cancelled"
		writeJSON(w, http.StatusOK, api.OK(map[string]any{"id": id, "status": o.Status}))
	}
}

func (s *Server) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)
	s.mu.Lock()
	out := []Order{}
	for _, o := range acct.sortedOrders() {
		if o.Status == "open" {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.OK(out))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	params := paramsFrom(r)
	limit, _ := goutil.ToInt(paramString(params, "limit"))
	offset, _ := goutil.ToInt(paramString(params, "offset"))

	acct := accountFrom(r)
	s.mu.Lock()
	txns := acct.history()
	s.mu.Unlock()

	total := len(txns)
	if offset > 0 {
		txns = txns[min(offset, total):]
	}
	if limit > 0 && limit < len(txns) {
		txns = txns[:limit]
	}
	writeJSON(w, http.StatusOK, api.OK(map[string]any{"txns": txns, "total": total}))
}

// paramString coerces a decoded JSON parameter to a string.
func paramString(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func normalizePair(p string) string {
	p = strings.ToUpper(strings.TrimSpace(p))
	return strings.NewReplacer("_", "/", "-", "/").Replace(p)
}

func validAddress(asset, address string) bool {
	if address == "" {
		return false
	}
	if re, ok := addressPatterns[asset]; ok {
		return re.MatchString(address)
	}
	// Fiat destinations must come from the address book.
	return false
}
