package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/solidifx/solidi-go/pkg/api"
	"github.com/solidifx/solidi-go/pkg/signing"
)

type ctxKey int

const (
	accountKey ctxKey = iota
	paramsKey
)

// statusRecorder captures the status code for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.HTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// authMiddleware verifies API-Key and API-Sign over signingDomain + path +
// body and enforces strictly increasing nonces per key.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, api.Fail("Could not read request body"))
			return
		}

		key := r.Header.Get(api.HeaderAPIKey)
		sig := r.Header.Get(api.HeaderAPISign)
		if key == "" || sig == "" {
			writeJSON(w, http.StatusUnauthorized, api.Fail("Missing API-Key or API-Sign header"))
			return
		}

		s.mu.Lock()
		pair, ok := s.keys[key]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, api.Fail("Unknown API key"))
			return
		}

		signer, err := signing.NewSigner(pair.secret)
		if err != nil || !signer.Verify(s.cfg.SigningDomain, r.URL.Path, body, sig) {
			// Reported as 200 with an error body; clients must not rely on the status.
			writeJSON(w, http.StatusOK, api.Fail("Could not verify signature"))
			return
		}

		params := map[string]any{}
		if len(bytes.TrimSpace(body)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(body))
			dec.UseNumber()
			if err := dec.Decode(&params); err != nil {
				writeJSON(w, http.StatusBadRequest, api.Fail("Request body is not a JSON object"))
				return
			}
		}

		n, ok := nonceParam(params["nonce"])
		if !ok {
			writeJSON(w, http.StatusOK, api.Fail("Missing or malformed nonce"))
			return
		}

		s.mu.Lock()
		last := s.lastNonce[key]
		forced := s.faults.takeNonceRejection()
		accepted := n > last && !forced
		if accepted {
			s.lastNonce[key] = n
		}
		s.mu.Unlock()

		if !accepted {
			writeJSON(w, http.StatusOK, api.Fail("Nonce must be greater than the previous nonce"))
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, pair.account)
		ctx = context.WithValue(ctx, paramsKey, params)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func nonceParam(v any) (int64, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	n, err := num.Int64()
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func accountFrom(r *http.Request) *account {
	a, _ := r.Context().Value(accountKey).(*account)
	return a
}

func paramsFrom(r *http.Request) map[string]any {
	p, _ := r.Context().Value(paramsKey).(map[string]any)
	if p == nil {
		return map[string]any{}
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
