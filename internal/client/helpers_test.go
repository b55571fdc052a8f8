package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solidifx/solidi-go/internal/credentials"
	"github.com/solidifx/solidi-go/internal/sandbox"
	"github.com/solidifx/solidi-go/pkg/api"
)

const demoEmail = "demo@solidi.co"

// recorder counts requests reaching the backend and remembers the nonces
// they carried.
type recorder struct {
	hits   atomic.Int32
	mu     sync.Mutex
	nonces []int64
	paths  []string
}

func (rec *recorder) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		var payload struct {
			Nonce int64 `json:"nonce"`
		}
		_ = json.Unmarshal(body, &payload)

		rec.mu.Lock()
		rec.paths = append(rec.paths, r.URL.RequestURI())
		if payload.Nonce != 0 {
			rec.nonces = append(rec.nonces, payload.Nonce)
		}
		rec.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (rec *recorder) Nonces() []int64 {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]int64(nil), rec.nonces...)
}

type fixture struct {
	sandbox *sandbox.Server
	server  *httptest.Server
	rec     *recorder
	creds   api.Credentials
	store   *credentials.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sb, err := sandbox.New(sandbox.DefaultConfig(), nil)
	require.NoError(t, err)

	rec := &recorder{}
	srv := httptest.NewServer(rec.wrap(sb.Handler()))
	t.Cleanup(srv.Close)

	creds, err := sb.IssueCredentials(demoEmail)
	require.NoError(t, err)

	store := credentials.NewMemory()
	require.NoError(t, store.Save(t.Context(), creds))

	return &fixture{sandbox: sb, server: srv, rec: rec, creds: creds, store: store}
}

// config points a client at srv.
func configFor(srv *httptest.Server) Config {
	cfg := DefaultConfig()
	cfg.Scheme = "http"
	cfg.Domain = srv.Listener.Addr().String()
	cfg.SigningDomain = "www.solidi.co"
	cfg.Timeout = 5 * time.Second
	return cfg
}

func (f *fixture) client(t *testing.T, mutate func(*Config), opts ...Option) *Client {
	t.Helper()
	cfg := configFor(f.server)
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, f.store, nil, opts...)
	require.NoError(t, err)
	return c
}

// stubServer answers every request with status and body.
func stubServer(t *testing.T, status int, body string, header http.Header) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		for k, vs := range header {
			w.Header()[k] = vs
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func withdrawRequest() api.Request {
	return api.Request{
		HTTPMethod: "POST",
		APIRoute:   "withdraw/BTC",
		Params: api.Params{
			"volume":   "0.00001",
			"address":  "tb1qumc274tp6vjd6mvldcjavjjqd2xzak00eh4ell",
			"priority": "normal",
		},
	}
}
