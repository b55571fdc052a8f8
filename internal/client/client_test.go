package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/solidifx/solidi-go/internal/credentials"
	"github.com/solidifx/solidi-go/internal/store"
	"github.com/solidifx/solidi-go/pkg/api"
	"github.com/solidifx/solidi-go/pkg/errors"
	"github.com/solidifx/solidi-go/pkg/events"
	"github.com/solidifx/solidi-go/pkg/nonce"
	"github.com/solidifx/solidi-go/pkg/signing"
)

func TestPublicMethod_Hello(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, nil)

	resp, err := c.PublicMethod(context.Background(), api.Request{HTTPMethod: "GET", APIRoute: "hello", Params: api.Params{}})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, resp.Failed())
	assert.NotEmpty(t, resp.Data)

	var data map[string]any
	require.NoError(t, resp.DecodeData(&data))
	assert.Equal(t, "v1", data["api_version"])
}

func TestPublicMethod_GETUsesQueryString(t *testing.T) {
	var gotQuery string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "/api2/v2/best_volume_price/BTC/GBP", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c, err := New(configFor(srv), nil, nil)
	require.NoError(t, err)

	_, err = c.PublicMethod(context.Background(), api.Request{
		HTTPMethod: "get",
		APIRoute:   "/best_volume_price/BTC/GBP/",
		Version:    "v2",
		Params:     api.Params{"side": "BUY", "volume": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "side=BUY&volume=10", gotQuery)
	assert.Empty(t, gotBody)
}

func TestPublicMethod_POSTSendsJSONBody(t *testing.T) {
	var got map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		assert.Empty(t, r.Header.Get(api.HeaderAPISign), "public calls are unsigned")
		_, _ = w.Write([]byte(`{"data":"ok"}`))
	}))
	defer srv.Close()

	c, err := New(configFor(srv), nil, nil)
	require.NoError(t, err)

	_, err = c.PublicMethod(context.Background(), api.Request{HTTPMethod: "POST", APIRoute: "login_mobile/a@b.c", Params: api.Params{"password": "pw"}})
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "pw", got["password"])
	assert.NotContains(t, got, "nonce")
}

func TestPrivateMethod_SignsRequestTheBackendAccepts(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, nil)

	resp, err := c.PrivateMethod(context.Background(), api.Request{HTTPMethod: "POST", APIRoute: "balance"})
	require.NoError(t, err)

	balances, err := api.Decode[map[string]string](resp)
	require.NoError(t, err)
	assert.Equal(t, "1", balances["BTC"])
	assert.Equal(t, f.sandbox.LastNonce(f.creds.APIKey), f.rec.Nonces()[0])
}

func TestPrivateMethod_GETStillSendsSignedBody(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, nil)

	_, err := c.PrivateMethod(context.Background(), api.Request{HTTPMethod: "GET", APIRoute: "addressBook/BTC"})
	require.NoError(t, err)
	require.Len(t, f.rec.Nonces(), 1)
}

func TestPrivateMethod_WireFormatMatchesSigner(t *testing.T) {
	creds := api.Credentials{APIKey: "key", APISecret: "AL8N3xtau892JbZLJPnEUhnzVZBOVpVw93GMfJL9CP1s"}
	var (
		gotPath, gotSign, gotKey string
		gotBody                  []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(api.HeaderAPIKey)
		gotSign = r.Header.Get(api.HeaderAPISign)
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	cfg := configFor(srv)
	cfg.SigningDomain = "t2.solidi.co"
	frozen := nonce.NewCounter(func() time.Time { return time.UnixMicro(1_700_000_000_000_001) })
	c, err := New(cfg, credentials.Static(creds), nil, WithNonceGenerator(frozen))
	require.NoError(t, err)

	_, err = c.PrivateMethod(context.Background(), withdrawRequest())
	require.NoError(t, err)

	assert.Equal(t, "/api2/v1/withdraw/BTC", gotPath)
	assert.Equal(t, "key", gotKey)
	assert.Equal(t,
		`{"address":"tb1qumc274tp6vjd6mvldcjavjjqd2xzak00eh4ell","nonce":1700000000000001,"priority":"normal","volume":"0.00001"}`,
		string(gotBody))
	assert.Equal(t, "CW4gCfz3XDws06R+nek2y932Dq1HfpNLhcrxJSi2Zfw=", gotSign)
}

func TestPrivateMethod_NoncesStrictlyIncreaseWithinSameMicrosecond(t *testing.T) {
	f := newFixture(t)
	frozen := nonce.NewCounter(func() time.Time { return time.UnixMicro(1_700_000_000_000_000) })
	c := f.client(t, nil, WithNonceGenerator(frozen))

	for i := 0; i < 2; i++ {
		_, err := c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})
		require.NoError(t, err)
	}

	nonces := f.rec.Nonces()
	require.Len(t, nonces, 2)
	assert.Less(t, nonces[0], nonces[1])
}

func TestPrivateMethod_ConcurrentCallsGetDistinctNonces(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, func(cfg *Config) { cfg.NonceRetry = false })

	const calls = 20
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Requests may arrive out of order, so the backend can
			// reject a few; the nonces themselves must still be unique.
			_, _ = c.PrivateMethod(context.Background(), api.Request{APIRoute: "fee"})
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, n := range f.rec.Nonces() {
		assert.False(t, seen[n], "nonce %d reused", n)
		seen[n] = true
	}
	assert.Len(t, seen, calls)
}

func TestPrivateMethod_MissingCredentialsMakesNoNetworkCall(t *testing.T) {
	tests := []struct {
		name     string
		provider credentials.Provider
	}{
		{"nil provider", nil},
		{"empty store", credentials.NewMemory()},
		{"empty secret", credentials.Static{APIKey: "key"}},
		{"blank secret", credentials.Static{APIKey: "key", APISecret: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := stubServer(t, http.StatusOK, `{"data":{}}`, nil)
			c, err := New(configFor(srv), tt.provider, nil)
			require.NoError(t, err)

			resp, err := c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})
			assert.Nil(t, resp)

			var authErr *errors.AuthenticationError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, errors.ErrCodeMissingCredentials, authErr.Code())
			assert.ErrorIs(t, err, errors.ErrMissingCredentials)
			assert.Zero(t, hits.Load())
		})
	}
}

func TestPrivateMethod_WrongSecretIsAuthenticationError(t *testing.T) {
	f := newFixture(t)
	bad := credentials.Static{APIKey: f.creds.APIKey, APISecret: "not-the-secret"}
	c, err := New(configFor(f.server), bad, nil)
	require.NoError(t, err)

	resp, err := c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})
	assert.Equal(t, errors.KindAuthentication, errors.KindOf(err))
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "backend reports the failure with 200")
	assert.Equal(t, int32(1), f.rec.hits.Load())
}

func TestResponseClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind errors.Kind
		wantCode string
	}{
		{"data only", 200, `{"data":{"BTC":"1"}}`, errors.KindNone, ""},
		{"null error", 200, `{"data":1,"error":null}`, errors.KindNone, ""},
		{"error with 200", 200, `{"error":"Something odd happened"}`, errors.KindUnknownBackend, errors.ErrCodeUnknownBackend},
		{"error and data", 200, `{"data":{"id":1},"error":"partial failure"}`, errors.KindUnknownBackend, errors.ErrCodeUnknownBackend},
		{"data with 500", 500, `{"data":{}}`, errors.KindUnknownBackend, errors.ErrCodeUnknownBackend},
		{"nonce", 200, `{"error":"Nonce too small"}`, errors.KindNonce, errors.ErrCodeNonceRejected},
		{"signature", 200, `{"error":"Could not verify signature"}`, errors.KindAuthentication, errors.ErrCodeAuthRejected},
		{"unauthorized status", 401, `{"error":"denied"}`, errors.KindAuthentication, errors.ErrCodeAuthRejected},
		{"insufficient", 200, `{"error":"Insufficient balance"}`, errors.KindValidation, errors.ErrCodeValidation},
		{"bad address", 200, `{"error":"Invalid address"}`, errors.KindValidation, errors.ErrCodeValidation},
		{"400 status", 400, `{"error":"nope"}`, errors.KindValidation, errors.ErrCodeValidation},
		{"object error", 200, `{"error":{"code":500,"message":"boom"}}`, errors.KindUnknownBackend, errors.ErrCodeUnknownBackend},
		{"html 502", 502, `<html>Bad Gateway</html>`, errors.KindUnknownBackend, errors.ErrCodeDecode},
		{"html 403", 403, `<html>Forbidden</html>`, errors.KindAuthentication, errors.ErrCodeAuthRejected},
		{"empty 200", 200, ``, errors.KindUnknownBackend, errors.ErrCodeDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := stubServer(t, tt.status, tt.body, nil)
			c, err := New(configFor(srv), credentials.Static{APIKey: "k", APISecret: "s"}, nil,
				func(c *Client) { c.cfg.NonceRetry = false })
			require.NoError(t, err)

			for _, call := range []func(context.Context, api.Request) (*api.Response, error){c.PublicMethod, c.PrivateMethod} {
				_, err := call(context.Background(), api.Request{APIRoute: "fee"})
				assert.Equal(t, tt.wantKind, errors.KindOf(err), "err: %v", err)
				if tt.wantCode != "" {
					assert.Equal(t, tt.wantCode, errors.GetErrorCode(err))
				}
			}
		})
	}
}

func TestPrivateMethod_NonceErrorRetriedOnce(t *testing.T) {
	f := newFixture(t)
	bus := events.NewBus("test", nil)
	var retried []*events.CallEvent
	_, err := bus.Subscribe(events.TypeNonceRetried, events.CreateTypedHandler(func(_ context.Context, e *events.CallEvent) error {
		retried = append(retried, e)
		return nil
	}))
	require.NoError(t, err)

	c := f.client(t, nil, WithEventBus(bus))
	f.sandbox.RejectNextNonces(1)

	_, err = c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})
	require.NoError(t, err)

	nonces := f.rec.Nonces()
	require.Len(t, nonces, 2)
	assert.Less(t, nonces[0], nonces[1], "retry uses a fresh, larger nonce")
	require.Len(t, retried, 1)
	assert.Equal(t, nonces[0], retried[0].Nonce)
}

func TestPrivateMethod_NonceErrorNotRetriedTwice(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, nil)
	f.sandbox.RejectNextNonces(5)

	_, err := c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})
	var nonceErr *errors.NonceError
	require.ErrorAs(t, err, &nonceErr)
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, int32(2), f.rec.hits.Load())
}

func TestPrivateMethod_NonceRetryDisabled(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, func(cfg *Config) { cfg.NonceRetry = false })
	f.sandbox.RejectNextNonces(1)

	_, err := c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})
	assert.Equal(t, errors.KindNonce, errors.KindOf(err))
	assert.Equal(t, int32(1), f.rec.hits.Load())
}

func TestPrivateMethod_ValidationErrorsAreNotRetried(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, nil)

	req := withdrawRequest()
	req.Params["volume"] = "1000"
	resp, err := c.PrivateMethod(context.Background(), req)

	var valErr *errors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Message(), "Insufficient balance")
	require.NotNil(t, resp)
	assert.True(t, resp.HasError())
	assert.Equal(t, int32(1), f.rec.hits.Load())
}

func TestPrivateMethod_WithdrawTimeoutIsAmbiguousAndNotRetried(t *testing.T) {
	f := newFixture(t)
	s := store.NewTestStore(t)
	journal := store.NewJournal(s)
	c := f.client(t, func(cfg *Config) { cfg.Timeout = 200 * time.Millisecond }, WithJournal(journal))

	f.sandbox.SetDelay("withdraw/BTC", 3*time.Second)

	resp, err := c.PrivateMethod(context.Background(), withdrawRequest())
	assert.Nil(t, resp)

	var netErr *errors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Ambiguous)
	assert.Equal(t, errors.ErrCodeNetworkAmbiguous, netErr.Code())
	assert.False(t, errors.IsRetryable(err))
	assert.Equal(t, int32(1), f.rec.hits.Load(), "client must not retry")

	// The backend applied the withdrawal even though no answer arrived.
	assert.Len(t, f.sandbox.Withdrawals(demoEmail), 1)

	entries, err := journal.List(context.Background(), store.ListFilter{Status: api.CallAmbiguous})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "withdraw/BTC", entries[0].Route)
	assert.Equal(t, f.rec.Nonces()[0], entries[0].Nonce)
}

func TestPrivateMethod_ReadTimeoutOnNonMutatingCallIsRetryable(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, func(cfg *Config) { cfg.Timeout = 200 * time.Millisecond })
	f.sandbox.SetDelay("balance", 3*time.Second)

	_, err := c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})

	var netErr *errors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, netErr.Ambiguous)
	assert.Equal(t, errors.ErrCodeTimeout, netErr.Code())
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, int32(1), f.rec.hits.Load())
}

func TestPrivateMethod_DroppedConnection(t *testing.T) {
	tests := []struct {
		name          string
		req           api.Request
		route         string
		wantAmbiguous bool
	}{
		{"withdraw", withdrawRequest(), "withdraw/BTC", true},
		{"balance", api.Request{APIRoute: "balance"}, "balance", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.client(t, nil)
			f.sandbox.DropConnection(tt.route)

			_, err := c.PrivateMethod(context.Background(), tt.req)
			assert.Equal(t, errors.KindNetwork, errors.KindOf(err))
			assert.Equal(t, tt.wantAmbiguous, errors.IsAmbiguous(err))
		})
	}
}

func TestPrivateMethod_UnreachableHostIsNeverAmbiguous(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := DefaultConfig()
	cfg.Scheme = "http"
	cfg.Domain = addr
	c, err := New(cfg, credentials.Static{APIKey: "k", APISecret: "s"}, nil)
	require.NoError(t, err)

	_, err = c.PrivateMethod(context.Background(), withdrawRequest())
	var netErr *errors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, netErr.Ambiguous)
	assert.Equal(t, errors.ErrCodeNetwork, netErr.Code())
}

func TestPrivateMethod_CallerCancellation(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, nil)
	f.sandbox.SetDelay("fee", 3*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := c.PrivateMethod(ctx, api.Request{APIRoute: "fee"})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, errors.ErrCodeCanceled, errors.GetErrorCode(err))
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestPrivateMethod_JournalRecordsOutcome(t *testing.T) {
	f := newFixture(t)
	journal := store.NewJournal(store.NewTestStore(t))
	c := f.client(t, nil, WithJournal(journal))
	ctx := context.Background()

	_, err := c.PrivateMethod(ctx, withdrawRequest())
	require.NoError(t, err)

	bad := withdrawRequest()
	bad.Params["address"] = "not-an-address"
	_, err = c.PrivateMethod(ctx, bad)
	require.Error(t, err)

	_, err = c.PrivateMethod(ctx, api.Request{APIRoute: "balance"})
	require.NoError(t, err)

	entries, err := journal.List(ctx, store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2, "only mutating calls are journaled")
	assert.Equal(t, api.CallFailed, entries[0].Status)
	assert.Contains(t, entries[0].Error, "Invalid address")
	assert.Equal(t, api.CallSucceeded, entries[1].Status)
}

type failingJournal struct{}

func (failingJournal) Record(context.Context, api.JournalEntry) error {
	return stderrors.New("disk full")
}

func (failingJournal) Resolve(context.Context, string, int64, api.CallStatus, string) error {
	return nil
}

func TestPrivateMethod_JournalFailureBlocksMutatingCall(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, nil, WithJournal(failingJournal{}))

	_, err := c.PrivateMethod(context.Background(), withdrawRequest())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeJournal, errors.GetErrorCode(err))
	assert.Zero(t, f.rec.hits.Load())

	_, err = c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})
	assert.NoError(t, err, "read-only calls are not journaled")
}

func TestPrivateMethod_PublishesLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	bus := events.NewBus("test", nil)

	var completed, failed []*events.CallEvent
	_, err := bus.Subscribe(events.TypeCallCompleted, events.CreateTypedHandler(func(_ context.Context, e *events.CallEvent) error {
		completed = append(completed, e)
		return nil
	}))
	require.NoError(t, err)
	_, err = bus.Subscribe(events.TypeCallFailed, events.CreateTypedHandler(func(_ context.Context, e *events.CallEvent) error {
		failed = append(failed, e)
		return nil
	}))
	require.NoError(t, err)

	c := f.client(t, nil, WithEventBus(bus))
	_, err = c.PrivateMethod(context.Background(), withdrawRequest())
	require.NoError(t, err)
	_, err = c.PrivateMethod(context.Background(), api.Request{APIRoute: "order_status/1"})
	require.Error(t, err)

	require.Len(t, completed, 1)
	assert.True(t, completed[0].Private)
	assert.True(t, completed[0].Mutating)
	assert.Equal(t, "withdraw/BTC", completed[0].Route)
	assert.Equal(t, http.StatusOK, completed[0].StatusCode)
	assert.NotEmpty(t, completed[0].RequestID)

	require.Len(t, failed, 1)
	assert.Equal(t, string(errors.KindUnknownBackend), failed[0].ErrorKind)
	assert.Error(t, failed[0].Err)
}

func TestRateLimitedResponseCarriesRetryAfter(t *testing.T) {
	srv, _ := stubServer(t, http.StatusTooManyRequests, `{"error":"Too many requests"}`,
		http.Header{"Retry-After": []string{"7"}})
	c, err := New(configFor(srv), nil, nil)
	require.NoError(t, err)

	_, err = c.PublicMethod(context.Background(), api.Request{HTTPMethod: "GET", APIRoute: "hello"})
	var unk *errors.UnknownBackendError
	require.ErrorAs(t, err, &unk)
	assert.Equal(t, errors.ErrCodeRateLimited, unk.Code())
	assert.Equal(t, 7, unk.Metadata()["retry_after_seconds"])
}

func TestClientSideRateLimiter(t *testing.T) {
	srv, hits := stubServer(t, http.StatusOK, `{"data":{}}`, nil)
	c, err := New(configFor(srv), nil, nil, WithLimiter(rate.NewLimiter(rate.Every(50*time.Millisecond), 1)))
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.PublicMethod(context.Background(), api.Request{HTTPMethod: "GET", APIRoute: "hello"})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), hits.Load())
}

func TestSignRequest(t *testing.T) {
	creds := credentials.Static{APIKey: "key", APISecret: "AL8N3xtau892JbZLJPnEUhnzVZBOVpVw93GMfJL9CP1s"}
	cfg := DefaultConfig()
	cfg.SigningDomain = "t2.solidi.co"
	frozen := nonce.NewCounter(func() time.Time { return time.UnixMicro(1_700_000_000_000_000) })
	c, err := New(cfg, creds, nil, WithNonceGenerator(frozen))
	require.NoError(t, err)

	signed, err := c.SignRequest(context.Background(), api.Request{APIRoute: "balance"})
	require.NoError(t, err)

	assert.Equal(t, "https://www.solidi.co/api2/v1/balance", signed.URL)
	assert.Equal(t, `{"nonce":1700000000000000}`, string(signed.Body))
	assert.Equal(t, "tC4iMI+ArJENa2q3G06fnoidm+Z8j6jmv3/dgarBf1s=", signed.Signature)
	assert.Equal(t, signed.Signature, signed.Headers.Get(api.HeaderAPISign))

	signer, err := signing.NewSigner(creds.APISecret)
	require.NoError(t, err)
	assert.True(t, signer.Verify("t2.solidi.co", signed.Path, signed.Body, signed.Signature))
}

func TestPathAndURL(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		version string
		route   string
		want    string
	}{
		{"default", "api2", "", "balance", "/api2/v1/balance"},
		{"explicit version", "api2", "v2", "ticker/BTC_GBP", "/api2/v2/ticker/BTC_GBP"},
		{"no prefix", "", "v0", "hello", "/v0/hello"},
		{"slashes trimmed", "/api2/", "/v1/", "/withdraw/BTC/", "/api2/v1/withdraw/BTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.APIPrefix = tt.prefix
			c, err := New(cfg, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Path(tt.version, tt.route))
			assert.True(t, strings.HasPrefix(c.URL(c.Path(tt.version, tt.route)), "https://www.solidi.co/"))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing domain", func(c *Config) { c.Domain = "" }, true},
		{"url as domain", func(c *Config) { c.Domain = "https://www.solidi.co" }, true},
		{"bad scheme", func(c *Config) { c.Scheme = "ftp" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.SigningDomain = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cfg.Domain, cfg.SigningDomain)
}

func TestNew_InvalidConfigIsConfigurationError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheme = "ftp"

	_, err := New(cfg, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.Equal(t, errors.ErrCodeConfiguration, errors.GetErrorCode(err))
}

// orderTransport records the nonce of every request in the order the
// transport sees them and answers with an empty data envelope.
type orderTransport struct {
	mu     sync.Mutex
	nonces []int64
}

func (o *orderTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(r.Body)
	var payload struct {
		Nonce int64 `json:"nonce"`
	}
	_ = json.Unmarshal(body, &payload)

	o.mu.Lock()
	o.nonces = append(o.nonces, payload.Nonce)
	o.mu.Unlock()

	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(`{"data":{}}`)),
		Request:    r,
	}, nil
}

func TestPrivateMethod_RequestsLeaveInNonceOrder(t *testing.T) {
	store := credentials.NewMemory()
	require.NoError(t, store.Save(t.Context(), api.Credentials{APIKey: "key", APISecret: "secret"}))

	transport := &orderTransport{}
	cfg := DefaultConfig()
	c, err := New(cfg, store, nil, WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)

	const calls = 32
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, transport.nonces, calls)
	for i := 1; i < len(transport.nonces); i++ {
		assert.Less(t, transport.nonces[i-1], transport.nonces[i], "request %d left out of nonce order", i)
	}
}

func TestPrivateMethod_ResponsesAreAwaitedConcurrently(t *testing.T) {
	const calls = 4
	arrived := make(chan struct{}, calls)
	all := make(chan struct{})
	var once sync.Once
	var count int
	var mu sync.Mutex

	// Every handler waits until all requests are in flight, which only
	// happens if a pending response does not block the next send.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		mu.Lock()
		count++
		if count == calls {
			once.Do(func() { close(all) })
		}
		mu.Unlock()

		select {
		case <-all:
			_, _ = w.Write([]byte(`{"data":{}}`))
		case <-time.After(3 * time.Second):
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"requests were serialized"}`))
		}
	}))
	defer srv.Close()

	store := credentials.NewMemory()
	require.NoError(t, store.Save(t.Context(), api.Credentials{APIKey: "key", APISecret: "secret"}))
	c, err := New(configFor(srv), store, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.PrivateMethod(context.Background(), api.Request{APIRoute: "balance"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, arrived, calls)
}
