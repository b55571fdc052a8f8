// Package client implements the signed REST client for the Solidi backend:
// URL routing, request signing, nonce management and response
// normalization for public and private API methods.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/solidifx/solidi-go/internal/credentials"
	"github.com/solidifx/solidi-go/pkg/api"
	"github.com/solidifx/solidi-go/pkg/errors"
	"github.com/solidifx/solidi-go/pkg/events"
	"github.com/solidifx/solidi-go/pkg/logger"
	"github.com/solidifx/solidi-go/pkg/nonce"
	"github.com/solidifx/solidi-go/pkg/signing"
)

const maxResponseBody = 10 << 20

// Client issues public and private API calls. It is safe for concurrent
// use.
//
// Private calls on one API key are written to the wire in nonce order and
// their responses are awaited concurrently. The backend may still process
// requests arriving on separate connections out of order; the single nonce
// retry absorbs that, but a call overtaken twice fails with a NonceError.
// Callers fanning out many private calls on one key should expect this.
type Client struct {
	cfg        Config
	creds      credentials.Provider
	httpClient *http.Client
	nonces     nonce.Generator
	limiter    *rate.Limiter
	bus        events.EventBus
	journal    Journal
	logger     *logger.Logger
	seq        sequencer
}

// New creates a client. creds may be nil when only public methods are used.
func New(cfg Config, creds credentials.Provider, log *logger.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapWithDomain(err, errors.DomainSystem, errors.ErrCodeConfiguration,
			"invalid client configuration", false)
	}
	if log == nil {
		log = logger.NewNop()
	}

	c := &Client{
		cfg:   cfg,
		creds: creds,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.WithComponent("client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.nonces == nil {
		c.nonces = nonce.NewCounter(nil)
	}
	if c.limiter == nil && cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return c, nil
}

// Config returns the validated configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Path returns the canonical path /{apiPrefix}/{version}/{route}.
func (c *Client) Path(version, route string) string {
	if version == "" {
		version = c.cfg.APIVersion
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{c.cfg.APIPrefix, strings.Trim(version, "/"), strings.Trim(route, "/")} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return "/" + strings.Join(parts, "/")
}

// URL returns the absolute URL for a path.
func (c *Client) URL(path string) string {
	return fmt.Sprintf("%s://%s%s", c.cfg.Scheme, c.cfg.Domain, path)
}

// PublicMethod issues an unsigned call. GET parameters go in the query
// string; other methods send them as a JSON body.
//
// A response is returned together with the error whenever the backend
// answered with a JSON envelope.
func (c *Client) PublicMethod(ctx context.Context, req api.Request) (*api.Response, error) {
	method := req.Method()
	path := c.Path(req.Version, req.Route())
	target := c.URL(path)

	var body []byte
	if method == http.MethodGet {
		if q := encodeQuery(req.Params); q != "" {
			target += "?" + q
		}
	} else {
		var err error
		if body, err = json.Marshal(paramsOrEmpty(req.Params)); err != nil {
			return nil, fmt.Errorf("failed to encode params for %s: %w", req.Route(), err)
		}
	}

	call := &callInfo{
		requestID: uuid.NewString(),
		method:    method,
		route:     req.Route(),
		path:      path,
		mutating:  req.IsMutating(),
		attempt:   1,
	}
	ctx = c.scope(ctx, "public_method", call)

	resp, err := c.roundTrip(ctx, call, target, body, nil, nil)
	c.finish(ctx, call, resp, err)
	return resp, err
}

// PrivateMethod issues a signed call. Missing credentials fail with an
// AuthenticationError before anything is sent. A nonce rejection is retried
// once with a fresh nonce; every other failure is returned as is.
func (c *Client) PrivateMethod(ctx context.Context, req api.Request) (*api.Response, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}
	signer, err := signing.NewSigner(creds.APISecret)
	if err != nil {
		return nil, errors.NewAuthenticationError(errors.ErrCodeMissingCredentials, "api secret is empty", 0, err)
	}

	call := &callInfo{
		requestID: uuid.NewString(),
		method:    req.Method(),
		route:     req.Route(),
		path:      c.Path(req.Version, req.Route()),
		private:   true,
		mutating:  req.IsMutating(),
		keyID:     creds.KeyID(),
	}
	ctx = c.scope(ctx, "private_method", call)

	attempts := 1
	if c.cfg.NonceRetry {
		attempts = 2
	}

	var (
		resp *api.Response
		last error
	)
	for call.attempt = 1; call.attempt <= attempts; call.attempt++ {
		release, err := c.seq.acquire(ctx, creds.APIKey)
		if err != nil {
			resp, last = nil, classifyTransportError(ctx, err, false, false)
			break
		}

		signed, err := c.sign(ctx, signer, creds, call, req.Params)
		if err != nil {
			release()
			resp, last = nil, err
			break
		}

		if call.attempt == 1 && call.mutating && c.journal != nil {
			if err := c.journal.Record(ctx, api.JournalEntry{
				RequestID: call.requestID,
				APIKeyID:  call.keyID,
				Method:    call.method,
				Route:     call.route,
				Nonce:     signed.Nonce,
				Params:    req.Params,
			}); err != nil {
				release()
				err = errors.WrapWithDomain(err, errors.DomainSystem, errors.ErrCodeJournal,
					"failed to journal mutating call, request not sent", false)
				c.finish(ctx, call, nil, err)
				return nil, err
			}
			call.journaled = true
		}

		resp, last = c.roundTrip(ctx, call, signed.URL, signed.Body, signed.Headers, release)

		var nonceErr *errors.NonceError
		if call.attempt < attempts && stderrors.As(last, &nonceErr) {
			c.logger.WarnContext(ctx, "nonce rejected, retrying with a fresh nonce",
				slog.Int64("nonce", call.nonce),
				slog.String("reason", nonceErr.Message()))
			c.publish(ctx, events.TypeNonceRetried, call, resp, last)
			continue
		}
		break
	}

	c.resolveJournal(ctx, call, last)
	c.finish(ctx, call, resp, last)
	return resp, last
}

// SignRequest builds the wire form of a private request without sending
// it. It consumes a nonce.
func (c *Client) SignRequest(ctx context.Context, req api.Request) (*api.SignedRequest, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}
	signer, err := signing.NewSigner(creds.APISecret)
	if err != nil {
		return nil, errors.NewAuthenticationError(errors.ErrCodeMissingCredentials, "api secret is empty", 0, err)
	}
	call := &callInfo{
		method: req.Method(),
		route:  req.Route(),
		path:   c.Path(req.Version, req.Route()),
	}
	return c.sign(ctx, signer, creds, call, req.Params)
}

func (c *Client) credentials(ctx context.Context) (api.Credentials, error) {
	if c.creds == nil {
		return api.Credentials{}, errors.NewAuthenticationError(errors.ErrCodeMissingCredentials,
			"no credentials provider configured", 0, errors.ErrMissingCredentials)
	}
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		if stderrors.Is(err, credentials.ErrNoCredentials) {
			return creds, errors.NewAuthenticationError(errors.ErrCodeMissingCredentials,
				"not logged in", 0, errors.ErrMissingCredentials)
		}
		return creds, errors.NewSystemError(errors.ErrCodeCredentialStore, "failed to load credentials", false, err)
	}
	if !creds.Valid() {
		return creds, errors.NewAuthenticationError(errors.ErrCodeMissingCredentials,
			"api key or secret is empty", 0, errors.ErrMissingCredentials)
	}
	return creds, nil
}

// sign reserves a nonce and produces the signed request for one attempt.
func (c *Client) sign(ctx context.Context, signer *signing.Signer, creds api.Credentials, call *callInfo, params api.Params) (*api.SignedRequest, error) {
	n, err := c.nonces.Next(ctx, creds.APIKey)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewNetworkError(errors.ErrCodeCanceled, "canceled before sending", false, err)
		}
		return nil, errors.NewSystemError(errors.ErrCodeNonceStore, "failed to generate nonce", false, err)
	}
	call.nonce = n

	payload := params.Clone()
	payload["nonce"] = n
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params for %s: %w", call.route, err)
	}

	sig := signer.Sign(c.cfg.SigningDomain, call.path, body)

	headers := make(http.Header)
	headers.Set(api.HeaderAPIKey, creds.APIKey)
	headers.Set(api.HeaderAPISign, sig)

	c.logger.TraceCtx(ctx, "signed request",
		slog.String("path", call.path),
		slog.Int64("nonce", n))

	return &api.SignedRequest{
		Method:    call.method,
		URL:       c.URL(call.path),
		Path:      call.path,
		Body:      body,
		Nonce:     n,
		Signature: sig,
		Headers:   headers,
	}, nil
}

// roundTrip sends one HTTP request and classifies the outcome. written, if
// set, is called once the request has been written or has failed.
func (c *Client) roundTrip(ctx context.Context, call *callInfo, target string, body []byte, headers http.Header, written func()) (*api.Response, error) {
	if written == nil {
		written = func() {}
	}
	defer written()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classifyTransportError(ctx, err, call.mutating, false)
		}
	}

	var wrote atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				wrote.Store(true)
			}
			written()
		},
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), call.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil {
		httpReq.Header.Set(api.HeaderContentType, "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(api.HeaderUserAgent, c.cfg.UserAgent)

	c.logger.DebugContext(ctx, "sending request",
		slog.String("method", call.method),
		slog.String("url", target),
		slog.Int("attempt", call.attempt))

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		call.duration = time.Since(start)
		return nil, classifyTransportError(ctx, err, call.mutating, wrote.Load())
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	call.duration = time.Since(start)
	call.status = httpResp.StatusCode
	if err != nil {
		return nil, classifyTransportError(ctx, fmt.Errorf("failed to read response body: %w", err), call.mutating, true)
	}

	c.logger.HTTPRequest(ctx, call.method, call.path, httpResp.StatusCode, call.duration,
		slog.Int("attempt", call.attempt))

	return parseResponse(httpResp.StatusCode, httpResp.Header, raw)
}

func (c *Client) resolveJournal(ctx context.Context, call *callInfo, err error) {
	if !call.journaled {
		return
	}

	status, msg := api.CallSucceeded, ""
	switch {
	case errors.IsAmbiguous(err):
		status, msg = api.CallAmbiguous, err.Error()
	case err != nil:
		status, msg = api.CallFailed, err.Error()
	}

	// The call itself has finished; a journal write must not be canceled
	// with it.
	if jerr := c.journal.Resolve(context.WithoutCancel(ctx), call.requestID, call.nonce, status, msg); jerr != nil {
		c.logger.ErrorCtx(ctx, "failed to resolve journal entry", jerr,
			slog.String("status", string(status)))
	}
}

// finish logs the outcome and publishes the lifecycle event.
func (c *Client) finish(ctx context.Context, call *callInfo, resp *api.Response, err error) {
	switch kind := errors.KindOf(err); {
	case err == nil:
		c.logger.DebugContext(ctx, "call completed", slog.Duration("duration", call.duration))
		c.publish(ctx, events.TypeCallCompleted, call, resp, nil)
		return
	case kind == errors.KindNetwork:
		c.logger.ErrorCtx(ctx, "call failed", err, slog.Bool("mutating", call.mutating))
	default:
		c.logger.WarnContext(ctx, "call rejected",
			slog.String("error_kind", string(kind)),
			slog.String("error", err.Error()))
	}
	c.publish(ctx, events.TypeCallFailed, call, resp, err)
}

func (c *Client) publish(ctx context.Context, eventType string, call *callInfo, resp *api.Response, err error) {
	if c.bus == nil {
		return
	}

	ev := events.NewCallEvent(eventType, call.requestID, call.method, call.route)
	ev.Private = call.private
	ev.Mutating = call.mutating
	ev.Nonce = call.nonce
	ev.Attempt = call.attempt
	ev.StatusCode = call.status
	ev.Duration = call.duration
	if resp != nil {
		ev.StatusCode = resp.StatusCode
	}
	if err != nil {
		ev.Err = err
		ev.ErrorKind = string(errors.KindOf(err))
	}

	if perr := c.bus.Publish(ctx, ev); perr != nil {
		c.logger.WarnContext(ctx, "event handler failed", slog.String("type", eventType), slog.String("error", perr.Error()))
	}
}

func (c *Client) scope(ctx context.Context, op string, call *callInfo) context.Context {
	ctx = logger.WithRequestID(ctx, call.requestID)
	ctx = logger.WithOperation(ctx, op)
	ctx = logger.WithRoute(ctx, call.route)
	if call.keyID != "" {
		ctx = logger.WithAPIKeyID(ctx, call.keyID)
	}
	return ctx
}

// callInfo carries per-call state across attempts.
type callInfo struct {
	requestID string
	method    string
	route     string
	path      string
	keyID     string
	private   bool
	mutating  bool
	journaled bool
	attempt   int
	nonce     int64
	status    int
	duration  time.Duration
}

func paramsOrEmpty(p api.Params) api.Params {
	if p == nil {
		return api.Params{}
	}
	return p
}

func encodeQuery(p api.Params) string {
	if len(p) == 0 {
		return ""
	}
	v := url.Values{}
	for k, val := range p {
		v.Set(k, fmt.Sprint(val))
	}
	return v.Encode()
}
