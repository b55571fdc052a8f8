package client

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/solidifx/solidi-go/pkg/api"
	"github.com/solidifx/solidi-go/pkg/events"
	"github.com/solidifx/solidi-go/pkg/nonce"
)

// Journal records mutating calls before they are sent and resolves them
// once the outcome is known.
type Journal interface {
	Record(ctx context.Context, e api.JournalEntry) error
	Resolve(ctx context.Context, requestID string, nonce int64, status api.CallStatus, message string) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithNonceGenerator replaces the in-process nonce counter, typically with
// a persistent one.
func WithNonceGenerator(g nonce.Generator) Option {
	return func(c *Client) { c.nonces = g }
}

// WithEventBus publishes call lifecycle events to bus.
func WithEventBus(bus events.EventBus) Option {
	return func(c *Client) { c.bus = bus }
}

// WithJournal records mutating private calls in j.
func WithJournal(j Journal) Option {
	return func(c *Client) { c.journal = j }
}

// WithLimiter paces outgoing calls with l instead of the configured rate.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}
