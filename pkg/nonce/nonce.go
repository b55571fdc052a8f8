// Package nonce generates strictly increasing per-key nonces for signed
// requests.
package nonce

import (
	"context"
	"sync"
	"time"
)

// Generator hands out nonces. For a given API key every returned value is
// strictly greater than the previous one.
type Generator interface {
	Next(ctx context.Context, apiKey string) (int64, error)
}

// Clock returns the current time. Tests replace it to freeze time.
type Clock func() time.Time

// Micros converts t to microseconds since the Unix epoch.
func Micros(t time.Time) int64 {
	return t.UnixMicro()
}

// Advance returns max(last+1, now).
func Advance(last, now int64) int64 {
	if now > last {
		return now
	}
	return last + 1
}

// Counter is an in-process Generator. It keeps the last nonce per API key
// and is safe for concurrent use.
type Counter struct {
	mu    sync.Mutex
	clock Clock
	last  map[string]int64
}

// NewCounter creates a Counter. A nil clock uses time.Now.
func NewCounter(clock Clock) *Counter {
	if clock == nil {
		clock = time.Now
	}
	return &Counter{
		clock: clock,
		last:  make(map[string]int64),
	}
}

// Next returns the next nonce for apiKey.
func (c *Counter) Next(ctx context.Context, apiKey string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := Advance(c.last[apiKey], Micros(c.clock()))
	c.last[apiKey] = n
	return n, nil
}

// Last returns the most recent nonce issued for apiKey, or 0.
func (c *Counter) Last(apiKey string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[apiKey]
}

// Seed raises the high-water mark for apiKey, for example after loading a
// persisted value. Lower values are ignored.
func (c *Counter) Seed(apiKey string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.last[apiKey] {
		c.last[apiKey] = n
	}
}
