package client

import (
	"context"
	"sync"
)

// sequencer serializes, per API key, the span from nonce reservation until
// the request has been written to the connection. Requests therefore leave
// the client in nonce order while their responses are awaited concurrently.
type sequencer struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// acquire blocks until key is free or ctx is done. The returned release is
// safe to call more than once.
func (s *sequencer) acquire(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	if s.slots == nil {
		s.slots = make(map[string]chan struct{})
	}
	slot, ok := s.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		s.slots[key] = slot
	}
	s.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { <-slot }) }, nil
}
