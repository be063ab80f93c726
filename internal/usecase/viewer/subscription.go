package viewer

import (
	"context"
	"errors"
	"sync"

	"cacheview/internal/ports"
)

var errReleased = errors.New("subscription released before the stream opened")

// subscription is the scoped handle for one mount of the stream: it owns the
// dial context and, once attached, the open stream. release is the only
// teardown path and runs at most once, whether it happens before the dial
// returns, while frames are in flight, or after the stream already ended.
type subscription struct {
	id     int
	cancel context.CancelFunc

	mu       sync.Mutex
	stream   ports.SnapshotStream
	released bool
}

func newSubscription(parent context.Context, id int) (*subscription, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &subscription{id: id, cancel: cancel}, ctx
}

// attach hands an opened stream to the subscription. It returns false when
// the subscription was already released; the caller must close the stream.
func (s *subscription) attach(stream ports.SnapshotStream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.stream = stream
	return true
}

func (s *subscription) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}
