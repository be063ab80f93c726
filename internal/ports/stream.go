package ports

import (
	"context"

	"cacheview/internal/domain/snapshot"
)

// SnapshotStream is an open subscription to a snapshot producer. It bundles
// the connection with its teardown: Close releases the connection at most
// once and may be called any number of times.
type SnapshotStream interface {
	ID() string
	// Messages yields raw text frames in arrival order. It is closed when the
	// stream ends for any reason.
	Messages() <-chan []byte
	// Err returns the terminal transport error once Messages is closed. It is
	// nil when the stream ended through Close.
	Err() error
	Close() error
}

// StreamDialer opens snapshot streams.
type StreamDialer interface {
	Dial(ctx context.Context, url string) (SnapshotStream, error)
}

// SnapshotPublisher pushes a snapshot to every connected viewer.
type SnapshotPublisher interface {
	Publish(ctx context.Context, s snapshot.Snapshot) error
}
