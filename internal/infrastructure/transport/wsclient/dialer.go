// Package wsclient opens snapshot streams over WebSocket.
package wsclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/domain/snapshot"
	"cacheview/internal/ports"
)

const defaultReadLimit = 4 << 20

type Options struct {
	HandshakeTimeout time.Duration
	// ReadLimit caps a single inbound frame in bytes.
	ReadLimit int64
}

// Dialer implements ports.StreamDialer with gorilla/websocket.
type Dialer struct {
	dialer    *websocket.Dialer
	readLimit int64
}

var _ ports.StreamDialer = (*Dialer)(nil)

func NewDialer(opts Options) *Dialer {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := opts.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	return &Dialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: timeout,
		},
		readLimit: limit,
	}
}

// Dial opens one connection and starts its reader. Failures wrap
// snapshot.ErrConnection. No retry is attempted.
func (d *Dialer) Dial(ctx context.Context, url string) (ports.SnapshotStream, error) {
	logCtx := logging.WithComponent(ctx, "transport.wsclient")

	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: status %d: %w", snapshot.ErrConnection, url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %w", snapshot.ErrConnection, url, err)
	}
	conn.SetReadLimit(d.readLimit)

	stream := newStream(uuid.NewString(), conn)
	logging.Debug(logCtx, "stream opened", slog.String("stream_id", stream.id), slog.String("url", url))
	go stream.readLoop(logging.WithAttrs(logCtx, slog.String("stream_id", stream.id)))
	return stream, nil
}
