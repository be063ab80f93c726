package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/domain/snapshot"
	"cacheview/internal/ports"
)

const closeWriteTimeout = time.Second

// Stream is one open WebSocket subscription. Frames are handed over on an
// unbuffered channel, so nothing is queued once Close has been called.
type Stream struct {
	id       string
	conn     *websocket.Conn
	messages chan []byte
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error

	mu  sync.Mutex
	err error
}

var _ ports.SnapshotStream = (*Stream)(nil)

func newStream(id string, conn *websocket.Conn) *Stream {
	return &Stream{
		id:       id,
		conn:     conn,
		messages: make(chan []byte),
		done:     make(chan struct{}),
	}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Messages() <-chan []byte { return s.messages }

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close sends a close frame and releases the socket. Only the first call
// touches the connection; later calls return the first result.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		deadline := time.Now().Add(closeWriteTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Stream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Stream) readLoop(ctx context.Context) {
	defer close(s.messages)

	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed() {
				return
			}
			s.fail(ctx, err)
			return
		}
		if kind != websocket.TextMessage {
			logging.Debug(ctx, "non-text frame ignored", slog.Int("frame_type", kind))
			continue
		}

		select {
		case s.messages <- payload:
		case <-s.done:
			return
		}
	}
}

func (s *Stream) fail(ctx context.Context, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		err = fmt.Errorf("%w: closed by server (code %d): %w", snapshot.ErrConnection, closeErr.Code, err)
	} else {
		err = fmt.Errorf("%w: read: %w", snapshot.ErrConnection, err)
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	logging.Debug(ctx, "stream ended", slog.String("reason", err.Error()))
	_ = s.Close()
}
