package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cacheview/internal/domain/snapshot"
	"cacheview/internal/infrastructure/transport/wsclient"
	"cacheview/internal/ports"
)

func dialStream(t *testing.T, api *testAPI) ports.SnapshotStream {
	t.Helper()

	stream, err := wsclient.NewDialer(wsclient.Options{}).Dial(context.Background(), "ws"+strings.TrimPrefix(api.srv.URL, "http")+"/ws")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() {
		_ = stream.Close()
	})
	return stream
}

func nextSnapshot(t *testing.T, stream ports.SnapshotStream) snapshot.Snapshot {
	t.Helper()

	select {
	case payload, ok := <-stream.Messages():
		if !ok {
			t.Fatalf("stream closed: %v", stream.Err())
		}
		decoded, err := snapshot.Decode(payload)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		return decoded
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return nil
	}
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubSendsInitialThenPublishedSnapshots(t *testing.T) {
	api := setupAPI(t)
	ctx := context.Background()

	if _, err := api.client.Put(ctx, "a", "1", 30*time.Second); err != nil {
		t.Fatalf("Put(a) error = %v", err)
	}

	stream := dialStream(t, api)
	initial := nextSnapshot(t, stream)
	if len(initial) != 1 || initial[0].Key != "a" {
		t.Fatalf("initial snapshot = %+v", initial)
	}
	waitForClients(t, api.hub, 1)

	if _, err := api.client.Put(ctx, "b", "2", 10*time.Second); err != nil {
		t.Fatalf("Put(b) error = %v", err)
	}
	next := nextSnapshot(t, stream)
	lines := snapshot.Lines(next)
	if len(lines) != 2 || lines[0] != "a: 1 (Expires in 30s)" || lines[1] != "b: 2 (Expires in 10s)" {
		t.Fatalf("published lines = %q", lines)
	}
}

func TestHubDropsClientOnDisconnect(t *testing.T) {
	api := setupAPI(t)

	stream := dialStream(t, api)
	_ = nextSnapshot(t, stream)
	waitForClients(t, api.hub, 1)

	if err := stream.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	waitForClients(t, api.hub, 0)
}

func TestHubCloseDisconnectsViewers(t *testing.T) {
	api := setupAPI(t)

	stream := dialStream(t, api)
	_ = nextSnapshot(t, stream)
	waitForClients(t, api.hub, 1)

	api.hub.Close()

	select {
	case _, ok := <-stream.Messages():
		if ok {
			t.Fatalf("expected stream to end after hub close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not end after hub close")
	}
	if err := api.hub.Publish(context.Background(), snapshot.Snapshot{}); err == nil {
		t.Fatalf("Publish() after Close expected error")
	}
}

func TestHubDropsSlowViewer(t *testing.T) {
	hub := NewHub(HubOptions{ClientBuffer: 1, WriteTimeout: 30 * time.Second})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(r.Context(), w, r, nil)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	// The viewer never reads, so socket buffers fill and the queue backs up.
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	large := snapshot.Snapshot{{Key: "k", Value: strings.Repeat("x", 1<<20), Expiry: "1s"}}
	for i := 0; i < 256 && hub.ClientCount() > 0; i++ {
		if err := hub.Publish(context.Background(), large); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("ClientCount() = %d, want slow viewer dropped", got)
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("connection still open after drop")
			}
			break
		}
	}
}
