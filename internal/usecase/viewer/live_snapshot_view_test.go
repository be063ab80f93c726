package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"cacheview/internal/domain/snapshot"
	"cacheview/internal/ports"
)

type fakeStream struct {
	id       string
	messages chan []byte

	mu     sync.Mutex
	closes int
	err    error
}

func newFakeStream(id string) *fakeStream {
	return &fakeStream{id: id, messages: make(chan []byte, 8)}
}

func (s *fakeStream) ID() string              { return s.id }
func (s *fakeStream) Messages() <-chan []byte { return s.messages }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// fail ends the stream the way a dropped transport does.
func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.messages)
}

type fakeDialer struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
	gate    chan struct{}
	urls    []string
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (ports.SnapshotStream, error) {
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	stream := newFakeStream(fmt.Sprintf("stream-%d", len(d.streams)+1))
	d.streams = append(d.streams, stream)
	return stream, nil
}

func (d *fakeDialer) stream(t *testing.T, index int) *fakeStream {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if index >= len(d.streams) {
		t.Fatalf("dialer opened %d streams, want at least %d", len(d.streams), index+1)
	}
	return d.streams[index]
}

func newTestView(dialer ports.StreamDialer) *LiveSnapshotView {
	return NewLiveSnapshotView(context.Background(), dialer, Options{
		URL:   "ws://cache.test/ws",
		Title: "Test Viewer",
	})
}

// mountView runs Init and delivers the dial result, leaving the view open.
func mountView(t *testing.T) (*LiveSnapshotView, *fakeDialer) {
	t.Helper()

	dialer := &fakeDialer{}
	view := newTestView(dialer)
	cmd := view.Init()
	if cmd == nil {
		t.Fatalf("Init() returned nil command")
	}
	view.Update(cmd())
	if view.State() != snapshot.StateOpen {
		t.Fatalf("State() after mount = %s, want %s", view.State(), snapshot.StateOpen)
	}
	return view, dialer
}

func deliver(view *LiveSnapshotView, stream *fakeStream, payload string) tea.Cmd {
	_, cmd := view.Update(frameMsg{sub: view.sub, stream: stream, payload: []byte(payload)})
	return cmd
}

func TestLiveSnapshotViewScenarios(t *testing.T) {
	testCases := []struct {
		name     string
		messages []string
		want     []string
	}{
		{
			name:     "single entry",
			messages: []string{`[{"key":"a","value":"1","expiry":"30s"}]`},
			want:     []string{"a: 1 (Expires in 30s)"},
		},
		{
			name:     "empty snapshot",
			messages: []string{`[]`},
			want:     nil,
		},
		{
			name: "second message replaces the first",
			messages: []string{
				`[{"key":"a","value":"1","expiry":"30s"}]`,
				`[{"key":"b","value":"2","expiry":"5s"}]`,
			},
			want: []string{"b: 2 (Expires in 5s)"},
		},
		{
			name: "non json message is ignored",
			messages: []string{
				`[{"key":"a","value":"1","expiry":"30s"}]`,
				`not json`,
			},
			want: []string{"a: 1 (Expires in 30s)"},
		},
		{
			name: "order and duplicates are preserved",
			messages: []string{
				`[{"key":"z","value":"1","expiry":"1s"},{"key":"a","value":"2","expiry":"2s"},{"key":"z","value":"3","expiry":"3s"}]`,
			},
			want: []string{"z: 1 (Expires in 1s)", "a: 2 (Expires in 2s)", "z: 3 (Expires in 3s)"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			view, dialer := mountView(t)
			stream := dialer.stream(t, 0)
			for _, message := range testCase.messages {
				deliver(view, stream, message)
			}

			got := view.Lines()
			if len(got) != len(testCase.want) {
				t.Fatalf("Lines() = %q, want %q", got, testCase.want)
			}
			for i := range testCase.want {
				if got[i] != testCase.want[i] {
					t.Fatalf("Lines()[%d] = %q, want %q", i, got[i], testCase.want[i])
				}
			}
		})
	}
}

func TestLiveSnapshotViewRendersNoDataWhenEmpty(t *testing.T) {
	view, dialer := mountView(t)
	deliver(view, dialer.stream(t, 0), `[]`)

	rendered := view.View()
	if !strings.Contains(rendered, "no data") {
		t.Fatalf("View() = %q, want no data indication", rendered)
	}
	if !strings.Contains(rendered, "Test Viewer") {
		t.Fatalf("View() = %q, want title", rendered)
	}
}

func TestLiveSnapshotViewMalformedMessageKeepsRender(t *testing.T) {
	malformed := []string{
		`not json`,
		`{"key":"a","value":"1","expiry":"30s"}`,
		`[{"key":"a","value":"1"}]`,
		`[{"key":"a","value":1,"expiry":"30s"}]`,
		`[1,2,3]`,
		``,
	}

	view, dialer := mountView(t)
	stream := dialer.stream(t, 0)
	deliver(view, stream, `[{"key":"a","value":"1","expiry":"30s"}]`)
	before := view.Lines()

	for _, payload := range malformed {
		cmd := deliver(view, stream, payload)
		if cmd == nil {
			t.Fatalf("Update(%q) stopped reading the stream", payload)
		}
		after := view.Lines()
		if len(after) != 1 || after[0] != before[0] {
			t.Fatalf("Lines() after %q = %q, want %q", payload, after, before)
		}
	}
	if view.rejected != len(malformed) {
		t.Fatalf("rejected = %d, want %d", view.rejected, len(malformed))
	}
	if view.received != 1 {
		t.Fatalf("received = %d, want 1", view.received)
	}
	if view.State() != snapshot.StateOpen {
		t.Fatalf("State() = %s, want %s", view.State(), snapshot.StateOpen)
	}
}

func TestLiveSnapshotViewReadsFramesThroughCommands(t *testing.T) {
	view, dialer := mountView(t)
	stream := dialer.stream(t, 0)
	stream.messages <- []byte(`[{"key":"a","value":"1","expiry":"30s"}]`)

	// Re-deliver the open message to obtain the frame-reading command.
	_, cmd := view.Update(streamOpenedMsg{sub: view.sub, stream: stream})
	if cmd == nil {
		t.Fatalf("Update(streamOpenedMsg) returned nil command")
	}
	view.Update(cmd())

	got := view.Lines()
	if len(got) != 1 || got[0] != "a: 1 (Expires in 30s)" {
		t.Fatalf("Lines() = %q, want [a: 1 (Expires in 30s)]", got)
	}
}

func TestLiveSnapshotViewIgnoresMessagesAfterUnmount(t *testing.T) {
	view, dialer := mountView(t)
	stream := dialer.stream(t, 0)
	deliver(view, stream, `[{"key":"a","value":"1","expiry":"30s"}]`)
	sub := view.sub
	rendered := view.View()

	view.Close()
	view.Update(frameMsg{sub: sub, stream: stream, payload: []byte(`[{"key":"b","value":"2","expiry":"5s"}]`)})
	view.Update(streamEndedMsg{sub: sub, err: errors.New("late failure")})

	if got := view.Lines(); len(got) != 1 || got[0] != "a: 1 (Expires in 30s)" {
		t.Fatalf("Lines() after unmount = %q, want unchanged", got)
	}
	if view.State() != snapshot.StateClosed {
		t.Fatalf("State() = %s, want %s", view.State(), snapshot.StateClosed)
	}
	if strings.Contains(view.View(), "late failure") {
		t.Fatalf("View() shows an error delivered after unmount")
	}
	if !strings.Contains(rendered, "a: 1 (Expires in 30s)") {
		t.Fatalf("View() = %q, want entry line", rendered)
	}
}

func TestLiveSnapshotViewClosesExactlyOnce(t *testing.T) {
	testCases := []struct {
		name   string
		before func(view *LiveSnapshotView, stream *fakeStream)
	}{
		{
			name:   "before any message",
			before: func(*LiveSnapshotView, *fakeStream) {},
		},
		{
			name: "after messages",
			before: func(view *LiveSnapshotView, stream *fakeStream) {
				deliver(view, stream, `[{"key":"a","value":"1","expiry":"30s"}]`)
			},
		},
		{
			name: "with a message in flight",
			before: func(view *LiveSnapshotView, stream *fakeStream) {
				stream.messages <- []byte(`[{"key":"a","value":"1","expiry":"30s"}]`)
			},
		},
		{
			name: "after the transport failed",
			before: func(view *LiveSnapshotView, stream *fakeStream) {
				stream.fail(errors.New("connection reset"))
				view.Update(streamEndedMsg{sub: view.sub, err: stream.Err()})
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			view, dialer := mountView(t)
			stream := dialer.stream(t, 0)
			testCase.before(view, stream)

			view.Close()
			view.Close()
			if _, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
				t.Fatalf("Update(q) returned nil command, want quit")
			}

			if got := stream.closeCount(); got != 1 {
				t.Fatalf("stream closed %d times, want 1", got)
			}
		})
	}
}

func TestLiveSnapshotViewQuitKeyUnmounts(t *testing.T) {
	view, dialer := mountView(t)
	stream := dialer.stream(t, 0)

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("Update(ctrl+c) returned nil command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("Update(ctrl+c) command did not quit")
	}
	if got := stream.closeCount(); got != 1 {
		t.Fatalf("stream closed %d times, want 1", got)
	}
	if !view.unmounted {
		t.Fatalf("view not unmounted after quit")
	}
}

func TestLiveSnapshotViewDialFailure(t *testing.T) {
	dialer := &fakeDialer{err: fmt.Errorf("%w: dial refused", snapshot.ErrConnection)}
	view := newTestView(dialer)
	view.Update(view.Init()())

	if view.State() != snapshot.StateClosed {
		t.Fatalf("State() = %s, want %s", view.State(), snapshot.StateClosed)
	}
	if got := view.View(); !strings.Contains(got, "dial refused") || !strings.Contains(got, "no data") {
		t.Fatalf("View() = %q, want connection error and no data", got)
	}
	if len(dialer.urls) != 1 || dialer.urls[0] != "ws://cache.test/ws" {
		t.Fatalf("dialed urls = %v, want one dial of ws://cache.test/ws", dialer.urls)
	}
	if !view.sub.released {
		t.Fatalf("subscription still held after dial failure")
	}
	view.Close()
}

func TestLiveSnapshotViewKeepsSnapshotAfterTransportClosed(t *testing.T) {
	view, dialer := mountView(t)
	stream := dialer.stream(t, 0)
	deliver(view, stream, `[{"key":"a","value":"1","expiry":"30s"}]`)

	stream.fail(fmt.Errorf("%w: read: unexpected EOF", snapshot.ErrConnection))
	view.Update(waitForFrame(view.sub, stream)())

	if view.State() != snapshot.StateClosed {
		t.Fatalf("State() = %s, want %s", view.State(), snapshot.StateClosed)
	}
	if got := view.Lines(); len(got) != 1 || got[0] != "a: 1 (Expires in 30s)" {
		t.Fatalf("Lines() = %q, want last snapshot kept", got)
	}
	if !strings.Contains(view.View(), "unexpected EOF") {
		t.Fatalf("View() = %q, want connection error in status", view.View())
	}
	if got := stream.closeCount(); got != 1 {
		t.Fatalf("stream closed %d times, want 1", got)
	}

	deliver(view, stream, `[{"key":"b","value":"2","expiry":"5s"}]`)
	if got := view.Lines(); got[0] != "a: 1 (Expires in 30s)" {
		t.Fatalf("Lines() = %q, want closed stream to be inert", got)
	}

	view.Close()
	if got := stream.closeCount(); got != 1 {
		t.Fatalf("stream closed %d times after unmount, want 1", got)
	}
}

func TestLiveSnapshotViewClosesStreamOpenedAfterUnmount(t *testing.T) {
	dialer := &fakeDialer{gate: make(chan struct{})}
	view := newTestView(dialer)
	cmd := view.Init()

	result := make(chan tea.Msg, 1)
	go func() {
		result <- cmd()
	}()

	view.Close()
	close(dialer.gate)
	msg := <-result
	view.Update(msg)

	if got := dialer.stream(t, 0).closeCount(); got != 1 {
		t.Fatalf("late stream closed %d times, want 1", got)
	}
	if view.State() != snapshot.StateClosed {
		t.Fatalf("State() = %s, want %s", view.State(), snapshot.StateClosed)
	}
	if strings.Contains(view.View(), errReleased.Error()) {
		t.Fatalf("View() reports a release that happened after unmount")
	}
}

func TestLiveSnapshotViewRemount(t *testing.T) {
	view, dialer := mountView(t)
	first := dialer.stream(t, 0)
	deliver(view, first, `[{"key":"a","value":"1","expiry":"30s"}]`)
	oldSub := view.sub

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil {
		t.Fatalf("Update(r) returned nil command")
	}
	if got := first.closeCount(); got != 1 {
		t.Fatalf("first stream closed %d times, want 1", got)
	}
	if view.State() != snapshot.StateIdle {
		t.Fatalf("State() during remount = %s, want %s", view.State(), snapshot.StateIdle)
	}
	if got := view.Lines(); len(got) != 0 {
		t.Fatalf("Lines() after remount = %q, want empty snapshot for the new mount", got)
	}

	view.Update(cmd())
	second := dialer.stream(t, 1)
	if view.State() != snapshot.StateOpen {
		t.Fatalf("State() after remount = %s, want %s", view.State(), snapshot.StateOpen)
	}

	view.Update(frameMsg{sub: oldSub, stream: first, payload: []byte(`[{"key":"stale","value":"x","expiry":"1s"}]`)})
	if got := view.Lines(); len(got) != 0 {
		t.Fatalf("Lines() = %q, want stale stream ignored", got)
	}

	deliver(view, second, `[{"key":"b","value":"2","expiry":"5s"}]`)
	if got := view.Lines(); len(got) != 1 || got[0] != "b: 2 (Expires in 5s)" {
		t.Fatalf("Lines() = %q, want [b: 2 (Expires in 5s)]", got)
	}

	view.Close()
	if first.closeCount() != 1 || second.closeCount() != 1 {
		t.Fatalf("close counts = %d, %d, want 1, 1", first.closeCount(), second.closeCount())
	}
}
