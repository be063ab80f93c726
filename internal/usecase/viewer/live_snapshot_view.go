// Package viewer implements the live cache snapshot terminal view.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/domain/snapshot"
	"cacheview/internal/errs"
	"cacheview/internal/ports"
)

type Options struct {
	URL   string
	Title string
}

// LiveSnapshotView subscribes to one snapshot stream and renders the last
// valid snapshot it received. All state changes happen in Update; View only
// reads state.
type LiveSnapshotView struct {
	ctx    context.Context
	dialer ports.StreamDialer
	url    string
	title  string

	sub       *subscription
	mounts    int
	state     snapshot.ConnState
	entries   snapshot.Snapshot
	received  int
	rejected  int
	lastError string
	unmounted bool
}

type streamOpenedMsg struct {
	sub    *subscription
	stream ports.SnapshotStream
	err    error
}

type frameMsg struct {
	sub     *subscription
	stream  ports.SnapshotStream
	payload []byte
}

type streamEndedMsg struct {
	sub *subscription
	err error
}

func NewLiveSnapshotView(ctx context.Context, dialer ports.StreamDialer, options Options) *LiveSnapshotView {
	title := strings.TrimSpace(options.Title)
	if title == "" {
		title = "Cache Viewer"
	}

	return &LiveSnapshotView{
		ctx:     logging.WithAttrs(logging.WithComponent(ctx, "usecase.viewer"), slog.String("url", options.URL)),
		dialer:  dialer,
		url:     strings.TrimSpace(options.URL),
		title:   title,
		state:   snapshot.StateIdle,
		entries: snapshot.Snapshot{},
	}
}

func (m *LiveSnapshotView) Init() tea.Cmd {
	return m.mount()
}

func (m *LiveSnapshotView) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case streamOpenedMsg:
		if msg.sub != m.sub || m.unmounted {
			return m, nil
		}
		if msg.err != nil {
			m.teardown()
			m.lastError = msg.err.Error()
			logging.Error(m.ctx, "snapshot stream unavailable", slog.Any("err", errs.Loggable(msg.err)))
			return m, nil
		}
		m.state = snapshot.StateOpen
		m.lastError = ""
		logging.Info(m.ctx, "snapshot stream open", slog.Int("mount", msg.sub.id), slog.String("stream_id", msg.stream.ID()))
		return m, waitForFrame(msg.sub, msg.stream)
	case frameMsg:
		if msg.sub != m.sub || !m.state.CanReceive() {
			return m, nil
		}
		m.apply(msg.payload)
		return m, waitForFrame(msg.sub, msg.stream)
	case streamEndedMsg:
		if msg.sub != m.sub || m.state == snapshot.StateClosed {
			return m, nil
		}
		m.teardown()
		if msg.err != nil {
			m.lastError = msg.err.Error()
			logging.Error(m.ctx, "snapshot stream lost", slog.Any("err", errs.Loggable(msg.err)))
		} else {
			m.lastError = "stream ended"
			logging.Warn(m.ctx, "snapshot stream ended")
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.Close()
			return m, tea.Quit
		case "r":
			if m.unmounted {
				return m, nil
			}
			m.teardown()
			return m, m.mount()
		}
	}
	return m, nil
}

func (m *LiveSnapshotView) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render(m.title))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"source=%s state=%s entries=%d received=%d rejected=%d",
		m.url,
		m.state,
		len(m.entries),
		m.received,
		m.rejected,
	)))
	builder.WriteString("\n\n")

	lines := m.Lines()
	if len(lines) == 0 {
		builder.WriteString(dimStyle.Render("- no data"))
		builder.WriteString("\n")
	} else {
		for _, line := range lines {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
	}
	builder.WriteString("\n")

	if m.lastError != "" {
		builder.WriteString(errorStyle.Render("! " + m.lastError))
		builder.WriteString("\n")
	}
	builder.WriteString(dimStyle.Render("Keys: r reconnect  q quit"))
	return builder.String()
}

// Lines is the rendered list: one formatted line per entry of the held snapshot.
func (m *LiveSnapshotView) Lines() []string {
	return snapshot.Lines(m.entries)
}

func (m *LiveSnapshotView) State() snapshot.ConnState {
	return m.state
}

// Close unmounts the view: the current subscription is released and no
// later message changes what View renders. It is safe to call repeatedly.
func (m *LiveSnapshotView) Close() {
	if m.unmounted {
		return
	}
	m.unmounted = true
	m.teardown()
}

// apply replaces the held snapshot with the decoded payload, or keeps it
// when the payload is malformed.
func (m *LiveSnapshotView) apply(payload []byte) {
	decoded, err := snapshot.Decode(payload)
	if err != nil {
		m.rejected++
		logging.Warn(m.ctx, "malformed snapshot message dropped",
			slog.Int("bytes", len(payload)),
			slog.Any("err", errs.Loggable(err)),
		)
		return
	}
	m.entries = decoded
	m.received++
}

func (m *LiveSnapshotView) mount() tea.Cmd {
	m.mounts++
	sub, dialCtx := newSubscription(m.ctx, m.mounts)
	m.sub = sub
	m.state = snapshot.StateIdle
	m.entries = snapshot.Snapshot{}

	dialer := m.dialer
	url := m.url
	return func() tea.Msg {
		stream, err := dialer.Dial(dialCtx, url)
		if err != nil {
			return streamOpenedMsg{sub: sub, err: err}
		}
		if !sub.attach(stream) {
			_ = stream.Close()
			return streamOpenedMsg{sub: sub, err: errReleased}
		}
		return streamOpenedMsg{sub: sub, stream: stream}
	}
}

func (m *LiveSnapshotView) teardown() {
	m.state = snapshot.StateClosed
	if m.sub == nil {
		return
	}
	if err := m.sub.release(); err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn(m.ctx, "closing snapshot stream failed", slog.Any("err", errs.Loggable(err)))
	}
}

func waitForFrame(sub *subscription, stream ports.SnapshotStream) tea.Cmd {
	return func() tea.Msg {
		payload, ok := <-stream.Messages()
		if !ok {
			return streamEndedMsg{sub: sub, err: stream.Err()}
		}
		return frameMsg{sub: sub, stream: stream, payload: payload}
	}
}
