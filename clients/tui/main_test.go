package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dohr-michael/chatwidget/clients/tui/molecules"
	"github.com/dohr-michael/chatwidget/internal/chat"
	"github.com/dohr-michael/chatwidget/internal/protocol"
)

type stubStreamer struct {
	body string
	err  error
}

func (s stubStreamer) Stream(context.Context, string, any) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func newTestModel(t *testing.T, s chat.Streamer) (MainModel, Bridge) {
	t.Helper()
	p, err := protocol.ByName(protocol.NameJSONLines, protocol.Options{})
	if err != nil {
		t.Fatal(err)
	}
	bridge := NewBridge(64)
	ctrl := chat.NewController(chat.Config{
		Endpoint:  "http://chat.invalid/chat/chat",
		Protocol:  p,
		Transport: s,
		Display:   bridge,
	})
	m := NewMainModel(Options{Controller: ctrl, Bridge: bridge, Endpoint: "chat.invalid"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(MainModel), bridge
}

// drain feeds every queued controller update into the model.
func drain(m MainModel, b Bridge) MainModel {
	for {
		select {
		case u := <-b:
			next, _ := m.Update(UpdateMsg{Update: u})
			m = next.(MainModel)
		default:
			return m
		}
	}
}

func submit(t *testing.T, m MainModel, b Bridge, text string) MainModel {
	t.Helper()
	next, cmd := m.Update(molecules.SubmitMsg{Content: text})
	m = next.(MainModel)
	if cmd == nil {
		t.Fatal("expected submit command")
	}
	done := cmd()
	m = drain(m, b)
	next, _ = m.Update(done)
	return next.(MainModel)
}

func TestSubmitStreamsIntoTranscript(t *testing.T) {
	body := `{"message":{"content":"Hi"}}` + "\n" + `{"message":{"content":" there"}}` + "\n"
	m, b := newTestModel(t, stubStreamer{body: body})

	m = submit(t, m, b, "hello")

	view := m.View()
	if !strings.Contains(view, "hello") {
		t.Errorf("view missing user message:\n%s", view)
	}
	if !strings.Contains(view, "Hi") || !strings.Contains(view, "there") {
		t.Errorf("view missing bot reply:\n%s", view)
	}
	if !m.input.Enabled() {
		t.Error("input should be enabled after the exchange")
	}
	if m.status.Busy() {
		t.Error("status should not be busy after the exchange")
	}
	if m.cancel != nil {
		t.Error("cancel func should be cleared")
	}
}

func TestSubmitFailureShowsErrorText(t *testing.T) {
	m, b := newTestModel(t, stubStreamer{err: errors.New("refused")})

	m = submit(t, m, b, "hello")

	if !strings.Contains(m.View(), chat.ErrorText) {
		t.Errorf("expected error text in view:\n%s", m.View())
	}
	if !m.input.Enabled() {
		t.Error("input should be re-enabled after failure")
	}
}

func TestInputDisabledWhileBusy(t *testing.T) {
	m, _ := newTestModel(t, stubStreamer{})

	next, _ := m.Update(UpdateMsg{Update: chat.Update{Type: chat.UpdateInput, InputEnabled: false}})
	m = next.(MainModel)
	if m.input.Enabled() || !m.status.Busy() {
		t.Fatal("input should be disabled while busy")
	}

	next, _ = m.Update(UpdateMsg{Update: chat.Update{Type: chat.UpdateInput, InputEnabled: true}})
	m = next.(MainModel)
	if !m.input.Enabled() || m.status.Busy() {
		t.Fatal("input should be enabled when idle")
	}
}

func TestSlashCommands(t *testing.T) {
	m, _ := newTestModel(t, stubStreamer{})

	next, _ := m.Update(molecules.SubmitMsg{Content: "/agent"})
	m = next.(MainModel)
	if !m.status.Agent() {
		t.Error("/agent should enable agent mode")
	}

	next, _ = m.Update(molecules.SubmitMsg{Content: "/image /does/not/exist.png"})
	m = next.(MainModel)
	if m.status.Image() != "" {
		t.Error("failed attach must not set an image")
	}
	if !strings.Contains(m.View(), "Cannot attach image") {
		t.Errorf("expected attach error note:\n%s", m.View())
	}

	next, _ = m.Update(molecules.SubmitMsg{Content: "/bogus"})
	m = next.(MainModel)
	if !strings.Contains(m.View(), "Unknown command: /bogus") {
		t.Errorf("expected unknown command note:\n%s", m.View())
	}

	_, cmd := m.Update(molecules.SubmitMsg{Content: "/quit"})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestReloadSwapsController(t *testing.T) {
	m, b := newTestModel(t, stubStreamer{})
	p, _ := protocol.ByName(protocol.NamePrefixed, protocol.Options{})
	replacement := chat.NewController(chat.Config{
		Endpoint:  "http://other.invalid/api/chat/chat",
		Protocol:  p,
		Transport: stubStreamer{body: "data: from prefixed\n"},
		Display:   b,
	})
	m.reload = func() (*chat.Controller, string, error) {
		return replacement, "other.invalid", nil
	}

	next, cmd := m.Update(molecules.SubmitMsg{Content: "/reload"})
	m = next.(MainModel)
	next, _ = m.Update(cmd())
	m = next.(MainModel)

	if m.ctrl != replacement {
		t.Fatal("controller was not replaced")
	}
	m = submit(t, m, b, "hi")
	if !strings.Contains(m.View(), "prefixed") {
		t.Errorf("expected reply through new controller:\n%s", m.View())
	}
}

// blockingStreamer holds the exchange open until its context is cancelled.
type blockingStreamer struct{}

func (blockingStreamer) Stream(ctx context.Context, _ string, _ any) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSecondSubmitKeepsCancel(t *testing.T) {
	m, b := newTestModel(t, blockingStreamer{})

	next, first := m.Update(molecules.SubmitMsg{Content: "one"})
	m = next.(MainModel)
	if first == nil {
		t.Fatal("expected submit command")
	}
	if m.input.Enabled() || !m.status.Busy() {
		t.Fatal("input should be disabled as soon as a message is submitted")
	}

	done := make(chan tea.Msg, 1)
	go func() { done <- first() }()
	for !m.ctrl.Busy() {
		time.Sleep(time.Millisecond)
	}

	next, second := m.Update(molecules.SubmitMsg{Content: "two"})
	m = next.(MainModel)
	if second != nil {
		t.Fatal("second submit should be refused while a reply is running")
	}
	if m.cancel == nil {
		t.Fatal("cancel func lost after second submit")
	}

	// A stale completion from an older exchange must not touch the live one.
	next, _ = m.Update(SubmitDoneMsg{Err: chat.ErrBusy, seq: m.seq - 1})
	m = next.(MainModel)
	if m.cancel == nil {
		t.Fatal("stale completion cleared the cancel func")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(MainModel)

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("esc did not cancel the running exchange")
	}
	m = drain(m, b)
	next, _ = m.Update(msg)
	m = next.(MainModel)

	var terr *chat.TransportError
	if !errors.As(msg.(SubmitDoneMsg).Err, &terr) {
		t.Errorf("err = %v, want TransportError", msg.(SubmitDoneMsg).Err)
	}
	if m.cancel != nil || !m.input.Enabled() || m.status.Busy() {
		t.Error("model should be idle after the cancelled exchange")
	}
	if !strings.Contains(m.View(), chat.ErrorText) {
		t.Errorf("expected error text in view:\n%s", m.View())
	}
}
