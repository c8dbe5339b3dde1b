// Package organisms provides the high-level panels of the chat TUI.
package organisms

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dohr-michael/chatwidget/internal/chat"
	"github.com/dohr-michael/chatwidget/internal/render"
)

// TranscriptStyles are injected by the root model.
type TranscriptStyles struct {
	User  lipgloss.Style
	Bot   lipgloss.Style
	Error lipgloss.Style
	Muted lipgloss.Style
}

type entry struct {
	msg    chat.Message
	system bool // local note, not part of the chat transcript
}

// Transcript mirrors the controller's messages in a scrollable viewport.
type Transcript struct {
	viewport  viewport.Model
	entries   []entry
	index     map[int]int // controller message index -> entry position
	streaming int         // controller index of the bot message receiving deltas, -1 if none
	width     int
	styles    TranscriptStyles
}

// NewTranscript creates a transcript of the given size.
func NewTranscript(width, height int, styles TranscriptStyles) Transcript {
	vp := viewport.New(width, height)
	// Scrolling is driven explicitly by PageUp/PageDown from the root model.
	vp.KeyMap = viewport.KeyMap{}
	vp.MouseWheelEnabled = false
	return Transcript{
		viewport:  vp,
		index:     map[int]int{},
		streaming: -1,
		width:     width,
		styles:    styles,
	}
}

// SetSize updates the viewport dimensions.
func (t *Transcript) SetSize(width, height int) {
	t.width = width
	t.viewport.Width = width
	t.viewport.Height = height
	t.refresh()
}

// Apply mirrors one controller update.
func (t *Transcript) Apply(u chat.Update) {
	switch u.Type {
	case chat.UpdateMessage:
		t.index[u.Index] = len(t.entries)
		t.entries = append(t.entries, entry{msg: u.Message})
		if u.Message.Sender == chat.SenderBot && u.Message.Content == "" {
			t.streaming = u.Index
		}
	case chat.UpdateDelta:
		if pos, ok := t.index[u.Index]; ok {
			t.entries[pos].msg.Content += u.Delta
		}
	case chat.UpdateInput:
		if u.InputEnabled {
			t.streaming = -1
		}
	}
	t.refresh()
}

// AddNote appends a local system note.
func (t *Transcript) AddNote(text string) {
	t.entries = append(t.entries, entry{msg: chat.Message{Content: text}, system: true})
	t.refresh()
}

// Clear removes everything currently shown. Controller indexes keep mapping
// to nothing, so late deltas for cleared messages are dropped.
func (t *Transcript) Clear() {
	t.entries = nil
	t.index = map[int]int{}
	t.refresh()
}

// Len returns the number of visible entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// PageUp scrolls up by one page.
func (t *Transcript) PageUp() {
	t.viewport.ViewUp()
}

// PageDown scrolls down by one page.
func (t *Transcript) PageDown() {
	t.viewport.ViewDown()
}

func (t *Transcript) refresh() {
	var sb strings.Builder
	for i, e := range t.entries {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(t.renderEntry(e))
	}
	t.viewport.SetContent(sb.String())
	t.viewport.GotoBottom()
}

func (t *Transcript) renderEntry(e entry) string {
	if e.system {
		return t.styles.Muted.Render(e.msg.Content)
	}

	m := e.msg
	switch {
	case m.Sender == chat.SenderUser && m.Kind == chat.KindImage:
		return t.styles.User.Render("You") + "\n" + t.styles.Muted.Render("[image]")
	case m.Sender == chat.SenderUser:
		return t.styles.User.Render("You") + "\n" + m.Content
	case !m.Markup && m.Content == chat.ErrorText:
		return t.styles.Bot.Render("Bot") + "\n" + t.styles.Error.Render(m.Content)
	}

	body := m.Content
	if m.Markup {
		body = render.PlainText(body)
	}
	if t.isStreaming(m) {
		if body == "" {
			body = t.styles.Muted.Render("...")
		}
	} else {
		body = render.Markdown(body, t.width)
	}
	return t.styles.Bot.Render("Bot") + "\n" + body
}

func (t *Transcript) isStreaming(m chat.Message) bool {
	if t.streaming < 0 {
		return false
	}
	pos, ok := t.index[t.streaming]
	return ok && t.entries[pos].msg.ID == m.ID
}

// Update forwards framework messages to the viewport.
func (t Transcript) Update(msg tea.Msg) (Transcript, tea.Cmd) {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

// View renders the viewport.
func (t Transcript) View() string {
	return t.viewport.View()
}
