package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dohr-michael/chatwidget/clients/tui/atoms"
	"github.com/dohr-michael/chatwidget/clients/tui/molecules"
	"github.com/dohr-michael/chatwidget/clients/tui/organisms"
	"github.com/dohr-michael/chatwidget/internal/chat"
)

const helpText = `Commands:
  /image PATH   attach an image to the next message
  /noimage      drop the pending image
  /agent        toggle agent mode
  /clear        clear the screen
  /reload       reload the config file
  /quit         exit
Keys: enter send, esc cancel reply, pgup/pgdown scroll, ctrl+c quit`

// ReloadFunc rebuilds the controller from a freshly loaded config. It returns
// the new controller and a short description of the endpoint.
type ReloadFunc func() (*chat.Controller, string, error)

// Options configures the root model.
type Options struct {
	Controller *chat.Controller
	Bridge     Bridge
	Agent      bool
	Endpoint   string
	Reload     ReloadFunc
}

// MainModel is the root bubbletea model.
type MainModel struct {
	ctrl   *chat.Controller
	bridge Bridge
	reload ReloadFunc
	cancel context.CancelFunc
	seq    int // current exchange, matched against SubmitDoneMsg
	width  int
	height int

	transcript organisms.Transcript
	input      molecules.CommandInput
	status     organisms.StatusBar
	spinner    atoms.Spinner
}

// NewMainModel creates the root model.
func NewMainModel(opts Options) MainModel {
	styles := organisms.TranscriptStyles{
		User:  UserStyle,
		Bot:   BotStyle,
		Error: ErrorStyle,
		Muted: MutedStyle,
	}
	m := MainModel{
		ctrl:       opts.Controller,
		bridge:     opts.Bridge,
		reload:     opts.Reload,
		transcript: organisms.NewTranscript(80, 20, styles),
		input:      molecules.NewCommandInput(),
		status:     organisms.NewStatusBar(StatusBarStyle, opts.Endpoint, opts.Agent),
		spinner:    atoms.NewSpinner(ColorBot),
	}
	m.transcript.AddNote(fmt.Sprintf("Connected to %s. Type /help for commands.", opts.Endpoint))
	return m
}

// Init starts listening for controller updates.
func (m MainModel) Init() tea.Cmd {
	return tea.Batch(m.bridge.Listen(), m.spinner.Tick)
}

// Update processes all incoming messages.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		transcriptHeight := m.height - 2 // input(1) + statusbar(1)
		if transcriptHeight < 1 {
			transcriptHeight = 1
		}
		m.transcript.SetSize(m.width, transcriptHeight)
		m.input.SetWidth(m.width)
		m.status.SetWidth(m.width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		m.transcript.Apply(msg.Update)
		if msg.Update.Type == chat.UpdateInput {
			m.input.SetEnabled(msg.Update.InputEnabled)
			m.status.SetBusy(!msg.Update.InputEnabled)
		}
		return m, m.bridge.Listen()

	case SubmitDoneMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.cancel = nil
		m.input.SetEnabled(true)
		m.status.SetBusy(false)
		m.status.SetImage("")
		m.input.SetAllowEmpty(false)
		m.input.Reset()
		var terr *chat.TransportError
		switch {
		case msg.Err == nil, errors.As(msg.Err, &terr):
			// The transcript already shows the outcome.
		default:
			m.transcript.AddNote(msg.Err.Error())
		}
		return m, nil

	case reloadedMsg:
		if msg.err != nil {
			m.transcript.AddNote(fmt.Sprintf("Reload failed: %v", msg.err))
			return m, nil
		}
		m.ctrl = msg.ctrl
		m.status.SetEndpoint(msg.detail)
		m.status.SetImage("")
		m.input.SetAllowEmpty(false)
		m.transcript.AddNote(fmt.Sprintf("Config reloaded, now using %s.", msg.detail))
		return m, nil

	case molecules.SubmitMsg:
		return m.handleSubmit(msg)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m MainModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case tea.KeyEsc:
		if m.cancel != nil {
			slog.Info("cancelling in-flight exchange", "session", m.ctrl.ID())
			m.cancel()
		}
		return m, nil

	case tea.KeyPgUp:
		m.transcript.PageUp()
		return m, nil

	case tea.KeyPgDown:
		m.transcript.PageDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m MainModel) handleSubmit(msg molecules.SubmitMsg) (tea.Model, tea.Cmd) {
	if strings.HasPrefix(msg.Content, "/") {
		return m.handleSlashCommand(msg.Content)
	}

	if m.cancel != nil || m.ctrl.Busy() {
		m.transcript.AddNote("A reply is still streaming, press esc to cancel it.")
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.seq++
	m.input.SetEnabled(false)
	m.status.SetBusy(true)
	ctrl := m.ctrl
	agent := m.status.Agent()
	seq := m.seq
	return m, func() tea.Msg {
		defer cancel()
		return SubmitDoneMsg{Err: ctrl.Submit(ctx, msg.Content, agent), seq: seq}
	}
}

func (m MainModel) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	command := parts[0]

	switch command {
	case "/quit":
		return m, tea.Quit

	case "/help":
		m.transcript.AddNote(helpText)
		return m, nil

	case "/clear":
		m.transcript.Clear()
		return m, nil

	case "/agent":
		m.status.SetAgent(!m.status.Agent())
		state := "off"
		if m.status.Agent() {
			state = "on"
		}
		m.transcript.AddNote("Agent mode " + state + ".")
		return m, nil

	case "/image":
		if len(parts) < 2 {
			m.transcript.AddNote("Usage: /image PATH")
			return m, nil
		}
		path := strings.TrimSpace(strings.TrimPrefix(input, "/image"))
		img, err := m.ctrl.AttachImageFile(path)
		if err != nil {
			m.transcript.AddNote(fmt.Sprintf("Cannot attach image: %v", err))
			return m, nil
		}
		m.status.SetImage(img.Summary())
		m.input.SetAllowEmpty(true)
		m.transcript.AddNote(fmt.Sprintf("Image selected ✓ (%s)", img.Summary()))
		return m, nil

	case "/noimage":
		m.ctrl.ClearImage()
		m.status.SetImage("")
		m.input.SetAllowEmpty(false)
		return m, nil

	case "/reload":
		if m.reload == nil {
			m.transcript.AddNote("Reload is not available.")
			return m, nil
		}
		if m.ctrl.Busy() {
			m.transcript.AddNote("Wait for the current reply before reloading.")
			return m, nil
		}
		reload := m.reload
		return m, func() tea.Msg {
			ctrl, detail, err := reload()
			return reloadedMsg{ctrl: ctrl, detail: detail, err: err}
		}

	default:
		m.transcript.AddNote(fmt.Sprintf("Unknown command: %s", command))
		return m, nil
	}
}

// View renders the full TUI layout.
func (m MainModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.transcript.View(),
		m.input.View(),
		m.status.View(m.spinner.View()),
	)
}
