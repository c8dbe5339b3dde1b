package organisms

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// StatusBar shows the exchange state and the pending send options.
type StatusBar struct {
	style    lipgloss.Style
	width    int
	busy     bool
	agent    bool
	endpoint string
	image    string
}

// NewStatusBar creates a status bar.
func NewStatusBar(style lipgloss.Style, endpoint string, agent bool) StatusBar {
	return StatusBar{style: style, endpoint: endpoint, agent: agent}
}

func (s *StatusBar) SetWidth(w int)          { s.width = w }
func (s *StatusBar) SetBusy(b bool)          { s.busy = b }
func (s *StatusBar) SetAgent(a bool)         { s.agent = a }
func (s *StatusBar) SetEndpoint(e string)    { s.endpoint = e }
func (s *StatusBar) SetImage(summary string) { s.image = summary }

func (s StatusBar) Busy() bool    { return s.busy }
func (s StatusBar) Agent() bool   { return s.agent }
func (s StatusBar) Image() string { return s.image }

// View renders the bar. spinner is shown while busy.
func (s StatusBar) View(spinner string) string {
	state := "ready"
	if s.busy {
		state = spinner + " waiting for reply (esc to cancel)"
	}
	mode := "direct"
	if s.agent {
		mode = "agent"
	}
	parts := []string{state, mode, s.endpoint}
	if s.image != "" {
		parts = append(parts, fmt.Sprintf("image: %s", s.image))
	}
	style := s.style
	if s.width > 0 {
		style = style.Width(s.width)
	}
	return style.Render(strings.Join(parts, " | "))
}
