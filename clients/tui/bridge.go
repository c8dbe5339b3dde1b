package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dohr-michael/chatwidget/internal/chat"
)

// Bridge is a chat.Display that queues updates for the bubbletea loop. A
// single reader drains it, so updates reach the model in emission order.
type Bridge chan chat.Update

// NewBridge creates a bridge with the given buffer size.
func NewBridge(size int) Bridge {
	return make(Bridge, size)
}

// Apply enqueues u, blocking while the buffer is full.
func (b Bridge) Apply(u chat.Update) {
	b <- u
}

// Listen returns a command that waits for the next update.
func (b Bridge) Listen() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-b
		if !ok {
			return nil
		}
		return UpdateMsg{Update: u}
	}
}
