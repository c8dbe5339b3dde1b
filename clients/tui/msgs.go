package tui

import "github.com/dohr-michael/chatwidget/internal/chat"

// UpdateMsg carries one controller update into the bubbletea loop.
type UpdateMsg struct {
	Update chat.Update
}

// SubmitDoneMsg signals that a Submit call returned.
type SubmitDoneMsg struct {
	Err error
	seq int
}

// reloadedMsg carries the outcome of a /reload command.
type reloadedMsg struct {
	ctrl   *chat.Controller
	detail string
	err    error
}
