// Package chat implements the chat session controller: it owns the pending
// image and input state, sends one request at a time and turns the streamed
// response into display updates.
package chat

import "github.com/google/uuid"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Kind distinguishes text messages from image messages.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// ErrorText is the bot message shown when an exchange fails.
const ErrorText = "Sorry, something went wrong."

// Message is one entry of the transcript. Only the content of the bot
// message currently being streamed is ever modified.
type Message struct {
	ID      string
	Sender  Sender
	Kind    Kind
	Content string
	// Markup reports whether Content may contain HTML.
	Markup bool
}

func newMessage(sender Sender, kind Kind, content string, markup bool) Message {
	return Message{
		ID:      uuid.NewString(),
		Sender:  sender,
		Kind:    kind,
		Content: content,
		Markup:  markup,
	}
}

// UpdateType enumerates display updates.
type UpdateType int

const (
	// UpdateMessage appends Message at Index.
	UpdateMessage UpdateType = iota
	// UpdateDelta appends Delta to the message at Index.
	UpdateDelta
	// UpdateInput sets the input controls to InputEnabled.
	UpdateInput
)

func (t UpdateType) String() string {
	switch t {
	case UpdateMessage:
		return "message"
	case UpdateDelta:
		return "delta"
	case UpdateInput:
		return "input"
	default:
		return "unknown"
	}
}

// Update is a single change a display surface must apply.
type Update struct {
	Type         UpdateType
	Index        int
	Message      Message
	Delta        string
	InputEnabled bool
}

// Display receives updates in the order they happen.
type Display interface {
	Apply(Update)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(Update)

func (f DisplayFunc) Apply(u Update) { f(u) }

// Discard is a Display that ignores every update.
var Discard Display = DisplayFunc(func(Update) {})
