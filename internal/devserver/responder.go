package devserver

import (
	"context"
	"fmt"
	"strings"
)

// Prompt is what the server received from a client, normalised across both
// request shapes.
type Prompt struct {
	Text   string
	Images []string
	Agent  bool
}

// Responder produces the full reply text for a prompt. The server takes care
// of chunking and streaming it.
type Responder interface {
	Respond(ctx context.Context, p Prompt) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, p Prompt) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// EchoResponder describes the prompt back to the sender.
type EchoResponder struct{}

func (EchoResponder) Respond(_ context.Context, p Prompt) (string, error) {
	var b strings.Builder
	mode := "direct"
	if p.Agent {
		mode = "agent"
	}
	fmt.Fprintf(&b, "[%s] ", mode)
	if p.Text != "" {
		fmt.Fprintf(&b, "You said: %s", p.Text)
	} else {
		b.WriteString("You sent no text.")
	}
	if n := len(p.Images); n > 0 {
		fmt.Fprintf(&b, " (%d image(s) received)", n)
	}
	return b.String(), nil
}

// Chunks splits s into pieces of at most size runes.
func Chunks(s string, size int) []string {
	if size <= 0 {
		return []string{s}
	}
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}
