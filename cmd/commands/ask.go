package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dohr-michael/chatwidget/internal/chat"
	"github.com/dohr-michael/chatwidget/internal/render"
)

// NewAskCommand returns the ask subcommand.
func NewAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Send one message and print the streamed reply",
		ArgsUsage: "<message>",
		Flags: append(endpointFlags(),
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "Image file to attach",
			},
			&cli.StringFlag{
				Name:  "render",
				Usage: "Reply rendering: auto, markdown or raw",
				Value: "auto",
			},
		),
		Action: runAsk,
	}
}

func runAsk(ctx context.Context, cmd *cli.Command) error {
	message := strings.Join(cmd.Args().Slice(), " ")
	imagePath := cmd.String("image")
	if strings.TrimSpace(message) == "" && imagePath == "" {
		return fmt.Errorf("usage: chatwidget ask [--image PATH] <message>")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cmd, cfg, os.Stderr)

	markdown, err := wantMarkdown(cmd.String("render"), os.Stdout)
	if err != nil {
		return err
	}

	display := newAskDisplay(os.Stdout, os.Stderr, markdown)
	ctrl, err := newController(cfg, display)
	if err != nil {
		return err
	}

	if imagePath != "" {
		img, err := ctrl.AttachImageFile(imagePath)
		if err != nil {
			return fmt.Errorf("attach image: %w", err)
		}
		fmt.Fprintf(os.Stderr, "image: %s\n", img.Summary())
	}

	err = ctrl.Submit(ctx, message, cfg.Client.Agent)
	display.finish()

	var terr *chat.TransportError
	if errors.As(err, &terr) && ctx.Err() != nil {
		return fmt.Errorf("interrupted")
	}
	return err
}

func wantMarkdown(mode string, out *os.File) (bool, error) {
	switch mode {
	case "markdown":
		return true, nil
	case "raw":
		return false, nil
	case "auto", "":
		return term.IsTerminal(int(out.Fd())), nil
	default:
		return false, fmt.Errorf("--render: unknown mode %q", mode)
	}
}

// askDisplay prints the bot reply to out and everything else to errOut.
// In markdown mode the reply is buffered and rendered once complete.
type askDisplay struct {
	out      io.Writer
	errOut   io.Writer
	markdown bool

	reply   strings.Builder
	started bool
}

func newAskDisplay(out, errOut io.Writer, markdown bool) *askDisplay {
	return &askDisplay{out: out, errOut: errOut, markdown: markdown}
}

func (d *askDisplay) Apply(u chat.Update) {
	switch u.Type {
	case chat.UpdateMessage:
		m := u.Message
		switch {
		case m.Sender == chat.SenderUser && m.Kind == chat.KindImage:
			fmt.Fprintln(d.errOut, "> [image]")
		case m.Sender == chat.SenderUser:
			fmt.Fprintf(d.errOut, "> %s\n", m.Content)
		case m.Sender == chat.SenderBot && !m.Markup:
			d.finish()
			fmt.Fprintln(d.errOut, m.Content)
		case m.Sender == chat.SenderBot:
			d.started = true
		}
	case chat.UpdateDelta:
		if d.markdown {
			d.reply.WriteString(u.Delta)
			return
		}
		fmt.Fprint(d.out, u.Delta)
	}
}

// finish flushes the reply collected so far. It is safe to call twice.
func (d *askDisplay) finish() {
	if !d.started {
		return
	}
	d.started = false
	if d.markdown {
		fmt.Fprintln(d.out, render.Markdown(render.PlainText(d.reply.String()), 0))
		d.reply.Reset()
		return
	}
	fmt.Fprintln(d.out)
}
