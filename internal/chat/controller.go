package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/chatwidget/internal/frames"
	"github.com/dohr-michael/chatwidget/internal/media"
	"github.com/dohr-michael/chatwidget/internal/protocol"
)

// DefaultChunkSize is the read size used when streaming a response.
const DefaultChunkSize = 4096

// Streamer opens a streaming POST exchange.
type Streamer interface {
	Stream(ctx context.Context, url string, body any) (io.ReadCloser, error)
}

// State is the session state owned by the controller. Callers only ever get
// copies.
type State struct {
	PendingImage *media.Image
	InputEnabled bool
}

// Config wires a Controller.
type Config struct {
	Endpoint     string
	Protocol     protocol.Protocol
	Transport    Streamer
	Display      Display
	ChunkSize    int
	MaxImageSize int
}

// Controller drives chat exchanges against a single endpoint. At most one
// exchange runs at a time; a second Submit while one is in flight fails with
// ErrBusy.
type Controller struct {
	id        string
	endpoint  string
	proto     protocol.Protocol
	transport Streamer
	display   Display
	chunkSize int
	maxImage  int

	busy atomic.Bool

	mu       sync.Mutex
	state    State
	messages []Message
}

// NewController creates a controller in the idle state.
func NewController(cfg Config) *Controller {
	display := cfg.Display
	if display == nil {
		display = Discard
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Controller{
		id:        uuid.NewString(),
		endpoint:  cfg.Endpoint,
		proto:     cfg.Protocol,
		transport: cfg.Transport,
		display:   display,
		chunkSize: chunkSize,
		maxImage:  cfg.MaxImageSize,
		state:     State{InputEnabled: true},
	}
}

// ID identifies the controller in logs.
func (c *Controller) ID() string { return c.id }

// State returns a copy of the session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a snapshot of the transcript.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Busy reports whether an exchange is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// AttachImage validates data and makes it the pending image, replacing any
// previous one.
func (c *Controller) AttachImage(data []byte) (*media.Image, error) {
	img, err := media.NewImage(data, c.maxImage)
	if err != nil {
		return nil, err
	}
	if err := c.setPendingImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

// AttachImageFile loads an image from disk and makes it the pending image.
func (c *Controller) AttachImageFile(path string) (*media.Image, error) {
	img, err := media.Load(path, c.maxImage)
	if err != nil {
		return nil, err
	}
	if err := c.setPendingImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

// ClearImage drops the pending image.
func (c *Controller) ClearImage() {
	c.mu.Lock()
	c.state.PendingImage = nil
	c.mu.Unlock()
}

func (c *Controller) setPendingImage(img *media.Image) error {
	if c.busy.Load() {
		return ErrBusy
	}
	c.mu.Lock()
	c.state.PendingImage = img
	c.mu.Unlock()
	slog.Debug("image attached", "session", c.id, "mime", img.MIME, "bytes", len(img.Data))
	return nil
}

// Submit sends text and the pending image, if any, and streams the reply into
// a new bot message. It blocks until the stream ends, fails, or ctx is
// cancelled. Whatever the outcome, input is re-enabled and the pending image
// cleared before it returns.
func (c *Controller) Submit(ctx context.Context, text string, agentMode bool) error {
	text = strings.TrimSpace(text)

	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	img := c.State().PendingImage
	if text == "" && img == nil {
		return ErrEmptyInput
	}

	c.setInput(false)
	defer c.reset()

	if text != "" {
		c.appendMessage(newMessage(SenderUser, KindText, text, false))
	}
	if img != nil {
		c.appendMessage(newMessage(SenderUser, KindImage, img.Markup(), true))
	}

	req := protocol.Request{Text: text, Image: img, AgentMode: agentMode}
	start := time.Now()
	slog.Info("sending chat request", "session", c.id, "protocol", c.proto.Name(),
		"endpoint", c.endpoint, "has_text", text != "", "has_image", img != nil, "agent", agentMode)

	body, err := c.transport.Stream(ctx, c.endpoint, c.proto.Body(req))
	if err != nil {
		return c.fail(&TransportError{Op: "open", Err: err})
	}
	defer body.Close()

	idx := c.appendMessage(newMessage(SenderBot, KindText, "", true))

	records, err := c.consume(ctx, body, idx)
	if err != nil {
		return c.fail(err)
	}

	slog.Info("chat response complete", "session", c.id, "records", records,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// consume reads body chunk by chunk, decoding each chunk completely before
// the next read. It returns the number of records that contributed text.
func (c *Controller) consume(ctx context.Context, body io.Reader, idx int) (int, error) {
	decoder := c.proto.Decoder()
	var splitter frames.Splitter
	buf := make([]byte, c.chunkSize)
	appended := 0

	for {
		if err := ctx.Err(); err != nil {
			return appended, &TransportError{Op: "read", Err: err}
		}

		n, err := body.Read(buf)
		if n > 0 {
			slog.Debug("chunk received", "session", c.id, "bytes", n)
			for _, rec := range splitter.Write(buf[:n]) {
				if c.applyRecord(decoder, idx, rec) {
					appended++
				}
			}
		}
		if errors.Is(err, io.EOF) {
			if rec, ok := splitter.Flush(); ok && c.applyRecord(decoder, idx, rec) {
				appended++
			}
			return appended, nil
		}
		if err != nil {
			return appended, &TransportError{Op: "read", Err: err}
		}
	}
}

func (c *Controller) applyRecord(decoder frames.Decoder, idx int, rec string) bool {
	text, err := decoder.Decode(rec)
	if err != nil {
		slog.Warn("discarding stream record", "session", c.id, "error", err)
		return false
	}
	if text == "" {
		return false
	}
	c.appendDelta(idx, text)
	return true
}

// fail surfaces a transport error to the user. Content already streamed stays.
func (c *Controller) fail(err error) error {
	slog.Error("chat exchange failed", "session", c.id, "error", err)
	c.appendMessage(newMessage(SenderBot, KindText, ErrorText, false))
	return err
}

func (c *Controller) reset() {
	c.mu.Lock()
	c.state.PendingImage = nil
	c.mu.Unlock()
	c.setInput(true)
}

func (c *Controller) setInput(enabled bool) {
	c.mu.Lock()
	c.state.InputEnabled = enabled
	c.mu.Unlock()
	c.display.Apply(Update{Type: UpdateInput, InputEnabled: enabled})
}

func (c *Controller) appendMessage(m Message) int {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	idx := len(c.messages) - 1
	c.mu.Unlock()
	c.display.Apply(Update{Type: UpdateMessage, Index: idx, Message: m})
	return idx
}

func (c *Controller) appendDelta(idx int, delta string) {
	c.mu.Lock()
	c.messages[idx].Content += delta
	c.mu.Unlock()
	c.display.Apply(Update{Type: UpdateDelta, Index: idx, Delta: delta})
}
