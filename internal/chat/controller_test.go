package chat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dohr-michael/chatwidget/internal/protocol"
	"github.com/dohr-michael/chatwidget/internal/transport"
)

// recorder collects updates and checks that input is never re-enabled while
// the exchange is still producing content.
type recorder struct {
	mu      sync.Mutex
	updates []Update
	enabled bool
}

func newRecorder() *recorder { return &recorder{enabled: true} }

func (r *recorder) Apply(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Type == UpdateInput {
		r.enabled = u.InputEnabled
	}
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

// fakeStreamer replays canned chunks, one per Read call.
type fakeStreamer struct {
	chunks  []string
	openErr error
	readErr error
	gotBody any
	onRead  func()
}

func (f *fakeStreamer) Stream(_ context.Context, _ string, body any) (io.ReadCloser, error) {
	f.gotBody = body
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &chunkReader{chunks: f.chunks, err: f.readErr, onRead: f.onRead}, nil
}

type chunkReader struct {
	chunks []string
	err    error
	onRead func()
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.onRead != nil {
		r.onRead()
	}
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

func newTestController(t *testing.T, protoName string, s Streamer, d Display) *Controller {
	t.Helper()
	p, err := protocol.ByName(protoName, protocol.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return NewController(Config{
		Endpoint:  "http://chat.invalid/chat",
		Protocol:  p,
		Transport: s,
		Display:   d,
	})
}

var ignoreID = cmpopts.IgnoreFields(Message{}, "ID")

func TestSubmit_StructuredStream(t *testing.T) {
	s := &fakeStreamer{chunks: []string{
		`{"message":{"content":"Hi"}}` + "\n",
		`{"message":{"content":" there"}}` + "\n",
	}}
	rec := newRecorder()
	c := newTestController(t, protocol.NameJSONLines, s, rec)

	if err := c.Submit(context.Background(), "hello", false); err != nil {
		t.Fatal(err)
	}

	want := []Message{
		{Sender: SenderUser, Kind: KindText, Content: "hello"},
		{Sender: SenderBot, Kind: KindText, Content: "Hi there", Markup: true},
	}
	if diff := cmp.Diff(want, c.Messages(), ignoreID); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}

	st := c.State()
	if !st.InputEnabled || st.PendingImage != nil {
		t.Errorf("unexpected final state %+v", st)
	}

	updates := rec.all()
	if updates[0].Type != UpdateInput || updates[0].InputEnabled {
		t.Errorf("first update should disable input, got %+v", updates[0])
	}
	last := updates[len(updates)-1]
	if last.Type != UpdateInput || !last.InputEnabled {
		t.Errorf("last update should enable input, got %+v", last)
	}
	for _, u := range updates[1 : len(updates)-1] {
		if u.Type == UpdateInput {
			t.Errorf("input toggled mid-exchange: %+v", u)
		}
	}
}

func TestSubmit_ConcatenatesInArrivalOrder(t *testing.T) {
	parts := []string{"a", "b", "<i>c</i>", " d ", "é"}
	var chunks []string
	for _, p := range parts {
		chunks = append(chunks, `{"message":{"content":"`+p+`"}}`+"\n")
	}
	// Re-split the stream at arbitrary byte offsets.
	joined := strings.Join(chunks, "")
	s := &fakeStreamer{chunks: []string{joined[:7], joined[7:40], joined[40:41], joined[41:]}}
	c := newTestController(t, protocol.NameJSONLines, s, nil)

	if err := c.Submit(context.Background(), "go", false); err != nil {
		t.Fatal(err)
	}
	msgs := c.Messages()
	if got := msgs[len(msgs)-1].Content; got != strings.Join(parts, "") {
		t.Errorf("got %q, want %q", got, strings.Join(parts, ""))
	}
}

func TestSubmit_EmptyAndMalformedRecordsContributeNothing(t *testing.T) {
	s := &fakeStreamer{chunks: []string{
		`{"message":{"content":"x"}}` + "\n",
		`{"message":{"content":""}}` + "\n",
		`{"message":` + "\n",
		"\n   \n",
		`{"done":true}`,
	}}
	rec := newRecorder()
	c := newTestController(t, protocol.NameJSONLines, s, rec)

	if err := c.Submit(context.Background(), "q", false); err != nil {
		t.Fatal(err)
	}
	msgs := c.Messages()
	if got := msgs[len(msgs)-1].Content; got != "x" {
		t.Errorf("got %q, want %q", got, "x")
	}

	deltas := 0
	for _, u := range rec.all() {
		if u.Type == UpdateDelta {
			deltas++
		}
	}
	if deltas != 1 {
		t.Errorf("expected 1 delta update, got %d", deltas)
	}
}

func TestSubmit_PrefixedStream(t *testing.T) {
	s := &fakeStreamer{chunks: []string{
		"data: Hello, \n\n",
		"event: ping\n",
		"data: world\n\ndata:  !",
	}}
	c := newTestController(t, protocol.NamePrefixed, s, nil)

	if err := c.Submit(context.Background(), "hi", true); err != nil {
		t.Fatal(err)
	}
	msgs := c.Messages()
	if got := msgs[len(msgs)-1].Content; got != "Hello, world !" {
		t.Errorf("got %q, want %q", got, "Hello, world !")
	}

	body, ok := s.gotBody.(protocol.PrefixedBody)
	if !ok {
		t.Fatalf("expected PrefixedBody, got %T", s.gotBody)
	}
	if body.Text != "hi" || !body.UseAgent || !body.Stream || body.ImageBase64 != "" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestSubmit_ZeroRecords(t *testing.T) {
	c := newTestController(t, protocol.NameJSONLines, &fakeStreamer{}, nil)
	if err := c.Submit(context.Background(), "hello", false); err != nil {
		t.Fatal(err)
	}
	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].Sender != SenderBot || msgs[1].Content != "" {
		t.Errorf("expected empty bot placeholder, got %+v", msgs)
	}
}

func TestSubmit_TransportFailsImmediately(t *testing.T) {
	s := &fakeStreamer{openErr: errors.New("connection refused")}
	rec := newRecorder()
	c := newTestController(t, protocol.NameJSONLines, s, rec)
	if _, err := c.AttachImage(pngBytes(t)); err != nil {
		t.Fatal(err)
	}

	err := c.Submit(context.Background(), "hello", false)
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "open" {
		t.Fatalf("expected open TransportError, got %v", err)
	}

	var bots []Message
	for _, m := range c.Messages() {
		if m.Sender == SenderBot {
			bots = append(bots, m)
		}
	}
	if len(bots) != 1 || bots[0].Content != ErrorText {
		t.Errorf("expected exactly one error bot message, got %+v", bots)
	}

	st := c.State()
	if !st.InputEnabled {
		t.Error("input should be re-enabled")
	}
	if st.PendingImage != nil {
		t.Error("pending image should be cleared")
	}
	if !rec.enabled {
		t.Error("display input should be re-enabled")
	}
}

func TestSubmit_ReadErrorKeepsPartialContent(t *testing.T) {
	s := &fakeStreamer{
		chunks:  []string{`{"message":{"content":"partial"}}` + "\n"},
		readErr: errors.New("connection reset"),
	}
	c := newTestController(t, protocol.NameJSONLines, s, nil)

	err := c.Submit(context.Background(), "hello", false)
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "read" {
		t.Fatalf("expected read TransportError, got %v", err)
	}

	want := []Message{
		{Sender: SenderUser, Kind: KindText, Content: "hello"},
		{Sender: SenderBot, Kind: KindText, Content: "partial", Markup: true},
		{Sender: SenderBot, Kind: KindText, Content: ErrorText},
	}
	if diff := cmp.Diff(want, c.Messages(), ignoreID); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_ImageOnly(t *testing.T) {
	s := &fakeStreamer{}
	c := newTestController(t, protocol.NameJSONLines, s, nil)
	img, err := c.AttachImage(pngBytes(t))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Submit(context.Background(), "   ", false); err != nil {
		t.Fatal(err)
	}

	var users []Message
	for _, m := range c.Messages() {
		if m.Sender == SenderUser {
			users = append(users, m)
		}
	}
	if len(users) != 1 || users[0].Kind != KindImage || !users[0].Markup {
		t.Fatalf("expected a single user image message, got %+v", users)
	}
	if users[0].Content != img.Markup() {
		t.Errorf("unexpected image markup %q", users[0].Content)
	}

	body, ok := s.gotBody.(protocol.JSONLinesBody)
	if !ok {
		t.Fatalf("expected JSONLinesBody, got %T", s.gotBody)
	}
	if body.Message != "" {
		t.Errorf("expected empty message field, got %q", body.Message)
	}
	if len(body.Images) != 1 || body.Images[0] != img.DataURL() {
		t.Errorf("unexpected images %v", body.Images)
	}
}

func TestSubmit_TextBeforeImage(t *testing.T) {
	c := newTestController(t, protocol.NameJSONLines, &fakeStreamer{}, nil)
	if _, err := c.AttachImage(pngBytes(t)); err != nil {
		t.Fatal(err)
	}
	if err := c.Submit(context.Background(), "what is this leaf?", false); err != nil {
		t.Fatal(err)
	}
	msgs := c.Messages()
	if msgs[0].Kind != KindText || msgs[1].Kind != KindImage || msgs[2].Sender != SenderBot {
		t.Errorf("unexpected order: %+v", msgs)
	}
}

func TestSubmit_EmptyInput(t *testing.T) {
	rec := newRecorder()
	c := newTestController(t, protocol.NameJSONLines, &fakeStreamer{}, rec)
	if err := c.Submit(context.Background(), " \n", false); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if len(rec.all()) != 0 {
		t.Errorf("expected no updates, got %d", len(rec.all()))
	}
	if c.Busy() {
		t.Error("controller should be idle")
	}
}

func TestSubmit_Busy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s := &fakeStreamer{
		chunks: []string{`{"message":{"content":"ok"}}` + "\n"},
		onRead: func() {
			once.Do(func() {
				close(entered)
				<-release
			})
		},
	}
	c := newTestController(t, protocol.NameJSONLines, s, nil)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "first", false) }()
	<-entered

	if !c.Busy() {
		t.Error("expected busy while streaming")
	}
	if c.State().InputEnabled {
		t.Error("input should be disabled while streaming")
	}
	if err := c.Submit(context.Background(), "second", false); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if _, err := c.AttachImage(pngBytes(t)); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy on attach, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(c.Messages()) != 2 {
		t.Errorf("second submit must not add messages, got %d", len(c.Messages()))
	}
}

func TestSubmit_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"first"}}` + "\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	p, _ := protocol.ByName(protocol.NameJSONLines, protocol.Options{})
	rec := newRecorder()
	c := NewController(Config{
		Endpoint:  srv.URL,
		Protocol:  p,
		Transport: transport.NewClient(transport.Options{}),
		Display:   rec,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			msgs := c.Messages()
			if len(msgs) == 2 && msgs[1].Content == "first" {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	err := c.Submit(ctx, "hello", false)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	msgs := c.Messages()
	if msgs[len(msgs)-1].Content != ErrorText {
		t.Errorf("expected error message last, got %+v", msgs[len(msgs)-1])
	}
	if !c.State().InputEnabled {
		t.Error("input should be re-enabled after cancellation")
	}
}

func TestSubmit_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := protocol.ByName(protocol.NamePrefixed, protocol.Options{})
	c := NewController(Config{
		Endpoint:  srv.URL,
		Protocol:  p,
		Transport: transport.NewClient(transport.Options{}),
	})

	err := c.Submit(context.Background(), "hello", false)
	var serr *transport.StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("expected wrapped StatusError, got %v", err)
	}
	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].Content != ErrorText {
		t.Errorf("unexpected transcript %+v", msgs)
	}
}
