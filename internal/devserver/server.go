// Package devserver is a local stand-in for the remote chat service. It
// serves both request shapes and streams replies the way the production
// backends do.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/chatwidget/internal/protocol"
)

// Options configures a Server.
type Options struct {
	Host       string
	Port       int
	ChunkSize  int
	ChunkDelay time.Duration
	Responder  Responder
}

// Server streams replies over HTTP.
type Server struct {
	httpServer *http.Server
	responder  Responder
	chunkSize  int
	chunkDelay time.Duration
}

// NewServer creates a server; call Start to listen.
func NewServer(opts Options) *Server {
	responder := opts.Responder
	if responder == nil {
		responder = EchoResponder{}
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 50
	}

	s := &Server{
		responder:  responder,
		chunkSize:  chunkSize,
		chunkDelay: opts.ChunkDelay,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Post(protocol.JSONLines{}.DefaultPath(), s.handleJSONLines)
	r.Post(protocol.Prefixed{}.DefaultPath(), s.handlePrefixed)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: r,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("dev chat server listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type ndjsonMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ndjsonRecord struct {
	Message ndjsonMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (s *Server) handleJSONLines(w http.ResponseWriter, r *http.Request) {
	var body protocol.JSONLinesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	reply, err := s.responder.Respond(r.Context(), Prompt{
		Text:   body.Message,
		Images: body.Images,
		Agent:  body.Agent,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	s.stream(w, r, reply, func(chunk string) error {
		return enc.Encode(ndjsonRecord{Message: ndjsonMessage{Role: "assistant", Content: chunk}})
	})
	enc.Encode(ndjsonRecord{Message: ndjsonMessage{Role: "assistant"}, Done: true})
}

func (s *Server) handlePrefixed(w http.ResponseWriter, r *http.Request) {
	var body protocol.PrefixedBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var images []string
	if body.ImageBase64 != "" {
		images = []string{body.ImageBase64}
	}
	reply, err := s.responder.Respond(r.Context(), Prompt{
		Text:   body.Text,
		Images: images,
		Agent:  body.UseAgent,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !body.Stream {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"response": reply})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	s.stream(w, r, reply, func(chunk string) error {
		_, err := fmt.Fprintf(w, "data: %s\n\n", chunk)
		return err
	})
}

// stream writes reply in chunks, flushing after each and pausing between
// them. It stops early if the client goes away.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, reply string, write func(string) error) {
	flusher, _ := w.(http.Flusher)
	chunks := Chunks(reply, s.chunkSize)
	for i, chunk := range chunks {
		if err := write(chunk); err != nil {
			slog.Debug("stream write failed", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if s.chunkDelay > 0 && i < len(chunks)-1 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.chunkDelay):
			}
		}
	}
}
