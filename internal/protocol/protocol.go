// Package protocol pairs each supported endpoint request shape with the frame
// decoder for its streamed response.
package protocol

import (
	"fmt"
	"strings"

	"github.com/dohr-michael/chatwidget/internal/frames"
	"github.com/dohr-michael/chatwidget/internal/media"
)

// Protocol names accepted in configuration.
const (
	NameJSONLines = "jsonl"
	NamePrefixed  = "prefixed"
)

// Request is one outbound chat request. It is built once per send and not
// modified afterwards.
type Request struct {
	Text      string
	Image     *media.Image
	AgentMode bool
}

// Protocol builds request bodies and decoders for one endpoint shape.
type Protocol interface {
	Name() string
	// Body returns the JSON-serializable request body. Stream is always true.
	Body(req Request) any
	Decoder() frames.Decoder
	// DefaultPath is the endpoint path the shape is usually served on.
	DefaultPath() string
}

// Options tunes the decoder of the selected protocol.
type Options struct {
	ContentPath string
	Prefix      string
}

// ByName resolves a configured protocol.
func ByName(name string, opts Options) (Protocol, error) {
	switch strings.ToLower(name) {
	case NameJSONLines, "ndjson", "a":
		d, _ := frames.New(frames.KindJSON, frames.Options{ContentPath: opts.ContentPath})
		return JSONLines{decoder: d}, nil
	case NamePrefixed, "sse", "b":
		d, _ := frames.New(frames.KindPrefixed, frames.Options{Prefix: opts.Prefix})
		return Prefixed{decoder: d}, nil
	default:
		return nil, fmt.Errorf("unknown protocol %q (want %q or %q)", name, NameJSONLines, NamePrefixed)
	}
}
