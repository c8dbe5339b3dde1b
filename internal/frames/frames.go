// Package frames decodes streamed chat records into display text.
//
// A response body is a sequence of newline-delimited records. Each record is
// handed to a Decoder, which yields the text it contributes to the current
// bot message (possibly none).
package frames

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Decoder variants selectable by configuration.
const (
	KindJSON     = "json"
	KindPrefixed = "prefixed"
)

// Defaults matching the two known endpoint shapes.
const (
	DefaultContentPath = "message.content"
	DefaultPrefix      = "data: "
)

// ErrMissingPrefix is returned by PrefixDecoder for lines without the prefix.
var ErrMissingPrefix = errors.New("missing record prefix")

// Decoder turns a single record into the text it contributes.
type Decoder interface {
	Decode(record string) (string, error)
}

// RecordParseError reports a record that could not be decoded. The record is
// dropped and the stream continues.
type RecordParseError struct {
	Record string
	Err    error
}

func (e *RecordParseError) Error() string {
	return fmt.Sprintf("parse record %q: %v", truncate(e.Record, 80), e.Err)
}

func (e *RecordParseError) Unwrap() error {
	return e.Err
}

// Options configures New.
type Options struct {
	ContentPath string // JSON only
	Prefix      string // prefixed only
}

// New returns the decoder registered under kind.
func New(kind string, opts Options) (Decoder, error) {
	switch strings.ToLower(kind) {
	case KindJSON:
		path := opts.ContentPath
		if path == "" {
			path = DefaultContentPath
		}
		return JSONDecoder{Path: path}, nil
	case KindPrefixed:
		prefix := opts.Prefix
		if prefix == "" {
			prefix = DefaultPrefix
		}
		return PrefixDecoder{Prefix: prefix}, nil
	default:
		return nil, fmt.Errorf("unknown frame decoder %q", kind)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
