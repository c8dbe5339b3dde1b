// Package media handles image attachments sent alongside chat text.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxSize bounds attachments when no limit is configured.
const DefaultMaxSize = 10 << 20

var (
	// ErrNotImage is returned when content is not recognised as an image.
	ErrNotImage = errors.New("not an image")
	// ErrTooLarge is returned when content exceeds the size limit.
	ErrTooLarge = errors.New("image too large")
	// ErrEmpty is returned for zero-length content.
	ErrEmpty = errors.New("empty image")
)

// Image is raw image bytes plus their detected MIME type.
type Image struct {
	Data []byte
	MIME string
}

// NewImage validates data and detects its MIME type. maxSize <= 0 means
// DefaultMaxSize.
func NewImage(data []byte, maxSize int) (*Image, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > maxSize {
		return nil, fmt.Errorf("%w: %s > %s", ErrTooLarge,
			humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(maxSize)))
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mtype.String())
	}

	return &Image{Data: data, MIME: baseMIME(mtype.String())}, nil
}

// Load reads an image file from disk.
func Load(path string, maxSize int) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	img, err := NewImage(data, maxSize)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return img, nil
}

// DataURL encodes the image as a base64 data URL.
func (i *Image) DataURL() string {
	return "data:" + i.MIME + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Markup returns the inline element used for user image messages.
func (i *Image) Markup() string {
	return `<img src="` + html.EscapeString(i.DataURL()) + `" class="chat-image">`
}

// Summary describes the image for text-only surfaces.
func (i *Image) Summary() string {
	return fmt.Sprintf("%s, %s", i.MIME, humanize.IBytes(uint64(len(i.Data))))
}

// baseMIME drops parameters such as "; charset=binary".
func baseMIME(m string) string {
	if base, _, ok := strings.Cut(m, ";"); ok {
		return strings.TrimSpace(base)
	}
	return m
}
