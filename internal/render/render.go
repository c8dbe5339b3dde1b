// Package render turns message content into terminal text.
package render

import (
	"html"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy     *bluemonday.Policy
	strictPolicyOnce sync.Once

	renderers   = map[int]*glamour.TermRenderer{}
	renderersMu sync.Mutex
)

// PlainText strips all markup and unescapes entities. <br> becomes a newline.
func PlainText(markup string) string {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	markup = brReplacer.Replace(markup)
	return html.UnescapeString(strictPolicy.Sanitize(markup))
}

var brReplacer = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n")

// Markdown renders text for a terminal of the given width. Rendering failures
// fall back to the input unchanged.
func Markdown(text string, width int) string {
	r, err := renderer(width)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func renderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = 80
	}
	renderersMu.Lock()
	defer renderersMu.Unlock()
	if r, ok := renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	renderers[width] = r
	return r, nil
}
