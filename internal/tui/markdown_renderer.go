package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// defaultMarkdownStyle is the glamour standard style used when none is configured.
const defaultMarkdownStyle = "dark"

// markdownRenderer renders scope content for terminal views and recreates the renderer when wrap width changes.
// The last rendered source is cached because View runs on every message.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer

	lastSource string
	lastOutput string
}

// render converts markdown input into ANSI-styled terminal text with the requested wrap width.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		style := r.style
		if style == "" {
			style = defaultMarkdownStyle
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
		r.lastSource = ""
	}
	if markdown == r.lastSource {
		return r.lastOutput
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	r.lastSource = markdown
	r.lastOutput = strings.TrimRight(rendered, "\n")
	return r.lastOutput
}
