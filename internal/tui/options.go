package tui

import "strings"

type Option func(*Model)

// WithDocumentID opens one scope document instead of the first stored one.
func WithDocumentID(id string) Option {
	return func(m *Model) {
		m.docID = strings.TrimSpace(id)
	}
}

// WithMarkdownStyle selects the glamour standard style used for scope content.
func WithMarkdownStyle(style string) Option {
	return func(m *Model) {
		if style = strings.TrimSpace(style); style != "" {
			m.markdown.style = style
		}
	}
}

// WithClipboard replaces the clipboard writer used by the copy-reference key.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}
