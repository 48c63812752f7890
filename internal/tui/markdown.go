package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer wraps glamour behind width caching: the underlying
// renderer is rebuilt only when the terminal width actually changes. A
// nil markdownRenderer degrades to plain text everywhere.
type markdownRenderer struct {
	r     *glamour.TermRenderer
	width int
}

func newMarkdownRenderer(width int) *markdownRenderer {
	if width <= 0 {
		width = 80
	}
	r, err := newGlamour(width)
	if err != nil {
		return nil
	}
	return &markdownRenderer{r: r, width: width}
}

func newGlamour(width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}

// UpdateWidth rebuilds the renderer for a new width and reports whether
// a rebuild happened. A glamour failure keeps the previous renderer.
func (m *markdownRenderer) UpdateWidth(width int) bool {
	if m == nil || width <= 0 || width == m.width {
		return false
	}
	r, err := newGlamour(width)
	if err != nil {
		return false
	}
	m.r = r
	m.width = width
	return true
}

// Render returns markdown styled for the terminal, or the input
// unchanged when rendering is unavailable.
func (m *markdownRenderer) Render(markdown string) string {
	if m == nil || m.r == nil {
		return markdown
	}
	out, err := m.r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}
