package client

import (
	"regexp"
	"strings"
)

// selectionPattern matches the bracketed id prefix convention used to
// reference selected images inside a message, e.g. ["abc,def"].
var selectionPattern = regexp.MustCompile(`\[.*?\]`)

// Assembler accumulates streamed deltas into displayable text. Not safe
// for concurrent use; each turn gets its own Assembler.
type Assembler struct {
	content  strings.Builder
	thinking strings.Builder
}

// AddContent appends a content delta.
func (a *Assembler) AddContent(delta string) {
	a.content.WriteString(delta)
}

// AddThinking appends a thinking delta.
func (a *Assembler) AddThinking(delta string) {
	a.thinking.WriteString(delta)
}

// Text returns the assembled answer with bracketed selection markers
// stripped, trimmed for display.
func (a *Assembler) Text() string {
	return strings.TrimSpace(selectionPattern.ReplaceAllString(a.content.String(), ""))
}

// RawText returns the assembled answer without stripping.
func (a *Assembler) RawText() string {
	return a.content.String()
}

// Thinking returns the assembled reasoning text.
func (a *Assembler) Thinking() string {
	return a.thinking.String()
}

// Reset clears the assembler for the next turn.
func (a *Assembler) Reset() {
	a.content.Reset()
	a.thinking.Reset()
}

// FormatSelection prepends the selected image ids to a message in the
// bracketed form the assistant understands: ["id1,id2"] text.
func FormatSelection(ids []string, text string) string {
	if len(ids) == 0 {
		return text
	}
	return `["` + strings.Join(ids, ",") + `"] ` + text
}

// StripSelection removes bracketed selection markers from a message,
// returning the plain text a user typed.
func StripSelection(text string) string {
	return strings.TrimSpace(selectionPattern.ReplaceAllString(text, ""))
}
