// Package exchange persists completed chat turns.
//
// One Exchange records one user-prompt/assistant-response unit together
// with any images surfaced during the turn. Exchanges are created once
// after a stream completes, never mutated, and queried by chat id to
// rebuild history and to seed the image deduplication set for future
// turns.
package exchange

import (
	"time"

	"github.com/google/uuid"
)

// ImageRef is a candidate or attached image. ImageID is the
// provider-assigned identifier and the deduplication key: within one
// chat, no two persisted images share an ImageID, across turns as well
// as within one tool call.
type ImageRef struct {
	ImageID string `json:"imageId"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Author  string `json:"author"`
	License string `json:"license"`
}

// Exchange is one persisted turn of a conversation.
type Exchange struct {
	ID        uuid.UUID  `json:"id"`
	ChatID    string     `json:"chatId"`
	Prompt    string     `json:"prompt"`
	Output    string     `json:"output"`
	Images    []ImageRef `json:"images"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Empty reports whether the exchange carries nothing worth persisting:
// no prompt, no response text and no images. The orchestrator skips
// creating records for such turns.
func (e *Exchange) Empty() bool {
	return e.Prompt == "" && e.Output == "" && len(e.Images) == 0
}
