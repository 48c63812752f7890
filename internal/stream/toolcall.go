package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Tool names the model may invoke. The set is closed: anything else in a
// tool-input-available event is reported as ErrUnknownTool and skipped by
// the executor.
const (
	ToolSuggestImages = "suggest_post_images"
	ToolCreatePost    = "create_post"
)

// Suggest-images limit bounds. The provider caps candidate requests at
// five per call; a missing or zero limit defaults to three.
const (
	DefaultImageLimit = 3
	MaxImageLimit     = 5
)

// Post visibility values accepted by create_post.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

var (
	// ErrUnknownTool indicates a tool-input event naming a tool outside
	// the known set.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidToolInput indicates a recognized tool with an input that
	// does not decode or validate.
	ErrInvalidToolInput = errors.New("invalid tool input")
)

// ToolCall is a decoded, validated tool invocation. It is a closed sum:
// the only implementations are SuggestImagesCall and CreatePostCall, so
// a type switch over ToolCall covers every case.
type ToolCall interface {
	// Tool returns the wire name of the invoked tool.
	Tool() string

	sealed()
}

// SuggestImagesCall asks for candidate images matching a query. Executed
// server-side after the stream completes.
type SuggestImagesCall struct {
	Query string
	Limit int
}

func (SuggestImagesCall) Tool() string { return ToolSuggestImages }
func (SuggestImagesCall) sealed()      {}

// CreatePostCall proposes a post built from previously suggested images.
// Never executed server-side: it is surfaced to the client as a proposal
// requiring explicit user confirmation.
type CreatePostCall struct {
	ImageIDs   []string
	Content    string
	Tags       []string
	Visibility string
}

func (CreatePostCall) Tool() string { return ToolCreatePost }
func (CreatePostCall) sealed()      {}

// ParseToolCall decodes a tool-input-available event into its typed
// variant. Unknown tool names return ErrUnknownTool; malformed inputs
// return ErrInvalidToolInput.
func ParseToolCall(ev Event) (ToolCall, error) {
	if ev.Type != TypeToolInput {
		return nil, fmt.Errorf("%w: event type %q", ErrInvalidToolInput, ev.Type)
	}

	switch ev.ToolName {
	case ToolSuggestImages:
		var in struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal(ev.Input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidToolInput, ev.ToolName, err)
		}
		if in.Query == "" {
			return nil, fmt.Errorf("%w: %s: query is required", ErrInvalidToolInput, ev.ToolName)
		}
		limit := in.Limit
		if limit <= 0 {
			limit = DefaultImageLimit
		}
		if limit > MaxImageLimit {
			limit = MaxImageLimit
		}
		return SuggestImagesCall{Query: in.Query, Limit: limit}, nil

	case ToolCreatePost:
		var in struct {
			ImageIDs   []string `json:"imageIds"`
			Content    string   `json:"content"`
			Tags       []string `json:"tags"`
			Visibility string   `json:"visibility"`
		}
		if err := json.Unmarshal(ev.Input, &in); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidToolInput, ev.ToolName, err)
		}
		visibility := in.Visibility
		switch visibility {
		case "":
			visibility = VisibilityPublic
		case VisibilityPublic, VisibilityPrivate:
		default:
			return nil, fmt.Errorf("%w: %s: visibility %q", ErrInvalidToolInput, ev.ToolName, in.Visibility)
		}
		return CreatePostCall{
			ImageIDs:   in.ImageIDs,
			Content:    in.Content,
			Tags:       in.Tags,
			Visibility: visibility,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, ev.ToolName)
	}
}
