package client

import (
	"context"
	"fmt"
	"slices"

	"github.com/project-o/assist/internal/exchange"
	"github.com/project-o/assist/internal/stream"
)

// PostCreator publishes a confirmed post draft. The chat service never
// executes create_post itself; the hosting application supplies the
// creator and performs a conventional create-post call with the final,
// user-edited draft.
type PostCreator func(ctx context.Context, p *Proposal) error

// Proposal is an editable post draft surfaced by a create_post tool
// call. Nothing is published until the user confirms the final state;
// the server never executes the call.
type Proposal struct {
	ImageIDs   []string
	Images     []exchange.ImageRef // Resolved refs, filled by ResolveImages
	Content    string
	Tags       []string
	Visibility string
}

// ProposalFromEvent decodes a create_post tool-input event into an
// editable Proposal.
func ProposalFromEvent(ev stream.Event) (*Proposal, error) {
	call, err := stream.ParseToolCall(ev)
	if err != nil {
		return nil, err
	}
	post, ok := call.(stream.CreatePostCall)
	if !ok {
		return nil, fmt.Errorf("event is a %s call, not %s", call.Tool(), stream.ToolCreatePost)
	}
	return &Proposal{
		ImageIDs:   slices.Clone(post.ImageIDs),
		Content:    post.Content,
		Tags:       slices.Clone(post.Tags),
		Visibility: post.Visibility,
	}, nil
}

// RemoveImage drops an image from the draft by id.
func (p *Proposal) RemoveImage(id string) {
	p.ImageIDs = slices.DeleteFunc(p.ImageIDs, func(s string) bool { return s == id })
	p.Images = slices.DeleteFunc(p.Images, func(img exchange.ImageRef) bool { return img.ImageID == id })
}

// RemoveTag drops a tag from the draft.
func (p *Proposal) RemoveTag(tag string) {
	p.Tags = slices.DeleteFunc(p.Tags, func(s string) bool { return s == tag })
}

// SetContent replaces the caption text.
func (p *Proposal) SetContent(content string) {
	p.Content = content
}

// ToggleVisibility flips between public and private.
func (p *Proposal) ToggleVisibility() {
	if p.Visibility == stream.VisibilityPrivate {
		p.Visibility = stream.VisibilityPublic
	} else {
		p.Visibility = stream.VisibilityPrivate
	}
}
