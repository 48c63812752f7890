package provider

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/project-o/assist/internal/stream"
)

// suggestImagesInput is the schema the model fills for image search.
type suggestImagesInput struct {
	Query string `json:"query" jsonschema_description:"Search terms describing the desired images, e.g. 'sunset over mountains'."`
	Limit int    `json:"limit,omitempty" jsonschema_description:"How many images to suggest, 1 to 5. Defaults to 3."`
}

// createPostInput is the schema the model fills for a post proposal.
type createPostInput struct {
	ImageIDs   []string `json:"imageIds,omitempty" jsonschema_description:"Ids of previously suggested images to attach to the post."`
	Content    string   `json:"content" jsonschema_description:"The caption text of the post."`
	Tags       []string `json:"tags,omitempty" jsonschema_description:"Hashtags for the post, without the # prefix."`
	Visibility string   `json:"visibility,omitempty" jsonschema_description:"Either 'public' or 'private'. Defaults to 'public'."`
}

// registerTools registers the tool schemas with Genkit and returns the
// refs for ai.WithTools.
//
// The handlers never run in normal operation: generation uses
// WithReturnToolRequests, so requests are surfaced to the orchestrator
// instead of being executed inside the model loop. The handlers exist
// to publish the schemas and to fail loudly if that assumption breaks.
func registerTools(g *genkit.Genkit) []ai.ToolRef {
	suggestImages := genkit.DefineTool(
		g,
		stream.ToolSuggestImages,
		"Search for candidate images to illustrate a social media post. "+
			"Returns image suggestions the user can pick from. "+
			"Use when the user asks for images, photos, or visual ideas.",
		func(ctx *ai.ToolContext, input suggestImagesInput) (string, error) {
			return "", fmt.Errorf("%s is executed after the stream completes, not by the model loop", stream.ToolSuggestImages)
		},
	)

	createPost := genkit.DefineTool(
		g,
		stream.ToolCreatePost,
		"Propose a social media post draft with caption text, optional "+
			"image ids from earlier suggestions, tags, and visibility. "+
			"The user reviews and confirms the draft before anything is published.",
		func(ctx *ai.ToolContext, input createPostInput) (string, error) {
			return "", fmt.Errorf("%s is proposed to the user, never executed by the model loop", stream.ToolCreatePost)
		},
	)

	return []ai.ToolRef{suggestImages, createPost}
}
