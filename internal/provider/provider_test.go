package provider

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestDeepCopyMessages_Independent(t *testing.T) {
	original := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("hello")),
	}

	copied := deepCopyMessages(original)

	copied[0].Content[0].Text = "mutated"
	if original[0].Content[0].Text != "hello" {
		t.Error("mutation of copy leaked into original message")
	}
}

func TestDeepCopyPart_ToolRequest(t *testing.T) {
	p := &ai.Part{
		Kind: ai.PartToolRequest,
		ToolRequest: &ai.ToolRequest{
			Name:  "suggest_post_images",
			Ref:   "call-1",
			Input: map[string]any{"query": "sunset"},
		},
	}

	cp := deepCopyPart(p)

	if cp.ToolRequest == p.ToolRequest {
		t.Error("tool request struct is shared, want independent copy")
	}
	if cp.ToolRequest.Name != p.ToolRequest.Name || cp.ToolRequest.Ref != p.ToolRequest.Ref {
		t.Errorf("tool request fields not copied: %+v", cp.ToolRequest)
	}
}
