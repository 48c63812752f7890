//go:build integration

package exchange

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/project-o/assist/internal/log"
	"github.com/project-o/assist/internal/testutil"
)

func TestStore_CreateAndFind(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	ctx := context.Background()
	chatID := uuid.NewString()

	first := &Exchange{
		ChatID: chatID,
		Prompt: "show me sunsets",
		Output: "Here are some sunsets.",
		Images: []ImageRef{
			{ImageID: "s1", URL: "https://img/s1", Source: "Unsplash", Author: "Ada", License: "Unsplash License"},
			{ImageID: "s2", URL: "https://img/s2", Source: "Unsplash"},
		},
	}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.ID == uuid.Nil {
		t.Error("Create() did not fill in the generated id")
	}
	if first.CreatedAt.IsZero() {
		t.Error("Create() did not fill in the creation timestamp")
	}

	second := &Exchange{
		ChatID: chatID,
		Prompt: "more like the first one",
		Output: "",
		Images: []ImageRef{{ImageID: "s3", URL: "https://img/s3"}},
	}
	if err := store.Create(ctx, second); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.FindByChatID(ctx, chatID)
	if err != nil {
		t.Fatalf("FindByChatID() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FindByChatID() = %d exchanges, want 2", len(got))
	}
	if got[0].Prompt != "show me sunsets" || got[1].Prompt != "more like the first one" {
		t.Errorf("exchanges out of order: %q then %q", got[0].Prompt, got[1].Prompt)
	}
	if len(got[0].Images) != 2 {
		t.Errorf("first exchange images = %d, want 2", len(got[0].Images))
	}
	if got[0].Images[0].Author != "Ada" {
		t.Errorf("image metadata not round-tripped: %+v", got[0].Images[0])
	}
}

func TestStore_CreateRequiresChatID(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := store.Create(context.Background(), &Exchange{Prompt: "x"}); err == nil {
		t.Error("Create() should reject an empty chat id")
	}
}

func TestStore_ImagesAndImageIDs(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	ctx := context.Background()
	chatID := uuid.NewString()

	turns := []*Exchange{
		{ChatID: chatID, Prompt: "a", Images: []ImageRef{{ImageID: "i1"}, {ImageID: "i2"}}},
		{ChatID: chatID, Prompt: "b"}, // text-only turn contributes no images
		{ChatID: chatID, Prompt: "c", Images: []ImageRef{{ImageID: "i3"}}},
	}
	for _, e := range turns {
		if err := store.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	images, err := store.Images(ctx, chatID)
	if err != nil {
		t.Fatalf("Images() error = %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("Images() = %d, want 3", len(images))
	}

	ids, err := store.ImageIDs(ctx, chatID)
	if err != nil {
		t.Fatalf("ImageIDs() error = %v", err)
	}
	want := []string{"i1", "i2", "i3"}
	for i, w := range want {
		if ids[i] != w {
			t.Errorf("ImageIDs()[%d] = %q, want %q", i, ids[i], w)
		}
	}
}

func TestStore_ResolveImages(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	ctx := context.Background()
	chatID := uuid.NewString()

	e := &Exchange{
		ChatID: chatID,
		Prompt: "beaches",
		Images: []ImageRef{
			{ImageID: "b1", URL: "https://img/b1"},
			{ImageID: "b2", URL: "https://img/b2"},
		},
	}
	if err := store.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	resolved, err := store.ResolveImages(ctx, chatID, []string{"b2", "missing"})
	if err != nil {
		t.Fatalf("ResolveImages() error = %v", err)
	}
	if len(resolved) != 1 || resolved[0].ImageID != "b2" {
		t.Errorf("ResolveImages() = %+v, want only b2", resolved)
	}

	none, err := store.ResolveImages(ctx, chatID, nil)
	if err != nil {
		t.Fatalf("ResolveImages() error = %v", err)
	}
	if none != nil {
		t.Errorf("ResolveImages(nil) = %+v, want nil", none)
	}
}

func TestStore_IsolationBetweenChats(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	ctx := context.Background()
	chatA, chatB := uuid.NewString(), uuid.NewString()

	if err := store.Create(ctx, &Exchange{ChatID: chatA, Prompt: "a", Images: []ImageRef{{ImageID: "xa"}}}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, &Exchange{ChatID: chatB, Prompt: "b"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ids, err := store.ImageIDs(ctx, chatB)
	if err != nil {
		t.Fatalf("ImageIDs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("chat B sees chat A images: %v", ids)
	}
}
