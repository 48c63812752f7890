package unsplash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/project-o/assist/internal/log"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func searchPayload(ids ...string) []byte {
	type result struct {
		ID   string `json:"id"`
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	var payload struct {
		Results []result `json:"results"`
	}
	for _, id := range ids {
		var r result
		r.ID = id
		r.URLs.Regular = "https://images.example.com/" + id
		r.User.Name = "Author " + id
		payload.Results = append(payload.Results, r)
	}
	b, _ := json.Marshal(payload)
	return b
}

func TestNewClient_RequiresAccessKey(t *testing.T) {
	_, err := NewClient(Config{Logger: log.NewNop()})
	if err == nil {
		t.Fatal("expected error for missing access key")
	}
}

func TestSearch(t *testing.T) {
	var gotAuth, gotPerPage, gotQuery string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPerPage = r.URL.Query().Get("per_page")
		gotQuery = r.URL.Query().Get("query")
		w.Write(searchPayload("a", "b", "c", "d", "e"))
	})

	c, err := NewClient(Config{AccessKey: "test-key", BaseURL: srv.URL, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	images, err := c.Search(context.Background(), "sunset", 3, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotAuth != "Client-ID test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Client-ID test-key")
	}
	if gotQuery != "sunset" {
		t.Errorf("query = %q, want %q", gotQuery, "sunset")
	}
	if gotPerPage != "3" {
		t.Errorf("per_page = %q, want %q", gotPerPage, "3")
	}
	if len(images) != 3 {
		t.Fatalf("len(images) = %d, want 3", len(images))
	}
	if images[0].ImageID != "a" || images[0].URL != "https://images.example.com/a" {
		t.Errorf("unexpected first image: %+v", images[0])
	}
	if images[0].Source != "Unsplash" {
		t.Errorf("Source = %q, want Unsplash", images[0].Source)
	}
}

func TestSearch_ExcludesIDs(t *testing.T) {
	var gotPerPage string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPerPage = r.URL.Query().Get("per_page")
		w.Write(searchPayload("a", "b", "c", "d", "e"))
	})

	c, err := NewClient(Config{AccessKey: "k", BaseURL: srv.URL, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	images, err := c.Search(context.Background(), "sunset", 2, []string{"a", "c"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	// Over-fetch compensates for exclusions: limit 2 + 2 excluded = 4.
	if gotPerPage != "4" {
		t.Errorf("per_page = %q, want %q", gotPerPage, "4")
	}
	if len(images) != 2 {
		t.Fatalf("len(images) = %d, want 2", len(images))
	}
	if images[0].ImageID != "b" || images[1].ImageID != "d" {
		t.Errorf("got ids %q, %q; want b, d", images[0].ImageID, images[1].ImageID)
	}
}

func TestSearch_FetchLimitCapped(t *testing.T) {
	var gotPerPage string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPerPage = r.URL.Query().Get("per_page")
		w.Write(searchPayload())
	})

	c, err := NewClient(Config{AccessKey: "k", BaseURL: srv.URL, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	excluded := make([]string, 50)
	for i := range excluded {
		excluded[i] = "x"
	}
	if _, err := c.Search(context.Background(), "sunset", 5, excluded); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotPerPage != "30" {
		t.Errorf("per_page = %q, want capped at 30", gotPerPage)
	}
}

func TestSearch_FewerResultsThanLimit(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(searchPayload("only"))
	})

	c, err := NewClient(Config{AccessKey: "k", BaseURL: srv.URL, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	images, err := c.Search(context.Background(), "obscure", 5, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("len(images) = %d, want 1", len(images))
	}
}

func TestSearch_NonOKStatus(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	c, err := NewClient(Config{AccessKey: "bad", BaseURL: srv.URL, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := c.Search(context.Background(), "sunset", 3, nil); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	c, err := NewClient(Config{AccessKey: "k", Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := c.Search(context.Background(), "", 3, nil); err == nil {
		t.Fatal("expected error for empty query")
	}
}
