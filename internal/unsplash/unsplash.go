// Package unsplash implements the image search adapter against the
// Unsplash photo search API.
package unsplash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://api.unsplash.com"

	// providerMax is the largest page Unsplash serves per request.
	providerMax = 30

	requestTimeout   = 15 * time.Second
	maxResponseBytes = 4 << 20
)

// Client queries Unsplash for candidate post images.
type Client struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config contains parameters for NewClient.
type Config struct {
	AccessKey string
	BaseURL   string       // Optional: override for tests
	HTTP      *http.Client // Optional: defaults to a client with timeout
	Logger    *slog.Logger
}

// NewClient creates an Unsplash client. The access key is validated here
// so a misconfigured deployment fails at startup, not mid-turn.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("unsplash access key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		accessKey:  cfg.AccessKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Image is one candidate returned by Search.
type Image struct {
	ImageID string
	URL     string
	Author  string
	Source  string
	License string
}

// searchResponse mirrors the fields we use from the Unsplash payload.
type searchResponse struct {
	Results []struct {
		ID   string `json:"id"`
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"results"`
}

// Search returns up to limit images matching query, none of which carry
// an id in excluded. More candidates than limit are requested upstream
// to compensate for the exclusion filtering: requested =
// min(providerMax, limit+len(excluded)).
func (c *Client) Search(ctx context.Context, query string, limit int, excluded []string) ([]Image, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 {
		return nil, nil
	}

	fetchLimit := min(providerMax, limit+len(excluded))

	u, err := url.Parse(c.baseURL + "/search/photos")
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(fetchLimit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching images: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsplash returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	excludedSet := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = true
	}

	images := make([]Image, 0, limit)
	for _, r := range payload.Results {
		if excludedSet[r.ID] {
			continue
		}
		images = append(images, Image{
			ImageID: r.ID,
			URL:     r.URLs.Regular,
			Author:  r.User.Name,
			Source:  "Unsplash",
			License: "Unsplash License",
		})
		if len(images) == limit {
			break
		}
	}

	c.logger.Debug("unsplash search",
		"query", query,
		"fetched", len(payload.Results),
		"returned", len(images),
		"excluded", len(excluded),
	)
	return images, nil
}
