// Package pixabay looks up stock illustrations and photos through the Pixabay
// search API.
package pixabay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookforge/internal/services"
)

const maxImageBytes = 10 << 20

// Config carries API credentials and the search endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client implements services.StockProvider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Pixabay client.
func NewClient(cfg Config) *Client {
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "https://pixabay.com/api/"
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "pixabay" }

type searchResponse struct {
	Total int `json:"total"`
	Hits  []struct {
		WebformatURL  string `json:"webformatURL"`
		LargeImageURL string `json:"largeImageURL"`
	} `json:"hits"`
}

// Lookup searches illustrations first, then photos, and downloads the first hit.
func (c *Client) Lookup(ctx context.Context, keyword string) ([]byte, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, services.Wrap(services.ErrValidation, "pixabay", "lookup", "keyword required", nil)
	}
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "pixabay", "lookup", "api key required", nil)
	}
	for _, imageType := range []string{"illustration", "photo"} {
		imageURL, err := c.search(ctx, keyword, imageType)
		if err != nil {
			return nil, err
		}
		if imageURL == "" {
			continue
		}
		return c.download(ctx, imageURL)
	}
	return nil, services.Wrap(services.ErrNotFound, "pixabay", "lookup", fmt.Sprintf("no results for %q", keyword), nil)
}

func (c *Client) search(ctx context.Context, keyword, imageType string) (string, error) {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("q", keyword)
	query.Set("image_type", imageType)
	query.Set("orientation", "horizontal")
	query.Set("safesearch", "true")
	query.Set("per_page", "3")

	endpoint := c.baseURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + query.Encode()
	} else {
		endpoint += "?" + query.Encode()
	}
	body, err := c.get(ctx, endpoint, "search")
	if err != nil {
		return "", err
	}
	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", services.Wrap(services.ErrProvider, "pixabay", "search", "decode response", err)
	}
	for _, hit := range payload.Hits {
		if hit.WebformatURL != "" {
			return hit.WebformatURL, nil
		}
		if hit.LargeImageURL != "" {
			return hit.LargeImageURL, nil
		}
	}
	return "", nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, error) {
	data, err := c.get(ctx, imageURL, "download")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrEmptyResult, "pixabay", "download", "empty image payload", nil)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, endpoint, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pixabay", op, "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrProvider, "pixabay", op, "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "pixabay", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.MarkerForStatus(resp.StatusCode), "pixabay", op, fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return body, nil
}
