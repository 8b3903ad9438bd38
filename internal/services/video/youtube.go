// Package video looks up a single reference video for an accepted quest
// title. Lookups are best-effort enrichment: every failure maps to an
// error the caller is expected to log and ignore.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("video search is not configured")

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

type YouTubeClient struct {
	apiKey     string
	regionCode string
	baseURL    string
	client     *http.Client
}

func NewYouTubeClient(apiKey, regionCode string) *YouTubeClient {
	return &YouTubeClient{
		apiKey:     apiKey,
		regionCode: regionCode,
		baseURL:    defaultBaseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

// Search returns the watch URL of the most relevant short video for the
// query, or an empty string when nothing matches.
func (c *YouTubeClient) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", ErrNotConfigured
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", "1")
	params.Set("order", "relevance")
	params.Set("videoDuration", "short")
	params.Set("regionCode", c.regionCode)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("searching videos: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("video search returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding search response: %w", err)
	}

	if len(result.Items) == 0 || result.Items[0].ID.VideoID == "" {
		return "", nil
	}

	return "https://www.youtube.com/watch?v=" + result.Items[0].ID.VideoID, nil
}
