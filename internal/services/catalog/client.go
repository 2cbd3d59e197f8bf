package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"playhead/internal/config"
	"playhead/internal/queue"
)

const userAgent = "playhead/0.1.0"

// Client talks to the episode catalog backend.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient builds a catalog client from configuration.
func NewClient(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		client:  &http.Client{Timeout: timeout},
	}
}

type episodePayload struct {
	ID           string  `json:"id"`
	PodcastID    string  `json:"podcastId"`
	PodcastName  string  `json:"podcastName"`
	EpisodeName  string  `json:"episodeName"`
	Duration     float64 `json:"duration"`
	PlayCount    int64   `json:"playCount"`
	TotalLikes   int64   `json:"totalLikes"`
	AudioRef     string  `json:"audioRef"`
}

func (p episodePayload) item() queue.Item {
	return queue.Item{
		ID:           p.ID,
		Title:        p.EpisodeName,
		Collection:   p.PodcastName,
		CollectionID: p.PodcastID,
		AudioRef:     p.AudioRef,
		DurationHint: p.Duration,
		TotalLikes:   p.TotalLikes,
		TotalPlays:   p.PlayCount,
	}
}

// ResolvePlaybackURL resolves the audio URL for an episode. The request is
// idempotent and side-effect-free.
func (c *Client) ResolvePlaybackURL(ctx context.Context, collectionID, itemID string) (string, error) {
	endpoint := fmt.Sprintf("%s/podcast/%s/%s/play", c.baseURL,
		url.PathEscape(collectionID), url.PathEscape(itemID))

	var payload struct {
		AudioURL string `json:"audioUrl"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return "", fmt.Errorf("resolve playback url: %w", err)
	}
	if strings.TrimSpace(payload.AudioURL) == "" {
		return "", fmt.Errorf("resolve playback url: empty audio url for episode %s", itemID)
	}
	return payload.AudioURL, nil
}

// Episode fetches a single episode's metadata.
func (c *Client) Episode(ctx context.Context, itemID string) (queue.Item, error) {
	endpoint := fmt.Sprintf("%s/podcast/episode/%s", c.baseURL, url.PathEscape(itemID))

	var payload episodePayload
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return queue.Item{}, fmt.Errorf("fetch episode %s: %w", itemID, err)
	}
	return payload.item(), nil
}

// Collection fetches a collection's episodes in their given order.
func (c *Client) Collection(ctx context.Context, collectionID string) ([]queue.Item, error) {
	endpoint := fmt.Sprintf("%s/playlist/%s/episodes", c.baseURL, url.PathEscape(collectionID))

	var payload []episodePayload
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("fetch collection %s: %w", collectionID, err)
	}
	items := make([]queue.Item, 0, len(payload))
	for _, p := range payload {
		items = append(items, p.item())
	}
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
