package annotations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"playhead/internal/config"
	"playhead/internal/timeline"
)

const userAgent = "playhead/0.1.0"

// Client talks to the annotation backend. It implements timeline.Service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient builds an annotation client from configuration.
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

type sectionPayload struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type bookmarkPayload struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Note  string  `json:"note"`
	Time  float64 `json:"time"`
}

// List fetches the episode's sections and bookmarks and merges them into a
// single annotation list ordered by start time.
func (c *Client) List(ctx context.Context, itemID string) ([]timeline.Annotation, error) {
	var sections []sectionPayload
	if err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/episode/%s/sections", c.baseURL, url.PathEscape(itemID)), nil, &sections); err != nil {
		return nil, fmt.Errorf("fetch sections: %w", err)
	}

	var bookmarks []bookmarkPayload
	if err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/episode/%s/bookmarks", c.baseURL, url.PathEscape(itemID)), nil, &bookmarks); err != nil {
		return nil, fmt.Errorf("fetch bookmarks: %w", err)
	}

	annotations := make([]timeline.Annotation, 0, len(sections)+len(bookmarks))
	for _, s := range sections {
		annotations = append(annotations, timeline.Annotation{
			ID: s.ID, Kind: timeline.KindSection, Title: s.Title, Start: s.Start, End: s.End,
		})
	}
	for _, b := range bookmarks {
		annotations = append(annotations, timeline.Annotation{
			ID: b.ID, Kind: timeline.KindBookmark, Title: b.Title, Note: b.Note, Start: b.Time,
		})
	}
	sort.SliceStable(annotations, func(i, j int) bool {
		return annotations[i].Start < annotations[j].Start
	})
	return annotations, nil
}

// Create persists a new annotation and returns the created record with its
// server-assigned identifier.
func (c *Client) Create(ctx context.Context, itemID string, a timeline.Annotation) (timeline.Annotation, error) {
	switch a.Kind {
	case timeline.KindSection:
		body := sectionPayload{Title: a.Title, Start: a.Start, End: a.End}
		var created sectionPayload
		if err := c.do(ctx, http.MethodPost,
			fmt.Sprintf("%s/episode/%s/sections", c.baseURL, url.PathEscape(itemID)), body, &created); err != nil {
			return timeline.Annotation{}, fmt.Errorf("create section: %w", err)
		}
		a.ID = created.ID
		return a, nil
	case timeline.KindBookmark:
		body := bookmarkPayload{Title: a.Title, Note: a.Note, Time: a.Start}
		var created bookmarkPayload
		if err := c.do(ctx, http.MethodPost,
			fmt.Sprintf("%s/episode/%s/bookmarks", c.baseURL, url.PathEscape(itemID)), body, &created); err != nil {
			return timeline.Annotation{}, fmt.Errorf("create bookmark: %w", err)
		}
		a.ID = created.ID
		return a, nil
	default:
		return timeline.Annotation{}, fmt.Errorf("unknown annotation kind %q", a.Kind)
	}
}

// Delete removes an annotation by identifier.
func (c *Client) Delete(ctx context.Context, annotationID string) error {
	endpoint := fmt.Sprintf("%s/annotations/%s", c.baseURL, url.PathEscape(annotationID))
	if err := c.do(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("delete annotation %s: %w", annotationID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
