package transcripts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"playhead/internal/config"
	"playhead/internal/transcript"
)

const userAgent = "playhead/0.1.0"

// Client fetches transcript windows from the backend. It implements
// transcript.Source.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient builds a transcript client from configuration.
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

type linePayload struct {
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Words []wordPayload `json:"words"`
}

type wordPayload struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// FetchWindow requests the transcript window anchored at anchorSeconds.
// Negative anchors are clamped to zero. A missing transcript maps to
// transcript.ErrNoTranscript.
func (c *Client) FetchWindow(ctx context.Context, itemID string, anchorSeconds float64) (transcript.Window, error) {
	if anchorSeconds < 0 {
		anchorSeconds = 0
	}
	endpoint := fmt.Sprintf("%s/podcast/episode/%s/transcript?seekTime=%s",
		c.baseURL, url.PathEscape(itemID),
		strconv.FormatFloat(anchorSeconds, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return transcript.Window{}, fmt.Errorf("build transcript request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return transcript.Window{}, fmt.Errorf("fetch transcript window: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return transcript.Window{}, transcript.ErrNoTranscript
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return transcript.Window{}, fmt.Errorf("transcript backend returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Lines []linePayload `json:"lines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return transcript.Window{}, fmt.Errorf("decode transcript window: %w", err)
	}

	window := transcript.Window{Lines: make([]transcript.Line, 0, len(payload.Lines))}
	for _, line := range payload.Lines {
		mapped := transcript.Line{Start: line.Start, End: line.End}
		for _, word := range line.Words {
			mapped.Words = append(mapped.Words, transcript.Word{
				Start: word.Start,
				End:   word.End,
				Text:  word.Word,
			})
		}
		window.Lines = append(window.Lines, mapped)
	}
	return window, nil
}
