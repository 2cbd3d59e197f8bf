package transcripts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"playhead/internal/config"
	"playhead/internal/services/transcripts"
	"playhead/internal/transcript"
)

func newClient(t *testing.T, handler http.Handler) *transcripts.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.BaseURL = server.URL
	return transcripts.NewClient(&cfg)
}

func TestFetchWindowMapsLinesAndWords(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/podcast/episode/e1/transcript" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("seekTime"); got != "21" {
			t.Errorf("expected seekTime=21, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"lines": []map[string]any{
				{
					"start": 20.0, "end": 30.0,
					"words": []map[string]any{
						{"start": 20.0, "end": 20.4, "word": "hello"},
						{"start": 20.4, "end": 21.0, "word": "again"},
					},
				},
			},
		})
	}))

	window, err := client.FetchWindow(context.Background(), "e1", 21)
	if err != nil {
		t.Fatalf("FetchWindow failed: %v", err)
	}
	if len(window.Lines) != 1 || len(window.Lines[0].Words) != 2 {
		t.Fatalf("unexpected window shape: %+v", window)
	}
	if window.Lines[0].Words[1].Text != "again" {
		t.Fatalf("unexpected word mapping: %+v", window.Lines[0].Words)
	}
}

func TestFetchWindowClampsNegativeAnchor(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("seekTime"); got != "0" {
			t.Errorf("expected clamped seekTime=0, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"lines": []any{}})
	}))

	if _, err := client.FetchWindow(context.Background(), "e1", -7); err != nil {
		t.Fatalf("FetchWindow failed: %v", err)
	}
}

func TestFetchWindowMapsNotFoundToErrNoTranscript(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no transcript", http.StatusNotFound)
	}))

	_, err := client.FetchWindow(context.Background(), "e1", 0)
	if !errors.Is(err, transcript.ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestFetchWindowSurfacesServerError(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.FetchWindow(context.Background(), "e1", 0)
	if err == nil || errors.Is(err, transcript.ErrNoTranscript) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
