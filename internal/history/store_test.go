package history_test

import (
	"context"
	"testing"

	"playhead/internal/queue"
	"playhead/internal/testsupport"
)

func TestSavePositionUpserts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.SavePosition(ctx, "e1", 42.5, 120); err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}
	if err := store.SavePosition(ctx, "e1", 55, 120); err != nil {
		t.Fatalf("SavePosition update failed: %v", err)
	}

	position, ok, err := store.Position(ctx, "e1")
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if !ok || position != 55 {
		t.Fatalf("expected saved position 55, got %v ok=%v", position, ok)
	}
}

func TestPositionForUnknownItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, ok, err := store.Position(context.Background(), "never-played")
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if ok {
		t.Fatal("expected no saved position for unknown item")
	}
}

func TestSavePositionRequiresItemID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if err := store.SavePosition(context.Background(), "", 10, 20); err == nil {
		t.Fatal("expected error for empty item id")
	}
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3"} {
		item := queue.Item{ID: id, Title: "Episode " + id, Collection: "Morning Show"}
		if err := store.RecordPlay(ctx, item); err != nil {
			t.Fatalf("RecordPlay failed: %v", err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ItemID != "e3" || records[1].ItemID != "e2" {
		t.Fatalf("expected newest first, got %+v", records)
	}
	if records[0].StartedAt.IsZero() {
		t.Fatal("expected parsed timestamps")
	}
}
