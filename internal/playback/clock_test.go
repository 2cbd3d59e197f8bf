package playback_test

import (
	"testing"

	"playhead/internal/logging"
	"playhead/internal/playback"
)

func newTestClock(t *testing.T, opts playback.SimOptions) (*playback.Clock, *playback.SimTransport) {
	t.Helper()
	transport := playback.NewSimTransport(opts)
	clock := playback.NewClock(transport, logging.NewNop())
	return clock, transport
}

func TestLoadResetsStateAndEmitsMetadata(t *testing.T) {
	clock, _ := newTestClock(t, playback.SimOptions{
		Durations: map[string]float64{"https://cdn.example.com/e1.mp3": 120},
	})

	var events []playback.Event
	clock.Subscribe(func(ev playback.Event) { events = append(events, ev) })

	if err := clock.Load("https://cdn.example.com/e1.mp3"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	state := clock.State()
	if state.Position != 0 || !state.DurationKnown || state.Duration != 120 {
		t.Fatalf("unexpected state after load: %+v", state)
	}
	if len(events) != 1 || events[0].Kind != playback.EventMetadata {
		t.Fatalf("expected a single metadata event, got %+v", events)
	}
}

func TestDurationTransitionsOnlyOnce(t *testing.T) {
	clock, _ := newTestClock(t, playback.SimOptions{})

	clock.MetadataReady(90)
	clock.MetadataReady(300)

	state := clock.State()
	if state.Duration != 90 {
		t.Fatalf("duration must not change after first metadata, got %v", state.Duration)
	}
}

func TestTicksAdvancePosition(t *testing.T) {
	clock, transport := newTestClock(t, playback.SimOptions{
		Durations: map[string]float64{"e1": 30},
	})

	if err := clock.Load("e1"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := clock.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	transport.Advance(12.5)
	state := clock.State()
	if state.Position != 12.5 || !state.Playing {
		t.Fatalf("unexpected state after advance: %+v", state)
	}
}

func TestTrackEndedStopsPlaybackAtDuration(t *testing.T) {
	clock, transport := newTestClock(t, playback.SimOptions{
		Durations: map[string]float64{"e1": 10},
	})

	var ended int
	clock.Subscribe(func(ev playback.Event) {
		if ev.Kind == playback.EventEnded {
			ended++
		}
	})

	if err := clock.Load("e1"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := clock.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	transport.Advance(15)

	state := clock.State()
	if state.Playing {
		t.Fatal("expected playback to stop at end of track")
	}
	if state.Position != 10 {
		t.Fatalf("expected position clamped to duration, got %v", state.Position)
	}
	if ended != 1 {
		t.Fatalf("expected exactly one ended event, got %d", ended)
	}
}

func TestSeekClampsToKnownDuration(t *testing.T) {
	clock, _ := newTestClock(t, playback.SimOptions{
		Durations: map[string]float64{"e1": 60},
	})

	if err := clock.Load("e1"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := clock.Seek(-5); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if got := clock.State().Position; got != 0 {
		t.Fatalf("expected seek clamp to 0, got %v", got)
	}
	if err := clock.Seek(500); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if got := clock.State().Position; got != 60 {
		t.Fatalf("expected seek clamp to duration, got %v", got)
	}
}

func TestMarkLoadFailedSurfacesError(t *testing.T) {
	clock, _ := newTestClock(t, playback.SimOptions{})

	clock.MarkLoadFailed(playback.ErrNoSource)
	state := clock.State()
	if state.Err == nil {
		t.Fatal("expected error state after failed load")
	}
	if state.Playing || state.DurationKnown {
		t.Fatalf("expected unloaded state, got %+v", state)
	}
}
