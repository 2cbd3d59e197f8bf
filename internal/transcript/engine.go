package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"playhead/internal/logging"
)

// Status describes the engine's synchronization state for the active item.
type Status string

const (
	// StatusIdle means no item is active.
	StatusIdle Status = "idle"
	// StatusLoading means the first window for the item is still in flight.
	StatusLoading Status = "loading"
	// StatusReady means a window is loaded and revealing.
	StatusReady Status = "ready"
	// StatusUnavailable means the item has no transcript; permanent for the
	// item, no further fetches happen.
	StatusUnavailable Status = "unavailable"
	// StatusError means the last refetch failed; the stale window keeps
	// rendering and the next tick retries.
	StatusError Status = "error"
)

// Options configures an Engine.
type Options struct {
	Source Source
	// Position reports the clock's current position in seconds.
	Position func() float64
	Logger   *slog.Logger
	// Margin is the refetch safety margin in seconds. Defaults to 10.
	Margin float64
	// Interval is the reveal recomputation cadence. Defaults to 10ms.
	Interval time.Duration
}

// Engine synchronizes windowed transcript text with the playback clock.
type Engine struct {
	mu         sync.Mutex
	source     Source
	position   func() float64
	logger     *slog.Logger
	margin     float64
	interval   time.Duration
	itemID     string
	itemCtx    context.Context
	itemCancel context.CancelFunc
	window     *Window
	lower      float64
	upper      float64
	fetching   bool
	noScript   bool
	fetchErr   error
	revealed   []Word
	done       chan struct{}
	closeOnce  sync.Once
}

// NewEngine constructs an engine. Start must be called to begin the reveal
// loop; tests may drive Tick directly instead.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Source == nil || opts.Position == nil {
		return nil, fmt.Errorf("transcript engine requires source and position")
	}
	margin := opts.Margin
	if margin <= 0 {
		margin = 10
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &Engine{
		source:   opts.Source,
		position: opts.Position,
		logger:   logging.NewComponentLogger(opts.Logger, "transcript"),
		margin:   margin,
		interval: interval,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the reveal timer. The timer is owned by this engine
// instance and torn down by Close.
func (e *Engine) Start() {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.done:
				return
			case <-ticker.C:
				e.Tick()
			}
		}
	}()
}

// Close stops the reveal timer and cancels any in-flight fetch.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.mu.Lock()
		if e.itemCancel != nil {
			e.itemCancel()
		}
		e.mu.Unlock()
	})
}

// SetActiveItem switches the engine to a new item, discarding the previous
// window and invalidating any fetch still in flight for it. An empty id
// deactivates the engine.
func (e *Engine) SetActiveItem(itemID string) {
	e.mu.Lock()
	if e.itemCancel != nil {
		e.itemCancel()
		e.itemCancel = nil
		e.itemCtx = nil
	}
	e.itemID = itemID
	e.window = nil
	e.lower, e.upper = 0, 0
	e.fetching = false
	e.noScript = false
	e.fetchErr = nil
	e.revealed = nil

	if itemID == "" {
		e.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.itemCtx = ctx
	e.itemCancel = cancel
	e.fetching = true
	e.mu.Unlock()

	go e.fetch(ctx, itemID, 0)
}

// Tick performs one reveal step: recompute the revealed word set from the
// loaded window and trigger a refetch when the clock has left the window's
// bounds. Driven by the reveal timer; exported so tests can step
// deterministically.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.itemID == "" || e.noScript {
		e.revealed = nil
		e.mu.Unlock()
		return
	}
	if e.window == nil {
		e.revealed = nil
		e.mu.Unlock()
		return
	}

	position := e.position()
	e.revealed = e.window.revealedAt(position)

	if e.fetching || (position >= e.lower && position <= e.upper) {
		e.mu.Unlock()
		return
	}

	e.fetching = true
	anchor := position - e.margin
	if anchor < 0 {
		anchor = 0
	}
	itemID := e.itemID
	ctx := e.itemCtx
	e.mu.Unlock()

	go e.fetch(ctx, itemID, anchor)
}

// Revealed returns the words whose start time has passed, in line and word
// order. The set is recomputed fresh each tick; window replacement resets
// and refills it.
func (e *Engine) Revealed() []Word {
	e.mu.Lock()
	defer e.mu.Unlock()
	words := make([]Word, len(e.revealed))
	copy(words, e.revealed)
	return words
}

// Status reports the engine's state for the active item.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.itemID == "":
		return StatusIdle
	case e.noScript:
		return StatusUnavailable
	case e.window == nil:
		return StatusLoading
	case e.fetchErr != nil:
		return StatusError
	default:
		return StatusReady
	}
}

// Bounds returns the loaded window's refetch boundaries. ok is false until a
// window is loaded.
func (e *Engine) Bounds() (lower, upper float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.window == nil {
		return 0, 0, false
	}
	return e.lower, e.upper, true
}

// Fetching reports whether a window request is in flight.
func (e *Engine) Fetching() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetching
}

func (e *Engine) fetch(ctx context.Context, itemID string, anchor float64) {
	window, err := e.source.FetchWindow(ctx, itemID, anchor)

	e.mu.Lock()
	defer e.mu.Unlock()

	// A response for a previous item arrives after a switch; discard it.
	if e.itemID != itemID || ctx != e.itemCtx {
		return
	}
	e.fetching = false

	if err != nil {
		if errors.Is(err, ErrNoTranscript) {
			e.noScript = true
			e.window = nil
			e.revealed = nil
			return
		}
		e.fetchErr = err
		e.logger.Warn("transcript window fetch failed", "item", itemID, "anchor", anchor, "error", err)
		return
	}

	if len(window.Lines) == 0 {
		e.noScript = true
		e.window = nil
		e.revealed = nil
		return
	}

	lower, upper := window.bounds(e.margin)
	// End of transcript: the clock is already past the freshly derived
	// upper bound, so push it out instead of refetching in a loop.
	if position := e.position(); position > upper {
		upper = window.maxEnd() + e.margin
	}
	e.window = &window
	e.lower = lower
	e.upper = upper
	e.fetchErr = nil
	e.logger.Debug("transcript window loaded",
		"item", itemID, "anchor", anchor, "lower", lower, "upper", upper, "lines", len(window.Lines))
}
