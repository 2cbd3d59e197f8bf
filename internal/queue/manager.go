package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"playhead/internal/logging"
	"playhead/internal/playback"
)

// Resolver resolves a playable audio URL for an episode. Implementations
// must be idempotent and side-effect-free.
type Resolver interface {
	ResolvePlaybackURL(ctx context.Context, collectionID, itemID string) (string, error)
}

// ActiveItemFunc is invoked after the active item changes, once the clock
// reload has completed. previous is nil when the queue was idle;
// previousPosition is the clock position the outgoing item was at. next is
// nil when the queue went idle.
type ActiveItemFunc func(previous *Item, previousPosition float64, next *Item)

// Options configures a Manager.
type Options struct {
	Clock        *playback.Clock
	Resolver     Resolver
	Logger       *slog.Logger
	OnActiveItem ActiveItemFunc
}

// Manager owns the playback queue. Operations are serialized: a clock reload
// triggered by one operation completes before the next operation applies.
type Manager struct {
	// opMu serializes operations end to end, including the load pipeline.
	opMu sync.Mutex
	// mu guards the fields below for snapshot reads.
	mu       sync.Mutex
	items    []Item
	current  int
	state    PlayState
	loadErr  error
	clock    *playback.Clock
	resolver Resolver
	onActive ActiveItemFunc
	logger   *slog.Logger
}

// NewManager constructs an idle queue manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Clock == nil || opts.Resolver == nil {
		return nil, fmt.Errorf("queue manager requires clock and resolver")
	}
	return &Manager{
		current:  -1,
		state:    StateIdle,
		clock:    opts.Clock,
		resolver: opts.Resolver,
		onActive: opts.OnActiveItem,
		logger:   logging.NewComponentLogger(opts.Logger, "queue"),
	}, nil
}

// Items returns a copy of the queue in order.
func (m *Manager) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]Item, len(m.items))
	copy(items, m.items)
	return items
}

// Current returns the active index, or -1 when idle.
func (m *Manager) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentItem returns the active item when one exists.
func (m *Manager) CurrentItem() (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current < 0 || m.current >= len(m.items) {
		return Item{}, false
	}
	return m.items[m.current], true
}

// State returns the queue's play state.
func (m *Manager) State() PlayState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LoadErr returns the most recent load failure for the active item, if any.
func (m *Manager) LoadErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

// PlayNow replaces the queue with item and starts playback.
func (m *Manager) PlayNow(ctx context.Context, item Item) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev, prevPos := m.activeSnapshot()
	m.mu.Lock()
	m.items = []Item{item}
	m.current = 0
	m.state = StatePlaying
	m.mu.Unlock()
	return m.loadActive(ctx, prev, prevPos, true)
}

// EnqueueNext inserts item immediately after the active one. On an idle
// queue it behaves like PlayNow.
func (m *Manager) EnqueueNext(ctx context.Context, item Item) error {
	m.opMu.Lock()
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		m.opMu.Unlock()
		return m.PlayNow(ctx, item)
	}
	at := m.current + 1
	m.items = append(m.items[:at], append([]Item{item}, m.items[at:]...)...)
	m.mu.Unlock()
	m.opMu.Unlock()
	return nil
}

// EnqueueLater appends item to the end of the queue. On an idle queue it
// behaves like PlayNow.
func (m *Manager) EnqueueLater(ctx context.Context, item Item) error {
	m.opMu.Lock()
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		m.opMu.Unlock()
		return m.PlayNow(ctx, item)
	}
	m.items = append(m.items, item)
	m.mu.Unlock()
	m.opMu.Unlock()
	return nil
}

// PlayCollectionNow replaces the queue with the collection's items in their
// given order and plays the first. An empty collection leaves the queue
// idle.
func (m *Manager) PlayCollectionNow(ctx context.Context, items []Item) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.replaceQueue(ctx, items)
}

// ShuffleCollectionNow replaces the queue with a uniformly random
// permutation of the collection's items and plays the first.
func (m *Manager) ShuffleCollectionNow(ctx context.Context, items []Item) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	shuffled := make([]Item, len(items))
	copy(shuffled, items)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return m.replaceQueue(ctx, shuffled)
}

// EnqueueCollectionNext splices the collection immediately after the active
// item as a contiguous block.
func (m *Manager) EnqueueCollectionNext(ctx context.Context, items []Item) error {
	m.opMu.Lock()
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		m.opMu.Unlock()
		return m.PlayCollectionNow(ctx, items)
	}
	at := m.current + 1
	spliced := make([]Item, 0, len(m.items)+len(items))
	spliced = append(spliced, m.items[:at]...)
	spliced = append(spliced, items...)
	spliced = append(spliced, m.items[at:]...)
	m.items = spliced
	m.mu.Unlock()
	m.opMu.Unlock()
	return nil
}

// EnqueueCollectionLater appends the collection to the end of the queue.
func (m *Manager) EnqueueCollectionLater(ctx context.Context, items []Item) error {
	m.opMu.Lock()
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		m.opMu.Unlock()
		return m.PlayCollectionNow(ctx, items)
	}
	m.items = append(m.items, items...)
	m.mu.Unlock()
	m.opMu.Unlock()
	return nil
}

// Remove deletes every occurrence of itemID. Removing the active item
// advances to the next remaining item, or goes idle when none remain.
func (m *Manager) Remove(ctx context.Context, itemID string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev, prevPos := m.activeSnapshot()

	m.mu.Lock()
	kept := m.items[:0:0]
	removedBefore := 0
	activeRemoved := false
	for i, item := range m.items {
		if item.ID == itemID {
			switch {
			case i < m.current:
				removedBefore++
			case i == m.current:
				activeRemoved = true
			}
			continue
		}
		kept = append(kept, item)
	}
	if len(kept) == len(m.items) {
		m.mu.Unlock()
		return nil
	}
	m.items = kept
	if m.current >= 0 {
		m.current -= removedBefore
	}

	if !activeRemoved {
		m.mu.Unlock()
		return nil
	}

	// The slot at the old index now holds the former next item.
	if m.current >= len(m.items) {
		m.current = -1
		m.state = StateIdle
		m.mu.Unlock()
		if err := m.clock.Stop(); err != nil {
			m.logger.Warn("stop after queue drained", "error", err)
		}
		m.notifyActive(prev, prevPos, nil)
		return nil
	}
	autoplay := m.state == StatePlaying
	m.mu.Unlock()
	return m.loadActive(ctx, prev, prevPos, autoplay)
}

// SetCurrent jumps to queue position i. Out-of-range indexes are a silent
// no-op.
func (m *Manager) SetCurrent(ctx context.Context, i int) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev, prevPos := m.activeSnapshot()
	m.mu.Lock()
	if i < 0 || i >= len(m.items) {
		m.mu.Unlock()
		return nil
	}
	m.current = i
	if m.state == StateIdle {
		m.state = StatePaused
	}
	autoplay := m.state == StatePlaying
	m.mu.Unlock()
	return m.loadActive(ctx, prev, prevPos, autoplay)
}

// Next advances to the following queue item, if any.
func (m *Manager) Next(ctx context.Context) error {
	return m.step(ctx, 1)
}

// Previous returns to the preceding queue item, if any.
func (m *Manager) Previous(ctx context.Context) error {
	return m.step(ctx, -1)
}

// HandleEnded reacts to the clock's track-ended signal: advance to the next
// item or transition to idle.
func (m *Manager) HandleEnded(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev, prevPos := m.activeSnapshot()
	m.mu.Lock()
	if m.current+1 < len(m.items) {
		m.current++
		autoplay := m.state == StatePlaying
		m.mu.Unlock()
		return m.loadActive(ctx, prev, prevPos, autoplay)
	}
	m.current = -1
	m.state = StateIdle
	m.mu.Unlock()
	if err := m.clock.Stop(); err != nil {
		m.logger.Warn("stop at end of queue", "error", err)
	}
	m.notifyActive(prev, prevPos, nil)
	return nil
}

// Resume flips a paused queue back to playing.
func (m *Manager) Resume() error {
	m.mu.Lock()
	if m.state != StatePaused {
		m.mu.Unlock()
		return nil
	}
	m.state = StatePlaying
	m.mu.Unlock()
	return m.clock.Play()
}

// Pause suspends a playing queue.
func (m *Manager) Pause() error {
	m.mu.Lock()
	if m.state != StatePlaying {
		m.mu.Unlock()
		return nil
	}
	m.state = StatePaused
	m.mu.Unlock()
	return m.clock.Pause()
}

func (m *Manager) step(ctx context.Context, delta int) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev, prevPos := m.activeSnapshot()
	m.mu.Lock()
	next := m.current + delta
	if m.current < 0 || next < 0 || next >= len(m.items) {
		m.mu.Unlock()
		return nil
	}
	m.current = next
	autoplay := m.state == StatePlaying
	m.mu.Unlock()
	return m.loadActive(ctx, prev, prevPos, autoplay)
}

func (m *Manager) replaceQueue(ctx context.Context, items []Item) error {
	prev, prevPos := m.activeSnapshot()
	m.mu.Lock()
	if len(items) == 0 {
		m.items = nil
		m.current = -1
		m.state = StateIdle
		m.mu.Unlock()
		if err := m.clock.Stop(); err != nil {
			m.logger.Warn("stop for empty collection", "error", err)
		}
		m.notifyActive(prev, prevPos, nil)
		return nil
	}
	m.items = items
	m.current = 0
	m.state = StatePlaying
	m.mu.Unlock()
	return m.loadActive(ctx, prev, prevPos, true)
}

// loadActive runs the active-item change pipeline: stop the transport,
// resolve the audio URL, hand it to the clock, then optionally auto-play.
// Called without m.mu held; opMu serializes callers.
func (m *Manager) loadActive(ctx context.Context, prev *Item, prevPos float64, autoplay bool) error {
	item, ok := m.CurrentItem()
	if !ok {
		return nil
	}

	m.mu.Lock()
	m.loadErr = nil
	m.mu.Unlock()

	url, err := m.resolver.ResolvePlaybackURL(ctx, item.CollectionID, item.ID)
	if err != nil {
		err = fmt.Errorf("resolve playback url for %s: %w", item.ID, err)
		m.failLoad(item, err)
		m.notifyActive(prev, prevPos, &item)
		return err
	}

	if err := m.clock.Load(url); err != nil {
		m.failLoad(item, err)
		m.notifyActive(prev, prevPos, &item)
		return err
	}

	m.logger.Info("loaded item", "item", item.ID, "title", item.Title)
	m.notifyActive(prev, prevPos, &item)

	if autoplay {
		if err := m.clock.Play(); err != nil {
			m.failLoad(item, err)
			return err
		}
	}
	return nil
}

func (m *Manager) failLoad(item Item, err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
	m.clock.MarkLoadFailed(err)
	m.logger.Warn("unable to load audio", "item", item.ID, "error", err)
}

func (m *Manager) activeSnapshot() (*Item, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current < 0 || m.current >= len(m.items) {
		return nil, 0
	}
	item := m.items[m.current]
	return &item, m.clock.State().Position
}

func (m *Manager) notifyActive(prev *Item, prevPos float64, next *Item) {
	if m.onActive == nil {
		return
	}
	if prev == nil && next == nil {
		return
	}
	m.onActive(prev, prevPos, next)
}
