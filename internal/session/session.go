package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"playhead/internal/config"
	"playhead/internal/history"
	"playhead/internal/logging"
	"playhead/internal/playback"
	"playhead/internal/queue"
	"playhead/internal/timeline"
	"playhead/internal/transcript"
)

// Catalog is the episode catalog collaborator the session depends on.
type Catalog interface {
	ResolvePlaybackURL(ctx context.Context, collectionID, itemID string) (string, error)
	Episode(ctx context.Context, itemID string) (queue.Item, error)
	Collection(ctx context.Context, collectionID string) ([]queue.Item, error)
}

// Options wires a Session's collaborators.
type Options struct {
	Config      *config.Config
	Logger      *slog.Logger
	Transport   playback.Transport
	Catalog     Catalog
	Transcripts transcript.Source
	Annotations timeline.Service
	// History persists positions and the play log. Nil disables persistence;
	// playback still works, resume does not.
	History *history.Store
}

// Snapshot is a point-in-time view of the whole session, safe to render
// without further synchronization.
type Snapshot struct {
	SessionID     string
	Clock         playback.State
	PlayState     queue.PlayState
	Queue         []queue.Item
	Current       int
	LoadErr       error
	Transcript    transcript.Status
	Revealed      []transcript.Word
	Annotations   []timeline.Annotation
	AnnotationErr error
	Markers       []timeline.Marker
	Draft         *timeline.Draft
}

// Observer receives a fresh snapshot after every state change. Observers are
// invoked synchronously and must not block.
type Observer func(Snapshot)

// Session composes the playback clock, the queue, the transcript engine, the
// annotation overlay, and the history store into one explicitly owned object.
// All mutation routes through its methods; item switches fan out to every
// component before the next operation applies.
type Session struct {
	id      string
	cfg     *config.Config
	logger  *slog.Logger
	clock   *playback.Clock
	queue   *queue.Manager
	engine  *transcript.Engine
	overlay *timeline.Overlay
	catalog Catalog
	store   *history.Store

	ctx    context.Context
	cancel context.CancelFunc

	lock    *flock.Flock
	running atomic.Bool

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int
}

// New assembles a session from its collaborators. Start must be called before
// issuing operations.
func New(opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("session requires configuration")
	}
	if opts.Transport == nil || opts.Catalog == nil {
		return nil, fmt.Errorf("session requires transport and catalog")
	}
	if opts.Transcripts == nil || opts.Annotations == nil {
		return nil, fmt.Errorf("session requires transcript and annotation services")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		cfg:       opts.Config,
		logger:    logging.NewComponentLogger(opts.Logger, "session"),
		catalog:   opts.Catalog,
		store:     opts.History,
		ctx:       ctx,
		cancel:    cancel,
		observers: make(map[int]Observer),
	}

	s.clock = playback.NewClock(opts.Transport, opts.Logger)

	engine, err := transcript.NewEngine(transcript.Options{
		Source:   opts.Transcripts,
		Position: func() float64 { return s.clock.State().Position },
		Logger:   opts.Logger,
		Margin:   opts.Config.RefetchMarginSeconds,
		Interval: time.Duration(opts.Config.RevealIntervalMS) * time.Millisecond,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build transcript engine: %w", err)
	}
	s.engine = engine

	overlay, err := timeline.NewOverlay(opts.Annotations, opts.Logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build annotation overlay: %w", err)
	}
	s.overlay = overlay

	manager, err := queue.NewManager(queue.Options{
		Clock:        s.clock,
		Resolver:     opts.Catalog,
		Logger:       opts.Logger,
		OnActiveItem: s.handleActiveItem,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build queue manager: %w", err)
	}
	s.queue = manager

	s.clock.Subscribe(s.handleClockEvent)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Start acquires the single-session lock and launches the transcript reveal
// loop. A second session against the same state directory fails here.
func (s *Session) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("session already running")
	}
	if err := s.cfg.EnsureDirectories(); err != nil {
		s.running.Store(false)
		return fmt.Errorf("ensure directories: %w", err)
	}

	lockPath := filepath.Join(s.cfg.StateDir, "session.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !locked {
		s.running.Store(false)
		return fmt.Errorf("another session is already running (lock held at %s)", lockPath)
	}
	s.lock = lock

	s.engine.Start()
	s.logger.Info("session started", "session", s.id)
	return nil
}

// Stop persists the active item's position, tears down the transcript engine,
// stops the transport, and releases the session lock. Idempotent.
func (s *Session) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	if item, ok := s.queue.CurrentItem(); ok && s.store != nil {
		state := s.clock.State()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.SavePosition(ctx, item.ID, state.Position, state.Duration); err != nil {
			s.logger.Warn("save position on shutdown", "item", item.ID, "error", err)
		}
		cancel()
	}

	s.engine.Close()
	s.cancel()
	if err := s.clock.Stop(); err != nil {
		s.logger.Warn("stop transport", "error", err)
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("release session lock", "error", err)
		}
		s.lock = nil
	}
	s.logger.Info("session stopped", "session", s.id)
}

// Subscribe registers an observer and returns its remove function.
func (s *Session) Subscribe(observer Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = observer
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

// Snapshot assembles a consistent view across all components.
func (s *Session) Snapshot() Snapshot {
	state := s.clock.State()
	snap := Snapshot{
		SessionID:     s.id,
		Clock:         state,
		PlayState:     s.queue.State(),
		Queue:         s.queue.Items(),
		Current:       s.queue.Current(),
		LoadErr:       s.queue.LoadErr(),
		Transcript:    s.engine.Status(),
		Revealed:      s.engine.Revealed(),
		Annotations:   s.overlay.Annotations(),
		AnnotationErr: s.overlay.ListErr(),
	}
	if state.DurationKnown {
		snap.Markers = s.overlay.Markers(state.Duration)
	}
	if draft, ok := s.overlay.Draft(); ok {
		snap.Draft = &draft
	}
	return snap
}

// PlayItem fetches an episode and plays it immediately, replacing the queue.
func (s *Session) PlayItem(ctx context.Context, itemID string) error {
	item, err := s.catalog.Episode(ctx, itemID)
	if err != nil {
		return err
	}
	defer s.notify()
	return s.queue.PlayNow(ctx, item)
}

// EnqueueNext fetches an episode and inserts it after the active item.
func (s *Session) EnqueueNext(ctx context.Context, itemID string) error {
	item, err := s.catalog.Episode(ctx, itemID)
	if err != nil {
		return err
	}
	defer s.notify()
	return s.queue.EnqueueNext(ctx, item)
}

// EnqueueLater fetches an episode and appends it to the queue.
func (s *Session) EnqueueLater(ctx context.Context, itemID string) error {
	item, err := s.catalog.Episode(ctx, itemID)
	if err != nil {
		return err
	}
	defer s.notify()
	return s.queue.EnqueueLater(ctx, item)
}

// PlayCollection replaces the queue with a collection in its given order.
func (s *Session) PlayCollection(ctx context.Context, collectionID string) error {
	items, err := s.catalog.Collection(ctx, collectionID)
	if err != nil {
		return err
	}
	defer s.notify()
	return s.queue.PlayCollectionNow(ctx, items)
}

// ShuffleCollection replaces the queue with a random permutation of a
// collection.
func (s *Session) ShuffleCollection(ctx context.Context, collectionID string) error {
	items, err := s.catalog.Collection(ctx, collectionID)
	if err != nil {
		return err
	}
	defer s.notify()
	return s.queue.ShuffleCollectionNow(ctx, items)
}

// EnqueueCollectionNext splices a collection after the active item.
func (s *Session) EnqueueCollectionNext(ctx context.Context, collectionID string) error {
	items, err := s.catalog.Collection(ctx, collectionID)
	if err != nil {
		return err
	}
	defer s.notify()
	return s.queue.EnqueueCollectionNext(ctx, items)
}

// EnqueueCollectionLater appends a collection to the queue.
func (s *Session) EnqueueCollectionLater(ctx context.Context, collectionID string) error {
	items, err := s.catalog.Collection(ctx, collectionID)
	if err != nil {
		return err
	}
	defer s.notify()
	return s.queue.EnqueueCollectionLater(ctx, items)
}

// RemoveItem deletes every queue occurrence of an item.
func (s *Session) RemoveItem(ctx context.Context, itemID string) error {
	defer s.notify()
	return s.queue.Remove(ctx, itemID)
}

// JumpTo switches the active item to queue position i.
func (s *Session) JumpTo(ctx context.Context, i int) error {
	defer s.notify()
	return s.queue.SetCurrent(ctx, i)
}

// Next advances to the following queue item.
func (s *Session) Next(ctx context.Context) error {
	defer s.notify()
	return s.queue.Next(ctx)
}

// Previous returns to the preceding queue item.
func (s *Session) Previous(ctx context.Context) error {
	defer s.notify()
	return s.queue.Previous(ctx)
}

// Play resumes a paused queue.
func (s *Session) Play() error {
	defer s.notify()
	return s.queue.Resume()
}

// Pause suspends playback, keeping the position.
func (s *Session) Pause() error {
	defer s.notify()
	return s.queue.Pause()
}

// SeekTo jumps the clock to an absolute position.
func (s *Session) SeekTo(seconds float64) error {
	defer s.notify()
	return s.clock.Seek(seconds)
}

// SkipForward seeks forward by the configured seek step.
func (s *Session) SkipForward() error {
	return s.SeekTo(s.clock.State().Position + s.cfg.SeekStepSeconds)
}

// SkipBack seeks backward by the configured seek step.
func (s *Session) SkipBack() error {
	return s.SeekTo(s.clock.State().Position - s.cfg.SeekStepSeconds)
}

// SetRate changes the playback rate.
func (s *Session) SetRate(rate float64) error {
	defer s.notify()
	return s.clock.SetRate(rate)
}

// BeginSection opens a section draft seeded from the last section's end.
func (s *Session) BeginSection() timeline.Draft {
	defer s.notify()
	return s.overlay.BeginSection()
}

// BeginBookmark opens a bookmark draft at the current clock position.
func (s *Session) BeginBookmark() timeline.Draft {
	defer s.notify()
	return s.overlay.BeginBookmark(s.clock.State().Position)
}

// CaptureSectionEnd records the current clock position as the draft section's
// provisional end.
func (s *Session) CaptureSectionEnd() error {
	defer s.notify()
	return s.overlay.SetSectionEnd(s.clock.State().Position)
}

// SetDraftTitle sets the open draft's title.
func (s *Session) SetDraftTitle(title string) error {
	defer s.notify()
	return s.overlay.SetDraftTitle(title)
}

// SetDraftNote sets the open draft's note.
func (s *Session) SetDraftNote(note string) error {
	defer s.notify()
	return s.overlay.SetDraftNote(note)
}

// CommitDraft validates and persists the open draft.
func (s *Session) CommitDraft(ctx context.Context) (timeline.Annotation, error) {
	defer s.notify()
	return s.overlay.Commit(ctx)
}

// CancelDraft discards the open draft.
func (s *Session) CancelDraft() {
	defer s.notify()
	s.overlay.CancelDraft()
}

// DeleteAnnotation removes an annotation remotely and from the cache.
func (s *Session) DeleteAnnotation(ctx context.Context, annotationID string) error {
	defer s.notify()
	return s.overlay.DeleteAnnotation(ctx, annotationID)
}

// Recent returns the most recent play history entries, newest first. Returns
// nil when history is disabled.
func (s *Session) Recent(ctx context.Context, limit int) ([]history.PlayRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Recent(ctx, limit)
}

// handleActiveItem is the queue's active-item callback. It persists the
// outgoing item's position, switches the transcript and annotation components
// to the incoming item, applies auto-resume, and records the play.
func (s *Session) handleActiveItem(previous *queue.Item, previousPosition float64, next *queue.Item) {
	if previous != nil && s.store != nil {
		if err := s.store.SavePosition(s.ctx, previous.ID, previousPosition, previous.DurationHint); err != nil {
			s.logger.Warn("save position", "item", previous.ID, "error", err)
		}
	}

	nextID := ""
	if next != nil {
		nextID = next.ID
	}
	s.engine.SetActiveItem(nextID)
	go func() {
		// Failures land in the overlay's ListErr; the snapshot surfaces them.
		_ = s.overlay.SetActiveItem(s.ctx, nextID)
		s.notify()
	}()

	if next != nil {
		if s.cfg.AutoResume && s.store != nil {
			if position, ok, err := s.store.Position(s.ctx, next.ID); err != nil {
				s.logger.Warn("load saved position", "item", next.ID, "error", err)
			} else if ok && position > 0 {
				if err := s.clock.Seek(position); err != nil {
					s.logger.Warn("resume seek", "item", next.ID, "position", position, "error", err)
				} else {
					s.logger.Info("resumed from saved position", "item", next.ID, "position", position)
				}
			}
		}
		if s.store != nil {
			if err := s.store.RecordPlay(s.ctx, *next); err != nil {
				s.logger.Warn("record play", "item", next.ID, "error", err)
			}
		}
	}

	s.notify()
}

// handleClockEvent reacts to clock notifications. Track end advances the
// queue; every event refreshes observers.
func (s *Session) handleClockEvent(event playback.Event) {
	if event.Kind == playback.EventEnded && s.running.Load() {
		if err := s.queue.HandleEnded(s.ctx); err != nil {
			s.logger.Warn("advance after track end", "error", err)
		}
	}
	s.notify()
}

func (s *Session) notify() {
	s.obsMu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.obsMu.Unlock()

	if len(observers) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, observer := range observers {
		observer(snap)
	}
}
