package playback

import (
	"fmt"
	"log/slog"
	"sync"

	"playhead/internal/logging"
)

// State is a snapshot of the Clock.
type State struct {
	Position      float64
	Duration      float64
	DurationKnown bool
	Playing       bool
	// Err is set when loading or the transport failed for the current
	// source. Consumers render it as "unable to load audio".
	Err error
}

// EventKind identifies the Clock event that produced a notification.
type EventKind int

const (
	// EventTick fires on every transport time update.
	EventTick EventKind = iota
	// EventMetadata fires once per item when the duration becomes known.
	EventMetadata
	// EventEnded fires when the transport reaches the end of the source.
	EventEnded
	// EventError fires when the transport reports a failure.
	EventError
)

// Event is delivered to Clock subscribers.
type Event struct {
	Kind  EventKind
	State State
}

// Listener receives Clock events. Listeners are invoked synchronously and
// must not block.
type Listener func(Event)

// Clock owns playback position, duration, and play state for the active
// item. It is safe for concurrent use.
type Clock struct {
	mu        sync.Mutex
	transport Transport
	state     State
	listeners []Listener
	logger    *slog.Logger
}

// NewClock wraps transport and attaches itself as the event sink.
func NewClock(transport Transport, logger *slog.Logger) *Clock {
	c := &Clock{
		transport: transport,
		logger:    logging.NewComponentLogger(logger, "clock"),
	}
	transport.Attach(c)
	return c
}

// State returns a snapshot of the clock.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a listener for clock events.
func (c *Clock) Subscribe(listener Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// Load swaps the transport source. Position resets to zero and the duration
// becomes unknown until the transport reports metadata.
func (c *Clock) Load(url string) error {
	c.mu.Lock()
	c.state = State{}
	c.mu.Unlock()

	if err := c.transport.Load(url); err != nil {
		err = fmt.Errorf("load source: %w", err)
		c.mu.Lock()
		c.state.Err = err
		c.mu.Unlock()
		c.logger.Warn("unable to load audio", "error", err)
		return err
	}
	return nil
}

// MarkLoadFailed records a failure that happened before a URL could be
// handed to the transport, leaving the clock in an unloaded error state.
func (c *Clock) MarkLoadFailed(err error) {
	_ = c.transport.Stop()
	c.mu.Lock()
	c.state = State{Err: err}
	c.mu.Unlock()
}

// Play starts or resumes playback.
func (c *Clock) Play() error {
	if err := c.transport.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	c.mu.Lock()
	c.state.Playing = true
	c.mu.Unlock()
	return nil
}

// Pause suspends playback, keeping the position.
func (c *Clock) Pause() error {
	if err := c.transport.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	c.mu.Lock()
	c.state.Playing = false
	c.mu.Unlock()
	return nil
}

// Seek jumps to an absolute position. Positions are clamped to zero and, when
// the duration is known, to the duration.
func (c *Clock) Seek(seconds float64) error {
	c.mu.Lock()
	if seconds < 0 {
		seconds = 0
	}
	if c.state.DurationKnown && seconds > c.state.Duration {
		seconds = c.state.Duration
	}
	c.mu.Unlock()

	if err := c.transport.Seek(seconds); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	c.mu.Lock()
	c.state.Position = seconds
	c.mu.Unlock()
	return nil
}

// SetRate changes the playback rate.
func (c *Clock) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", rate)
	}
	if err := c.transport.SetRate(rate); err != nil {
		return fmt.Errorf("set rate: %w", err)
	}
	return nil
}

// Stop halts the transport and resets clock state.
func (c *Clock) Stop() error {
	if err := c.transport.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	c.mu.Lock()
	c.state = State{}
	c.mu.Unlock()
	return nil
}

// TimeUpdate implements Sink.
func (c *Clock) TimeUpdate(position float64) {
	c.mu.Lock()
	c.state.Position = position
	c.mu.Unlock()
	c.emit(EventTick)
}

// MetadataReady implements Sink. The duration transitions once per item and
// never changes thereafter; later reports are ignored.
func (c *Clock) MetadataReady(duration float64) {
	c.mu.Lock()
	if c.state.DurationKnown {
		c.mu.Unlock()
		return
	}
	c.state.Duration = duration
	c.state.DurationKnown = true
	c.mu.Unlock()
	c.emit(EventMetadata)
}

// TrackEnded implements Sink.
func (c *Clock) TrackEnded() {
	c.mu.Lock()
	c.state.Playing = false
	if c.state.DurationKnown {
		c.state.Position = c.state.Duration
	}
	c.mu.Unlock()
	c.emit(EventEnded)
}

// TransportError implements Sink.
func (c *Clock) TransportError(err error) {
	c.mu.Lock()
	c.state.Playing = false
	c.state.Err = err
	c.mu.Unlock()
	c.logger.Warn("transport error", "error", err)
	c.emit(EventError)
}

func (c *Clock) emit(kind EventKind) {
	c.mu.Lock()
	state := c.state
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	event := Event{Kind: kind, State: state}
	for _, listener := range listeners {
		listener(event)
	}
}
