package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoSource is returned by transport controls when nothing is loaded.
var ErrNoSource = errors.New("no source loaded")

// SimOptions configures a SimTransport.
type SimOptions struct {
	// Interval is the real-time tick cadence used while playing. Zero means
	// the transport only moves when Advance is called, which is what tests
	// want.
	Interval time.Duration
	// Durations maps source URLs to their duration in seconds. Loading a
	// known URL emits MetadataReady immediately.
	Durations map[string]float64
	// FailLoads lists source URLs whose Load fails, for error-path testing.
	FailLoads map[string]error
}

// SimTransport is a deterministic Transport used by tests and the CLI run
// command. It advances a simulated position instead of decoding audio.
type SimTransport struct {
	mu       sync.Mutex
	opts     SimOptions
	sink     Sink
	url      string
	loaded   bool
	playing  bool
	position float64
	duration float64
	hasDur   bool
	rate     float64
	stop     chan struct{}
}

// NewSimTransport constructs a simulated transport.
func NewSimTransport(opts SimOptions) *SimTransport {
	return &SimTransport{opts: opts, rate: 1}
}

// Attach implements Transport.
func (s *SimTransport) Attach(sink Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Load implements Transport.
func (s *SimTransport) Load(url string) error {
	s.mu.Lock()
	if err, ok := s.opts.FailLoads[url]; ok {
		s.mu.Unlock()
		return err
	}
	s.stopTickerLocked()
	s.url = url
	s.loaded = true
	s.playing = false
	s.position = 0
	s.duration, s.hasDur = s.opts.Durations[url]
	sink := s.sink
	duration := s.duration
	hasDur := s.hasDur
	s.mu.Unlock()

	if sink != nil && hasDur {
		sink.MetadataReady(duration)
	}
	return nil
}

// Play implements Transport.
func (s *SimTransport) Play() error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoSource
	}
	s.playing = true
	interval := s.opts.Interval
	if interval > 0 && s.stop == nil {
		stop := make(chan struct{})
		s.stop = stop
		go s.tickLoop(interval, stop)
	}
	s.mu.Unlock()
	return nil
}

// Pause implements Transport.
func (s *SimTransport) Pause() error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoSource
	}
	s.playing = false
	s.stopTickerLocked()
	s.mu.Unlock()
	return nil
}

// Seek implements Transport.
func (s *SimTransport) Seek(seconds float64) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNoSource
	}
	if seconds < 0 {
		seconds = 0
	}
	if s.hasDur && seconds > s.duration {
		seconds = s.duration
	}
	s.position = seconds
	s.mu.Unlock()
	return nil
}

// SetRate implements Transport.
func (s *SimTransport) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", rate)
	}
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
	return nil
}

// Stop implements Transport.
func (s *SimTransport) Stop() error {
	s.mu.Lock()
	s.stopTickerLocked()
	s.url = ""
	s.loaded = false
	s.playing = false
	s.position = 0
	s.hasDur = false
	s.mu.Unlock()
	return nil
}

// Advance moves the simulated position forward by elapsed wall-clock
// seconds, scaled by the playback rate, and delivers the resulting events.
// It is a no-op unless the transport is playing.
func (s *SimTransport) Advance(seconds float64) {
	s.mu.Lock()
	if !s.loaded || !s.playing {
		s.mu.Unlock()
		return
	}
	s.position += seconds * s.rate
	ended := false
	if s.hasDur && s.position >= s.duration {
		s.position = s.duration
		s.playing = false
		ended = true
		s.stopTickerLocked()
	}
	sink := s.sink
	position := s.position
	s.mu.Unlock()

	if sink == nil {
		return
	}
	sink.TimeUpdate(position)
	if ended {
		sink.TrackEnded()
	}
}

// Source returns the currently loaded URL, for assertions.
func (s *SimTransport) Source() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, s.loaded
}

func (s *SimTransport) tickLoop(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Advance(interval.Seconds())
		}
	}
}

func (s *SimTransport) stopTickerLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}
