package playback

// Sink receives events from a Transport. The Clock implements Sink; hosts
// embedding a real media element deliver its native callbacks through this
// interface.
type Sink interface {
	// TimeUpdate delivers the transport's current position, in seconds.
	// Emitted continuously while playing.
	TimeUpdate(position float64)
	// MetadataReady delivers the item duration once it is known. Emitted at
	// most once per loaded source.
	MetadataReady(duration float64)
	// TrackEnded signals that playback reached the end of the source.
	TrackEnded()
	// TransportError reports a transport-level failure for the loaded source.
	TransportError(err error)
}

// Transport is the opaque media element the Clock drives. Implementations
// must deliver events to the Sink passed to Attach.
type Transport interface {
	Attach(sink Sink)
	// Load swaps the transport's source and resets its position to zero.
	Load(url string) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetRate(rate float64) error
	// Stop halts playback and releases the current source.
	Stop() error
}
