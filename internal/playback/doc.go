// Package playback wraps an opaque media transport in the session's
// canonical Clock.
//
// The Clock is the single authoritative source of playback position,
// duration, and play state for the active item. Only the queue manager
// assigns its source; only the play/pause/seek commands mutate transport
// state. The underlying Transport is treated as a clock plus transport
// controls: playhead performs no decoding of its own.
package playback
