// Package transcript keeps a windowed remote transcript synchronized with
// the playback clock.
//
// The transcript is never loaded in full: it streams in time-anchored
// windows from the remote collaborator. The engine tracks the loaded
// window's bounds, re-requests a window when the clock exits them, and
// recomputes the revealed word set from scratch on every reveal tick. At
// most one window request is in flight per active item; a response that
// arrives after the active item changed is discarded.
package transcript
