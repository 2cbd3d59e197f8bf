// Package timeline renders time-stamped annotations (sections and
// bookmarks) onto the playback timeline and owns the authoring flow for new
// ones.
//
// Marker positions are a pure function of duration and the annotation list.
// Authoring holds a provisional draft validated locally; a commit
// round-trips to the remote collaborator and only merges into the local
// cache on success, so a failed commit can be retried without re-entering
// data. The cache is authoritative-remote: it is invalidated wholesale when
// the active item changes.
package timeline
