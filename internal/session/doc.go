// Package session owns one playback session: the canonical clock, the
// queue, the transcript synchronization engine, the timeline annotation
// overlay, and the local history store.
//
// The session is an explicitly owned object handed to whatever surface
// needs it; all mutation routes through its operation set and consumers
// observe it through snapshots delivered to subscribers. Collaborator
// failures degrade into observable status fields; nothing a collaborator
// does can terminate the session.
package session
