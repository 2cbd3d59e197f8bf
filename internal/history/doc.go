// Package history persists local playback state in SQLite: the last saved
// position per episode (so a session can resume where it left off) and a
// play history log.
//
// The store lives in the configured state directory and is owned by a
// single session at a time; the session enforces that with a lock file
// beside the database.
package history
