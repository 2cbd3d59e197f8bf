// Command playhead runs an episodic audio playback session from the
// terminal: queueing, transcript reveal, annotations, and play history.
package main
