// Package transcripts is the HTTP client for the transcript-window
// collaborator. A window request is anchored at a clock position; the
// backend returns the lines surrounding that anchor.
package transcripts
