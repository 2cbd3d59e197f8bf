// Package queue owns the ordered sequence of playable items and the pointer
// to the active one.
//
// All queue mutation flows through Manager's operation set; every operation
// that changes the active item runs the same load pipeline: stop the current
// transport, resolve the new item's audio URL through the catalog
// collaborator, hand the URL to the clock, and resume playback when the
// session was already playing. A failed URL resolution leaves the pointer
// advanced and surfaces an "unable to load audio" status instead of
// retrying.
package queue
