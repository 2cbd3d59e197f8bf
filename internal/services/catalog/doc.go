// Package catalog is the HTTP client for the episode catalog collaborator:
// episode lookup, collection listing, and playback URL resolution.
package catalog
