// Package annotations is the HTTP client for the sections/bookmarks
// collaborator. It implements timeline.Service: annotation persistence is
// delegated entirely to the backend, the session only caches.
package annotations
