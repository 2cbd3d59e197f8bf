package timeline

import (
	"context"
	"sort"
)

// Kind tags the annotation variant.
type Kind string

const (
	// KindSection is a contiguous, non-overlapping span of the episode.
	KindSection Kind = "section"
	// KindBookmark is a single instant with a title and note.
	KindBookmark Kind = "bookmark"
)

// Annotation is a tagged Section/Bookmark variant. Sections carry Start and
// End; bookmarks carry Start and a Note.
type Annotation struct {
	ID    string
	Kind  Kind
	Title string
	Note  string
	Start float64
	End   float64
}

// Service is the remote annotation collaborator.
type Service interface {
	List(ctx context.Context, itemID string) ([]Annotation, error)
	Create(ctx context.Context, itemID string, annotation Annotation) (Annotation, error)
	Delete(ctx context.Context, annotationID string) error
}

// Marker is an annotation's normalized render position on the timeline.
type Marker struct {
	ID      string
	Kind    Kind
	Title   string
	Percent float64
}

// Markers computes render positions for annotations against a known
// duration. An unknown or zero duration emits nothing rather than dividing
// by zero. Positions are clamped to [0, 100].
func Markers(duration float64, annotations []Annotation) []Marker {
	if duration <= 0 {
		return nil
	}
	markers := make([]Marker, 0, len(annotations))
	for _, a := range annotations {
		percent := a.Start / duration * 100
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		markers = append(markers, Marker{ID: a.ID, Kind: a.Kind, Title: a.Title, Percent: percent})
	}
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Percent < markers[j].Percent })
	return markers
}

// lastSectionEnd returns the end of the latest section, or 0 when none
// exist.
func lastSectionEnd(annotations []Annotation) float64 {
	var end float64
	for _, a := range annotations {
		if a.Kind == KindSection && a.End > end {
			end = a.End
		}
	}
	return end
}
