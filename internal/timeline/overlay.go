package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"playhead/internal/logging"
)

var (
	// ErrEndBeforeLastSection rejects a section end that does not lie after
	// the last existing section.
	ErrEndBeforeLastSection = errors.New("end time must be after the last section")
	// ErrTitleRequired rejects a commit without a title.
	ErrTitleRequired = errors.New("title is required")
	// ErrNoteRequired rejects a bookmark commit without a note.
	ErrNoteRequired = errors.New("note is required")
	// ErrEndNotSet rejects a section commit before an end was captured.
	ErrEndNotSet = errors.New("section end has not been set")
	// ErrNoDraft is returned by authoring actions when no draft is open.
	ErrNoDraft = errors.New("no annotation is being authored")
)

// Draft is a provisional annotation under authoring.
type Draft struct {
	Kind   Kind
	Title  string
	Note   string
	Start  float64
	End    float64
	HasEnd bool
}

// Overlay owns the per-item annotation cache and the authoring sub-mode.
type Overlay struct {
	mu          sync.Mutex
	service     Service
	logger      *slog.Logger
	itemID      string
	annotations []Annotation
	listErr     error
	draft       *Draft
}

// NewOverlay constructs an overlay backed by the remote annotation service.
func NewOverlay(service Service, logger *slog.Logger) (*Overlay, error) {
	if service == nil {
		return nil, fmt.Errorf("overlay requires an annotation service")
	}
	return &Overlay{
		service: service,
		logger:  logging.NewComponentLogger(logger, "timeline"),
	}, nil
}

// SetActiveItem invalidates the cache and refetches annotations for the new
// item. An empty id clears the overlay. A fetch failure leaves an empty
// cache and is surfaced via ListErr.
func (o *Overlay) SetActiveItem(ctx context.Context, itemID string) error {
	o.mu.Lock()
	o.itemID = itemID
	o.annotations = nil
	o.listErr = nil
	o.draft = nil
	o.mu.Unlock()

	if itemID == "" {
		return nil
	}

	annotations, err := o.service.List(ctx, itemID)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.itemID != itemID {
		// The active item changed while the fetch was in flight.
		return nil
	}
	if err != nil {
		o.listErr = fmt.Errorf("fetch annotations: %w", err)
		o.logger.Warn("annotation fetch failed", "item", itemID, "error", err)
		return o.listErr
	}
	sortAnnotations(annotations)
	o.annotations = annotations
	return nil
}

// Annotations returns a copy of the cached annotations, sections first,
// ordered by start.
func (o *Overlay) Annotations() []Annotation {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Annotation, len(o.annotations))
	copy(out, o.annotations)
	return out
}

// ListErr reports the most recent annotation fetch failure, if any.
func (o *Overlay) ListErr() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.listErr
}

// Markers computes render positions for the cached annotations.
func (o *Overlay) Markers(duration float64) []Marker {
	o.mu.Lock()
	annotations := make([]Annotation, len(o.annotations))
	copy(annotations, o.annotations)
	o.mu.Unlock()
	return Markers(duration, annotations)
}

// BeginSection enters authoring mode for a new section. The draft's start is
// seeded from the end of the last existing section, or zero.
func (o *Overlay) BeginSection() Draft {
	o.mu.Lock()
	defer o.mu.Unlock()
	start := lastSectionEnd(o.annotations)
	o.draft = &Draft{Kind: KindSection, Start: start}
	return *o.draft
}

// BeginBookmark enters authoring mode for a new bookmark at the supplied
// instant, typically the clock position when the authoring UI was invoked.
func (o *Overlay) BeginBookmark(at float64) Draft {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.draft = &Draft{Kind: KindBookmark, Start: at}
	return *o.draft
}

// SetSectionEnd captures position as the draft section's provisional end.
// The end must lie after the last existing section; otherwise the action is
// rejected and the draft is unchanged.
func (o *Overlay) SetSectionEnd(position float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.draft == nil || o.draft.Kind != KindSection {
		return ErrNoDraft
	}
	if position <= lastSectionEnd(o.annotations) {
		return ErrEndBeforeLastSection
	}
	o.draft.End = position
	o.draft.HasEnd = true
	return nil
}

// SetDraftTitle sets the draft's title.
func (o *Overlay) SetDraftTitle(title string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.draft == nil {
		return ErrNoDraft
	}
	o.draft.Title = title
	return nil
}

// SetDraftNote sets the draft's note.
func (o *Overlay) SetDraftNote(note string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.draft == nil {
		return ErrNoDraft
	}
	o.draft.Note = note
	return nil
}

// Draft returns the provisional annotation, when authoring is active.
func (o *Overlay) Draft() (Draft, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.draft == nil {
		return Draft{}, false
	}
	return *o.draft, true
}

// CancelDraft leaves authoring mode, discarding the provisional annotation.
func (o *Overlay) CancelDraft() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.draft = nil
}

// Commit validates the draft, sends it to the remote collaborator, and on
// success merges the created annotation into the cache and exits authoring
// mode. On failure the draft is retained so the commit can be retried.
func (o *Overlay) Commit(ctx context.Context) (Annotation, error) {
	o.mu.Lock()
	if o.draft == nil {
		o.mu.Unlock()
		return Annotation{}, ErrNoDraft
	}
	draft := *o.draft
	itemID := o.itemID
	o.mu.Unlock()

	if err := validateDraft(draft); err != nil {
		return Annotation{}, err
	}

	created, err := o.service.Create(ctx, itemID, Annotation{
		Kind:  draft.Kind,
		Title: strings.TrimSpace(draft.Title),
		Note:  strings.TrimSpace(draft.Note),
		Start: draft.Start,
		End:   draft.End,
	})
	if err != nil {
		o.logger.Warn("annotation commit failed", "item", itemID, "kind", draft.Kind, "error", err)
		return Annotation{}, fmt.Errorf("create annotation: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.itemID == itemID {
		o.annotations = append(o.annotations, created)
		sortAnnotations(o.annotations)
	}
	o.draft = nil
	return created, nil
}

// DeleteAnnotation removes an annotation remotely, then from the cache. The
// cache stays consistent with the last known-good remote state on failure.
func (o *Overlay) DeleteAnnotation(ctx context.Context, annotationID string) error {
	if err := o.service.Delete(ctx, annotationID); err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.annotations[:0:0]
	for _, a := range o.annotations {
		if a.ID != annotationID {
			kept = append(kept, a)
		}
	}
	o.annotations = kept
	return nil
}

func validateDraft(draft Draft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return ErrTitleRequired
	}
	switch draft.Kind {
	case KindSection:
		if !draft.HasEnd {
			return ErrEndNotSet
		}
	case KindBookmark:
		if strings.TrimSpace(draft.Note) == "" {
			return ErrNoteRequired
		}
	}
	return nil
}

func sortAnnotations(annotations []Annotation) {
	sort.SliceStable(annotations, func(i, j int) bool {
		return annotations[i].Start < annotations[j].Start
	})
}
