package transcript

import (
	"context"
	"errors"
)

// ErrNoTranscript marks an item with no transcript at all. The engine treats
// it as a permanent per-item condition and stops fetching.
var ErrNoTranscript = errors.New("no transcript for item")

// Word is a single spoken word with its time span.
type Word struct {
	Start float64
	End   float64
	Text  string
}

// Line is a contiguous run of words.
type Line struct {
	Start float64
	End   float64
	Words []Word
}

// Window is a bounded, time-anchored batch of transcript lines. Lines are
// ordered by start time ascending. Windows are replaced wholesale on
// refetch, never patched.
type Window struct {
	Lines []Line
}

// Source fetches transcript windows from the remote collaborator. The
// anchor is in seconds; callers clamp negative anchors to zero.
type Source interface {
	FetchWindow(ctx context.Context, itemID string, anchorSeconds float64) (Window, error)
}

// bounds derives the loaded window's refetch boundaries. The margin is
// subtracted from the last line's end so a refetch fires before the clock
// runs off loaded data.
func (w Window) bounds(margin float64) (lower, upper float64) {
	if len(w.Lines) == 0 {
		return 0, 0
	}
	lower = w.Lines[0].Start
	upper = w.Lines[0].End
	for _, line := range w.Lines {
		if line.Start < lower {
			lower = line.Start
		}
		if line.End > upper {
			upper = line.End
		}
	}
	return lower, upper - margin
}

// maxEnd returns the latest line end in the window.
func (w Window) maxEnd() float64 {
	var end float64
	for _, line := range w.Lines {
		if line.End > end {
			end = line.End
		}
	}
	return end
}

// revealedAt returns every word whose start time has passed, preserving
// line and word order.
func (w Window) revealedAt(position float64) []Word {
	var words []Word
	for _, line := range w.Lines {
		if line.Start > position {
			continue
		}
		for _, word := range line.Words {
			if word.Start <= position {
				words = append(words, word)
			}
		}
	}
	return words
}
