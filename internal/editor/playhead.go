package editor

import (
	"errors"

	"timeline-editor/internal/playback"
	"timeline-editor/internal/timeline"
)

// ErrScrubActive is returned when the playhead is grabbed twice.
var ErrScrubActive = errors.New("playhead is already grabbed")

// Scrubber is the part of the synchronizer the playhead writes through.
type Scrubber interface {
	State() playback.State
	BeginScrub()
	ScrubTo(t float64) (float64, error)
	EndScrub()
}

// Playhead lets the user drag the playhead to set elapsed directly.
// Positions are content x coordinates, so they include the label margin.
type Playhead struct {
	store      *timeline.Store
	clock      Scrubber
	leftMargin float64

	grabbed bool
	offset  float64
}

// NewPlayhead creates a playhead controller.
func NewPlayhead(store *timeline.Store, clock Scrubber, leftMargin float64) *Playhead {
	return &Playhead{store: store, clock: clock, leftMargin: leftMargin}
}

// Grabbed reports whether the playhead is being dragged.
func (p *Playhead) Grabbed() bool { return p.grabbed }

// Grab pauses playback and remembers where on the playhead the pointer landed.
func (p *Playhead) Grab(x float64) error {
	if p.grabbed {
		return ErrScrubActive
	}
	p.clock.BeginScrub()
	tl := p.store.Timeline()
	p.offset = x - (tl.SecondsToPixels(p.clock.State().Elapsed) + p.leftMargin)
	p.grabbed = true
	return nil
}

// Move sets elapsed from the pointer, clamped to the timeline, and returns it.
func (p *Playhead) Move(x float64) (float64, error) {
	if !p.grabbed {
		return 0, playback.ErrNotScrubbing
	}
	tl := p.store.Timeline()
	return p.clock.ScrubTo(tl.PixelsToSeconds(x - p.offset - p.leftMargin))
}

// Release ends the drag. Anything still sounding is paused and playback is
// not resumed.
func (p *Playhead) Release() error {
	if !p.grabbed {
		return playback.ErrNotScrubbing
	}
	p.grabbed = false
	p.clock.EndScrub()
	return nil
}
