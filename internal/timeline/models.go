package timeline

// TrackID identifies a speaker track within a session.
type TrackID string

// SegmentID identifies a segment; unique within its track.
type SegmentID string

// Segment is a time-bounded clip of a track. Start and End are seconds on the
// shared timeline. The active interval is half-open: [Start, End).
type Segment struct {
	ID       SegmentID `json:"id" validate:"required"`
	Start    float64   `json:"start" validate:"gte=0"`
	End      float64   `json:"end" validate:"gtfield=Start"`
	AudioURL string    `json:"audioUrl,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Contains reports whether t falls inside [Start, End).
func (s Segment) Contains(t float64) bool {
	return t >= s.Start && t < s.End
}

// SameSpan reports whether s and o cover the same interval.
func (s Segment) SameSpan(o Segment) bool {
	return s.Start == o.Start && s.End == o.End
}

// Track is one speaker lane. Segments are kept sorted by Start.
type Track struct {
	ID          TrackID   `json:"id" validate:"required"`
	DisplayName string    `json:"displayName"`
	Segments    []Segment `json:"segments" validate:"dive"`
}

// Timeline describes the whole editing session.
type Timeline struct {
	TotalDuration   float64 `json:"totalDurationSeconds" validate:"gt=0"`
	PixelsPerSecond float64 `json:"pixelsPerSecond" validate:"gt=0"`
	Tracks          []Track `json:"tracks" validate:"dive"`
	ReferenceMedia  string  `json:"referenceMediaUrl"`
}

// SecondsToPixels converts a timeline duration to a pixel distance.
func (tl Timeline) SecondsToPixels(s float64) float64 {
	return s * tl.PixelsPerSecond
}

// PixelsToSeconds converts a pixel distance to a timeline duration.
func (tl Timeline) PixelsToSeconds(px float64) float64 {
	return px / tl.PixelsPerSecond
}

// EditKind names the kind of interactive boundary edit.
type EditKind string

const (
	EditMove        EditKind = "move"
	EditResizeLeft  EditKind = "resize-left"
	EditResizeRight EditKind = "resize-right"
)

// Valid reports whether k is one of the known edit kinds.
func (k EditKind) Valid() bool {
	switch k {
	case EditMove, EditResizeLeft, EditResizeRight:
		return true
	}
	return false
}

func cloneSegments(segs []Segment) []Segment {
	if segs == nil {
		return nil
	}
	out := make([]Segment, len(segs))
	copy(out, segs)
	return out
}

func cloneTrack(t Track) Track {
	t.Segments = cloneSegments(t.Segments)
	return t
}
