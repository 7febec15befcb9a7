package timeline

import (
	"errors"
	"math"
	"sync"
)

var (
	// ErrTrackNotFound is returned when a track id is unknown.
	ErrTrackNotFound = errors.New("track not found")

	// ErrSegmentNotFound is returned when a segment id is unknown within its track.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrInvalidSpan is returned when an edit would leave end <= start or start < 0.
	ErrInvalidSpan = errors.New("segment end must be greater than start")

	// ErrOverlap is returned when a settled edit cannot be placed without
	// overlapping a neighbouring segment.
	ErrOverlap = errors.New("segment overlaps a neighbour")

	// ErrInvalidSplit is returned when split children do not exactly tile the parent.
	ErrInvalidSplit = errors.New("split children must be two contiguous segments covering the parent")
)

// spanEpsilon absorbs float noise when comparing split boundaries.
const spanEpsilon = 1e-9

// Patch carries fields returned by the remote update service.
// Nil AudioURL or Text leaves the current value in place.
type Patch struct {
	Start    float64
	End      float64
	AudioURL *string
	Text     *string
}

// Store is the concurrency-safe SegmentStore for one editing session.
// Tracks keep their bootstrap order; segments within a track are kept sorted
// by start except during a live drag preview, where SetSpan does not re-sort.
type Store struct {
	mu sync.RWMutex

	totalDuration   float64
	pixelsPerSecond float64
	referenceMedia  string
	tracks          []Track
}

// NewStore copies tl into a new store. tl is expected to have passed Validate.
func NewStore(tl Timeline) *Store {
	tracks := make([]Track, len(tl.Tracks))
	for i, tr := range tl.Tracks {
		tracks[i] = cloneTrack(tr)
		sortByStart(tracks[i].Segments)
	}
	return &Store{
		totalDuration:   tl.TotalDuration,
		pixelsPerSecond: tl.PixelsPerSecond,
		referenceMedia:  tl.ReferenceMedia,
		tracks:          tracks,
	}
}

// Timeline returns a deep copy of the current session timeline.
func (s *Store) Timeline() Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Timeline{
		TotalDuration:   s.totalDuration,
		PixelsPerSecond: s.pixelsPerSecond,
		ReferenceMedia:  s.referenceMedia,
		Tracks:          s.tracksLocked(),
	}
}

// Tracks returns a deep copy of every track.
func (s *Store) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracksLocked()
}

// Track returns a copy of one track.
func (s *Store) Track(id TrackID) (Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, err := s.trackLocked(id)
	if err != nil {
		return Track{}, err
	}
	return cloneTrack(*tr), nil
}

// Segment returns a copy of one segment.
func (s *Store) Segment(trackID TrackID, segID SegmentID) (Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, idx, err := s.segmentLocked(trackID, segID)
	if err != nil {
		return Segment{}, err
	}
	return tr.Segments[idx], nil
}

// ActiveSegment returns the first segment of the track, in list order, whose
// [start, end) interval contains t.
func (s *Store) ActiveSegment(trackID TrackID, t float64) (Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, err := s.trackLocked(trackID)
	if err != nil {
		return Segment{}, false
	}
	return ActiveIn(tr.Segments, t)
}

// ActiveIn returns the first segment in segs whose [start, end) contains t.
func ActiveIn(segs []Segment, t float64) (Segment, bool) {
	for _, seg := range segs {
		if seg.Contains(t) {
			return seg, true
		}
	}
	return Segment{}, false
}

// SetSpan writes a live drag preview span. It rejects start < 0 and
// end <= start, leaving the segment unchanged. Overlap is not checked and the
// list is not re-sorted; Settle does both.
func (s *Store) SetSpan(trackID TrackID, segID SegmentID, start, end float64) (Segment, error) {
	if start < 0 || end <= start {
		return Segment{}, ErrInvalidSpan
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tr, idx, err := s.segmentLocked(trackID, segID)
	if err != nil {
		return Segment{}, err
	}
	tr.Segments[idx].Start = start
	tr.Segments[idx].End = end
	return tr.Segments[idx], nil
}

// Settle clamps a freshly dragged segment against its neighbours so the track
// stays non-overlapping, then re-sorts the track. A move is shifted into the
// free gap around its new position with its duration preserved; a resize is
// trimmed at the neighbouring boundary. ErrOverlap means no valid placement
// exists and the caller should roll back.
func (s *Store) Settle(trackID TrackID, segID SegmentID, kind EditKind) (Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, idx, err := s.segmentLocked(trackID, segID)
	if err != nil {
		return Segment{}, err
	}
	seg := tr.Segments[idx]

	prevEnd, nextStart := 0.0, math.Inf(1)
	for j, o := range tr.Segments {
		if j == idx {
			continue
		}
		if o.Start <= seg.Start {
			prevEnd = math.Max(prevEnd, o.End)
		} else {
			nextStart = math.Min(nextStart, o.Start)
		}
	}

	switch kind {
	case EditMove:
		dur := seg.Duration()
		if seg.Start < prevEnd {
			seg.Start, seg.End = prevEnd, prevEnd+dur
		}
		if seg.End > nextStart {
			seg.Start, seg.End = nextStart-dur, nextStart
		}
		if seg.Start < prevEnd || seg.Start < 0 {
			return Segment{}, ErrOverlap
		}
	case EditResizeLeft:
		seg.Start = math.Max(seg.Start, prevEnd)
	case EditResizeRight:
		seg.End = math.Min(seg.End, nextStart)
	}

	if seg.End <= seg.Start {
		return Segment{}, ErrOverlap
	}
	for j, o := range tr.Segments {
		if j != idx && o.Start < seg.End && seg.Start < o.End {
			return Segment{}, ErrOverlap
		}
	}

	tr.Segments[idx] = seg
	sortByStart(tr.Segments)
	return seg, nil
}

// Merge applies fields confirmed by the remote update service. A confirmed
// span that would overlap another segment of the track is refused with
// ErrOverlap and nothing is changed.
func (s *Store) Merge(trackID TrackID, segID SegmentID, p Patch) (Segment, error) {
	if p.Start < 0 || p.End <= p.Start {
		return Segment{}, ErrInvalidSpan
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tr, idx, err := s.segmentLocked(trackID, segID)
	if err != nil {
		return Segment{}, err
	}
	for j, o := range tr.Segments {
		if j != idx && o.Start < p.End && p.Start < o.End {
			return Segment{}, ErrOverlap
		}
	}
	seg := &tr.Segments[idx]
	seg.Start, seg.End = p.Start, p.End
	if p.AudioURL != nil {
		seg.AudioURL = *p.AudioURL
	}
	if p.Text != nil {
		seg.Text = *p.Text
	}
	merged := *seg
	sortByStart(tr.Segments)
	return merged, nil
}

// Restore puts a snapshot of a single segment back in place. Other segments
// are untouched. A segment deleted in the meantime is not resurrected.
func (s *Store) Restore(trackID TrackID, snapshot Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, idx, err := s.segmentLocked(trackID, snapshot.ID)
	if err != nil {
		return err
	}
	tr.Segments[idx] = snapshot
	sortByStart(tr.Segments)
	return nil
}

// ReplaceWithChildren atomically swaps parent for its two split children and
// re-sorts the track. Children must be contiguous, exactly tile the parent's
// span and carry ids not already used in the track.
func (s *Store) ReplaceWithChildren(trackID TrackID, parentID SegmentID, children []Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, idx, err := s.segmentLocked(trackID, parentID)
	if err != nil {
		return err
	}
	if err := checkSplit(tr.Segments[idx], children); err != nil {
		return err
	}
	for j, o := range tr.Segments {
		if j == idx {
			continue
		}
		if o.ID == children[0].ID || o.ID == children[1].ID {
			return ErrInvalidSplit
		}
	}

	next := make([]Segment, 0, len(tr.Segments)+1)
	next = append(next, tr.Segments[:idx]...)
	next = append(next, tr.Segments[idx+1:]...)
	next = append(next, children...)
	sortByStart(next)
	tr.Segments = next
	return nil
}

func checkSplit(parent Segment, children []Segment) error {
	if len(children) != 2 {
		return ErrInvalidSplit
	}
	left, right := children[0], children[1]
	if right.Start < left.Start {
		left, right = right, left
	}
	if left.ID == right.ID || left.ID == parent.ID || right.ID == parent.ID {
		return ErrInvalidSplit
	}
	for _, c := range []Segment{left, right} {
		if c.End <= c.Start {
			return ErrInvalidSplit
		}
	}
	if math.Abs(left.Start-parent.Start) > spanEpsilon ||
		math.Abs(left.End-right.Start) > spanEpsilon ||
		math.Abs(right.End-parent.End) > spanEpsilon {
		return ErrInvalidSplit
	}
	return nil
}

// Remove deletes a segment permanently and returns it.
func (s *Store) Remove(trackID TrackID, segID SegmentID) (Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, idx, err := s.segmentLocked(trackID, segID)
	if err != nil {
		return Segment{}, err
	}
	removed := tr.Segments[idx]
	tr.Segments = append(tr.Segments[:idx:idx], tr.Segments[idx+1:]...)
	return removed, nil
}

// SegmentCount returns the number of segments across all tracks.
func (s *Store) SegmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, tr := range s.tracks {
		n += len(tr.Segments)
	}
	return n
}

// tracksLocked returns deep copies. Caller must hold s.mu.
func (s *Store) tracksLocked() []Track {
	out := make([]Track, len(s.tracks))
	for i, tr := range s.tracks {
		out[i] = cloneTrack(tr)
	}
	return out
}

// trackLocked returns a pointer into s.tracks. Caller must hold s.mu.
func (s *Store) trackLocked(id TrackID) (*Track, error) {
	for i := range s.tracks {
		if s.tracks[i].ID == id {
			return &s.tracks[i], nil
		}
	}
	return nil, ErrTrackNotFound
}

// segmentLocked returns the owning track and the segment's index.
// Caller must hold s.mu.
func (s *Store) segmentLocked(trackID TrackID, segID SegmentID) (*Track, int, error) {
	tr, err := s.trackLocked(trackID)
	if err != nil {
		return nil, 0, err
	}
	for i := range tr.Segments {
		if tr.Segments[i].ID == segID {
			return tr, i, nil
		}
	}
	return nil, 0, ErrSegmentNotFound
}
