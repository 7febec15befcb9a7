package remote

import (
	"context"
	"fmt"
	"sync"

	"timeline-editor/internal/timeline"
)

// Local is an in-process segment service that accepts every edit. Updates
// are echoed back unchanged and splits produce "<id>_a" / "<id>_b" children
// that inherit the parent's audio and caption. It is used when no remote
// service is configured.
type Local struct {
	store *timeline.Store

	mu      sync.Mutex
	deleted []timeline.SegmentID
}

// NewLocal returns a Local service that looks parents up in store.
func NewLocal(store *timeline.Store) *Local {
	return &Local{store: store}
}

// UpdateSegment implements Service.
func (l *Local) UpdateSegment(_ context.Context, req UpdateRequest) (UpdateResponse, error) {
	if req.End <= req.Start || req.Start < 0 {
		return UpdateResponse{}, fmt.Errorf("%w: span [%v, %v)", ErrRejected, req.Start, req.End)
	}
	return UpdateResponse{Start: req.Start, End: req.End}, nil
}

// SplitSegment implements Service.
func (l *Local) SplitSegment(_ context.Context, req SplitRequest) ([]timeline.Segment, error) {
	parent, ok := l.find(req.SegmentID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown segment %q", ErrRejected, req.SegmentID)
	}
	if req.SplitAt <= parent.Start || req.SplitAt >= parent.End {
		return nil, fmt.Errorf("%w: split point %v outside [%v, %v)", ErrRejected, req.SplitAt, parent.Start, parent.End)
	}
	return []timeline.Segment{
		{ID: parent.ID + "_a", Start: parent.Start, End: req.SplitAt, AudioURL: parent.AudioURL, Text: parent.Text},
		{ID: parent.ID + "_b", Start: req.SplitAt, End: parent.End, AudioURL: parent.AudioURL, Text: parent.Text},
	}, nil
}

// DeleteSegment implements Service.
func (l *Local) DeleteSegment(_ context.Context, req DeleteRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted = append(l.deleted, req.SegmentID)
	return nil
}

// Deleted returns the ids of every delete notification received.
func (l *Local) Deleted() []timeline.SegmentID {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]timeline.SegmentID, len(l.deleted))
	copy(out, l.deleted)
	return out
}

func (l *Local) find(id timeline.SegmentID) (timeline.Segment, bool) {
	for _, tr := range l.store.Tracks() {
		for _, seg := range tr.Segments {
			if seg.ID == id {
				return seg, true
			}
		}
	}
	return timeline.Segment{}, false
}
