package remote

import (
	"context"
	"errors"

	"timeline-editor/internal/timeline"
)

// ErrRejected is the ReconciliationError returned when the segment service
// answers with a non-success status or an unusable body.
var ErrRejected = errors.New("segment service rejected the edit")

// UpdateRequest asks the service to confirm a moved or resized segment.
type UpdateRequest struct {
	SegmentID timeline.SegmentID
	Kind      timeline.EditKind
	Start     float64
	End       float64
}

// UpdateResponse carries the authoritative span and, when the edit
// regenerated audio, replacement audio URL and caption.
type UpdateResponse struct {
	Start    float64
	End      float64
	AudioURL *string
	Text     *string
}

// SplitRequest asks the service to split a segment at SplitAt seconds.
type SplitRequest struct {
	SegmentID timeline.SegmentID
	SplitAt   float64
}

// DeleteRequest notifies the service that a segment was deleted.
type DeleteRequest struct {
	SegmentID timeline.SegmentID
}

// Service is the remote segment service the edit engine reconciles against.
type Service interface {
	UpdateSegment(ctx context.Context, req UpdateRequest) (UpdateResponse, error)
	// SplitSegment returns exactly two replacement segments.
	SplitSegment(ctx context.Context, req SplitRequest) ([]timeline.Segment, error)
	DeleteSegment(ctx context.Context, req DeleteRequest) error
}
