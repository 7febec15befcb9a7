package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"timeline-editor/internal/platform/metrics"
	"timeline-editor/internal/remote"
	"timeline-editor/internal/timeline"
)

var (
	// ErrDragActive is returned when a second drag starts before the first ends.
	ErrDragActive = errors.New("a drag is already in progress")

	// ErrNoDrag is returned for pointer input with no drag in progress.
	ErrNoDrag = errors.New("no drag in progress")

	// ErrReconcileInFlight is returned when a segment is edited while its
	// previous edit is still waiting on the segment service.
	ErrReconcileInFlight = errors.New("segment has an edit awaiting confirmation")

	// ErrNoProposal is returned when confirming or dismissing a split
	// proposal that does not exist.
	ErrNoProposal = errors.New("no split proposal")

	// ErrEditActive is returned when playback is requested during a drag or scrub.
	ErrEditActive = errors.New("an edit is in progress")

	// ErrInvalidEditKind is returned for an unknown drag kind.
	ErrInvalidEditKind = errors.New("unknown edit kind")
)

// Transport is the part of the playback synchronizer the edit engine drives.
type Transport interface {
	Pause()
	SyncSources()
}

// Dispatcher runs a remote call off the session loop. The call returns a
// completion which the dispatcher runs back on the loop.
type Dispatcher interface {
	Go(call func(ctx context.Context) (complete func()))
}

// SplitProposal is a pending split awaiting confirmation or dismissal.
type SplitProposal struct {
	TrackID   timeline.TrackID   `json:"trackId"`
	SegmentID timeline.SegmentID `json:"segmentId"`
	SplitAt   float64            `json:"splitAt"`
}

// DragState describes the drag in progress.
type DragState struct {
	TrackID   timeline.TrackID   `json:"trackId"`
	SegmentID timeline.SegmentID `json:"segmentId"`
	Kind      timeline.EditKind  `json:"kind"`
}

type drag struct {
	DragState
	originX      float64
	initialLeft  float64
	initialWidth float64
	snapshot     timeline.Segment
}

// Engine turns pointer input into segment edits. Edits are applied to the
// store immediately and then reconciled with the segment service; a rejected
// edit is rolled back.
//
// An Engine is not safe for concurrent use; the session loop owns it.
type Engine struct {
	store     *timeline.Store
	transport Transport
	svc       remote.Service
	dispatch  Dispatcher
	log       *slog.Logger
	metrics   *metrics.Metrics

	drag     *drag
	proposal *SplitProposal
	inFlight map[timeline.SegmentID]struct{}
}

// NewEngine creates an edit engine. m may be nil.
func NewEngine(store *timeline.Store, transport Transport, svc remote.Service, dispatch Dispatcher, log *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		store:     store,
		transport: transport,
		svc:       svc,
		dispatch:  dispatch,
		log:       log,
		metrics:   m,
		inFlight:  make(map[timeline.SegmentID]struct{}),
	}
}

// Drag returns the drag in progress, if any.
func (e *Engine) Drag() (DragState, bool) {
	if e.drag == nil {
		return DragState{}, false
	}
	return e.drag.DragState, true
}

// Proposal returns the pending split proposal, if any.
func (e *Engine) Proposal() (SplitProposal, bool) {
	if e.proposal == nil {
		return SplitProposal{}, false
	}
	return *e.proposal, true
}

// Pending returns the ids of segments awaiting confirmation.
func (e *Engine) Pending() []timeline.SegmentID {
	ids := make([]timeline.SegmentID, 0, len(e.inFlight))
	for id := range e.inFlight {
		ids = append(ids, id)
	}
	return ids
}

// PointerDown starts a drag of kind on a segment at pointer position x.
// Playback is paused.
func (e *Engine) PointerDown(trackID timeline.TrackID, segID timeline.SegmentID, kind timeline.EditKind, x float64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEditKind, kind)
	}
	if e.drag != nil {
		return ErrDragActive
	}
	if _, busy := e.inFlight[segID]; busy {
		return ErrReconcileInFlight
	}
	seg, err := e.store.Segment(trackID, segID)
	if err != nil {
		return err
	}

	e.transport.Pause()

	tl := e.store.Timeline()
	e.drag = &drag{
		DragState:    DragState{TrackID: trackID, SegmentID: segID, Kind: kind},
		originX:      x,
		initialLeft:  tl.SecondsToPixels(seg.Start),
		initialWidth: tl.SecondsToPixels(seg.Duration()),
		snapshot:     seg,
	}
	e.log.Debug("drag started",
		slog.String("track_id", string(trackID)),
		slog.String("segment_id", string(segID)),
		slog.String("kind", string(kind)))
	return nil
}

// PointerMove applies the live preview for pointer position x. An update
// that would produce end <= start or start < 0 is rejected with
// timeline.ErrInvalidSpan and the segment keeps its last valid span.
func (e *Engine) PointerMove(x float64) (timeline.Segment, error) {
	if e.drag == nil {
		return timeline.Segment{}, ErrNoDrag
	}
	d := e.drag
	tl := e.store.Timeline()
	delta := x - d.originX

	cur, err := e.store.Segment(d.TrackID, d.SegmentID)
	if err != nil {
		return timeline.Segment{}, err
	}

	start, end := cur.Start, cur.End
	switch d.Kind {
	case timeline.EditMove:
		start = math.Max(0, tl.PixelsToSeconds(d.initialLeft+delta))
		end = start + d.snapshot.Duration()
	case timeline.EditResizeLeft:
		start = tl.PixelsToSeconds(d.initialLeft + delta)
		if start < 0 || start >= cur.End {
			return cur, fmt.Errorf("%w: start %.3f", timeline.ErrInvalidSpan, start)
		}
	case timeline.EditResizeRight:
		end = cur.Start + tl.PixelsToSeconds(d.initialWidth+delta)
		if end <= cur.Start {
			return cur, fmt.Errorf("%w: end %.3f", timeline.ErrInvalidSpan, end)
		}
	}
	return e.store.SetSpan(d.TrackID, d.SegmentID, start, end)
}

// PointerUp ends the drag at pointer position x. The segment is settled
// against its neighbours and, if its span changed, reconciled with the
// segment service exactly once. A span that cannot be settled is rolled back
// without contacting the service.
func (e *Engine) PointerUp(x float64) (timeline.Segment, error) {
	if e.drag == nil {
		return timeline.Segment{}, ErrNoDrag
	}
	if _, err := e.PointerMove(x); err != nil && !errors.Is(err, timeline.ErrInvalidSpan) {
		e.drag = nil
		return timeline.Segment{}, err
	}
	d := e.drag
	e.drag = nil

	settled, err := e.store.Settle(d.TrackID, d.SegmentID, d.Kind)
	if err != nil {
		if rerr := e.store.Restore(d.TrackID, d.snapshot); rerr != nil {
			e.log.Warn("restore after failed settle", slog.String("error", rerr.Error()))
		}
		e.log.Info("edit rolled back",
			slog.String("segment_id", string(d.SegmentID)),
			slog.String("error", err.Error()))
		return d.snapshot, err
	}
	if settled.SameSpan(d.snapshot) {
		return settled, nil
	}

	e.reconcile(d.TrackID, d.Kind, d.snapshot, settled)
	return settled, nil
}

func (e *Engine) reconcile(trackID timeline.TrackID, kind timeline.EditKind, snapshot, edited timeline.Segment) {
	e.transport.Pause()
	e.inFlight[edited.ID] = struct{}{}

	req := remote.UpdateRequest{SegmentID: edited.ID, Kind: kind, Start: edited.Start, End: edited.End}
	e.dispatch.Go(func(ctx context.Context) func() {
		res, err := e.svc.UpdateSegment(ctx, req)
		return func() { e.finishUpdate(trackID, kind, snapshot, res, err) }
	})
}

func (e *Engine) finishUpdate(trackID timeline.TrackID, kind timeline.EditKind, snapshot timeline.Segment, res remote.UpdateResponse, err error) {
	delete(e.inFlight, snapshot.ID)

	if err == nil {
		_, err = e.store.Merge(trackID, snapshot.ID, timeline.Patch{
			Start:    res.Start,
			End:      res.End,
			AudioURL: res.AudioURL,
			Text:     res.Text,
		})
		if errors.Is(err, timeline.ErrSegmentNotFound) {
			// Deleted while the update was in flight.
			return
		}
	}

	if err != nil {
		if rerr := e.store.Restore(trackID, snapshot); rerr != nil && !errors.Is(rerr, timeline.ErrSegmentNotFound) {
			e.log.Warn("restore after rejected edit", slog.String("error", rerr.Error()))
		}
		e.log.Warn("edit rejected, rolled back",
			slog.String("segment_id", string(snapshot.ID)),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		e.countReconciliation(string(kind), "rolled_back")
		return
	}

	e.log.Debug("edit confirmed", slog.String("segment_id", string(snapshot.ID)), slog.String("kind", string(kind)))
	e.countReconciliation(string(kind), "ok")
	e.transport.SyncSources()
}

// DoubleClick proposes splitting a segment at offsetPx pixels from its left
// edge. The proposal replaces any earlier one.
func (e *Engine) DoubleClick(trackID timeline.TrackID, segID timeline.SegmentID, offsetPx float64) (SplitProposal, error) {
	if e.drag != nil {
		return SplitProposal{}, ErrDragActive
	}
	seg, err := e.store.Segment(trackID, segID)
	if err != nil {
		return SplitProposal{}, err
	}
	at := seg.Start + e.store.Timeline().PixelsToSeconds(offsetPx)
	if at <= seg.Start || at >= seg.End {
		return SplitProposal{}, fmt.Errorf("%w: split point %.3f outside segment", timeline.ErrInvalidSpan, at)
	}
	e.proposal = &SplitProposal{TrackID: trackID, SegmentID: segID, SplitAt: at}
	return *e.proposal, nil
}

// CancelProposal dismisses the pending split proposal.
func (e *Engine) CancelProposal() error {
	if e.proposal == nil {
		return ErrNoProposal
	}
	e.proposal = nil
	return nil
}

// ConfirmSplit sends the pending proposal to the segment service. On success
// the parent is replaced by both children in one step; on failure the parent
// is restored as it was when the split was confirmed. Sibling segments keep
// whatever happened to them in the meantime, deletes included.
func (e *Engine) ConfirmSplit() error {
	if e.proposal == nil {
		return ErrNoProposal
	}
	p := *e.proposal
	if _, busy := e.inFlight[p.SegmentID]; busy {
		return ErrReconcileInFlight
	}
	e.proposal = nil

	seg, err := e.store.Segment(p.TrackID, p.SegmentID)
	if err != nil {
		return err
	}
	if p.SplitAt <= seg.Start || p.SplitAt >= seg.End {
		return fmt.Errorf("%w: split point %.3f outside segment", timeline.ErrInvalidSpan, p.SplitAt)
	}
	e.transport.Pause()
	e.inFlight[p.SegmentID] = struct{}{}

	e.dispatch.Go(func(ctx context.Context) func() {
		children, err := e.svc.SplitSegment(ctx, remote.SplitRequest{SegmentID: p.SegmentID, SplitAt: p.SplitAt})
		return func() { e.finishSplit(p, seg, children, err) }
	})
	return nil
}

func (e *Engine) finishSplit(p SplitProposal, parent timeline.Segment, children []timeline.Segment, err error) {
	delete(e.inFlight, p.SegmentID)

	if err == nil {
		err = e.store.ReplaceWithChildren(p.TrackID, p.SegmentID, children)
	}
	if err != nil {
		if rerr := e.store.Restore(p.TrackID, parent); rerr != nil {
			e.log.Warn("restore after failed split", slog.String("error", rerr.Error()))
		}
		e.log.Warn("split failed, parent restored",
			slog.String("segment_id", string(p.SegmentID)),
			slog.Float64("split_at", p.SplitAt),
			slog.String("error", err.Error()))
		e.countReconciliation("split", "rolled_back")
		e.transport.SyncSources()
		return
	}

	e.log.Info("segment split",
		slog.String("segment_id", string(p.SegmentID)),
		slog.String("left", string(children[0].ID)),
		slog.String("right", string(children[1].ID)))
	e.countReconciliation("split", "ok")
	e.transport.SyncSources()
}

// DeleteProposed removes the segment named by the pending proposal. The
// removal is local and immediate; the segment service is notified in the
// background and its answer is only logged.
func (e *Engine) DeleteProposed() error {
	if e.proposal == nil {
		return ErrNoProposal
	}
	p := *e.proposal
	if _, busy := e.inFlight[p.SegmentID]; busy {
		return ErrReconcileInFlight
	}
	e.proposal = nil

	if _, err := e.store.Remove(p.TrackID, p.SegmentID); err != nil {
		return err
	}
	e.transport.SyncSources()
	e.log.Info("segment deleted", slog.String("segment_id", string(p.SegmentID)))

	e.dispatch.Go(func(ctx context.Context) func() {
		err := e.svc.DeleteSegment(ctx, remote.DeleteRequest{SegmentID: p.SegmentID})
		return func() {
			if err != nil {
				e.log.Warn("delete notification failed",
					slog.String("segment_id", string(p.SegmentID)),
					slog.String("error", err.Error()))
			}
		}
	})
	return nil
}

func (e *Engine) countReconciliation(kind, result string) {
	if e.metrics != nil {
		e.metrics.IncReconciliations(kind, result)
	}
}
