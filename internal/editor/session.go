package editor

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"timeline-editor/internal/platform/metrics"
	"timeline-editor/internal/playback"
	"timeline-editor/internal/remote"
	"timeline-editor/internal/timeline"
)

// Options configures a Session.
type Options struct {
	Store        *timeline.Store
	Sources      playback.Factory
	Clock        playback.Clock
	Service      remote.Service
	TickInterval time.Duration
	LeftMargin   float64
	Log          *slog.Logger
	Metrics      *metrics.Metrics // may be nil
	Hub          *Hub             // may be nil
}

// ReferenceState describes the reference recording.
type ReferenceState struct {
	URL     string               `json:"url,omitempty"`
	State   playback.SourceState `json:"state"`
	Playing bool                 `json:"playing"`
}

// Snapshot is the full observable state of a session.
type Snapshot struct {
	TotalDuration   float64              `json:"totalDurationSeconds"`
	PixelsPerSecond float64              `json:"pixelsPerSecond"`
	Tracks          []timeline.Track     `json:"tracks"`
	Playback        playback.State       `json:"playback"`
	Clock           string               `json:"clock"`
	Reference       ReferenceState       `json:"reference"`
	Drag            *DragState           `json:"drag,omitempty"`
	Proposal        *SplitProposal       `json:"proposal,omitempty"`
	Pending         []timeline.SegmentID `json:"pending"`
}

// LayoutView is the renderer output plus the follow-scroll decision for the
// caller's viewport.
type LayoutView struct {
	timeline.View
	ScrollLeft float64 `json:"scrollLeft"`
	Scrolled   bool    `json:"scrolled"`
}

// Session is one editing session: the segment store, the playback
// synchronizer, the edit engine and the playhead, all driven by one event
// loop. Methods are safe for concurrent use; each runs as an event.
type Session struct {
	loop      *Loop
	store     *timeline.Store
	sync      *playback.Synchronizer
	reference *playback.Reference
	engine    *Engine
	playhead  *Playhead
	hub       *Hub
	log       *slog.Logger

	leftMargin float64
}

// NewSession wires a session. Sources for every segment with audio start
// loading immediately.
func NewSession(opts Options) *Session {
	loop := NewLoop(opts.TickInterval)
	sync := playback.NewSynchronizer(opts.Store, opts.Sources, opts.Clock, loop, opts.Log, opts.Metrics)

	var ref playback.Source
	if url := opts.Store.Timeline().ReferenceMedia; url != "" {
		ref = opts.Sources(url)
	}

	return &Session{
		loop:       loop,
		store:      opts.Store,
		sync:       sync,
		reference:  playback.NewReference(ref),
		engine:     NewEngine(opts.Store, sync, opts.Service, loop, opts.Log, opts.Metrics),
		playhead:   NewPlayhead(opts.Store, sync, opts.LeftMargin),
		hub:        opts.Hub,
		log:        opts.Log,
		leftMargin: opts.LeftMargin,
	}
}

// Run processes events until ctx is cancelled, then releases every source.
func (s *Session) Run(ctx context.Context) {
	s.loop.Run(ctx, s.publish)
	s.sync.Close()
	s.reference.Close()
	if s.hub != nil {
		s.hub.Close()
	}
}

// Wait blocks until every remote call dispatched by the session has returned.
func (s *Session) Wait() {
	s.loop.Wait()
}

func (s *Session) publish() {
	if s.hub == nil || s.hub.Len() == 0 {
		return
	}
	b, err := json.Marshal(s.snapshot())
	if err != nil {
		s.log.Error("encode snapshot", slog.String("error", err.Error()))
		return
	}
	s.hub.Broadcast(b)
}

func (s *Session) snapshot() Snapshot {
	tl := s.store.Timeline()
	state := s.sync.State()
	snap := Snapshot{
		TotalDuration:   tl.TotalDuration,
		PixelsPerSecond: tl.PixelsPerSecond,
		Tracks:          tl.Tracks,
		Playback:        state,
		Clock:           timeline.FormatClock(state.Elapsed) + " | " + timeline.FormatClock(tl.TotalDuration),
		Reference: ReferenceState{
			URL:     tl.ReferenceMedia,
			State:   s.reference.State(),
			Playing: s.reference.IsPlaying(),
		},
		Pending: s.engine.Pending(),
	}
	slices.Sort(snap.Pending)
	if d, ok := s.engine.Drag(); ok {
		snap.Drag = &d
	}
	if p, ok := s.engine.Proposal(); ok {
		snap.Proposal = &p
	}
	return snap
}

// Snapshot returns the current session state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.loop.Do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// SnapshotJSON returns the encoded snapshot, for stream clients.
func (s *Session) SnapshotJSON(ctx context.Context) ([]byte, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// Layout renders the timeline at the current elapsed time. viewport is the
// width of the caller's visible area and scrollLeft its current offset; a
// viewport of zero skips follow-scroll.
func (s *Session) Layout(ctx context.Context, scrollLeft, viewport float64) (LayoutView, error) {
	var v LayoutView
	err := s.loop.Do(ctx, func() error {
		tl := s.store.Timeline()
		st := s.sync.State()
		v = LayoutView{View: timeline.Layout(tl, st.Elapsed, s.leftMargin), ScrollLeft: scrollLeft}
		if st.IsPlaying || s.playhead.Grabbed() {
			v.ScrollLeft, v.Scrolled = timeline.FollowScroll(tl.SecondsToPixels(st.Elapsed), scrollLeft, viewport)
		}
		return nil
	})
	return v, err
}

// Play starts playback. It is refused while a segment or the playhead is
// being dragged.
func (s *Session) Play(ctx context.Context) error {
	return s.loop.Do(ctx, func() error {
		if err := s.editActive(); err != nil {
			return err
		}
		return s.sync.Play()
	})
}

// Pause pauses playback.
func (s *Session) Pause(ctx context.Context) error {
	return s.loop.Do(ctx, func() error {
		s.sync.Pause()
		return nil
	})
}

// Stop stops playback and rewinds to zero.
func (s *Session) Stop(ctx context.Context) error {
	return s.loop.Do(ctx, func() error {
		if err := s.editActive(); err != nil {
			return err
		}
		s.sync.Stop()
		return nil
	})
}

// Toggle pauses when playing and plays otherwise.
func (s *Session) Toggle(ctx context.Context) error {
	return s.loop.Do(ctx, func() error {
		if s.sync.State().IsPlaying {
			s.sync.Pause()
			return nil
		}
		if err := s.editActive(); err != nil {
			return err
		}
		return s.sync.Play()
	})
}

func (s *Session) editActive() error {
	if _, dragging := s.engine.Drag(); dragging || s.playhead.Grabbed() {
		return ErrEditActive
	}
	return nil
}

// ToggleReference plays or pauses the reference recording and reports
// whether it is playing afterwards.
func (s *Session) ToggleReference(ctx context.Context) (bool, error) {
	var playing bool
	err := s.loop.Do(ctx, func() error {
		var err error
		playing, err = s.reference.Toggle()
		return err
	})
	return playing, err
}

// GrabPlayhead starts a playhead drag at content x.
func (s *Session) GrabPlayhead(ctx context.Context, x float64) error {
	return s.loop.Do(ctx, func() error {
		if _, dragging := s.engine.Drag(); dragging {
			return ErrDragActive
		}
		return s.playhead.Grab(x)
	})
}

// MovePlayhead moves a grabbed playhead and returns the new elapsed time.
func (s *Session) MovePlayhead(ctx context.Context, x float64) (float64, error) {
	var elapsed float64
	err := s.loop.Do(ctx, func() error {
		var err error
		elapsed, err = s.playhead.Move(x)
		return err
	})
	return elapsed, err
}

// ReleasePlayhead ends a playhead drag.
func (s *Session) ReleasePlayhead(ctx context.Context) error {
	return s.loop.Do(ctx, s.playhead.Release)
}

// PointerDown starts a segment drag.
func (s *Session) PointerDown(ctx context.Context, trackID timeline.TrackID, segID timeline.SegmentID, kind timeline.EditKind, x float64) error {
	return s.loop.Do(ctx, func() error {
		if s.playhead.Grabbed() {
			return ErrScrubActive
		}
		return s.engine.PointerDown(trackID, segID, kind, x)
	})
}

// PointerMove updates the live drag preview.
func (s *Session) PointerMove(ctx context.Context, x float64) (timeline.Segment, error) {
	return s.segmentEvent(ctx, func() (timeline.Segment, error) { return s.engine.PointerMove(x) })
}

// PointerUp ends the drag and starts reconciliation.
func (s *Session) PointerUp(ctx context.Context, x float64) (timeline.Segment, error) {
	return s.segmentEvent(ctx, func() (timeline.Segment, error) { return s.engine.PointerUp(x) })
}

func (s *Session) segmentEvent(ctx context.Context, fn func() (timeline.Segment, error)) (timeline.Segment, error) {
	var seg timeline.Segment
	err := s.loop.Do(ctx, func() error {
		var err error
		seg, err = fn()
		return err
	})
	return seg, err
}

// DoubleClick proposes a split at offsetPx from the segment's left edge.
func (s *Session) DoubleClick(ctx context.Context, trackID timeline.TrackID, segID timeline.SegmentID, offsetPx float64) (SplitProposal, error) {
	var p SplitProposal
	err := s.loop.Do(ctx, func() error {
		var err error
		p, err = s.engine.DoubleClick(trackID, segID, offsetPx)
		return err
	})
	return p, err
}

// ConfirmSplit sends the pending split proposal to the segment service.
func (s *Session) ConfirmSplit(ctx context.Context) error {
	return s.loop.Do(ctx, s.engine.ConfirmSplit)
}

// DeleteProposed deletes the segment named by the pending proposal.
func (s *Session) DeleteProposed(ctx context.Context) error {
	return s.loop.Do(ctx, s.engine.DeleteProposed)
}

// CancelProposal dismisses the pending proposal.
func (s *Session) CancelProposal(ctx context.Context) error {
	return s.loop.Do(ctx, s.engine.CancelProposal)
}
