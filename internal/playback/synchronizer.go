package playback

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"timeline-editor/internal/platform/metrics"
	"timeline-editor/internal/timeline"
)

const (
	// DriftCheckInterval is the minimum time between drift checks of one source.
	DriftCheckInterval = 300 * time.Millisecond

	// DriftTolerance is the drift, in seconds, a sounding source may accumulate
	// before it is re-seeked.
	DriftTolerance = 0.15
)

// ErrScrubbing is returned when playback is requested while the playhead is being dragged.
var ErrScrubbing = errors.New("playhead is being dragged")

// ErrNotScrubbing is returned when a scrub position arrives with no scrub in progress.
var ErrNotScrubbing = errors.New("playhead is not being dragged")

// Status is the transport state.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// State is a read-only view of the master clock.
type State struct {
	Elapsed     float64 `json:"elapsed"`
	Status      Status  `json:"status"`
	IsPlaying   bool    `json:"isPlaying"`
	IsScrubbing bool    `json:"isScrubbing"`
}

type sourceKey struct {
	track   timeline.TrackID
	segment timeline.SegmentID
}

type sourceEntry struct {
	src Source
	url string
}

// Synchronizer owns the master clock and every per-segment Source. Each tick it
// works out which segment is active on every track, starts, pauses and
// re-seeks sources to match, and stops the transport at the end of the timeline.
//
// A Synchronizer is not safe for concurrent use; the session loop owns it.
type Synchronizer struct {
	store     *timeline.Store
	newSource Factory
	clock     Clock
	sched     Scheduler
	log       *slog.Logger
	metrics   *metrics.Metrics

	total     float64
	status    Status
	elapsed   float64
	scrubbing bool
	anchor    time.Time

	sources   map[sourceKey]*sourceEntry
	lastCheck map[sourceKey]time.Time
}

// NewSynchronizer preloads a Source for every segment with audio.
// m may be nil.
func NewSynchronizer(store *timeline.Store, newSource Factory, clock Clock, sched Scheduler, log *slog.Logger, m *metrics.Metrics) *Synchronizer {
	s := &Synchronizer{
		store:     store,
		newSource: newSource,
		clock:     clock,
		sched:     sched,
		log:       log,
		metrics:   m,
		total:     store.Timeline().TotalDuration,
		status:    StatusStopped,
		sources:   make(map[sourceKey]*sourceEntry),
		lastCheck: make(map[sourceKey]time.Time),
	}
	s.SyncSources()
	return s
}

// State returns the current clock state.
func (s *Synchronizer) State() State {
	return State{
		Elapsed:     s.elapsed,
		Status:      s.status,
		IsPlaying:   s.status == StatusPlaying,
		IsScrubbing: s.scrubbing,
	}
}

// Source returns the source bound to a segment, if any.
func (s *Synchronizer) Source(trackID timeline.TrackID, segID timeline.SegmentID) (Source, bool) {
	e, ok := s.sources[sourceKey{trackID, segID}]
	if !ok {
		return nil, false
	}
	return e.src, true
}

// SyncSources reconciles the source set with the store: segments that gained
// audio get a preloaded source, and sources of removed segments or of
// segments whose audio URL changed are released.
func (s *Synchronizer) SyncSources() {
	seen := make(map[sourceKey]struct{}, len(s.sources))
	for _, tr := range s.store.Tracks() {
		for _, seg := range tr.Segments {
			if seg.AudioURL == "" {
				continue
			}
			key := sourceKey{tr.ID, seg.ID}
			seen[key] = struct{}{}
			if e, ok := s.sources[key]; ok {
				if e.url == seg.AudioURL {
					continue
				}
				s.release(key, e)
			}
			s.sources[key] = &sourceEntry{src: s.newSource(seg.AudioURL), url: seg.AudioURL}
		}
	}
	for key, e := range s.sources {
		if _, ok := seen[key]; !ok {
			s.release(key, e)
		}
	}
}

func (s *Synchronizer) release(key sourceKey, e *sourceEntry) {
	e.src.Pause()
	e.src.Close()
	delete(s.sources, key)
	delete(s.lastCheck, key)
}

// Play starts or resumes the transport from the current elapsed position.
// Every active source is seeked to its intra-segment offset before the first
// tick so a resume does not replay segments from their beginning.
func (s *Synchronizer) Play() error {
	if s.scrubbing {
		return ErrScrubbing
	}
	if s.status == StatusPlaying {
		return nil
	}
	s.SyncSources()

	s.anchor = s.clock.Now().Add(-seconds(s.elapsed))
	for _, tr := range s.store.Tracks() {
		seg, ok := s.store.ActiveSegment(tr.ID, s.elapsed)
		if !ok {
			continue
		}
		if e, ok := s.sources[sourceKey{tr.ID, seg.ID}]; ok {
			e.src.Seek(s.elapsed - seg.Start)
		}
	}

	s.status = StatusPlaying
	s.setPlayingGauge()
	s.log.Debug("playback started", slog.Float64("elapsed", s.elapsed))
	s.Tick()
	return nil
}

// Tick advances the master clock and drives every source. It is a no-op
// unless the transport is playing. While playing it schedules exactly one
// next tick.
func (s *Synchronizer) Tick() {
	if s.status != StatusPlaying {
		return
	}
	if s.metrics != nil {
		s.metrics.IncTicks()
	}

	now := s.clock.Now()
	s.elapsed = now.Sub(s.anchor).Seconds()

	for _, tr := range s.store.Tracks() {
		active, ok := timeline.ActiveIn(tr.Segments, s.elapsed)
		for _, seg := range tr.Segments {
			if ok && seg.ID == active.ID {
				continue
			}
			if e, found := s.sources[sourceKey{tr.ID, seg.ID}]; found && e.src.IsSounding() {
				e.src.Pause()
			}
		}
		if ok {
			s.drive(now, tr.ID, active)
		}
	}

	if s.elapsed >= s.total {
		s.log.Debug("end of timeline reached", slog.Float64("elapsed", s.elapsed))
		s.Stop()
		return
	}
	s.sched.Schedule(s.Tick)
}

// drive starts the active segment's source or corrects its drift.
func (s *Synchronizer) drive(now time.Time, trackID timeline.TrackID, seg timeline.Segment) {
	key := sourceKey{trackID, seg.ID}
	e, ok := s.sources[key]
	if !ok || e.src.State() != SourceReady {
		return
	}
	src := e.src
	offset := s.elapsed - seg.Start

	if !src.IsSounding() {
		src.Seek(offset)
		if err := src.Play(); err != nil {
			s.log.Debug("source failed to start",
				slog.String("track_id", string(trackID)),
				slog.String("segment_id", string(seg.ID)),
				slog.String("error", err.Error()))
			if s.metrics != nil {
				s.metrics.IncSourcePlayFailures()
			}
		}
		return
	}

	if now.Sub(s.lastCheck[key]) < DriftCheckInterval {
		return
	}
	s.lastCheck[key] = now
	if math.Abs(src.Position()-offset) > DriftTolerance {
		src.Seek(offset)
		if s.metrics != nil {
			s.metrics.IncDriftCorrections()
		}
	}
}

// Pause freezes elapsed, cancels the pending tick and pauses every source.
func (s *Synchronizer) Pause() {
	if s.status != StatusPlaying {
		return
	}
	s.sched.Cancel()
	s.status = StatusPaused
	s.pauseAll()
	s.setPlayingGauge()
	s.log.Debug("playback paused", slog.Float64("elapsed", s.elapsed))
}

// Toggle pauses when playing and plays otherwise.
func (s *Synchronizer) Toggle() error {
	if s.status == StatusPlaying {
		s.Pause()
		return nil
	}
	return s.Play()
}

// Stop cancels the pending tick, pauses and rewinds every source and resets
// elapsed to zero.
func (s *Synchronizer) Stop() {
	s.sched.Cancel()
	s.status = StatusStopped
	s.elapsed = 0
	for _, e := range s.sources {
		e.src.Pause()
		e.src.Seek(0)
	}
	s.setPlayingGauge()
}

// BeginScrub hands elapsed over to the playhead controller, pausing playback first.
func (s *Synchronizer) BeginScrub() {
	s.Pause()
	s.scrubbing = true
}

// ScrubTo writes elapsed directly, clamped to [0, total duration].
func (s *Synchronizer) ScrubTo(t float64) (float64, error) {
	if !s.scrubbing {
		return s.elapsed, ErrNotScrubbing
	}
	s.elapsed = math.Max(0, math.Min(s.total, t))
	return s.elapsed, nil
}

// EndScrub returns elapsed to the master clock and silences anything still
// sounding. Playback is not resumed.
func (s *Synchronizer) EndScrub() {
	s.scrubbing = false
	s.pauseAll()
}

// Close releases every source.
func (s *Synchronizer) Close() {
	s.sched.Cancel()
	for key, e := range s.sources {
		s.release(key, e)
	}
}

func (s *Synchronizer) pauseAll() {
	for _, e := range s.sources {
		e.src.Pause()
	}
}

func (s *Synchronizer) setPlayingGauge() {
	if s.metrics != nil {
		s.metrics.SetPlaying(s.status == StatusPlaying)
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
