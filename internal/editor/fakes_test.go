package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"timeline-editor/internal/platform/logger"
	"timeline-editor/internal/playback"
	"timeline-editor/internal/remote"
	"timeline-editor/internal/timeline"
)

// stubSource is an always-ready source that only records its state.
type stubSource struct {
	mu       sync.Mutex
	url      string
	sounding bool
	pos      float64
	closed   bool
	ready    chan struct{}
}

func newStubSource(url string) *stubSource {
	s := &stubSource{url: url, ready: make(chan struct{})}
	close(s.ready)
	return s
}

func (s *stubSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sounding = true
	return nil
}

func (s *stubSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sounding = false
}

func (s *stubSource) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = seconds
}

func (s *stubSource) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *stubSource) IsSounding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sounding
}

func (s *stubSource) State() playback.SourceState {
	if s.url == "" {
		return playback.SourceNoAudio
	}
	return playback.SourceReady
}

func (s *stubSource) Ready() <-chan struct{} { return s.ready }
func (s *stubSource) Err() <-chan struct{}   { return make(chan struct{}) }

func (s *stubSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sounding = false
}

// stubSources hands out stub sources and remembers them by URL.
type stubSources struct {
	mu   sync.Mutex
	byID map[string]*stubSource
}

func (f *stubSources) open(url string) playback.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byID == nil {
		f.byID = make(map[string]*stubSource)
	}
	s := newStubSource(url)
	f.byID[url] = s
	return s
}

func (f *stubSources) get(url string) *stubSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[url]
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type noopScheduler struct{}

func (noopScheduler) Schedule(func()) {}
func (noopScheduler) Cancel()         {}

func testTimeline() timeline.Timeline {
	return timeline.Timeline{
		TotalDuration:   60,
		PixelsPerSecond: 10,
		ReferenceMedia:  "http://media/original.wav",
		Tracks: []timeline.Track{
			{ID: "t1", DisplayName: "Speaker 1", Segments: []timeline.Segment{
				{ID: "s1", Start: 10, End: 20, AudioURL: "http://media/s1.wav", Text: "hello"},
				{ID: "s2", Start: 30, End: 40, AudioURL: "http://media/s2.wav", Text: "world"},
			}},
			{ID: "t2", DisplayName: "Speaker 2", Segments: []timeline.Segment{
				{ID: "s3", Start: 0, End: 8},
			}},
		},
	}
}

type sessionHarness struct {
	session *Session
	store   *timeline.Store
	sources *stubSources
	hub     *Hub
}

// startSession runs a session over testTimeline with the local echo service.
func startSession(t *testing.T, tl timeline.Timeline) *sessionHarness {
	t.Helper()
	store := timeline.NewStore(tl)
	sources := &stubSources{}
	log := logger.Discard()
	hub := NewHub(log, nil)
	s := NewSession(Options{
		Store:        store,
		Sources:      sources.open,
		Clock:        playback.SystemClock{},
		Service:      remote.NewLocal(store),
		TickInterval: 5 * time.Millisecond,
		LeftMargin:   timeline.DefaultLabelMargin,
		Log:          log,
		Hub:          hub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &sessionHarness{session: s, store: store, sources: sources, hub: hub}
}
