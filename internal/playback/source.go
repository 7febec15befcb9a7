package playback

import "time"

// SourceState is the load state of a Source.
type SourceState string

const (
	// SourceLoading means the media is still being fetched.
	SourceLoading SourceState = "loading"
	// SourceReady means the media can be played.
	SourceReady SourceState = "ready"
	// SourceFailed means the media failed to load or decode. The segment plays silent.
	SourceFailed SourceState = "failed"
	// SourceNoAudio means the segment has no media URL. This state is permanent.
	SourceNoAudio SourceState = "no-audio"
)

// Source is one independently loaded audio clip (the waveform widget's media).
// Positions are seconds from the start of the clip.
type Source interface {
	Play() error
	Pause()
	Seek(seconds float64)
	Position() float64
	IsSounding() bool
	State() SourceState

	// Ready is closed once the media is playable.
	Ready() <-chan struct{}
	// Err is closed if the media fails to load.
	Err() <-chan struct{}

	Close()
}

// Factory creates a Source for a media URL. An empty URL must yield a source
// in the SourceNoAudio state.
type Factory func(url string) Source

// Clock is the wall clock the master clock is anchored to.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Scheduler runs the next playback tick. At most one call may be pending;
// Schedule replaces any pending call and Cancel drops it. A cancelled call
// must never run.
type Scheduler interface {
	Schedule(fn func())
	Cancel()
}
