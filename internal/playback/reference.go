package playback

import "errors"

// ErrNoReference is returned when the session has no reference recording.
var ErrNoReference = errors.New("no reference media")

// Reference is the original recording. It has its own play/pause toggle and
// is never driven by the master clock.
type Reference struct {
	src Source
}

// NewReference wraps src. src may be nil when the session has no reference media.
func NewReference(src Source) *Reference {
	return &Reference{src: src}
}

// Toggle pauses the reference if it is sounding and plays it otherwise.
// It reports whether the reference is sounding afterwards.
func (r *Reference) Toggle() (bool, error) {
	if r.src == nil {
		return false, ErrNoReference
	}
	if r.src.IsSounding() {
		r.src.Pause()
		return false, nil
	}
	if err := r.src.Play(); err != nil {
		return false, err
	}
	return true, nil
}

// IsPlaying reports whether the reference is sounding.
func (r *Reference) IsPlaying() bool {
	return r.src != nil && r.src.IsSounding()
}

// State returns the reference source's load state.
func (r *Reference) State() SourceState {
	if r.src == nil {
		return SourceNoAudio
	}
	return r.src.State()
}

// Close releases the underlying source.
func (r *Reference) Close() {
	if r.src != nil {
		r.src.Close()
	}
}
