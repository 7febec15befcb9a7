// Package clip implements the headless waveform source: one audio or video
// URL whose availability is probed over HTTP and whose playback position is
// tracked against a clock.
package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"timeline-editor/internal/playback"

	"github.com/google/uuid"
)

var (
	// ErrNoAudio is returned by Play on a clip without a URL.
	ErrNoAudio = errors.New("clip has no audio")
	// ErrNotReady is returned by Play while the clip is still loading.
	ErrNotReady = errors.New("clip is still loading")
	// ErrLoadFailed is the SourceLoadError: the media could not be fetched.
	ErrLoadFailed = errors.New("clip failed to load")
	// ErrClosed is returned by Play after Close.
	ErrClosed = errors.New("clip is closed")
)

// Loader opens clips and probes their media in the background.
type Loader struct {
	client  *http.Client
	clock   playback.Clock
	log     *slog.Logger
	timeout time.Duration
}

// NewLoader returns a Loader. timeout bounds each probe.
func NewLoader(client *http.Client, clock playback.Clock, log *slog.Logger, timeout time.Duration) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client, clock: clock, log: log, timeout: timeout}
}

// Open implements playback.Factory. An empty url yields a clip that stays in
// the no-audio state forever.
func (l *Loader) Open(url string) playback.Source {
	c := &Clip{
		url:    url,
		clock:  l.clock,
		state:  playback.SourceLoading,
		ready:  make(chan struct{}),
		failed: make(chan struct{}),
	}
	if url == "" {
		c.state = playback.SourceNoAudio
		return c
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	c.cancel = cancel
	go l.probe(ctx, c)
	return c
}

func (l *Loader) probe(ctx context.Context, c *Clip) {
	defer c.cancel()

	err := l.check(ctx, http.MethodHead, c.url)
	if errors.Is(err, errMethodNotAllowed) {
		err = l.check(ctx, http.MethodGet, c.url)
	}
	if err != nil {
		l.log.Warn("clip load failed", slog.String("url", c.url), slog.String("error", err.Error()))
		c.fail()
		return
	}
	l.log.Debug("clip ready", slog.String("url", c.url))
	c.markReady()
}

var errMethodNotAllowed = errors.New("method not allowed")

func (l *Loader) check(ctx context.Context, method, url string) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed:
		return errMethodNotAllowed
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d", ErrLoadFailed, resp.StatusCode)
	}
	return nil
}

// Clip is a playback.Source. Position advances with the clock while sounding.
type Clip struct {
	url   string
	clock playback.Clock

	mu        sync.Mutex
	state     playback.SourceState
	sounding  bool
	closed    bool
	pos       float64
	startedAt time.Time

	ready  chan struct{}
	failed chan struct{}
	cancel context.CancelFunc
}

// Play implements playback.Source.
func (c *Clip) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	switch c.state {
	case playback.SourceNoAudio:
		return ErrNoAudio
	case playback.SourceFailed:
		return ErrLoadFailed
	case playback.SourceLoading:
		return ErrNotReady
	}
	if !c.sounding {
		c.sounding = true
		c.startedAt = c.clock.Now()
	}
	return nil
}

// Pause implements playback.Source.
func (c *Clip) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sounding {
		c.pos = c.positionLocked()
		c.sounding = false
	}
}

// Seek implements playback.Source. Negative positions clamp to zero.
func (c *Clip) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	c.pos = seconds
	c.startedAt = c.clock.Now()
}

// Position implements playback.Source.
func (c *Clip) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Clip) positionLocked() float64 {
	if !c.sounding {
		return c.pos
	}
	return c.pos + c.clock.Now().Sub(c.startedAt).Seconds()
}

// IsSounding implements playback.Source.
func (c *Clip) IsSounding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sounding
}

// State implements playback.Source.
func (c *Clip) State() playback.SourceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready implements playback.Source.
func (c *Clip) Ready() <-chan struct{} { return c.ready }

// Err implements playback.Source.
func (c *Clip) Err() <-chan struct{} { return c.failed }

// Close stops any probe in flight and silences the clip.
func (c *Clip) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.sounding = false
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Clip) markReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != playback.SourceLoading {
		return
	}
	c.state = playback.SourceReady
	close(c.ready)
}

func (c *Clip) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != playback.SourceLoading {
		return
	}
	c.state = playback.SourceFailed
	close(c.failed)
}
