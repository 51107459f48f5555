// Package playback tracks what the player screen shows about the current
// video and turns key presses into engine commands.
//
// The media engine reports progress many times a second. Every report is
// stored in an atomic cell that skip reads, but the observable State only
// changes once per commit interval so the UI is not redrawn per report.
package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/njyeung/sofa/telemetry"
)

const (
	// DefaultCommitInterval bounds how often progress reports reach State.
	DefaultCommitInterval = 250 * time.Millisecond

	// DefaultSkip is the jump used by the skip keys.
	DefaultSkip = 10 * time.Second
)

// Direction of a skip.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Engine is the media engine the controller drives.
type Engine interface {
	Seek(pos time.Duration) error
	SetPaused(paused bool)
	SetMuted(muted bool)
}

// Listener receives engine events. *Controller implements it.
type Listener interface {
	OnLoad(duration time.Duration)
	OnProgress(current, buffered time.Duration)
	OnEnd()
	OnError(err error)
}

// State is what the player shows.
type State struct {
	Paused   bool
	Muted    bool
	Ended    bool
	Progress time.Duration
	Duration time.Duration
	Buffered time.Duration
	Err      error
}

// Fraction is Progress as a share of Duration, in [0, 1].
func (s State) Fraction() float64 {
	if s.Duration <= 0 {
		return 0
	}
	f := float64(s.Progress) / float64(s.Duration)
	return min(max(f, 0), 1)
}

// Config wires a Controller. Every field is optional.
type Config struct {
	Reporter *telemetry.Reporter
	Logger   log.Logger

	CommitInterval time.Duration
	Now            func() time.Time

	// Entitled reports whether the viewer may keep watching the channel.
	// When it returns false at the end of a video, OnPrompt runs.
	Entitled func() bool
	OnPrompt func()

	// OnChange runs after every change to State.
	OnChange func(State)
}

// Controller owns the playback state of one screen.
type Controller struct {
	reporter *telemetry.Reporter
	log      *log.Helper
	interval time.Duration
	now      func() time.Time
	entitled func() bool
	onPrompt func()
	onChange func(State)

	// latest reported position in nanoseconds
	progress atomic.Int64

	engineMu sync.RWMutex
	engine   Engine

	mu         sync.RWMutex
	state      State
	lastCommit time.Time
}

var _ Listener = (*Controller)(nil)

// New returns a controller for a video that is about to load.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	interval := cfg.CommitInterval
	if interval <= 0 {
		interval = DefaultCommitInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		reporter: cfg.Reporter,
		log:      log.NewHelper(log.With(logger, "module", "playback")),
		interval: interval,
		now:      now,
		entitled: cfg.Entitled,
		onPrompt: cfg.OnPrompt,
		onChange: cfg.OnChange,
	}
}

// SetEngine attaches the engine commands are sent to. It may be nil.
func (c *Controller) SetEngine(e Engine) {
	c.engineMu.Lock()
	c.engine = e
	c.engineMu.Unlock()

	st := c.State()
	c.withEngine(func(e Engine) {
		e.SetPaused(st.Paused)
		e.SetMuted(st.Muted)
	})
}

func (c *Controller) withEngine(fn func(Engine)) {
	c.engineMu.RLock()
	e := c.engine
	c.engineMu.RUnlock()

	if e != nil {
		fn(e)
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Position is the latest reported position, which may be newer than
// State().Progress.
func (c *Controller) Position() time.Duration {
	return time.Duration(c.progress.Load())
}

// Reset clears everything except mute, for the next video.
func (c *Controller) Reset() {
	c.progress.Store(0)
	c.update(func(s *State) {
		*s = State{Muted: s.Muted}
	})
}

// OnLoad records the duration and starts playing.
func (c *Controller) OnLoad(duration time.Duration) {
	c.update(func(s *State) {
		s.Duration = duration
		s.Paused = false
		s.Ended = false
		s.Err = nil
	})
}

// OnProgress stores the position at once and commits it to State at most
// once per commit interval.
func (c *Controller) OnProgress(current, buffered time.Duration) {
	c.progress.Store(int64(current))

	now := c.now()
	c.mu.Lock()
	if now.Sub(c.lastCommit) < c.interval {
		c.mu.Unlock()
		return
	}
	c.lastCommit = now
	c.state.Progress = current
	c.state.Buffered = buffered
	st := c.state
	c.mu.Unlock()

	c.emit(st)
}

// Flush commits the latest reported position regardless of the interval.
func (c *Controller) Flush() {
	pos := c.Position()
	c.update(func(s *State) {
		s.Progress = pos
	})
}

// OnEnd marks the video finished and asks the viewer to subscribe if they
// are not entitled to the channel.
func (c *Controller) OnEnd() {
	c.update(func(s *State) {
		s.Ended = true
		s.Paused = true
		if s.Duration > 0 {
			s.Progress = s.Duration
		}
	})
	if c.entitled != nil && !c.entitled() && c.onPrompt != nil {
		c.onPrompt()
	}
}

// OnError reports a playback failure. Playback is not retried; the viewer
// can press play to start again.
func (c *Controller) OnError(err error) {
	if err == nil {
		return
	}
	c.reporter.CaptureError(context.Background(), "playback", err)
	c.update(func(s *State) {
		s.Err = err
		s.Paused = true
	})
}

// Skip jumps amount in dir from the latest reported position and returns the
// target.
func (c *Controller) Skip(dir Direction, amount time.Duration) time.Duration {
	target := c.Position() + time.Duration(dir)*amount
	return c.Scrub(target)
}

// Scrub moves to target without waiting for the engine to confirm. The
// target is clamped to the video.
func (c *Controller) Scrub(target time.Duration) time.Duration {
	var st State
	c.mu.Lock()
	target = clamp(target, c.state.Duration)
	c.state.Progress = target
	if c.state.Ended && (c.state.Duration <= 0 || target < c.state.Duration) {
		c.state.Ended = false
	}
	c.lastCommit = c.now()
	st = c.state
	c.mu.Unlock()

	c.progress.Store(int64(target))
	c.emit(st)
	c.seek(target)
	return target
}

func clamp(pos, duration time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if duration > 0 && pos > duration {
		return duration
	}
	return pos
}

func (c *Controller) seek(pos time.Duration) {
	c.withEngine(func(e Engine) {
		if err := e.Seek(pos); err != nil {
			c.log.Warnf("seek to %s: %v", pos, err)
			c.reporter.CaptureError(context.Background(), "seek", err)
		}
	})
}

// TogglePlay pauses or resumes. After the end of the video or a failure it
// starts over.
func (c *Controller) TogglePlay() {
	var restart bool
	st := c.update(func(s *State) {
		if s.Ended || s.Err != nil {
			restart = true
			s.Ended = false
			s.Paused = false
			s.Progress = 0
			s.Err = nil
			return
		}
		s.Paused = !s.Paused
	})
	if restart {
		c.progress.Store(0)
		c.seek(0)
	}
	c.withEngine(func(e Engine) { e.SetPaused(st.Paused) })
}

// ToggleMute flips the mute state.
func (c *Controller) ToggleMute() {
	st := c.update(func(s *State) { s.Muted = !s.Muted })
	c.withEngine(func(e Engine) { e.SetMuted(st.Muted) })
}

// Background pauses playback when the app loses focus.
func (c *Controller) Background() {
	st := c.State()
	if st.Paused {
		return
	}
	st = c.update(func(s *State) { s.Paused = true })
	c.withEngine(func(e Engine) { e.SetPaused(st.Paused) })
}

func (c *Controller) update(fn func(*State)) State {
	c.mu.Lock()
	fn(&c.state)
	st := c.state
	c.mu.Unlock()

	c.emit(st)
	return st
}

func (c *Controller) emit(st State) {
	if c.onChange != nil {
		c.onChange(st)
	}
}

// FormatClock renders d as m:ss, or h:mm:ss past an hour.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
