package player

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/njyeung/sofa/playback"
)

// AVPlayer implements the Player interface using FFmpeg
type AVPlayer struct {
	renderer *KittyRenderer
	log      *log.Helper

	output io.Writer
	width  int
	height int

	playing atomic.Bool
	paused  atomic.Bool
	muted   atomic.Bool
	visible atomic.Bool

	// pending seek target; only the latest one is kept
	seekCh chan time.Duration
	// wakes a Play loop that is waiting after the end of the media
	wake chan struct{}

	playMu   sync.Mutex
	configMu sync.Mutex

	sessionMu sync.Mutex
	session   *playSession
}

var _ Player = (*AVPlayer)(nil)

// NewAVPlayer creates a new FFmpeg-based player
func NewAVPlayer(logger log.Logger) *AVPlayer {
	if logger == nil {
		logger = log.DefaultLogger
	}
	p := &AVPlayer{
		log:    log.NewHelper(log.With(logger, "module", "player")),
		output: os.Stdout,
		seekCh: make(chan time.Duration, 1),
		wake:   make(chan struct{}, 1),
	}
	p.visible.Store(true)
	return p
}

func (p *AVPlayer) sessionConfig(start time.Duration, l playback.Listener) sessionConfig {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	if p.renderer == nil {
		p.renderer = NewKittyRenderer(p.output)
	}

	return sessionConfig{
		width:    p.width,
		height:   p.height,
		renderer: p.renderer,
		muted:    p.muted.Load(),
		paused:   p.paused.Load(),
		start:    start,
		listener: l,
		log:      p.log,
	}
}

func (p *AVPlayer) setSession(s *playSession) {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	p.session = s
}

func (p *AVPlayer) clearSession(s *playSession) {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	if p.session == s {
		p.session = nil
	}
}

func (p *AVPlayer) withSession(fn func(*playSession)) {
	p.sessionMu.Lock()
	s := p.session
	p.sessionMu.Unlock()

	if s != nil {
		fn(s)
	}
}

// SetOutput sets the writer for video frames
func (p *AVPlayer) SetOutput(w io.Writer) {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	p.output = w
	if p.renderer != nil {
		p.renderer.SetOutput(w)
	}
}

// SetSize sets the video display dimensions in pixels
func (p *AVPlayer) SetSize(width, height int) {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	p.width = width
	p.height = height
	p.withSession(func(s *playSession) {
		if s.video != nil {
			w, h := s.video.SourceSize()
			s.video.SetSize(fitSize(w, h, width, height))
		}
	})
}

// SetVisible shows or hides the video. Hidden video keeps playing.
func (p *AVPlayer) SetVisible(visible bool) {
	if p.visible.Swap(visible) == visible || visible {
		return
	}
	p.configMu.Lock()
	r := p.renderer
	p.configMu.Unlock()
	if r != nil {
		r.Hide()
	}
}

// Play streams url, reporting to l, until ctx is done or Stop is called.
// Each seek restarts the stream at the requested position. After the end of
// the stream or a failure the loop waits for a seek.
func (p *AVPlayer) Play(ctx context.Context, url string, l playback.Listener) error {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	if ctx.Err() != nil {
		return nil
	}
	p.playing.Store(true)
	p.drainSeek()

	wakeOnDone := context.AfterFunc(ctx, p.signal)
	defer wakeOnDone()

	var (
		start  time.Duration
		loaded bool
	)
	for p.active(ctx) {
		err := p.playOnce(ctx, url, start, l, &loaded)

		if next, ok := p.takeSeek(); ok {
			start = next
			continue
		}
		if !p.active(ctx) {
			return nil
		}

		switch {
		case err == nil:
			l.OnEnd()
		case errors.Is(err, errStopped):
		default:
			l.OnError(err)
		}

		next, ok := p.waitSeek(ctx)
		if !ok {
			return nil
		}
		start = next
	}
	return nil
}

func (p *AVPlayer) active(ctx context.Context) bool {
	return ctx.Err() == nil && p.playing.Load()
}

// playOnce plays the media file once from start
func (p *AVPlayer) playOnce(ctx context.Context, url string, start time.Duration, l playback.Listener, loaded *bool) error {
	cfg := p.sessionConfig(start, l)
	session, err := newPlaySession(url, cfg)
	if err != nil {
		return err
	}

	p.setSession(session)
	defer func() {
		p.clearSession(session)
		session.cleanup()
	}()

	stopOnDone := context.AfterFunc(ctx, session.stop)
	defer stopOnDone()

	// Stop or Seek may have landed while the session was opening
	if !p.active(ctx) || len(p.seekCh) > 0 {
		session.stop()
	}

	if !*loaded {
		*loaded = true
		l.OnLoad(session.demuxer.Duration())
	}
	return session.run(p)
}

func (p *AVPlayer) takeSeek() (time.Duration, bool) {
	select {
	case pos := <-p.seekCh:
		return pos, true
	default:
		return 0, false
	}
}

func (p *AVPlayer) drainSeek() {
	p.takeSeek()
	select {
	case <-p.wake:
	default:
	}
}

// waitSeek blocks until a seek arrives or the player stops
func (p *AVPlayer) waitSeek(ctx context.Context) (time.Duration, bool) {
	for {
		if pos, ok := p.takeSeek(); ok {
			return pos, true
		}
		if !p.active(ctx) {
			return 0, false
		}
		<-p.wake
	}
}

func (p *AVPlayer) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Seek restarts playback at pos
func (p *AVPlayer) Seek(pos time.Duration) error {
	if pos < 0 {
		pos = 0
	}
	// replace any pending target
	select {
	case <-p.seekCh:
	default:
	}
	p.seekCh <- pos

	p.withSession(func(s *playSession) {
		s.stop()
	})
	p.signal()
	return nil
}

// Stop stops current playback
func (p *AVPlayer) Stop() {
	p.playing.Store(false)
	p.withSession(func(s *playSession) {
		s.stop()
	})
	p.signal()
}

// SetMuted mutes or unmutes audio
func (p *AVPlayer) SetMuted(muted bool) {
	p.muted.Store(muted)
	p.withSession(func(s *playSession) {
		if s.audio != nil {
			s.audio.SetMuted(muted)
		}
	})
}

// SetPaused pauses or resumes playback
func (p *AVPlayer) SetPaused(paused bool) {
	p.paused.Store(paused)
	p.withSession(func(s *playSession) {
		if s.audio != nil {
			s.audio.SetPaused(paused)
		}
	})
}

// cleanup releases all resources including renderer
func (p *AVPlayer) cleanup() {
	if p.renderer != nil {
		p.renderer.Clear()
		p.renderer = nil
	}
}

// Close releases all resources
func (p *AVPlayer) Close() {
	p.Stop()
	p.configMu.Lock()
	defer p.configMu.Unlock()

	p.cleanup()
}
