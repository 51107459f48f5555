package player

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/njyeung/sofa/playback"
)

// errStopped is returned by run when the session was stopped from outside
var errStopped = errors.New("player: stopped")

type sessionConfig struct {
	width    int
	height   int
	renderer *KittyRenderer
	muted    bool
	paused   bool
	start    time.Duration
	listener playback.Listener
	log      *log.Helper
}

// pacer decides when a frame is drawn. With audio the audio clock leads and
// frames that fall behind it are dropped; without audio the wall clock does.
type pacer struct {
	clock     Clock
	start     float64
	wallStart time.Time
	now       func() time.Time
}

func newPacer(clock Clock, start time.Duration) *pacer {
	return &pacer{clock: clock, start: start.Seconds(), wallStart: time.Now(), now: time.Now}
}

// hold shifts the wall clock by a pause
func (pc *pacer) hold(d time.Duration) {
	pc.wallStart = pc.wallStart.Add(d)
}

// schedule returns how long to wait before drawing the frame at pts, or
// drop when it should not be drawn at all
func (pc *pacer) schedule(pts float64) (wait time.Duration, drop bool) {
	// decoded from the keyframe before a seek target
	if pts < pc.start {
		return 0, true
	}
	if pc.clock != nil {
		if !pc.clock.IsPlaying() {
			return 0, false
		}
		drift := pts - pc.clock.Time()
		switch {
		case drift > SyncThreshold:
			// close a fifth of the gap per frame
			return seconds(drift * 0.2), false
		case drift < -SyncThreshold:
			return 0, true
		}
		return 0, false
	}
	due := pc.wallStart.Add(seconds(pts - pc.start))
	return max(due.Sub(pc.now()), 0), false
}

// playSession plays one media file from a start position until the end of
// the stream or until stopped.
type playSession struct {
	demuxer  *Demuxer
	audio    *AudioPlayer
	video    *VideoDecoder
	renderer *KittyRenderer
	listener playback.Listener
	pacer    *pacer
	log      *log.Helper

	// furthest demuxed video timestamp in seconds
	demuxed atomic.Value

	videoPkts chan *astiav.Packet
	audioPkts chan *astiav.Packet

	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
}

func newPlaySession(url string, cfg sessionConfig) (*playSession, error) {
	demuxer, err := NewDemuxer(url)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	if cfg.start > 0 {
		if err := demuxer.SeekTo(cfg.start); err != nil {
			demuxer.Close()
			return nil, err
		}
	}

	video, err := NewVideoDecoder(demuxer.VideoCodecParameters(), demuxer.VideoTimeBase())
	if err != nil {
		demuxer.Close()
		return nil, err
	}
	srcW, srcH := video.SourceSize()
	dstW, dstH := fitSize(srcW, srcH, cfg.width, cfg.height)
	video.SetSize(dstW, dstH)

	s := &playSession{
		demuxer:   demuxer,
		video:     video,
		renderer:  cfg.renderer,
		listener:  cfg.listener,
		log:       cfg.log,
		videoPkts: make(chan *astiav.Packet, 30),
		stopCh:    make(chan struct{}),
	}
	s.demuxed.Store(cfg.start.Seconds())

	// no audio device or a broken audio stream plays the video silently
	if demuxer.HasAudio() && speakerReady.Load() {
		if audio, err := NewAudioPlayer(demuxer.AudioCodecParameters()); err == nil {
			audio.SetClock(cfg.start.Seconds())
			audio.SetMuted(cfg.muted)
			audio.SetPaused(cfg.paused)
			s.audio = audio
			s.audioPkts = make(chan *astiav.Packet, 64)
		}
	}
	s.pacer = newPacer(nil, cfg.start)
	if s.audio != nil {
		s.pacer.clock = s.audio
	}

	if s.renderer != nil {
		if cols, rows, termW, termH, err := GetTerminalSize(); err == nil && cols > 0 && rows > 0 {
			s.renderer.SetTerminalSize(cols, rows, termW, termH)
			s.renderer.CenterVideo(dstW, dstH)
		}
	}
	return s, nil
}

// run plays until the end of the stream (nil), a stop (errStopped) or a
// failure.
func (s *playSession) run(p *AVPlayer) error {
	var g errgroup.Group
	g.Go(s.demuxLoop)
	if s.audio != nil {
		g.Go(s.audioLoop)
		s.audio.Start()
	}

	err := s.renderLoop(p)
	if err != nil {
		s.stop()
	}
	demuxErr := g.Wait()
	for pkt := range s.videoPkts {
		pkt.Free()
	}

	switch {
	case err != nil:
		return err
	case s.stopped.Load():
		return errStopped
	default:
		return demuxErr
	}
}

func (s *playSession) stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopCh)
	})
}

func (s *playSession) cleanup() {
	if s.audio != nil {
		s.audio.Close()
	}
	s.video.Close()
	s.demuxer.Close()
}

func (s *playSession) audioLoop() error {
	for pkt := range s.audioPkts {
		if !s.stopped.Load() {
			// a bad packet costs a moment of silence
			if err := s.audio.DecodePacket(pkt); err != nil {
				s.log.Debugf("decode audio: %v", err)
			}
		}
		pkt.Free()
	}
	return nil
}

// send hands pkt to ch unless the session stops first
func (s *playSession) send(ch chan<- *astiav.Packet, pkt *astiav.Packet) bool {
	select {
	case ch <- pkt:
		return true
	case <-s.stopCh:
		pkt.Free()
		return false
	}
}

// demuxLoop reads packets and routes them to the video and audio loops. It
// owns both channels and closes them when it returns.
func (s *playSession) demuxLoop() error {
	defer func() {
		close(s.videoPkts)
		if s.audioPkts != nil {
			close(s.audioPkts)
		}
	}()

	for !s.stopped.Load() {
		pkt, isVideo, err := s.demuxer.ReadPacket()
		if errors.Is(err, astiav.ErrEof) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read packet: %w", err)
		}

		switch {
		case isVideo:
			s.demuxed.Store(s.demuxer.PTSToSeconds(pkt.Pts(), true))
			if !s.send(s.videoPkts, pkt) {
				return nil
			}
		case s.audioPkts != nil && s.demuxer.IsAudio(pkt):
			if !s.send(s.audioPkts, pkt) {
				return nil
			}
		default:
			pkt.Free()
		}
	}
	return nil
}

// waitWhilePaused blocks while the player is paused. It returns false when
// the session stops meanwhile.
func (s *playSession) waitWhilePaused(p *AVPlayer) bool {
	for p.paused.Load() {
		pausedAt := time.Now()
		select {
		case <-s.stopCh:
			return false
		case <-time.After(50 * time.Millisecond):
		}
		s.pacer.hold(time.Since(pausedAt))
	}
	return true
}

// renderLoop decodes video packets and draws them on time
func (s *playSession) renderLoop(p *AVPlayer) error {
	for pkt := range s.videoPkts {
		if s.stopped.Load() || !s.waitWhilePaused(p) {
			pkt.Free()
			continue
		}

		frame, err := s.video.DecodePacket(pkt)
		pkt.Free()
		if err != nil {
			return err
		}
		if frame == nil {
			continue
		}

		wait, drop := s.pacer.schedule(frame.PTS)
		if drop {
			continue
		}
		if wait > 0 {
			time.Sleep(wait)
		}

		if p.visible.Load() && s.renderer != nil {
			if err := s.renderer.RenderFrame(frame.RGB, frame.Width, frame.Height); err != nil {
				return fmt.Errorf("render frame: %w", err)
			}
		}
		if s.listener != nil {
			s.listener.OnProgress(seconds(frame.PTS), seconds(s.bufferedTo()))
		}
	}
	return nil
}

// bufferedTo is how far ahead playback could continue without reading more
func (s *playSession) bufferedTo() float64 {
	demuxed, _ := s.demuxed.Load().(float64)
	if s.audio == nil {
		return demuxed
	}
	return min(demuxed, s.audio.Time()+s.audio.Buffered())
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// fitSize scales srcW x srcH to fit within maxW x maxH keeping the aspect
// ratio. A zero bound or source leaves the size unchanged.
func fitSize(srcW, srcH, maxW, maxH int) (int, int) {
	if maxW == 0 || maxH == 0 || srcW == 0 || srcH == 0 {
		return srcW, srcH
	}
	srcAspect := float64(srcW) / float64(srcH)
	if srcAspect > float64(maxW)/float64(maxH) {
		return maxW, int(float64(maxW) / srcAspect)
	}
	return int(float64(maxH) * srcAspect), maxH
}
