package player

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// bytesPerFrame is one interleaved s16le stereo sample
const bytesPerFrame = 4

var (
	speakerOnce  sync.Once
	speakerReady atomic.Bool
)

// InitSpeaker opens the audio device. Call it before the TUI starts so any
// permission prompt shows up early rather than after login.
func InitSpeaker() error {
	var err error
	speakerOnce.Do(func() {
		rate := beep.SampleRate(AudioSampleRate)
		err = speaker.Init(rate, rate.N(50*time.Millisecond))
		speakerReady.Store(err == nil)
	})
	return err
}

// pcmQueue holds resampled s16le stereo audio waiting for the speaker
type pcmQueue struct {
	mu  sync.Mutex
	buf []byte
}

func (q *pcmQueue) push(pcm []byte) {
	q.mu.Lock()
	q.buf = append(q.buf, pcm...)
	q.mu.Unlock()
}

// fill writes queued audio into out, silence past the end of the queue, and
// returns how many samples came from the queue
func (q *pcmQueue) fill(out [][2]float64, muted bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(len(out), len(q.buf)/bytesPerFrame)
	for i := range n {
		if muted {
			out[i] = [2]float64{}
			continue
		}
		p := q.buf[i*bytesPerFrame:]
		out[i][0] = s16(p[0], p[1])
		out[i][1] = s16(p[2], p[3])
	}
	clear(out[n:])
	q.buf = q.buf[n*bytesPerFrame:]
	return n
}

func (q *pcmQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// s16 converts a little endian sample to [-1, 1]
func s16(lo, hi byte) float64 {
	return float64(int16(lo)|int16(hi)<<8) / 32767
}

// AudioPlayer decodes audio into the speaker and keeps the master clock.
// The clock advances by the samples the speaker actually consumed.
type AudioPlayer struct {
	mu     sync.Mutex
	codec  *astiav.CodecContext
	swr    *astiav.SoftwareResampleContext
	frame  *astiav.Frame
	closed bool

	queue *pcmQueue
	ctrl  *beep.Ctrl

	// clock is nanoseconds of played audio
	clock   atomic.Int64
	playing atomic.Bool
	paused  atomic.Bool
	muted   atomic.Bool
}

// Stream implements beep.Streamer. It never runs dry; gaps are silence.
func (a *AudioPlayer) Stream(samples [][2]float64) (int, bool) {
	if a.paused.Load() {
		clear(samples)
		return len(samples), true
	}
	if n := a.queue.fill(samples, a.muted.Load()); n > 0 {
		a.clock.Add(int64(time.Duration(n) * time.Second / AudioSampleRate))
	}
	return len(samples), true
}

func (a *AudioPlayer) Err() error { return nil }

// NewAudioPlayer opens a decoder and resampler for the stream described by params
func NewAudioPlayer(params *astiav.CodecParameters) (*AudioPlayer, error) {
	codec, err := openCodec(params, "audio")
	if err != nil {
		return nil, err
	}
	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		codec.Free()
		return nil, fmt.Errorf("allocate resample context")
	}

	a := &AudioPlayer{
		codec: codec,
		swr:   swr,
		frame: astiav.AllocFrame(),
		// about a second of audio
		queue: &pcmQueue{buf: make([]byte, 0, AudioSampleRate*bytesPerFrame)},
	}
	a.ctrl = &beep.Ctrl{Streamer: a}
	return a, nil
}

// Start hands the stream to the speaker
func (a *AudioPlayer) Start() {
	a.playing.Store(true)
	speaker.Play(a.ctrl)
}

// DecodePacket decodes pkt and queues the resampled audio. Frames that fail
// to resample are dropped.
func (a *AudioPlayer) DecodePacket(pkt *astiav.Packet) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errDecoderClosed
	}
	if err := a.codec.SendPacket(pkt); err != nil {
		return fmt.Errorf("send audio packet: %w", err)
	}
	for {
		if err := a.codec.ReceiveFrame(a.frame); err != nil {
			if drained(err) {
				return nil
			}
			return fmt.Errorf("receive audio frame: %w", err)
		}
		if pcm, ok := a.resample(); ok {
			a.queue.push(pcm)
		}
		a.frame.Unref()
	}
}

func (a *AudioPlayer) resample() ([]byte, bool) {
	out := astiav.AllocFrame()
	defer out.Free()

	out.SetSampleFormat(astiav.SampleFormatS16)
	out.SetSampleRate(AudioSampleRate)
	out.SetChannelLayout(astiav.ChannelLayoutStereo)
	out.SetNbSamples(a.frame.NbSamples())
	if err := out.AllocBuffer(0); err != nil {
		return nil, false
	}
	if err := a.swr.ConvertFrame(a.frame, out); err != nil {
		return nil, false
	}

	size := out.NbSamples() * bytesPerFrame
	plane, err := out.Data().Bytes(0)
	if err != nil || len(plane) < size {
		return nil, false
	}
	return plane[:size], true
}

// Time is the audio position in seconds
func (a *AudioPlayer) Time() float64 {
	return time.Duration(a.clock.Load()).Seconds()
}

// SetClock moves the clock to seconds, after a seek
func (a *AudioPlayer) SetClock(seconds float64) {
	a.clock.Store(int64(seconds * float64(time.Second)))
}

// Buffered is how many seconds of decoded audio are queued
func (a *AudioPlayer) Buffered() float64 {
	return float64(a.queue.len()) / bytesPerFrame / AudioSampleRate
}

func (a *AudioPlayer) IsPlaying() bool {
	return a.playing.Load() && !a.paused.Load()
}

// SetPaused pauses or resumes output. The clock stops while paused.
func (a *AudioPlayer) SetPaused(paused bool) { a.paused.Store(paused) }

// SetMuted silences output without stopping the clock
func (a *AudioPlayer) SetMuted(muted bool) { a.muted.Store(muted) }

func (a *AudioPlayer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.playing.Store(false)
	speaker.Clear()

	a.frame.Free()
	a.swr.Free()
	a.codec.Free()
}
