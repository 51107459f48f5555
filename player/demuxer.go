package player

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
)

var errNoVideoStream = errors.New("no video stream")

// track is the first stream of one media type
type track struct {
	stream   *astiav.Stream
	timeBase astiav.Rational
}

func (t *track) index() int {
	if t == nil {
		return -1
	}
	return t.stream.Index()
}

// Demuxer reads packets from a local path or anything FFmpeg can open
// (file, http, https). Only the first video and audio streams are used.
type Demuxer struct {
	mu     sync.Mutex
	input  *astiav.FormatContext
	video  *track
	audio  *track
	closed bool
}

func NewDemuxer(url string) (*Demuxer, error) {
	input := astiav.AllocFormatContext()
	if input == nil {
		return nil, fmt.Errorf("allocate format context")
	}
	if err := input.OpenInput(url, nil, nil); err != nil {
		input.Free()
		return nil, fmt.Errorf("open %s: %w", url, err)
	}

	d := &Demuxer{input: input}
	if err := input.FindStreamInfo(nil); err != nil {
		d.Close()
		return nil, fmt.Errorf("read stream info: %w", err)
	}
	for _, s := range input.Streams() {
		t := &track{stream: s, timeBase: s.TimeBase()}
		switch s.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if d.video == nil {
				d.video = t
			}
		case astiav.MediaTypeAudio:
			if d.audio == nil {
				d.audio = t
			}
		}
	}
	if d.video == nil {
		d.Close()
		return nil, errNoVideoStream
	}
	return d, nil
}

func (d *Demuxer) VideoCodecParameters() *astiav.CodecParameters {
	return d.video.stream.CodecParameters()
}

// AudioCodecParameters is nil when the media has no audio
func (d *Demuxer) AudioCodecParameters() *astiav.CodecParameters {
	if d.audio == nil {
		return nil
	}
	return d.audio.stream.CodecParameters()
}

func (d *Demuxer) HasAudio() bool { return d.audio != nil }

func (d *Demuxer) VideoTimeBase() astiav.Rational { return d.video.timeBase }

// ReadPacket returns the next packet and whether it belongs to the video
// stream. At the end of the media the error is astiav.ErrEof.
func (d *Demuxer) ReadPacket() (pkt *astiav.Packet, isVideo bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, false, errDecoderClosed
	}
	pkt = astiav.AllocPacket()
	if pkt == nil {
		return nil, false, fmt.Errorf("allocate packet")
	}
	if err := d.input.ReadFrame(pkt); err != nil {
		pkt.Free()
		return nil, false, err
	}
	return pkt, pkt.StreamIndex() == d.video.index(), nil
}

// IsAudio reports whether pkt belongs to the audio stream
func (d *Demuxer) IsAudio(pkt *astiav.Packet) bool {
	return d.audio != nil && pkt.StreamIndex() == d.audio.index()
}

// PTSToSeconds converts a timestamp of the video or audio stream
func (d *Demuxer) PTSToSeconds(pts int64, isVideo bool) float64 {
	t := d.audio
	if isVideo || t == nil {
		t = d.video
	}
	return rationalSeconds(pts, t.timeBase)
}

// Duration is the media length, or 0 when the container does not say
func (d *Demuxer) Duration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0
	}
	if n := d.video.stream.Duration(); n > 0 {
		return time.Duration(rationalSeconds(n, d.video.timeBase) * float64(time.Second))
	}
	// AV_TIME_BASE units
	if n := d.input.Duration(); n > 0 {
		return time.Duration(n) * time.Microsecond
	}
	return 0
}

// SeekTo moves to the keyframe at or before pos
func (d *Demuxer) SeekTo(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errDecoderClosed
	}
	flags := astiav.NewSeekFlags(astiav.SeekFlagBackward)
	if err := d.input.SeekFrame(-1, pos.Microseconds(), flags); err != nil {
		return fmt.Errorf("seek to %s: %w", pos, err)
	}
	return nil
}

func (d *Demuxer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	d.input.CloseInput()
	d.input.Free()
}
