package player

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
)

// scaler converts decoded frames to RGB24 at a target size. The sws context
// is built lazily because the source pixel format is only known once the
// codec is open.
type scaler struct {
	sws *astiav.SoftwareScaleContext
	out *astiav.Frame

	width, height int
}

func newScaler(width, height int) *scaler {
	return &scaler{out: astiav.AllocFrame(), width: width, height: height}
}

func (s *scaler) resize(width, height int) {
	if width == s.width && height == s.height {
		return
	}
	s.width, s.height = width, height
	s.reset()
}

func (s *scaler) reset() {
	if s.sws != nil {
		s.sws.Free()
		s.sws = nil
	}
}

func (s *scaler) prepare(src *astiav.Frame) error {
	if s.sws != nil {
		return nil
	}
	sws, err := astiav.CreateSoftwareScaleContext(
		src.Width(), src.Height(), src.PixelFormat(),
		s.width, s.height, astiav.PixelFormatRgb24,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("create scale context: %w", err)
	}
	s.sws = sws

	s.out.Unref()
	s.out.SetWidth(s.width)
	s.out.SetHeight(s.height)
	s.out.SetPixelFormat(astiav.PixelFormatRgb24)
	if err := s.out.AllocBuffer(1); err != nil {
		return fmt.Errorf("allocate rgb buffer: %w", err)
	}
	return nil
}

// scale returns a copy of src as packed RGB24
func (s *scaler) scale(src *astiav.Frame) ([]byte, error) {
	if s.width == 0 || s.height == 0 {
		return nil, fmt.Errorf("scale to %dx%d", s.width, s.height)
	}
	if err := s.prepare(src); err != nil {
		return nil, err
	}
	if err := s.sws.ScaleFrame(src, s.out); err != nil {
		return nil, fmt.Errorf("scale frame: %w", err)
	}
	pixels, err := s.out.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("read rgb frame: %w", err)
	}
	// the output frame is reused for the next picture
	return append([]byte(nil), pixels...), nil
}

func (s *scaler) free() {
	s.reset()
	if s.out != nil {
		s.out.Free()
		s.out = nil
	}
}

// VideoDecoder turns video packets into RGB frames sized for the terminal
type VideoDecoder struct {
	mu sync.Mutex

	codec    *astiav.CodecContext
	picture  *astiav.Frame
	scaler   *scaler
	timeBase astiav.Rational

	srcWidth, srcHeight int
	closed              bool
}

// NewVideoDecoder opens a decoder for the stream described by params.
// Frames come out at the source size until SetSize is called.
func NewVideoDecoder(params *astiav.CodecParameters, timeBase astiav.Rational) (*VideoDecoder, error) {
	codec, err := openCodec(params, "video")
	if err != nil {
		return nil, err
	}
	return &VideoDecoder{
		codec:     codec,
		picture:   astiav.AllocFrame(),
		scaler:    newScaler(params.Width(), params.Height()),
		timeBase:  timeBase,
		srcWidth:  params.Width(),
		srcHeight: params.Height(),
	}, nil
}

// SetSize changes the output size; the next frame is scaled to it
func (v *VideoDecoder) SetSize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.scaler.resize(width, height)
}

// DecodePacket feeds pkt to the decoder. It returns nil without error while
// the decoder needs more input.
func (v *VideoDecoder) DecodePacket(pkt *astiav.Packet) (*Frame, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, errDecoderClosed
	}
	if err := v.codec.SendPacket(pkt); err != nil {
		return nil, fmt.Errorf("send video packet: %w", err)
	}
	if err := v.codec.ReceiveFrame(v.picture); err != nil {
		if drained(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("receive video frame: %w", err)
	}
	defer v.picture.Unref()

	rgb, err := v.scaler.scale(v.picture)
	if err != nil {
		return nil, err
	}
	return &Frame{
		RGB:      rgb,
		Width:    v.scaler.width,
		Height:   v.scaler.height,
		PTS:      rationalSeconds(v.picture.Pts(), v.timeBase),
		Duration: rationalSeconds(pkt.Duration(), v.timeBase),
	}, nil
}

// SourceSize is the size of the encoded picture
func (v *VideoDecoder) SourceSize() (int, int) {
	return v.srcWidth, v.srcHeight
}

func (v *VideoDecoder) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true

	v.scaler.free()
	if v.picture != nil {
		v.picture.Free()
	}
	v.codec.Free()
}
