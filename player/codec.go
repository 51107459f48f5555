package player

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
)

var errDecoderClosed = errors.New("decoder closed")

// openCodec finds and opens a decoder for params. kind names the stream in
// errors.
func openCodec(params *astiav.CodecParameters, kind string) (*astiav.CodecContext, error) {
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("%s codec not found: %s", kind, params.CodecID())
	}
	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return nil, fmt.Errorf("allocate %s codec context", kind)
	}
	if err := params.ToCodecContext(ctx); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("copy %s codec params: %w", kind, err)
	}
	if err := ctx.Open(codec, nil); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("open %s codec: %w", kind, err)
	}
	return ctx, nil
}

// drained reports whether a ReceiveFrame error only means no frame is ready
func drained(err error) bool {
	return errors.Is(err, astiav.ErrEof) || errors.Is(err, astiav.ErrEagain)
}

func rationalSeconds(v int64, tb astiav.Rational) float64 {
	return float64(v) * float64(tb.Num()) / float64(tb.Den())
}
