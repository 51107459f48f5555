// Package player plays a media url in the terminal: FFmpeg decodes, beep
// plays the audio and frames are drawn with the kitty graphics protocol.
package player

import (
	"context"
	"io"

	"github.com/asticode/go-astiav"

	"github.com/njyeung/sofa/playback"
)

func init() {
	astiav.SetLogLevel(astiav.LogLevelQuiet)
}

const (
	// SyncThreshold is the drift in seconds the video may have from the
	// audio clock before frames are delayed or dropped
	SyncThreshold = 0.1

	// AudioSampleRate is what every audio stream is resampled to
	AudioSampleRate = 44100

	// VideoImageID is the kitty image id of the video frame
	VideoImageID = 1
)

// Player is a playback.Engine that draws into a terminal
type Player interface {
	playback.Engine

	// Play streams url and reports to l. Blocks until ctx is done or Stop is
	// called; after the end of the media or a failure it waits for a Seek to
	// play again.
	Play(ctx context.Context, url string, l playback.Listener) error
	Stop()
	Close()

	// SetOutput is where frames are written, normally the terminal
	SetOutput(w io.Writer)
	// SetSize bounds the video in pixels
	SetSize(width, height int)
	// SetVisible shows or hides the video without stopping it
	SetVisible(visible bool)
}

// Clock is the audio position the video follows
type Clock interface {
	// Time is in seconds
	Time() float64
	IsPlaying() bool
}

// Renderer draws frames in the terminal
type Renderer interface {
	RenderFrame(rgb []byte, width, height int) error
	Hide() error
}

// Frame is a decoded picture scaled for display
type Frame struct {
	// RGB is packed RGB24
	RGB           []byte
	Width, Height int
	// PTS and Duration are in seconds
	PTS      float64
	Duration float64
}
