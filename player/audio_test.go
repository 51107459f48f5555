package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPCMQueueFill(t *testing.T) {
	q := &pcmQueue{}
	// full scale left, silent right; then negative full scale
	q.push([]byte{0xff, 0x7f, 0x00, 0x00, 0x01, 0x80, 0x01, 0x80})

	out := make([][2]float64, 3)
	out[2] = [2]float64{0.5, 0.5}
	require.Equal(t, 2, q.fill(out, false))
	require.Equal(t, [2]float64{1, 0}, out[0])
	require.Equal(t, [2]float64{-1, -1}, out[1])
	require.Equal(t, [2]float64{}, out[2], "past the end is silence")
	require.Zero(t, q.len())
}

func TestPCMQueueMuted(t *testing.T) {
	q := &pcmQueue{}
	q.push([]byte{0xff, 0x7f, 0xff, 0x7f})

	out := make([][2]float64, 1)
	require.Equal(t, 1, q.fill(out, true))
	require.Equal(t, [2]float64{}, out[0])
	require.Zero(t, q.len(), "muted audio is still consumed")
}

func TestAudioClockFollowsPlayedSamples(t *testing.T) {
	a := &AudioPlayer{queue: &pcmQueue{}}
	a.SetClock(2)
	a.queue.push(make([]byte, AudioSampleRate/10*bytesPerFrame))
	require.InDelta(t, 0.1, a.Buffered(), 1e-9)

	out := make([][2]float64, AudioSampleRate)
	n, ok := a.Stream(out)
	require.True(t, ok)
	require.Equal(t, len(out), n)
	require.InDelta(t, 2.1, a.Time(), float64(time.Millisecond)/float64(time.Second))

	a.SetPaused(true)
	a.queue.push(make([]byte, 16))
	a.Stream(out)
	require.InDelta(t, 2.1, a.Time(), 1e-3, "the clock stops while paused")
	require.Equal(t, 16, a.queue.len())
}
