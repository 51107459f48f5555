package player

import (
	"bytes"
	"encoding/base64"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var apc = regexp.MustCompile(`\x1b_G([^;\x1b]*)(?:;([^\x1b]*))?\x1b\\`)

func TestWriteImageChunks(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3}, 4000)

	var buf bytes.Buffer
	writeImage(&buf, data, 24, 80, 50, VideoImageID)

	cmds := apc.FindAllStringSubmatch(buf.String(), -1)
	require.Len(t, cmds, 4)
	require.Equal(t, "a=T,f=24,s=80,v=50,i=1,q=2,m=1", cmds[0][1])
	require.Equal(t, "m=1", cmds[1][1])
	require.Equal(t, "m=0", cmds[3][1])

	var payload strings.Builder
	for _, c := range cmds {
		require.LessOrEqual(t, len(c[2]), 4096)
		payload.WriteString(c[2])
	}
	decoded, err := base64.StdEncoding.DecodeString(payload.String())
	require.NoError(t, err)
	require.Equal(t, data, decoded)
}

func TestRenderFrameReplacesPrevious(t *testing.T) {
	var out bytes.Buffer
	r := NewKittyRenderer(&out)
	r.SetCellPosition(3, 7)

	require.NoError(t, r.RenderFrame([]byte{0, 0, 0}, 1, 1))
	first := out.String()
	require.Contains(t, first, "\x1b[3;7H")
	require.NotContains(t, first, "a=d")

	out.Reset()
	require.NoError(t, r.RenderFrame([]byte{0, 0, 0}, 1, 1))
	require.Contains(t, out.String(), "\x1b_Ga=d,d=i,i=1,q=2\x1b\\")
}

func TestHideOnlyWhenShown(t *testing.T) {
	var out bytes.Buffer
	r := NewKittyRenderer(&out)

	require.NoError(t, r.Hide())
	require.Empty(t, out.String())

	require.NoError(t, r.RenderFrame([]byte{0, 0, 0}, 1, 1))
	out.Reset()
	require.NoError(t, r.Hide())
	require.Equal(t, "\x1b_Ga=d,d=i,i=1,q=2\x1b\\", out.String())
}

func TestCenterVideo(t *testing.T) {
	r := NewKittyRenderer(&bytes.Buffer{})
	r.SetTerminalSize(100, 40, 1000, 800)
	r.CenterVideo(400, 400)

	// 40x20 cells centered in 100x40, one row above center
	require.Equal(t, 31, r.col)
	require.Equal(t, 10, r.row)
}

func TestFitSize(t *testing.T) {
	w, h := fitSize(1920, 1080, 960, 960)
	require.Equal(t, 960, w)
	require.Equal(t, 540, h)

	w, h = fitSize(1080, 1920, 960, 960)
	require.Equal(t, 540, w)
	require.Equal(t, 960, h)

	w, h = fitSize(640, 480, 0, 0)
	require.Equal(t, 640, w)
	require.Equal(t, 480, h)
}

func TestCellSpan(t *testing.T) {
	require.Equal(t, Cells{Cols: 40, Rows: 20}, cellSpan(400, 400, 100, 40, 1000, 800))
	require.Equal(t, Cells{Cols: 41, Rows: 21}, cellSpan(401, 401, 100, 40, 1000, 800))
	require.Equal(t, Cells{1, 1}, cellSpan(400, 400, 100, 40, 0, 0))
}
