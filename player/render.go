package player

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
)

// Terminal escapes around a frame. The synchronized update keeps the
// terminal from showing a half drawn image.
const (
	beginSync     = "\x1b[?2026h"
	endSync       = "\x1b[?2026l"
	saveCursor    = "\x1b7"
	restoreCursor = "\x1b8"
	deleteAll     = "\x1b_Ga=d,d=A,q=2\x1b\\"

	// base64 bytes per graphics command
	chunkSize = 4096
)

// KittyRenderer draws frames with the kitty graphics protocol. Every frame
// replaces the previous image under the same id.
type KittyRenderer struct {
	mu  sync.Mutex
	out io.Writer
	id  int

	shown bool

	// 1-indexed cell of the top left corner; zero means home
	row, col int

	term struct {
		cols, rows int
		// pixels
		width, height int
	}
}

var _ Renderer = (*KittyRenderer)(nil)

func NewKittyRenderer(out io.Writer) *KittyRenderer {
	return &KittyRenderer{out: out, id: VideoImageID}
}

func (r *KittyRenderer) SetOutput(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = w
}

// SetTerminalSize records the terminal size in cells and pixels
func (r *KittyRenderer) SetTerminalSize(cols, rows, widthPx, heightPx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.term.cols, r.term.rows = cols, rows
	r.term.width, r.term.height = widthPx, heightPx
}

func (r *KittyRenderer) SetCellPosition(row, col int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.row, r.col = row, col
}

// CenterVideo places a video of the given pixel size in the middle of the
// terminal, one row above center to leave room for the progress bar
func (r *KittyRenderer) CenterVideo(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.term.width <= 0 || r.term.height <= 0 {
		return
	}
	span := cellSpan(width, height, r.term.cols, r.term.rows, r.term.width, r.term.height)
	r.col = max((r.term.cols-span.Cols)/2+1, 1)
	r.row = max((r.term.rows-span.Rows)/2, 1)
}

func deleteImage(w io.Writer, id int) {
	fmt.Fprintf(w, "\x1b_Ga=d,d=i,i=%d,q=2\x1b\\", id)
}

// RenderFrame draws a packed RGB frame in one write
func (r *KittyRenderer) RenderFrame(rgb []byte, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(beginSync + saveCursor)
	if r.shown {
		deleteImage(&buf, r.id)
	}
	if r.row > 0 && r.col > 0 {
		fmt.Fprintf(&buf, "\x1b[%d;%dH", r.row, r.col)
	} else {
		buf.WriteString("\x1b[H")
	}
	writeImage(&buf, rgb, 24, width, height, r.id)
	buf.WriteString(restoreCursor + endSync)

	r.shown = true
	_, err := r.out.Write(buf.Bytes())
	return err
}

// writeImage appends a transmit-and-display command for one image, split in
// chunks:
//
//	ESC _G a=T,f=<24|32>,s=<w>,v=<h>,i=<id>,q=2,m=<more> ; <base64> ESC \
//	ESC _G m=<more> ; <base64> ESC \
func writeImage(buf *bytes.Buffer, data []byte, format, width, height, id int) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(encoded); i += chunkSize {
		end := min(i+chunkSize, len(encoded))
		more := 0
		if end < len(encoded) {
			more = 1
		}
		if i == 0 {
			fmt.Fprintf(buf, "\x1b_Ga=T,f=%d,s=%d,v=%d,i=%d,q=2,m=%d;%s\x1b\\",
				format, width, height, id, more, encoded[i:end])
		} else {
			fmt.Fprintf(buf, "\x1b_Gm=%d;%s\x1b\\", more, encoded[i:end])
		}
	}
}

// Hide deletes the video image, leaving the rest of the screen alone
func (r *KittyRenderer) Hide() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.shown {
		return nil
	}
	r.shown = false

	var buf bytes.Buffer
	deleteImage(&buf, r.id)
	_, err := r.out.Write(buf.Bytes())
	return err
}

// Clear deletes every kitty image on screen
func (r *KittyRenderer) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = false
	_, err := io.WriteString(r.out, deleteAll)
	return err
}
