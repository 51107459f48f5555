package player

import (
	"os"

	"golang.org/x/sys/unix"
)

// Cells is a size in terminal character cells.
type Cells struct {
	Cols int
	Rows int
}

// FitCells returns the cell footprint of a video of the given pixel size when
// scaled to fit maxW x maxH pixels. On a terminal that does not report pixel
// sizes it returns a single cell.
func FitCells(srcW, srcH, maxW, maxH int) Cells {
	cols, rows, termW, termH, err := GetTerminalSize()
	if err != nil {
		return Cells{1, 1}
	}
	w, h := fitSize(srcW, srcH, maxW, maxH)
	return cellSpan(w, h, cols, rows, termW, termH)
}

// cellSpan converts a pixel size to cells, rounding up
func cellSpan(w, h, cols, rows, termW, termH int) Cells {
	if cols <= 0 || rows <= 0 || termW < cols || termH < rows {
		return Cells{1, 1}
	}
	cellW := termW / cols
	cellH := termH / rows
	return Cells{
		Cols: (w + cellW - 1) / cellW,
		Rows: (h + cellH - 1) / cellH,
	}
}

// PixelsFor is the pixel area covered by c, or zero when the terminal does
// not report pixel sizes.
func PixelsFor(c Cells) (int, int) {
	cols, rows, termW, termH, err := GetTerminalSize()
	if err != nil || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	return c.Cols * (termW / cols), c.Rows * (termH / rows)
}

// GetTerminalSize returns terminal dimensions (cols, rows, widthPx, heightPx)
func GetTerminalSize() (cols, rows, widthPx, heightPx int, err error) {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return int(ws.Col), int(ws.Row), int(ws.Xpixel), int(ws.Ypixel), nil
}
