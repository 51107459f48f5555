package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/comments"
	"github.com/njyeung/sofa/dialog"
	"github.com/njyeung/sofa/screen"
)

func (m Model) viewError() string {
	return fmt.Sprintf("\n\n   %s\n\n   Press q to quit.\n", errorStyle.Render(errorMessage(m.err)))
}

// viewFailed is shown when the video could not be fetched
func (m Model) viewFailed(err error) string {
	return fmt.Sprintf("\n\n   %s\n\n   %s\n", errorStyle.Render("Couldn't load this video: "+errorMessage(err)), navStyle.Render("esc: back  q: quit"))
}

// errorMessage is the text shown to the viewer for err
func errorMessage(err error) string {
	switch {
	case errors.Is(err, screen.ErrNotEntitled):
		return "Subscribe to this channel to comment"
	case errors.Is(err, screen.ErrSignedOut), errors.Is(err, comments.ErrSignedOut):
		return "Sign in first"
	case errors.Is(err, comments.ErrEmptyComment):
		return "Write something first"
	case errors.Is(err, screen.ErrNoMedia):
		return "This video has nothing to play"
	case errors.Is(err, backend.ErrNotFound):
		return "Not found"
	case errors.Is(err, backend.ErrWebLoginClosed):
		return "The login window was closed"
	}
	return err.Error()
}

func errorNotice(err error) dialog.Notice {
	return dialog.Notice{Title: errorMessage(err)}
}

// placeBottom writes bottom over the last lines of a body that fills height
func placeBottom(body, bottom string, height int) string {
	if bottom == "" {
		return body
	}
	lines := strings.Split(body, "\n")
	extra := strings.Split(bottom, "\n")
	if height <= 0 {
		return strings.Join(append(lines, extra...), "\n")
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	lines = lines[:height]
	start := max(len(lines)-len(extra), 0)
	lines = append(lines[:start], extra...)
	return strings.Join(lines, "\n")
}
