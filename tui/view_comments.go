package tui

import (
	"strings"

	"github.com/njyeung/sofa/slide"
)

func (m Model) viewComments() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	width := max(min(m.width-4, 64), 20)
	padding := strings.Repeat(" ", max((m.width-width)/2, 0))

	// composer(3) + hint(2)
	panelHeight := max(m.height-5-1, 3)

	thread := m.screen.Thread()
	panel := m.panel()

	var b strings.Builder
	b.WriteString("\n")
	body := panel.View(thread.Comments(), thread.Status(), width, panelHeight, padding, m.now())
	b.WriteString(body)
	b.WriteString(strings.Repeat("\n", max(panelHeight+2-strings.Count(body, "\n"), 0)))

	box := m.screen.Composer()
	if m.screen.CommentingEnabled() {
		if t := box.Target(); t != nil {
			b.WriteString(padding + navStyle.Render("Replying to ") + mentionStyle.Render("@"+t.Name) + "\n")
		} else {
			b.WriteString("\n")
		}
		b.WriteString(padding + m.composer.View() + "\n")
		if err := box.Err(); err != nil {
			b.WriteString(padding + errorStyle.Render(errorMessage(err)) + "\n")
		} else {
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\n" + padding + captionStyle.Render("Subscribe to this channel to comment") + "\n\n")
	}

	var hint string
	switch {
	case m.typing:
		hint = "enter: send  esc: done  /attach <file>: post media"
	case !m.screen.Can(slide.OpenReplies):
		hint = "j/k: move  i: write  r: reply  l: like  !: report  esc: back"
	default:
		hint = "j/k: move  enter: replies  i: write  r: reply  l: like  !: report  esc: back"
	}
	b.WriteString(padding + navStyle.Render(hint))
	return b.String()
}
