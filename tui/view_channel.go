package tui

import (
	"fmt"
	"strings"

	"github.com/njyeung/sofa/engagement"
)

func (m Model) viewChannel() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	width := max(min(m.width-8, 60), 20)
	padding := strings.Repeat(" ", 4)

	var lines []string
	switch {
	case m.channelErr != nil:
		lines = append(lines,
			errorStyle.Render("Couldn't load this channel: "+errorMessage(m.channelErr)),
			"",
			navStyle.Render("R: retry  esc: back  q: quit"),
		)
	case m.channel == nil:
		lines = append(lines, m.spinner.View()+" Loading channel...")
	default:
		ch := m.channel
		name := titleStyle.Render(ch.Name)
		if ch.Subscribed {
			name += " " + subscribedStyle.Render("✓ subscribed")
		}
		lines = append(lines, name, "")
		lines = append(lines, likeCountStyle.Render(engagement.FormatCount(ch.Subscribers)+" subscribers"))
		if ch.Price > 0 {
			lines = append(lines, likeCountStyle.Render(fmt.Sprintf("$%.2f / month", ch.Price)))
		}
		lines = append(lines, "")
		for _, line := range wrapByWidth(ch.Description, width) {
			lines = append(lines, captionStyle.Render(line))
		}
		lines = append(lines, "")
		if !ch.Subscribed {
			lines = append(lines, "Subscribe from your account on the web to unlock comments.", "")
		}
		lines = append(lines, navStyle.Render("esc: back  q: quit"))
	}

	return "\n\n" + padding + strings.Join(lines, "\n"+padding)
}
