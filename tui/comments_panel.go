package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/comments"
)

// CommentsPanel draws a comment thread with a cursor on one comment
type CommentsPanel struct {
	title string
	// replies hides the per-comment reply counts
	replies bool

	cursor int
	scroll int
}

// NewCommentsPanel creates a panel headed by title
func NewCommentsPanel(title string, replies bool) *CommentsPanel {
	return &CommentsPanel{title: title, replies: replies}
}

// Reset puts the cursor back on the first comment
func (cp *CommentsPanel) Reset() {
	cp.cursor = 0
	cp.scroll = 0
}

// Move moves the cursor by delta within a list of n comments
func (cp *CommentsPanel) Move(delta, n int) {
	cp.cursor = min(max(cp.cursor+delta, 0), max(n-1, 0))
	if cp.cursor < cp.scroll {
		cp.scroll = cp.cursor
	}
}

// Selected returns the comment under the cursor
func (cp *CommentsPanel) Selected(list []backend.Comment) (backend.Comment, bool) {
	if len(list) == 0 {
		return backend.Comment{}, false
	}
	return list[min(cp.cursor, len(list)-1)], true
}

// View renders the thread into height lines of width cells. The cursor
// comment is always on screen.
func (cp *CommentsPanel) View(list []backend.Comment, status comments.Status, width, height int, padding string, now time.Time) string {
	var b strings.Builder

	header := titleStyle.Render(fmt.Sprintf("%s (%d)", cp.title, len(list)))
	b.WriteString(padding + header + "\n\n")
	available := max(height-2, 0)

	switch {
	case status.Err != nil && len(list) == 0:
		b.WriteString(padding + errorStyle.Render("Couldn't load comments") + "\n")
		b.WriteString(padding + navStyle.Render("R: retry") + "\n")
		return b.String()
	case status.Loading && len(list) == 0:
		b.WriteString(padding + captionStyle.Render("Loading...") + "\n")
		return b.String()
	case len(list) == 0:
		b.WriteString(padding + captionStyle.Render("No comments yet") + "\n")
		return b.String()
	}

	cp.cursor = min(cp.cursor, len(list)-1)
	blocks := make([][]string, len(list))
	for i, c := range list {
		blocks[i] = cp.renderComment(c, i == cp.cursor, width, now)
	}

	start := min(cp.scroll, cp.cursor)
	used := 0
	for i := start; i <= cp.cursor; i++ {
		used += len(blocks[i])
	}
	if used > available {
		start = cp.cursor
	}
	cp.scroll = start

	linesUsed := 0
	for i := start; i < len(blocks); i++ {
		if linesUsed+len(blocks[i]) > available && i != start {
			break
		}
		for _, line := range blocks[i] {
			if linesUsed >= available {
				break
			}
			b.WriteString(padding + line + "\n")
			linesUsed++
		}
	}
	return b.String()
}

func (cp *CommentsPanel) renderComment(c backend.Comment, selected bool, width int, now time.Time) []string {
	marker := "  "
	if selected {
		marker = selectedStyle.Render("›") + " "
	}

	name := marker + usernameStyle.Render("@"+c.User.Name())
	if comments.IsLocal(c.ID) {
		name += " " + pendingStyle.Render("sending")
	} else {
		if age := formatAge(c.Created, now); age != "" {
			name += " " + navStyle.Render(age)
		}
		heart := likeCountStyle.Render("♡")
		if c.Liked {
			heart = heartStyle.Render("♥")
		}
		name += "  " + heart + " " + likeCountStyle.Render(fmt.Sprintf("%d", c.Likes))
	}
	lines := []string{name}

	indent := "    "
	textWidth := max(width-len(indent), 1)
	switch c.Kind {
	case backend.KindImage:
		lines = append(lines, indent+captionStyle.Render("[image] "+c.ImageURL))
	case backend.KindVideo:
		lines = append(lines, indent+captionStyle.Render("[video] "+c.VideoURL))
	}
	if c.Text != "" {
		for _, line := range renderText(c.Text, textWidth) {
			lines = append(lines, indent+line)
		}
	}

	if !cp.replies && c.Replies > 0 {
		label := fmt.Sprintf("%d replies", c.Replies)
		if c.Replies == 1 {
			label = "1 reply"
		}
		lines = append(lines, indent+navStyle.Render(label))
	}
	return lines
}

// renderText wraps comment text and highlights a leading @mention
func renderText(text string, width int) []string {
	wrapped := wrapByWidth(text, width)
	out := make([]string, len(wrapped))
	for i, line := range wrapped {
		out[i] = commentTextStyle.Render(line)
	}

	name, _, ok := comments.Mention(text)
	if !ok {
		return out
	}
	mention := "@" + name
	if first := wrapped[0]; strings.HasPrefix(first, mention) {
		out[0] = mentionStyle.Render(mention) + commentTextStyle.Render(first[len(mention):])
	}
	return out
}
