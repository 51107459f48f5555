package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/njyeung/sofa/engagement"
	"github.com/njyeung/sofa/playback"
)

func (m Model) viewPlayer() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	v := m.screen.Video()
	if v == nil {
		if err := m.screen.Err(); err != nil {
			return m.viewFailed(err)
		}
		return renderLoadingScreen(m.width, m.height, m.spinner.View()+" Loading video...")
	}

	videoWidthChars := max(m.videoCells.Cols, 24)
	videoHeightChars := m.videoCells.Rows

	var b strings.Builder

	// Center the fixed-size video area
	startCol := max((m.width-videoWidthChars)/2, 0)
	padding := strings.Repeat(" ", startCol)
	topPad := max(int(math.Round(float64(m.height-videoHeightChars)/2.0))-1, 0)

	// Layout: topPad + status(1) + video + progress(1) + separator(1) + channel(2) + caption + navbar(3)
	fixedLines := topPad + 1 + videoHeightChars + 1 + 1 + 2 + 3
	maxCaptionLines := max(m.height-fixedLines, 1)

	b.WriteString(strings.Repeat("\n", max(topPad-1, 0)))

	// Status line: heart, like count, play/pause and mute icons
	st := m.screen.Playback().State()
	like := m.screen.Like().State()

	heartIcon := likeCountStyle.Render("♡")
	if like.Liked {
		heartIcon = heartStyle.Render("♥")
	}
	likeCount := likeCountStyle.Render(engagement.FormatCount(like.Count))

	playPauseIcon := "  "
	if st.Paused {
		playPauseIcon = "❚❚"
	}
	muteIcon := " "
	if st.Muted {
		muteIcon = "M"
	}

	left := heartIcon + " " + likeCount
	right := playPauseIcon + "  " + muteIcon
	if st.Duration == 0 && st.Err == nil {
		right = m.spinner.View() + "  " + right
	}
	gap := max(videoWidthChars-lipgloss.Width(left)-lipgloss.Width(right), 1)
	b.WriteString(padding + left + strings.Repeat(" ", gap) + right + "\n")

	// the video is drawn over these lines
	b.WriteString(strings.Repeat("\n", videoHeightChars))

	b.WriteString(padding + renderProgress(st, videoWidthChars) + "\n")

	separator := strings.Repeat("─", videoWidthChars)
	b.WriteString(padding + separator + "\n")

	channel := v.Channel.Name
	if channel == "" {
		channel = "channel"
	}
	channelLine := usernameStyle.Render(channel)
	if m.screen.Entitled() {
		channelLine += " " + subscribedStyle.Render("✓")
	}
	b.WriteString(padding + channelLine + "\n")
	b.WriteString(padding + titleStyle.Render(runewidth.Truncate(v.Title, videoWidthChars, "...")) + "\n")

	var captionLines []string
	if st.Err != nil {
		captionLines = append(captionLines, errorStyle.Render(errorMessage(st.Err)))
	}
	for _, line := range wrapByWidth(v.Content, videoWidthChars) {
		captionLines = append(captionLines, captionStyle.Render(line))
	}
	if len(captionLines) > maxCaptionLines {
		captionLines = captionLines[:maxCaptionLines]
	}
	for _, line := range captionLines {
		b.WriteString(padding + line + "\n")
	}

	// navbar
	b.WriteString("\n")
	b.WriteString(padding + navStyle.Render("space: pause  m: mute  ←/→: skip  0-9: seek") + "\n")
	b.WriteString(padding + navStyle.Render("l: like  c: comments  s: channel  !: report  L: log out  q: quit") + "\n")

	return strings.TrimSuffix(b.String(), "\n")
}

// renderProgress draws the played, buffered and remaining parts of the
// video with the clock after them
func renderProgress(st playback.State, width int) string {
	clock := " " + playback.FormatClock(st.Progress) + " / " + playback.FormatClock(st.Duration)
	barWidth := max(width-runewidth.StringWidth(clock), 4)

	played := int(st.Fraction() * float64(barWidth))
	buffered := played
	if st.Duration > 0 {
		f := min(max(float64(st.Buffered)/float64(st.Duration), 0), 1)
		buffered = max(int(f*float64(barWidth)), played)
	}

	return progressStyle.Render(strings.Repeat("━", played)) +
		bufferedStyle.Render(strings.Repeat("─", buffered-played)) +
		trackStyle.Render(strings.Repeat("─", barWidth-buffered)) +
		navStyle.Render(clock)
}
