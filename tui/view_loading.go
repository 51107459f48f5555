package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) viewLoading() string {
	if m.width == 0 || m.height == 0 {
		return fmt.Sprintf("\n\n   %s %s\n\n", m.spinner.View(), m.status)
	}

	status := m.status
	if status != "" {
		status = m.spinner.View() + " " + status
	}
	return renderLoadingScreen(m.width, m.height, status)
}

func renderLoadingScreen(width, height int, status string) string {
	logo := []string{
		" ____   ___  _____  _    ",
		"/ ___| / _ \\|  ___|/ \\   ",
		"\\___ \\| | | | |_  / _ \\  ",
		" ___) | |_| |  _|/ ___ \\ ",
		"|____/ \\___/|_| /_/   \\_\\",
	}

	blockHeight := len(logo) + 2
	startRow := (height - blockHeight) / 2

	var b strings.Builder
	for y := range height {
		var line string
		switch {
		case y >= startRow && y < startRow+len(logo):
			line = center(titleStyle.Render(logo[y-startRow]), width)
		case y == startRow+len(logo)+1 && status != "":
			line = center(status, width)
		}
		b.WriteString(line)
		if y < height-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// center pads s on the left to center it in width cells
func center(s string, width int) string {
	pad := max(width-lipgloss.Width(s), 0)
	return strings.Repeat(" ", pad/2) + s
}
