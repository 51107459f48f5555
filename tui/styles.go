package tui

import "github.com/charmbracelet/lipgloss"

var (
	usernameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	mentionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	captionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	commentTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	navStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	heartStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	subscribedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	likeCountStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // gray

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	bufferedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	trackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 2)

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252"))

	activeButtonStyle = buttonStyle.
				Background(lipgloss.Color("205")).
				Foreground(lipgloss.Color("0"))

	destructiveButtonStyle = activeButtonStyle.
				Background(lipgloss.Color("196"))

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)
)
