package tui

import (
	"errors"
	"strings"

	"github.com/njyeung/sofa/backend"
)

func (m Model) viewLogin() string {
	if m.width == 0 || m.height == 0 {
		return "Login required..."
	}

	var statusLine string
	switch {
	case m.loginBusy:
		statusLine = m.spinner.View() + " Signing in..."
	case m.loginErr != nil:
		statusLine = errorStyle.Render(loginMessage(m.loginErr))
	}

	content := []string{
		titleStyle.Render("Sign in to sofa"),
		"",
		m.email.View(),
		m.password.View(),
		"",
		statusLine,
		"",
		navStyle.Render("enter: sign in  tab: next field"),
		navStyle.Render("ctrl+w: sign in with the browser  ctrl+g: continue without an account"),
		navStyle.Render("esc: quit"),
	}

	block := strings.Join(content, "\n")
	return "\n\n" + strings.Repeat(" ", 4) + strings.ReplaceAll(block, "\n", "\n    ")
}

func loginMessage(err error) string {
	if errors.Is(err, backend.ErrLoginFailed) || errors.Is(err, backend.ErrUnauthorized) {
		return "Wrong email or password"
	}
	return errorMessage(err)
}
