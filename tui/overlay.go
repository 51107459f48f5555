package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/njyeung/sofa/dialog"
)

const toastTTL = 3 * time.Second

type toastExpiredMsg struct{ id int }

type toast struct {
	id     int
	notice dialog.Notice
}

// overlay is the dialog drawn over the screen and the notices under it.
// Dialogs queue up; only the first is shown.
type overlay struct {
	queue    []dialog.Dialog
	selected int

	toasts []toast
	nextID int
}

func (o *overlay) push(d dialog.Dialog) {
	o.queue = append(o.queue, d)
	if len(o.queue) == 1 {
		o.selected = defaultButton(d)
	}
}

// defaultButton is the cancel button when there is one
func defaultButton(d dialog.Dialog) int {
	for i, b := range d.Buttons {
		if b.Style == dialog.StyleCancel {
			return i
		}
	}
	return 0
}

func (o *overlay) active() (dialog.Dialog, bool) {
	if len(o.queue) == 0 {
		return dialog.Dialog{}, false
	}
	return o.queue[0], true
}

func (o *overlay) move(delta int) {
	d, ok := o.active()
	if !ok || len(d.Buttons) == 0 {
		return
	}
	n := len(d.Buttons)
	o.selected = ((o.selected+delta)%n + n) % n
}

func (o *overlay) pop() dialog.Dialog {
	d := o.queue[0]
	o.queue = o.queue[1:]
	if len(o.queue) > 0 {
		o.selected = defaultButton(o.queue[0])
	}
	return d
}

// press closes the dialog and runs the selected button. The dialog is gone
// before the action runs, so the action may open another one.
func (o *overlay) press() {
	if len(o.queue) == 0 {
		return
	}
	selected := o.selected
	d := o.pop()
	if selected < len(d.Buttons) {
		d.Press(d.Buttons[selected].Label)
	}
}

// cancel closes the dialog through its cancel button, if it has one
func (o *overlay) cancel() {
	if len(o.queue) == 0 {
		return
	}
	d := o.pop()
	for _, b := range d.Buttons {
		if b.Style == dialog.StyleCancel {
			d.Press(b.Label)
			return
		}
	}
}

func (o *overlay) notify(n dialog.Notice) tea.Cmd {
	o.nextID++
	id := o.nextID
	o.toasts = append(o.toasts, toast{id: id, notice: n})
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return toastExpiredMsg{id}
	})
}

func (o *overlay) expire(id int) {
	for i, t := range o.toasts {
		if t.id == id {
			o.toasts = append(o.toasts[:i:i], o.toasts[i+1:]...)
			return
		}
	}
}

func (o *overlay) viewDialog(width, height int) string {
	d, ok := o.active()
	if !ok {
		return ""
	}
	inner := min(max(width-8, 20), 50)

	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Title))
	if d.Message != "" {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(wrapByWidth(d.Message, inner), "\n"))
	}
	b.WriteString("\n\n")

	buttons := make([]string, len(d.Buttons))
	for i, btn := range d.Buttons {
		style := buttonStyle
		if i == o.selected {
			style = activeButtonStyle
			if btn.Style == dialog.StyleDestructive {
				style = destructiveButtonStyle
			}
		}
		buttons[i] = style.Render(btn.Label)
	}
	b.WriteString(strings.Join(buttons, "  "))

	box := dialogStyle.Width(inner + 4).Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func (o *overlay) viewToasts() string {
	if len(o.toasts) == 0 {
		return ""
	}
	lines := make([]string, len(o.toasts))
	for i, t := range o.toasts {
		text := t.notice.Title
		if t.notice.Message != "" {
			text += ": " + t.notice.Message
		}
		lines[i] = toastStyle.Render(text)
	}
	return strings.Join(lines, "\n")
}
