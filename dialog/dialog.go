// Package dialog describes confirmation prompts and transient notices. The
// terminal UI decides how to draw them.
package dialog

// Style hints how a button is drawn.
type Style int

const (
	StyleDefault Style = iota
	StyleCancel
	StyleDestructive
)

// Button is one choice in a Dialog. Action may be nil.
type Button struct {
	Label  string
	Style  Style
	Action func()
}

// Dialog asks the user to pick one of its buttons.
type Dialog struct {
	Title   string
	Message string
	Buttons []Button
}

// Press runs the action of the button with the given label. It reports
// whether such a button exists.
func (d Dialog) Press(label string) bool {
	for _, b := range d.Buttons {
		if b.Label == label {
			if b.Action != nil {
				b.Action()
			}
			return true
		}
	}
	return false
}

// Notice is a short message that dismisses itself.
type Notice struct {
	Title   string
	Message string
}

// Notifier shows notices.
type Notifier interface {
	Notify(Notice)
}

// Presenter shows dialogs and notices.
type Presenter interface {
	Notifier
	Confirm(Dialog)
}

// Confirmation builds the common Cancel/confirm dialog.
func Confirmation(title, message, confirm string, onConfirm func()) Dialog {
	return Dialog{
		Title:   title,
		Message: message,
		Buttons: []Button{
			{Label: "Cancel", Style: StyleCancel},
			{Label: confirm, Style: StyleDestructive, Action: onConfirm},
		},
	}
}
