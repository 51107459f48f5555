package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/njyeung/sofa/dialog"
)

// Messages sent from background goroutines
type (
	changedMsg     struct{}
	confirmMsg     struct{ dialog dialog.Dialog }
	noticeMsg      struct{ notice dialog.Notice }
	dismissMsg     struct{}
	openChannelMsg struct{ id string }
	signedOutMsg   struct{}
)

// events carries messages from the controllers into the update loop. The
// model reads one message at a time with listen and re-arms it after each.
type events struct {
	ch        chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

func newEvents() *events {
	return &events{
		ch:   make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

// send never blocks the caller, which may be the update loop itself.
func (e *events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	default:
		go func() {
			select {
			case e.ch <- msg:
			case <-e.done:
			}
		}()
	}
}

// poke asks for a redraw. Dropped when the queue is full.
func (e *events) poke() {
	select {
	case e.ch <- changedMsg{}:
	default:
	}
}

func (e *events) listen() tea.Msg {
	select {
	case msg := <-e.ch:
		return msg
	case <-e.done:
		return nil
	}
}

func (e *events) close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// presenter shows dialogs and notices through the update loop
type presenter struct{ ev *events }

var _ dialog.Presenter = presenter{}

func (p presenter) Confirm(d dialog.Dialog) { p.ev.send(confirmMsg{d}) }

func (p presenter) Notify(n dialog.Notice) { p.ev.send(noticeMsg{n}) }

// navigator leaves the player screen
type navigator struct{ ev *events }

func (n navigator) Dismiss() { n.ev.send(dismissMsg{}) }

func (n navigator) OpenChannel(id string) { n.ev.send(openChannelMsg{id}) }

func (n navigator) SignedOut() { n.ev.send(signedOutMsg{}) }
