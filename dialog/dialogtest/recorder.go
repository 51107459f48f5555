// Package dialogtest records dialogs and notices for tests.
package dialogtest

import (
	"sync"

	"github.com/njyeung/sofa/dialog"
)

// Recorder implements dialog.Presenter and keeps everything it is shown.
type Recorder struct {
	mu      sync.Mutex
	dialogs []dialog.Dialog
	notices []dialog.Notice
}

func (r *Recorder) Confirm(d dialog.Dialog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialogs = append(r.dialogs, d)
}

func (r *Recorder) Notify(n dialog.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Dialogs returns the dialogs shown so far.
func (r *Recorder) Dialogs() []dialog.Dialog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dialog.Dialog(nil), r.dialogs...)
}

// Notices returns the notices shown so far.
func (r *Recorder) Notices() []dialog.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dialog.Notice(nil), r.notices...)
}

// Last returns the most recent dialog.
func (r *Recorder) Last() (dialog.Dialog, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.dialogs) == 0 {
		return dialog.Dialog{}, false
	}
	return r.dialogs[len(r.dialogs)-1], true
}
