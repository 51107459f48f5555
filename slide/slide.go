// Package slide is the lateral view router of the player screen: three views
// side by side, one visible at a time.
package slide

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned for a move the router does not allow.
var ErrInvalidTransition = errors.New("slide: invalid transition")

// View is one position on the strip.
type View int

const (
	Player View = iota
	Comments
	Replies
)

func (v View) String() string {
	switch v {
	case Player:
		return "player"
	case Comments:
		return "comments"
	case Replies:
		return "replies"
	}
	return fmt.Sprintf("view(%d)", int(v))
}

// Event drives the router.
type Event int

const (
	OpenComments Event = iota
	OpenReplies
	Back
)

func (e Event) String() string {
	switch e {
	case OpenComments:
		return "open-comments"
	case OpenReplies:
		return "open-replies"
	case Back:
		return "back"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Dismiss is the target of Back from Player: leave the screen.
const Dismiss View = -1

type transition struct {
	from View
	on   Event
}

var table = map[transition]View{
	{Player, OpenComments}: Comments,
	{Comments, OpenReplies}: Replies,
	{Replies, Back}:        Comments,
	{Comments, Back}:       Player,
	{Player, Back}:         Dismiss,
}

// Router holds the current view and the active reply thread.
type Router struct {
	mu       sync.RWMutex
	view     View
	threadID string
	onChange func(View)
}

// NewRouter starts on Player. onChange, if set, runs after every accepted
// transition that stays on the screen.
func NewRouter(onChange func(View)) *Router {
	return &Router{view: Player, onChange: onChange}
}

// View returns the visible view.
func (r *Router) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

// ThreadID is the parent comment of the replies view. Empty until replies
// have been opened.
func (r *Router) ThreadID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threadID
}

// Can reports whether ev is accepted from the current view.
func (r *Router) Can(ev Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := table[transition{r.view, ev}]
	return ok
}

// Fire applies ev and returns the new view. A rejected event leaves the
// router unchanged. Back from Player returns Dismiss and leaves the router on
// Player.
func (r *Router) Fire(ev Event) (View, error) {
	return r.fire(ev, "")
}

func (r *Router) fire(ev Event, threadID string) (View, error) {
	r.mu.Lock()
	to, ok := table[transition{r.view, ev}]
	if !ok {
		from := r.view
		r.mu.Unlock()
		return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
	}
	if to == Dismiss {
		r.mu.Unlock()
		return Dismiss, nil
	}
	r.view = to
	if ev == OpenReplies {
		r.threadID = threadID
	}
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(to)
	}
	return to, nil
}

// OpenComments slides from the player to the comments.
func (r *Router) OpenComments() error {
	_, err := r.Fire(OpenComments)
	return err
}

// OpenReplies slides from the comments to the replies of commentID.
func (r *Router) OpenReplies(commentID string) error {
	if commentID == "" {
		return fmt.Errorf("%w: empty thread id", ErrInvalidTransition)
	}
	_, err := r.fire(OpenReplies, commentID)
	return err
}

// Back steps one level toward the player. It reports true when the screen
// should be dismissed.
func (r *Router) Back() (dismiss bool) {
	to, _ := r.Fire(Back)
	return to == Dismiss
}

// ResetThread forgets the reply thread, e.g. when the video changes.
func (r *Router) ResetThread() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threadID = ""
	if r.view == Replies {
		r.view = Comments
	}
}

// Offset is the horizontal offset of the strip that shows the current view
// in a viewport width wide.
func (r *Router) Offset(width int) int {
	return Offset(r.View(), width)
}

// Offset is the strip offset that shows v.
func Offset(v View, width int) int {
	if v < Player {
		return 0
	}
	return -int(v) * width
}
