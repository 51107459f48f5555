// Package engagement keeps a like button consistent with the server while
// showing every press immediately.
//
// Presses flip the displayed state at once. Presses that arrive within the
// debounce window, or while a request is in flight, are folded into the last
// intended state, so at most one request is outstanding and at most one
// follow-up is sent when it settles. A failed request resets the display to
// the last state the server confirmed.
package engagement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/dialog"
	"github.com/njyeung/sofa/lifecycle"
	"github.com/njyeung/sofa/telemetry"
)

// DefaultDebounce is how long presses are collected before a request is sent.
const DefaultDebounce = 300 * time.Millisecond

// FailureNotice is shown when a like could not be saved.
var FailureNotice = dialog.Notice{
	Title:   "Couldn't update like",
	Message: "Check your connection and try again.",
}

// Liker is the part of the API the controller needs.
type Liker interface {
	Like(ctx context.Context, ref backend.Ref) error
	Unlike(ctx context.Context, ref backend.Ref) error
}

// State is what the UI shows.
type State struct {
	Liked   bool
	Count   int
	Pending bool
}

// Config wires a Controller.
type Config struct {
	Scope    *lifecycle.Scope
	API      Liker
	Ref      backend.Ref
	Notifier dialog.Notifier
	Reporter *telemetry.Reporter
	// Debounce defaults to DefaultDebounce. A negative value sends on the
	// first press without waiting.
	Debounce time.Duration
	OnChange func(State)
}

// Controller is one like button.
type Controller struct {
	scope    *lifecycle.Scope
	api      Liker
	ref      backend.Ref
	notifier dialog.Notifier
	reporter *telemetry.Reporter
	debounce time.Duration
	onChange func(State)

	mu             sync.Mutex
	confirmedLiked bool
	confirmedCount int
	desired        bool
	inFlight       bool
	timer          *time.Timer
}

// New returns a controller showing the server state liked/count.
func New(cfg Config, liked bool, count int) *Controller {
	d := cfg.Debounce
	if d == 0 {
		d = DefaultDebounce
	}
	if d < 0 {
		d = 0
	}
	return &Controller{
		scope:          cfg.Scope,
		api:            cfg.API,
		ref:            cfg.Ref,
		notifier:       cfg.Notifier,
		reporter:       cfg.Reporter,
		debounce:       d,
		onChange:       cfg.OnChange,
		confirmedLiked: liked,
		confirmedCount: count,
		desired:        liked,
	}
}

// State returns the displayed state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	count := c.confirmedCount
	switch {
	case c.desired && !c.confirmedLiked:
		count++
	case !c.desired && c.confirmedLiked:
		count--
	}
	return State{
		Liked:   c.desired,
		Count:   count,
		Pending: c.inFlight || c.timer != nil,
	}
}

// Reset replaces the server state, e.g. after a refetch. It is ignored while
// a press is pending so a stale fetch cannot undo it.
func (c *Controller) Reset(liked bool, count int) {
	c.mu.Lock()
	if c.inFlight || c.timer != nil {
		c.mu.Unlock()
		return
	}
	c.confirmedLiked = liked
	c.confirmedCount = count
	c.desired = liked
	st := c.stateLocked()
	c.mu.Unlock()
	c.emit(st)
}

// Press toggles the like.
func (c *Controller) Press() {
	c.mu.Lock()
	c.desired = !c.desired
	flushNow := false
	if !c.inFlight && c.timer == nil {
		if c.debounce == 0 {
			flushNow = true
		} else {
			c.timer = time.AfterFunc(c.debounce, c.flush)
		}
	}
	st := c.stateLocked()
	c.mu.Unlock()

	c.emit(st)
	if flushNow {
		c.flush()
	}
}

// flush sends the desired state if it differs from the confirmed one.
func (c *Controller) flush() {
	c.mu.Lock()
	c.timer = nil
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	if c.desired == c.confirmedLiked {
		st := c.stateLocked()
		c.mu.Unlock()
		c.emit(st)
		return
	}
	c.inFlight = true
	target := c.desired
	c.mu.Unlock()

	c.send(target)
}

func (c *Controller) send(target bool) {
	started := c.scope.GoOr(func(ctx context.Context) func() {
		var err error
		if target {
			err = c.api.Like(ctx, c.ref)
		} else {
			err = c.api.Unlike(ctx, c.ref)
		}
		return func() { c.settle(ctx, target, err) }
	}, c.abandon)
	if !started {
		c.abandon()
	}
}

// abandon forgets a request whose result will never be applied. The press
// is dropped along with it.
func (c *Controller) abandon() {
	c.mu.Lock()
	c.inFlight = false
	c.desired = c.confirmedLiked
	c.mu.Unlock()
}

func (c *Controller) settle(ctx context.Context, target bool, err error) {
	c.mu.Lock()
	if err == nil {
		if target != c.confirmedLiked {
			if target {
				c.confirmedCount++
			} else {
				c.confirmedCount--
			}
		}
		c.confirmedLiked = target
	} else {
		c.desired = c.confirmedLiked
	}
	resend := c.desired != c.confirmedLiked
	next := c.desired
	c.inFlight = resend
	st := c.stateLocked()
	c.mu.Unlock()

	c.emit(st)
	if err != nil {
		c.reporter.RecordRollback(ctx, string(c.ref.Type)+"_like", err)
		if c.notifier != nil {
			c.notifier.Notify(FailureNotice)
		}
	}
	if resend {
		c.send(next)
	}
}

func (c *Controller) emit(st State) {
	if c.onChange != nil {
		c.onChange(st)
	}
}

// FormatCount formats a like count with K/M suffixes
func FormatCount(count int) string {
	if count >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(count)/1000000)
	}
	if count >= 1000 {
		return fmt.Sprintf("%.1fK", float64(count)/1000)
	}
	return fmt.Sprintf("%d", count)
}
