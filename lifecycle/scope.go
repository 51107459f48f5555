// Package lifecycle ties background work to the lifetime of a screen.
package lifecycle

import (
	"context"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/njyeung/sofa/session"
)

// Guard reports whether results captured under an earlier session may still
// be applied. *session.Context satisfies it.
type Guard interface {
	Stamp() session.Stamp
	Valid(session.Stamp) bool
}

// Work runs off the UI loop. It returns a closure that applies its result,
// or nil when there is nothing to apply.
type Work func(ctx context.Context) (apply func())

// Scope owns a cancellation context and every goroutine started through Go.
// Apply closures run one at a time and never after Close returns.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	guard  Guard
	log    *log.Helper

	goMu   sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	applyMu     sync.Mutex
	applyClosed bool
}

// New creates a scope. guard may be nil when results do not depend on the
// session.
func New(parent context.Context, guard Guard, logger log.Logger) *Scope {
	if logger == nil {
		logger = log.DefaultLogger
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scope{
		ctx:    ctx,
		cancel: cancel,
		guard:  guard,
		log:    log.NewHelper(log.With(logger, "module", "lifecycle")),
	}
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Active reports whether the scope is still open.
func (s *Scope) Active() bool {
	s.goMu.RLock()
	defer s.goMu.RUnlock()
	return !s.closed
}

// Go runs work in a new goroutine. It returns false without running anything
// if the scope is already closed.
func (s *Scope) Go(work Work) bool {
	return s.GoOr(work, nil)
}

// GoOr is Go with a callback for a result that is not applied because the
// scope closed or the session changed meanwhile. dropped runs on the work
// goroutine and must not touch the UI.
func (s *Scope) GoOr(work Work, dropped func()) bool {
	s.goMu.RLock()
	if s.closed {
		s.goMu.RUnlock()
		return false
	}
	s.wg.Add(1)
	s.goMu.RUnlock()

	var stamp session.Stamp
	if s.guard != nil {
		stamp = s.guard.Stamp()
	}

	go func() {
		defer s.wg.Done()

		apply := work(s.ctx)
		if apply == nil {
			return
		}
		if !s.run(stamp, apply) && dropped != nil {
			dropped()
		}
	}()
	return true
}

// Do applies fn under the same rules as a Work result, from the caller's
// goroutine.
func (s *Scope) Do(fn func()) bool {
	var stamp session.Stamp
	if s.guard != nil {
		stamp = s.guard.Stamp()
	}
	return s.run(stamp, fn)
}

func (s *Scope) run(stamp session.Stamp, apply func()) bool {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if s.applyClosed || s.ctx.Err() != nil {
		s.log.Debug("dropping result: scope closed")
		return false
	}
	if s.guard != nil && !s.guard.Valid(stamp) {
		s.log.Debug("dropping result: session changed")
		return false
	}
	apply()
	return true
}

// Wait blocks until every goroutine started so far has finished.
func (s *Scope) Wait() {
	s.wg.Wait()
}

// Close cancels outstanding work and waits for it to return. Must not be
// called from inside an apply closure.
func (s *Scope) Close() {
	s.goMu.Lock()
	if s.closed {
		s.goMu.Unlock()
		return
	}
	s.closed = true
	s.goMu.Unlock()

	s.applyMu.Lock()
	s.applyClosed = true
	s.applyMu.Unlock()

	s.cancel()
	s.wg.Wait()
}
