package lifecycle_test

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/njyeung/sofa/lifecycle"
	"github.com/njyeung/sofa/session"
	"github.com/stretchr/testify/require"
)

func newScope(guard lifecycle.Guard) *lifecycle.Scope {
	return lifecycle.New(context.Background(), guard, log.NewStdLogger(io.Discard))
}

func TestGoAppliesResult(t *testing.T) {
	s := newScope(nil)
	var applied atomic.Bool

	require.True(t, s.Go(func(ctx context.Context) func() {
		return func() { applied.Store(true) }
	}))
	s.Wait()
	require.True(t, applied.Load())
}

func TestCloseDropsPendingApply(t *testing.T) {
	s := newScope(nil)
	release := make(chan struct{})
	var applied atomic.Bool
	var cancelled atomic.Bool

	s.Go(func(ctx context.Context) func() {
		<-release
		cancelled.Store(ctx.Err() != nil)
		return func() { applied.Store(true) }
	})

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	require.Eventually(t, func() bool { return s.Context().Err() != nil }, timeout, tick)
	close(release)
	<-closed

	require.True(t, cancelled.Load())
	require.False(t, applied.Load())
	require.False(t, s.Active())
}

func TestGoAfterClose(t *testing.T) {
	s := newScope(nil)
	s.Close()

	ran := false
	require.False(t, s.Go(func(ctx context.Context) func() {
		ran = true
		return nil
	}))
	require.False(t, ran)
	require.False(t, s.Do(func() { ran = true }))
	require.False(t, ran)

	s.Close()
}

func TestStaleSessionDropped(t *testing.T) {
	sess := session.New()
	sess.Login("a", session.DomainEmail, session.User{ID: "u1"})
	s := newScope(sess)

	release := make(chan struct{})
	var applied atomic.Bool
	s.Go(func(ctx context.Context) func() {
		<-release
		return func() { applied.Store(true) }
	})

	sess.Logout()
	close(release)
	s.Wait()

	require.False(t, applied.Load())
	require.True(t, s.Active())
}

func TestGoOrReportsDroppedResult(t *testing.T) {
	sess := session.New()
	sess.Login("a", session.DomainEmail, session.User{ID: "u1"})
	s := newScope(sess)

	var applied, dropped atomic.Bool
	s.GoOr(func(ctx context.Context) func() {
		return func() { applied.Store(true) }
	}, func() { dropped.Store(true) })
	s.Wait()
	require.True(t, applied.Load())
	require.False(t, dropped.Load())

	applied.Store(false)
	release := make(chan struct{})
	s.GoOr(func(ctx context.Context) func() {
		<-release
		return func() { applied.Store(true) }
	}, func() { dropped.Store(true) })

	sess.Logout()
	close(release)
	s.Wait()
	require.False(t, applied.Load())
	require.True(t, dropped.Load())
}

func TestApplyCanStartMoreWork(t *testing.T) {
	s := newScope(nil)
	var second atomic.Bool

	s.Go(func(ctx context.Context) func() {
		return func() {
			s.Go(func(ctx context.Context) func() {
				return func() { second.Store(true) }
			})
		}
	})
	s.Wait()
	require.True(t, second.Load())
}
