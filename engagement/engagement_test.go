package engagement_test

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/dialog/dialogtest"
	"github.com/njyeung/sofa/engagement"
	"github.com/njyeung/sofa/lifecycle"
	"github.com/njyeung/sofa/session"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var errOffline = errors.New("offline")

// fakeLiker mirrors a server holding one like for the viewer.
type fakeLiker struct {
	mu    sync.Mutex
	calls []bool
	liked bool
	count int
	fail  bool
	gate  chan struct{}
	delay func() time.Duration
}

func (f *fakeLiker) Like(ctx context.Context, _ backend.Ref) error {
	return f.call(ctx, true)
}

func (f *fakeLiker) Unlike(ctx context.Context, _ backend.Ref) error {
	return f.call(ctx, false)
}

func (f *fakeLiker) call(ctx context.Context, liked bool) error {
	f.mu.Lock()
	f.calls = append(f.calls, liked)
	gate, delay := f.gate, f.delay
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay != nil {
		time.Sleep(delay())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errOffline
	}
	if f.liked != liked {
		f.liked = liked
		if liked {
			f.count++
		} else {
			f.count--
		}
	}
	return nil
}

func (f *fakeLiker) Calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.calls...)
}

func (f *fakeLiker) Server() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.liked, f.count
}

type history struct {
	mu     sync.Mutex
	states []engagement.State
}

func (h *history) record(s engagement.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, s)
}

func (h *history) counts() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, 0, len(h.states))
	for _, s := range h.states {
		out = append(out, s.Count)
	}
	return out
}

func newController(t *testing.T, api *fakeLiker, debounce time.Duration, liked bool, count int) (*engagement.Controller, *dialogtest.Recorder, *history) {
	t.Helper()
	scope := lifecycle.New(context.Background(), nil, log.NewStdLogger(io.Discard))
	t.Cleanup(scope.Close)

	rec := &dialogtest.Recorder{}
	h := &history{}
	c := engagement.New(engagement.Config{
		Scope:    scope,
		API:      api,
		Ref:      backend.VideoRef("42"),
		Notifier: rec,
		Debounce: debounce,
		OnChange: h.record,
	}, liked, count)
	return c, rec, h
}

func settled(c *engagement.Controller) func() bool {
	return func() bool { return !c.State().Pending }
}

func TestPressShowsToggleAtOnce(t *testing.T) {
	api := &fakeLiker{count: 10, gate: make(chan struct{})}
	c, _, _ := newController(t, api, -1, false, 10)

	c.Press()
	st := c.State()
	require.True(t, st.Liked)
	require.Equal(t, 11, st.Count)
	require.True(t, st.Pending)

	close(api.gate)
	require.Eventually(t, settled(c), timeout, tick)

	st = c.State()
	require.True(t, st.Liked)
	require.Equal(t, 11, st.Count)
	require.Equal(t, []bool{true}, api.Calls())
}

func TestPressesWhileInFlightAreCoalesced(t *testing.T) {
	api := &fakeLiker{count: 10, gate: make(chan struct{})}
	c, _, _ := newController(t, api, -1, false, 10)

	c.Press()
	require.Eventually(t, func() bool { return len(api.Calls()) == 1 }, timeout, tick)

	c.Press()
	c.Press()
	st := c.State()
	require.True(t, st.Liked)
	require.Equal(t, 11, st.Count)

	close(api.gate)
	require.Eventually(t, settled(c), timeout, tick)
	require.Equal(t, []bool{true}, api.Calls())
}

func TestFollowUpSentForLastIntent(t *testing.T) {
	api := &fakeLiker{count: 10, gate: make(chan struct{})}
	c, _, _ := newController(t, api, -1, false, 10)

	c.Press()
	require.Eventually(t, func() bool { return len(api.Calls()) == 1 }, timeout, tick)
	c.Press()
	require.Equal(t, 10, c.State().Count)

	api.gate <- struct{}{}
	require.Eventually(t, func() bool { return len(api.Calls()) == 2 }, timeout, tick)
	api.gate <- struct{}{}
	require.Eventually(t, settled(c), timeout, tick)

	require.Equal(t, []bool{true, false}, api.Calls())
	st := c.State()
	require.False(t, st.Liked)
	require.Equal(t, 10, st.Count)
}

func TestDoubleTapWithinDebounceSendsNothing(t *testing.T) {
	api := &fakeLiker{count: 10, fail: true}
	c, rec, h := newController(t, api, 30*time.Millisecond, false, 10)

	c.Press()
	c.Press()
	require.Eventually(t, settled(c), timeout, tick)

	require.Empty(t, api.Calls())
	require.Empty(t, rec.Notices())
	st := c.State()
	require.False(t, st.Liked)
	require.Equal(t, 10, st.Count)
	for _, n := range h.counts() {
		require.Contains(t, []int{10, 11}, n)
	}
}

func TestOfflineDoubleTapRevertsToConfirmed(t *testing.T) {
	api := &fakeLiker{count: 10, fail: true, gate: make(chan struct{})}
	c, rec, h := newController(t, api, -1, false, 10)

	c.Press()
	require.Eventually(t, func() bool { return len(api.Calls()) == 1 }, timeout, tick)
	c.Press()

	close(api.gate)
	require.Eventually(t, settled(c), timeout, tick)

	require.Equal(t, []bool{true}, api.Calls())
	st := c.State()
	require.False(t, st.Liked)
	require.Equal(t, 10, st.Count)
	for _, n := range h.counts() {
		require.Contains(t, []int{10, 11}, n)
	}
	require.Len(t, rec.Notices(), 1)
}

func TestFailureRollsBackWithNotice(t *testing.T) {
	api := &fakeLiker{liked: true, count: 7, fail: true}
	c, rec, _ := newController(t, api, -1, true, 7)

	c.Press()
	require.Eventually(t, settled(c), timeout, tick)

	st := c.State()
	require.True(t, st.Liked)
	require.Equal(t, 7, st.Count)
	require.Len(t, rec.Notices(), 1)
	require.Equal(t, engagement.FailureNotice, rec.Notices()[0])
}

func TestResetIgnoredWhilePending(t *testing.T) {
	api := &fakeLiker{count: 10, gate: make(chan struct{})}
	c, _, _ := newController(t, api, -1, false, 10)

	c.Press()
	c.Reset(false, 10)
	require.True(t, c.State().Liked)

	close(api.gate)
	require.Eventually(t, settled(c), timeout, tick)

	c.Reset(false, 12)
	st := c.State()
	require.False(t, st.Liked)
	require.Equal(t, 12, st.Count)
}

func TestSessionChangeMidFlightClearsPending(t *testing.T) {
	sess := session.New()
	sess.Login("a", session.DomainEmail, session.User{ID: "u1"})
	scope := lifecycle.New(context.Background(), sess, log.NewStdLogger(io.Discard))
	t.Cleanup(scope.Close)

	api := &fakeLiker{count: 10, gate: make(chan struct{})}
	c := engagement.New(engagement.Config{Scope: scope, API: api, Ref: backend.VideoRef("42"), Debounce: -1}, false, 10)

	c.Press()
	require.True(t, c.State().Pending)
	require.Eventually(t, func() bool { return len(api.Calls()) == 1 }, timeout, tick)

	sess.Logout()
	close(api.gate)
	scope.Wait()
	require.False(t, c.State().Pending)

	c.Reset(true, 11)
	st := c.State()
	require.True(t, st.Liked)
	require.Equal(t, 11, st.Count)

	c.Press()
	require.Eventually(t, func() bool { return len(api.Calls()) == 2 }, timeout, tick)
	require.Eventually(t, settled(c), timeout, tick)
}

func TestDisplayedCountConvergesToServer(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		api := &fakeLiker{count: 100, delay: func() time.Duration {
			return time.Duration(rand.Intn(3)) * time.Millisecond
		}}
		c, _, h := newController(t, api, -1, false, 100)

		presses := 1 + rng.Intn(8)
		for i := 0; i < presses; i++ {
			c.Press()
			if rng.Intn(2) == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		require.Eventually(t, settled(c), timeout, tick)

		liked, count := api.Server()
		st := c.State()
		require.Equal(t, liked, st.Liked, "round %d", round)
		require.Equal(t, count, st.Count, "round %d", round)
		require.Equal(t, presses%2 == 1, st.Liked, "round %d", round)
		for _, n := range h.counts() {
			require.Contains(t, []int{100, 101}, n, "round %d", round)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1204, "1.2K"},
		{50321, "50.3K"},
		{3400000, "3.4M"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, engagement.FormatCount(tt.in))
	}
}
