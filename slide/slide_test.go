package slide_test

import (
	"testing"

	"github.com/njyeung/sofa/slide"
	"github.com/stretchr/testify/require"
)

func TestRouterChain(t *testing.T) {
	var seen []slide.View
	r := slide.NewRouter(func(v slide.View) { seen = append(seen, v) })
	require.Equal(t, slide.Player, r.View())

	require.NoError(t, r.OpenComments())
	require.NoError(t, r.OpenReplies("c1"))
	require.Equal(t, slide.Replies, r.View())
	require.Equal(t, "c1", r.ThreadID())

	require.False(t, r.Back())
	require.Equal(t, slide.Comments, r.View())
	require.False(t, r.Back())
	require.Equal(t, slide.Player, r.View())
	require.True(t, r.Back())
	require.Equal(t, slide.Player, r.View())

	require.Equal(t, []slide.View{slide.Comments, slide.Replies, slide.Comments, slide.Player}, seen)
}

func TestRouterRejectsSkips(t *testing.T) {
	r := slide.NewRouter(nil)

	err := r.OpenReplies("c1")
	require.ErrorIs(t, err, slide.ErrInvalidTransition)
	require.Equal(t, slide.Player, r.View())
	require.Empty(t, r.ThreadID())

	require.NoError(t, r.OpenComments())
	require.ErrorIs(t, r.OpenComments(), slide.ErrInvalidTransition)
	require.ErrorIs(t, r.OpenReplies(""), slide.ErrInvalidTransition)
	require.Equal(t, slide.Comments, r.View())
}

func TestNoEventSkipsALevel(t *testing.T) {
	events := []slide.Event{slide.OpenComments, slide.OpenReplies, slide.Back}
	level := func(v slide.View) int { return int(v) }

	// Walk every event sequence up to length 6 and check each accepted step
	// moves exactly one level.
	var walk func(r *slide.Router, depth int)
	walk = func(r *slide.Router, depth int) {
		if depth == 0 {
			return
		}
		for _, ev := range events {
			from := r.View()
			clone := slide.NewRouter(nil)
			replay(t, clone, from)

			can := clone.Can(ev)
			to, err := clone.Fire(ev)
			require.Equal(t, can, err == nil, "%s on %s", ev, from)
			if err != nil {
				require.Equal(t, from, clone.View())
				continue
			}
			if to == slide.Dismiss {
				require.Equal(t, slide.Player, from)
				continue
			}
			diff := level(to) - level(from)
			require.Contains(t, []int{-1, 1}, diff, "%s on %s", ev, from)
			walk(clone, depth-1)
		}
	}
	walk(slide.NewRouter(nil), 6)
}

func replay(t *testing.T, r *slide.Router, v slide.View) {
	t.Helper()
	if v >= slide.Comments {
		require.NoError(t, r.OpenComments())
	}
	if v == slide.Replies {
		require.NoError(t, r.OpenReplies("c1"))
	}
}

func TestOffset(t *testing.T) {
	require.Equal(t, 0, slide.Offset(slide.Player, 80))
	require.Equal(t, -80, slide.Offset(slide.Comments, 80))
	require.Equal(t, -160, slide.Offset(slide.Replies, 80))

	r := slide.NewRouter(nil)
	require.NoError(t, r.OpenComments())
	require.Equal(t, -100, r.Offset(100))
}

func TestResetThread(t *testing.T) {
	r := slide.NewRouter(nil)
	require.NoError(t, r.OpenComments())
	require.NoError(t, r.OpenReplies("c9"))

	r.ResetThread()
	require.Equal(t, slide.Comments, r.View())
	require.Empty(t, r.ThreadID())
}
