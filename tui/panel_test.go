package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/comments"
	"github.com/njyeung/sofa/dialog"
)

func TestWrapByWidth(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"fits", "hello there", 20, []string{"hello there"}},
		{"breaks on spaces", "one two three four", 9, []string{"one two", "three", "four"}},
		{"cuts long words", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"keeps newlines", "a\nb", 10, []string{"a", "b"}},
		{"wide runes", "一二三四", 4, []string{"一二", "三四"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, wrapByWidth(tt.text, tt.width))
		})
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, ""},
		{now.Add(-10 * time.Second), "now"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-2 * 24 * time.Hour), "2d"},
		{time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), "Jan 5"},
		{time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), "Jan 5, 2023"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatAge(tt.at, now))
	}
}

func sampleComments(now time.Time) []backend.Comment {
	return []backend.Comment{
		{
			ID:      "c1",
			Kind:    backend.KindText,
			Text:    "that egg 🍳",
			Created: now.Add(-2 * time.Minute),
			Likes:   3,
			Replies: 2,
			User:    backend.Author{ID: "u-alice", FirstName: "alice"},
		},
		{
			ID:       "c2",
			Kind:     backend.KindImage,
			ImageURL: "https://media.example.test/1/egg.png",
			Created:  now.Add(-time.Hour),
			Liked:    true,
			Likes:    1,
			User:     backend.Author{ID: "u-bob", Username: "bob"},
		},
		{
			ID:   "local-1",
			Kind: backend.KindText,
			Text: "@alice same",
			User: backend.Author{ID: "u-viewer", FirstName: "Vera"},
		},
	}
}

func TestCommentsPanelView(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	list := sampleComments(now)
	cp := NewCommentsPanel("Comments", false)

	out := cp.View(list, comments.Status{Loaded: true}, 40, 30, "", now)
	require.Contains(t, out, "Comments (3)")
	require.Contains(t, out, "@alice")
	require.Contains(t, out, "2m")
	require.Contains(t, out, "2 replies")
	require.Contains(t, out, "[image] https://media.example.test/1/egg.png")
	require.Contains(t, out, "sending")
	require.Contains(t, out, "›")

	replies := NewCommentsPanel("Replies", true)
	out = replies.View(list, comments.Status{Loaded: true}, 40, 30, "", now)
	require.Contains(t, out, "Replies (3)")
	require.NotContains(t, out, "2 replies")
}

func TestCommentsPanelStatus(t *testing.T) {
	now := time.Now()
	cp := NewCommentsPanel("Comments", false)

	require.Contains(t, cp.View(nil, comments.Status{Loading: true}, 40, 10, "", now), "Loading...")
	require.Contains(t, cp.View(nil, comments.Status{Loaded: true}, 40, 10, "", now), "No comments yet")
	require.Contains(t, cp.View(nil, comments.Status{Err: backend.ErrNotFound}, 40, 10, "", now), "Couldn't load comments")
}

func TestCommentsPanelCursor(t *testing.T) {
	now := time.Now()
	list := sampleComments(now)
	cp := NewCommentsPanel("Comments", false)

	c, ok := cp.Selected(list)
	require.True(t, ok)
	require.Equal(t, "c1", c.ID)

	cp.Move(5, len(list))
	c, _ = cp.Selected(list)
	require.Equal(t, "local-1", c.ID)

	cp.Move(-1, len(list))
	c, _ = cp.Selected(list)
	require.Equal(t, "c2", c.ID)

	cp.Reset()
	_, ok = cp.Selected(nil)
	require.False(t, ok)
}

func TestCommentsPanelKeepsCursorOnScreen(t *testing.T) {
	now := time.Now()
	list := sampleComments(now)
	cp := NewCommentsPanel("Comments", false)
	cp.Move(2, len(list))

	// header plus room for one comment
	out := cp.View(list, comments.Status{Loaded: true}, 40, 4, "", now)
	require.Contains(t, out, "same")
	require.NotContains(t, out, "that egg")
}

func TestRenderTextHighlightsMention(t *testing.T) {
	lines := renderText("@alice nice one", 40)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "@alice")
	require.Contains(t, lines[0], "nice one")
}

func TestOverlayDialogs(t *testing.T) {
	var o overlay
	var confirmed, second int

	o.push(dialog.Confirmation("Log Out", "Are you sure?", "Log Out", func() { confirmed++ }))
	o.push(dialog.Dialog{
		Title:   "Did you like this video?",
		Buttons: []dialog.Button{{Label: "Subscribe", Action: func() { second++ }}, {Label: "Maybe later", Style: dialog.StyleCancel}},
	})

	d, ok := o.active()
	require.True(t, ok)
	require.Equal(t, "Log Out", d.Title)
	require.Equal(t, 0, o.selected, "cancel is selected first")

	o.move(1)
	o.press()
	require.Equal(t, 1, confirmed)

	d, ok = o.active()
	require.True(t, ok)
	require.Equal(t, "Did you like this video?", d.Title)
	require.Equal(t, 1, o.selected)

	o.cancel()
	require.Zero(t, second)
	_, ok = o.active()
	require.False(t, ok)
}

func TestOverlayView(t *testing.T) {
	var o overlay
	require.Empty(t, o.viewDialog(80, 24))

	o.push(dialog.Confirmation("Please Confirm", "Are you sure you would like to report this comment?", "Yes", nil))
	out := o.viewDialog(80, 24)
	require.Contains(t, out, "Please Confirm")
	require.Contains(t, out, "Cancel")
	require.Contains(t, out, "Yes")
}

func TestOverlayToasts(t *testing.T) {
	var o overlay
	require.NotNil(t, o.notify(dialog.Notice{Title: "Couldn't post comment", Message: "Please try again later"}))
	require.NotNil(t, o.notify(dialog.Notice{Title: "Thank you"}))
	require.Len(t, o.toasts, 2)
	require.Contains(t, o.viewToasts(), "Couldn't post comment: Please try again later")

	o.expire(o.toasts[0].id)
	require.Len(t, o.toasts, 1)
	require.Equal(t, "Thank you", o.toasts[0].notice.Title)
}

func TestPlaceBottom(t *testing.T) {
	require.Equal(t, "a\nb", placeBottom("a\nb", "", 5))
	require.Equal(t, "a\n\n\nx", placeBottom("a", "x", 4))
	require.Equal(t, "a\nb\nx", placeBottom("a\nb\nc", "x", 3))
	require.Equal(t, "a\nx", placeBottom("a", "x", 0))
	require.Equal(t, 3, strings.Count(placeBottom("a\nb\nc\nd\ne", "x", 4), "\n"))
}
