package tui

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"

	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/backend/backendtest"
	"github.com/njyeung/sofa/config"
	"github.com/njyeung/sofa/playback"
	"github.com/njyeung/sofa/session"
	"github.com/njyeung/sofa/slide"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakePlayer struct {
	mu      sync.Mutex
	urls    []string
	paused  bool
	muted   bool
	visible bool
	closed  bool
}

func (p *fakePlayer) Play(ctx context.Context, url string, l playback.Listener) error {
	p.mu.Lock()
	p.urls = append(p.urls, url)
	p.mu.Unlock()
	l.OnLoad(time.Minute)
	<-ctx.Done()
	return nil
}

func (p *fakePlayer) Seek(time.Duration) error { return nil }

func (p *fakePlayer) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
}

func (p *fakePlayer) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
}

func (p *fakePlayer) SetSize(int, int) {}

func (p *fakePlayer) SetVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = visible
}

func (p *fakePlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakePlayer) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

func (p *fakePlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

type harness struct {
	srv    *backendtest.Server
	sess   *session.Context
	player *fakePlayer
	dir    string
	m      Model
}

func newHarness(t *testing.T, signedIn, subscribed bool) *harness {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)
	backendtest.Seed(srv.Store, "file:///tmp/clip.mp4")
	if subscribed {
		srv.Store.Subscribe(backendtest.DemoUserID, backendtest.DemoFeedID)
	}

	logger := log.NewStdLogger(io.Discard)
	sess := session.New()
	api, err := backend.NewHTTPBackend(backend.Options{BaseURL: srv.URL, Session: sess, Logger: logger})
	require.NoError(t, err)

	if signedIn {
		auth, err := api.Login(context.Background(), backendtest.DemoEmail, backendtest.DemoPassword)
		require.NoError(t, err)
		sess.Login(auth.Token, session.DomainEmail, auth.User)
	}

	h := &harness{srv: srv, sess: sess, player: &fakePlayer{}, dir: t.TempDir()}
	h.m = NewModel(Config{
		Settings: config.Settings{
			ConfigDir:      h.dir,
			Skip:           10 * time.Second,
			CommitInterval: time.Millisecond,
			VideoWidth:     270,
			VideoHeight:    480,
		},
		API:     api,
		Session: sess,
		Player:  h.player,
		Logger:  logger,
		VideoID: backendtest.DemoVideoID,
	})
	t.Cleanup(func() { h.m.quit() })
	h.update(tea.WindowSizeMsg{Width: 100, Height: 50})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

func (h *harness) press(keys ...string) {
	for _, k := range keys {
		h.update(keyMsg(k))
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// next reads event messages until one matches
func (h *harness) next(t *testing.T, match func(tea.Msg) bool) tea.Msg {
	t.Helper()
	deadline := time.After(timeout)
	for {
		got := make(chan tea.Msg, 1)
		go func() { got <- h.m.events.listen() }()
		select {
		case msg := <-got:
			if match(msg) {
				return msg
			}
		case <-deadline:
			t.Fatal("no matching event")
			return nil
		}
	}
}

func (h *harness) waitVideo(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.m.screen.Video() != nil && h.m.screen.Like().State().Count > 0 && h.m.screen.Comments().Status().Loaded
	}, timeout, tick)
	h.update(changedMsg{})
}

func TestSignedInSessionOpensPlayer(t *testing.T) {
	h := newHarness(t, true, false)
	require.Equal(t, statePlayer, h.m.state)
	h.waitVideo(t)

	require.True(t, h.player.Visible())
	view := h.m.View()
	require.Contains(t, view, "Night Kitchen")
	require.Contains(t, view, "Midnight ramen")
	require.Contains(t, view, "1.2K")
}

func TestLoginFormSignsIn(t *testing.T) {
	h := newHarness(t, false, false)
	require.Equal(t, stateLogin, h.m.state)
	require.Contains(t, h.m.View(), "Sign in to sofa")

	h.m.email.SetValue(backendtest.DemoEmail)
	h.m.password.SetValue("wrong")
	h.press("enter")
	require.True(t, h.m.password.Focused())

	cmd := h.update(keyMsg("enter"))
	require.True(t, h.m.loginBusy)
	h.update(cmd())
	require.Equal(t, stateLogin, h.m.state)
	require.Contains(t, h.m.View(), "Wrong email or password")

	h.m.password.SetValue(backendtest.DemoPassword)
	cmd = h.update(keyMsg("enter"))
	h.update(cmd())
	require.Equal(t, statePlayer, h.m.state)
	require.True(t, h.sess.SignedIn())
	require.FileExists(t, filepath.Join(h.dir, "session.json"))

	restored := session.New()
	require.NoError(t, restored.Load(filepath.Join(h.dir, "session.json")))
	require.True(t, restored.SignedIn())
}

func TestCommentFromComposer(t *testing.T) {
	h := newHarness(t, true, true)
	h.waitVideo(t)
	require.Eventually(t, h.m.screen.CommentingEnabled, timeout, tick)

	h.press("c")
	require.Equal(t, slide.Comments, h.m.screen.View())
	require.False(t, h.player.Visible())

	h.press("i")
	require.True(t, h.m.typing)
	h.press("hi there")
	require.Equal(t, "hi there", h.m.screen.Composer().Text())

	h.press("enter")
	require.False(t, h.m.typing)
	list := h.m.screen.Comments().Comments()
	require.Len(t, list, 3)
	require.Equal(t, "hi there", list[2].Text)
	require.Eventually(t, func() bool {
		return len(h.srv.Handler.Requests(http.MethodPost, "/engagements/comments")) == 1
	}, timeout, tick)

	h.press("esc")
	require.Equal(t, slide.Player, h.m.screen.View())
	require.True(t, h.player.Visible())
}

func TestWritingNeedsSubscription(t *testing.T) {
	h := newHarness(t, true, false)
	h.waitVideo(t)

	h.press("c", "i")
	require.False(t, h.m.typing)
	require.Len(t, h.m.overlay.toasts, 1)
	require.Equal(t, "Subscribe to this channel to comment", h.m.overlay.toasts[0].notice.Title)
}

func TestReplyKeyPrefillsComposer(t *testing.T) {
	h := newHarness(t, true, true)
	h.waitVideo(t)
	require.Eventually(t, h.m.screen.CommentingEnabled, timeout, tick)

	h.press("c", "r")
	require.True(t, h.m.typing)
	require.Equal(t, "@alice ", h.m.composer.Value())
	require.Contains(t, h.m.View(), "Replying to")
}

func TestEnterOpensReplies(t *testing.T) {
	h := newHarness(t, true, false)
	h.waitVideo(t)

	h.press("c", "enter")
	require.Equal(t, slide.Replies, h.m.screen.View())
	require.Equal(t, "c1", h.m.screen.Replies().Key().ParentID)

	h.press("esc", "esc")
	require.Equal(t, slide.Player, h.m.screen.View())
}

func TestLogoutConfirmsThenShowsLogin(t *testing.T) {
	h := newHarness(t, true, false)
	h.waitVideo(t)

	h.press("L")
	h.update(h.next(t, func(msg tea.Msg) bool {
		_, ok := msg.(confirmMsg)
		return ok
	}))
	require.False(t, h.player.Visible())
	require.Contains(t, h.m.View(), "Are you sure you would like to log out?")

	h.press("right", "enter")
	require.False(t, h.sess.SignedIn())

	h.update(h.next(t, func(msg tea.Msg) bool {
		_, ok := msg.(signedOutMsg)
		return ok
	}))
	require.Equal(t, stateLogin, h.m.state)
	require.Nil(t, h.m.screen)

	restored := session.New()
	require.NoError(t, restored.Load(filepath.Join(h.dir, "session.json")))
	require.False(t, restored.SignedIn())
}

func TestReportKeyFlagsVideo(t *testing.T) {
	h := newHarness(t, true, false)
	h.waitVideo(t)
	require.Contains(t, h.m.View(), "!: report")

	h.press("!")
	h.update(h.next(t, func(msg tea.Msg) bool {
		_, ok := msg.(confirmMsg)
		return ok
	}))
	require.Contains(t, h.m.View(), "Are you sure you would like to report this video?")

	h.press("right", "enter")
	require.Eventually(t, func() bool { return len(h.srv.Store.Reports()) == 1 }, timeout, tick)
	require.Equal(t, backendtest.DemoVideoID, h.srv.Store.Reports()[0].VideoID)
}

func TestBlurPausesPlayback(t *testing.T) {
	h := newHarness(t, true, false)
	h.waitVideo(t)

	h.update(tea.BlurMsg{})
	require.True(t, h.m.screen.Playback().State().Paused)
	require.True(t, h.player.Paused())
}

func TestChannelKeyLoadsChannel(t *testing.T) {
	h := newHarness(t, true, false)
	h.waitVideo(t)

	h.press("s")
	msg := h.next(t, func(msg tea.Msg) bool {
		_, ok := msg.(openChannelMsg)
		return ok
	})
	cmd := h.update(msg)
	require.Equal(t, stateChannel, h.m.state)
	require.False(t, h.player.Visible())

	for _, c := range cmd().(tea.BatchMsg) {
		if c == nil {
			continue
		}
		// the loader returns at once; the event listener may block
		got := make(chan tea.Msg, 1)
		go func() { got <- c() }()
		select {
		case msg := <-got:
			if loaded, ok := msg.(channelLoadedMsg); ok {
				h.update(loaded)
			}
		case <-time.After(timeout / 4):
		}
	}
	require.NotNil(t, h.m.channel)
	require.Equal(t, "Night Kitchen", h.m.channel.Name)
	require.Contains(t, h.m.View(), "1.3K subscribers")

	h.press("esc")
	require.Equal(t, statePlayer, h.m.state)
	require.True(t, h.player.Visible())
}
