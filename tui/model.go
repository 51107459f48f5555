package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/comments"
	"github.com/njyeung/sofa/config"
	"github.com/njyeung/sofa/playback"
	"github.com/njyeung/sofa/player"
	"github.com/njyeung/sofa/screen"
	"github.com/njyeung/sofa/session"
	"github.com/njyeung/sofa/slide"
	"github.com/njyeung/sofa/telemetry"
)

// Messages
type (
	loginDoneMsg struct {
		auth   *backend.Auth
		domain session.Domain
	}
	loginErrorMsg    struct{ err error }
	channelLoadedMsg struct {
		id      string
		channel *backend.Channel
		err     error
	}
)

// State represents the app state
type state int

const (
	stateLogin state = iota
	stateLoading
	statePlayer
	stateChannel
	stateError
)

var errNoVideo = errors.New("no video to play")

// video area used when the terminal does not report its pixel size
var fallbackCells = player.Cells{Cols: 32, Rows: 29}

// API is what the terminal UI needs from the content API
type API interface {
	screen.API
	Login(ctx context.Context, email, password string) (*backend.Auth, error)
	GetChannel(ctx context.Context, id string) (*backend.Channel, error)
}

// Player plays the video and draws it over the UI
type Player interface {
	screen.Engine
	SetSize(width, height int)
	SetVisible(visible bool)
	Close()
}

// Config wires a Model
type Config struct {
	Settings config.Settings
	API      API
	Session  *session.Context
	Player   Player
	Reporter *telemetry.Reporter
	Logger   log.Logger

	// VideoID is the video the player screen opens
	VideoID string
	// WebLogin signs in through the browser instead of the email form
	WebLogin bool
	Now      func() time.Time
}

// Model is the Bubble Tea model
type Model struct {
	state    state
	settings config.Settings
	api      API
	session  *session.Context
	player   Player
	reporter *telemetry.Reporter
	logger   log.Logger
	log      *log.Helper
	videoID  string
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	events *events

	screen        *screen.Screen
	overlay       overlay
	commentsPanel *CommentsPanel
	repliesPanel  *CommentsPanel
	composer      textinput.Model
	composerView  slide.View
	typing        bool

	email      textinput.Model
	password   textinput.Model
	loginBusy  bool
	loginErr   error
	webLoginOn bool

	channelID  string
	channel    *backend.Channel
	channelErr error

	width      int
	height     int
	videoCells player.Cells
	spinner    spinner.Model
	err        error
	status     string
}

// NewModel creates a new TUI model. A saved session goes straight to the
// player; otherwise the login form comes first.
func NewModel(cfg Config) Model {
	logger := cfg.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	email := textinput.New()
	email.Placeholder = "Email"
	email.Prompt = "  "
	email.Focus()

	password := textinput.New()
	password.Placeholder = "Password"
	password.Prompt = "  "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	composer := textinput.New()
	composer.Placeholder = "Add a comment..."
	composer.Prompt = "> "
	composer.CharLimit = 2200

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		state:         stateLogin,
		settings:      cfg.Settings,
		api:           cfg.API,
		session:       cfg.Session,
		player:        cfg.Player,
		reporter:      cfg.Reporter,
		logger:        logger,
		log:           log.NewHelper(log.With(logger, "module", "tui")),
		videoID:       cfg.VideoID,
		now:           now,
		ctx:           ctx,
		cancel:        cancel,
		events:        newEvents(),
		commentsPanel: NewCommentsPanel("Comments", false),
		repliesPanel:  NewCommentsPanel("Replies", true),
		composer:      composer,
		email:         email,
		password:      password,
		spinner:       s,
		videoCells:    fallbackCells,
	}

	switch {
	case cfg.VideoID == "":
		m.state = stateError
		m.err = errNoVideo
	case m.session.SignedIn() || m.session.IsVisitor():
		m = m.mountScreen()
	case cfg.WebLogin:
		m.state = stateLoading
		m.webLoginOn = true
		m.status = "Sign in in the browser window..."
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.events.listen, textinput.Blink}
	if m.webLoginOn {
		cmds = append(cmds, m.webLogin())
	}
	return tea.Batch(cmds...)
}

func (m Model) login(email, password string) tea.Cmd {
	ctx, api := m.ctx, m.api
	return func() tea.Msg {
		auth, err := api.Login(ctx, email, password)
		if err != nil {
			return loginErrorMsg{err}
		}
		return loginDoneMsg{auth: auth, domain: session.DomainEmail}
	}
}

func (m Model) webLogin() tea.Cmd {
	ctx := m.ctx
	wl := backend.NewWebLogin(m.settings.WebLoginURL, filepath.Join(m.settings.ConfigDir, "chrome-data"), m.logger)
	return func() tea.Msg {
		if err := wl.Start(ctx); err != nil {
			return loginErrorMsg{err}
		}
		defer wl.Stop()

		auth, err := wl.Wait(ctx)
		if err != nil {
			return loginErrorMsg{err}
		}
		return loginDoneMsg{auth: &auth.Auth, domain: auth.Domain}
	}
}

func (m Model) loadChannel(id string) tea.Cmd {
	ctx, api := m.ctx, m.api
	return func() tea.Msg {
		ch, err := api.GetChannel(ctx, id)
		return channelLoadedMsg{id: id, channel: ch, err: err}
	}
}

func (m Model) mountScreen() Model {
	m = m.unmountScreen()
	m.screen = screen.New(screen.Config{
		API:            m.api,
		Session:        m.session,
		Engine:         m.player,
		Dialogs:        presenter{m.events},
		Navigator:      navigator{m.events},
		Reporter:       m.reporter,
		Logger:         m.logger,
		CommitInterval: m.settings.CommitInterval,
		Now:            m.now,
		OnChange:       m.events.poke,
	})
	m.commentsPanel.Reset()
	m.repliesPanel.Reset()
	m.composer.SetValue("")
	m.composer.Blur()
	m.composerView = slide.Player
	m.typing = false
	m.state = statePlayer
	m.screen.Mount(m.videoID)
	return m
}

func (m Model) unmountScreen() Model {
	if m.screen != nil {
		m.screen.Unmount()
		m.screen = nil
	}
	if m.player != nil {
		m.player.SetVisible(false)
	}
	return m
}

func (m Model) saveSession() {
	if err := m.session.Save(m.settings.SessionPath()); err != nil {
		m.log.Warnf("save session: %v", err)
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m = m.unmountScreen()
	if m.player != nil {
		m.player.Close()
	}
	m.cancel()
	m.events.close()
	return m, tea.Quit
}

// synced matches the video surface and the composer to what is on screen.
// The video is drawn over the terminal, so it is hidden whenever anything
// else has to be seen.
func (m Model) synced() Model {
	if m.screen == nil {
		return m
	}
	_, dialogOpen := m.overlay.active()
	view := m.screen.View()
	visible := m.state == statePlayer && view == slide.Player && !dialogOpen && m.screen.Video() != nil
	m.player.SetVisible(visible)

	if view != m.composerView {
		m.composerView = view
		m.composer.SetValue(m.screen.Composer().Text())
		m.composer.CursorEnd()
		if view == slide.Player {
			m.typing = false
			m.composer.Blur()
		}
	}
	return m
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if _, ok := m.overlay.active(); ok {
			return m.updateDialog(msg)
		}
		switch m.state {
		case stateLogin:
			return m.updateLogin(msg)
		case statePlayer:
			if m.screen.View() == slide.Player {
				return m.updatePlayer(msg)
			}
			return m.updateComments(msg)
		case stateChannel:
			return m.updateChannel(msg)
		default:
			if msg.String() == "q" {
				return m.quit()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.settings.VideoBox()
		if m.player != nil {
			m.player.SetSize(w, h)
		}
		if cells := player.FitCells(w, h, w, h); cells.Rows > 1 {
			m.videoCells = cells
		}
		m.composer.Width = max(min(m.width-8, 60), 10)
		return m.synced(), nil

	case tea.BlurMsg:
		if m.screen != nil {
			m.screen.Playback().Background()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case changedMsg:
		return m.synced(), m.events.listen

	case confirmMsg:
		m.overlay.push(msg.dialog)
		return m.synced(), m.events.listen

	case noticeMsg:
		cmd := m.overlay.notify(msg.notice)
		return m, tea.Batch(cmd, m.events.listen)

	case toastExpiredMsg:
		m.overlay.expire(msg.id)
		return m, nil

	case dismissMsg:
		return m.quit()

	case openChannelMsg:
		m.state = stateChannel
		m.channelID = msg.id
		m.channel = nil
		m.channelErr = nil
		return m.synced(), tea.Batch(m.loadChannel(msg.id), m.events.listen)

	case channelLoadedMsg:
		if msg.id == m.channelID {
			m.channel = msg.channel
			m.channelErr = msg.err
		}
		return m, nil

	case signedOutMsg:
		m = m.unmountScreen()
		m.saveSession()
		m.state = stateLogin
		m.loginErr = nil
		m.email.SetValue("")
		m.password.SetValue("")
		m.password.Blur()
		cmd := m.email.Focus()
		return m, tea.Batch(cmd, m.events.listen)

	case loginDoneMsg:
		m.loginBusy = false
		m.webLoginOn = false
		m.session.Login(msg.auth.Token, msg.domain, msg.auth.User)
		m.saveSession()
		return m.mountScreen().synced(), nil

	case loginErrorMsg:
		m.loginBusy = false
		m.webLoginOn = false
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		m.loginErr = msg.err
		m.state = stateLogin
		return m, nil
	}

	return m.updateInputs(msg)
}

// updateInputs passes cursor blinks and the like to the focused text input
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.state == stateLogin && m.email.Focused():
		m.email, cmd = m.email.Update(msg)
	case m.state == stateLogin && m.password.Focused():
		m.password, cmd = m.password.Update(msg)
	case m.typing:
		m.composer, cmd = m.composer.Update(msg)
	}
	return m, cmd
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h", "shift+tab":
		m.overlay.move(-1)
	case "right", "l", "tab":
		m.overlay.move(1)
	case "enter", " ":
		m.overlay.press()
	case "esc", "q":
		m.overlay.cancel()
	}
	return m.synced(), nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loginBusy {
		return m, nil
	}
	switch msg.String() {
	case "esc":
		return m.quit()

	case "tab", "shift+tab", "up", "down":
		return m.toggleLoginFocus()

	case "enter":
		if m.email.Focused() {
			return m.toggleLoginFocus()
		}
		m.loginBusy = true
		m.loginErr = nil
		return m, m.login(m.email.Value(), m.password.Value())

	case "ctrl+w":
		m.state = stateLoading
		m.webLoginOn = true
		m.loginErr = nil
		m.status = "Sign in in the browser window..."
		return m, m.webLogin()

	case "ctrl+g":
		m.session.Visit()
		m.saveSession()
		return m.mountScreen().synced(), nil
	}

	var cmd tea.Cmd
	if m.email.Focused() {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) toggleLoginFocus() (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.email.Focused() {
		m.email.Blur()
		cmd = m.password.Focus()
	} else {
		m.password.Blur()
		cmd = m.email.Focus()
	}
	return m, cmd
}

func (m Model) updatePlayer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pb := m.screen.Playback()

	switch key := msg.String(); key {
	case "q":
		return m.quit()
	case "esc":
		m.screen.Back()
	case " ":
		pb.TogglePlay()
	case "m":
		pb.ToggleMute()
	case "left":
		pb.Skip(playback.Backward, m.settings.Skip)
	case "right":
		pb.Skip(playback.Forward, m.settings.Skip)
	case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
		tenth := time.Duration(key[0] - '0')
		pb.Scrub(pb.State().Duration * tenth / 10)
	case "l":
		if err := m.screen.ToggleLike(); err != nil {
			cmd := m.overlay.notify(errorNotice(err))
			return m, cmd
		}
	case "c":
		if err := m.screen.OpenComments(); err == nil {
			m.commentsPanel.Reset()
		}
	case "s":
		if v := m.screen.Video(); v != nil {
			id := v.ChannelID
			if id == "" {
				id = v.Channel.ID
			}
			navigator{m.events}.OpenChannel(id)
		}
	case "!":
		if err := m.screen.ReportVideo(); err != nil {
			cmd := m.overlay.notify(errorNotice(err))
			return m, cmd
		}
	case "L":
		m.screen.Logout()
	}
	return m.synced(), nil
}

func (m Model) panel() *CommentsPanel {
	if m.screen.View() == slide.Replies {
		return m.repliesPanel
	}
	return m.commentsPanel
}

func (m Model) updateComments(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.typing {
		return m.updateComposer(msg)
	}

	thread := m.screen.Thread()
	list := thread.Comments()
	panel := m.panel()
	selected, hasSelected := panel.Selected(list)

	switch msg.String() {
	case "q":
		return m.quit()
	case "esc", "backspace", "h":
		m.screen.Back()
	case "j", "down":
		panel.Move(1, len(list))
	case "k", "up":
		panel.Move(-1, len(list))
	case " ":
		m.screen.Playback().TogglePlay()
	case "enter":
		if hasSelected && m.screen.Can(slide.OpenReplies) && !comments.IsLocal(selected.ID) {
			if err := m.screen.OpenReplies(selected.ID); err == nil {
				m.repliesPanel.Reset()
			}
		}
	case "i", "tab":
		return m.startTyping()
	case "r":
		if hasSelected {
			m.screen.Reply(selected.ID)
			m.composer.SetValue(m.screen.Composer().Text())
			m.composer.CursorEnd()
			return m.startTyping()
		}
	case "l":
		if hasSelected {
			thread.ToggleLike(selected.ID)
		}
	case "!":
		if hasSelected {
			thread.Report(selected.ID)
		}
	case "R":
		if thread.Enabled() {
			thread.Load()
		}
	}
	return m.synced(), nil
}

func (m Model) startTyping() (tea.Model, tea.Cmd) {
	if !m.screen.CommentingEnabled() {
		cmd := m.overlay.notify(errorNotice(screen.ErrNotEntitled))
		return m, cmd
	}
	m.typing = true
	cmd := m.composer.Focus()
	return m.synced(), cmd
}

// attachPrefix in the composer posts a local file instead of text
const attachPrefix = "/attach "

func (m Model) updateComposer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	box := m.screen.Composer()

	switch msg.String() {
	case "esc":
		m.typing = false
		m.composer.Blur()
		return m, nil

	case "enter":
		var err error
		if path, ok := strings.CutPrefix(m.composer.Value(), attachPrefix); ok {
			err = m.screen.Attach(strings.TrimSpace(path))
		} else {
			err = m.screen.Submit()
		}
		if err != nil {
			var cmd tea.Cmd
			if box.Err() == nil {
				cmd = m.overlay.notify(errorNotice(err))
			}
			return m, cmd
		}
		m.composer.SetValue("")
		m.typing = false
		m.composer.Blur()
		m.panel().Move(len(m.screen.Thread().Comments()), len(m.screen.Thread().Comments()))
		return m.synced(), nil
	}

	before := m.composer.Value()
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	if after := m.composer.Value(); after != before {
		box.SetText(after)
	}
	return m, cmd
}

func (m Model) updateChannel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case "esc", "backspace", "h":
		if m.screen != nil {
			m.state = statePlayer
		} else {
			m.state = stateLogin
		}
	case "R":
		if m.channelErr != nil {
			m.channelErr = nil
			return m, m.loadChannel(m.channelID)
		}
	}
	return m.synced(), nil
}

// View renders the UI
func (m Model) View() string {
	var body string
	switch m.state {
	case stateLoading:
		body = m.viewLoading()
	case stateLogin:
		body = m.viewLogin()
	case stateError:
		body = m.viewError()
	case stateChannel:
		body = m.viewChannel()
	case statePlayer:
		switch m.screen.View() {
		case slide.Player:
			body = m.viewPlayer()
		default:
			body = m.viewComments()
		}
	}

	if d := m.overlay.viewDialog(m.width, m.height); d != "" {
		body = d
	}
	return placeBottom(body, m.overlay.viewToasts(), m.height)
}
