// Package screen is the player screen: one video with its playback state,
// like button, comment thread and reply thread, laid out on a three-view
// lateral strip.
//
// Everything the screen starts in the background is owned by one lifecycle
// scope. Unmount closes the scope and stops the engine, after which no
// result from the screen's requests is applied.
package screen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/comments"
	"github.com/njyeung/sofa/dialog"
	"github.com/njyeung/sofa/engagement"
	"github.com/njyeung/sofa/lifecycle"
	"github.com/njyeung/sofa/playback"
	"github.com/njyeung/sofa/session"
	"github.com/njyeung/sofa/slide"
	"github.com/njyeung/sofa/telemetry"
)

var (
	// ErrNoMedia is reported when a video has no playable clip.
	ErrNoMedia = errors.New("screen: video has no clip")
	// ErrNotEntitled is returned when commenting on a channel the viewer
	// does not subscribe to.
	ErrNotEntitled = errors.New("screen: subscribe to comment")
	// ErrSignedOut is returned for actions that need an account.
	ErrSignedOut = errors.New("screen: sign in first")
)

// Notices shown after a video report.
var (
	VideoReportSent = dialog.Notice{
		Title:   "Thank you for flagging this video",
		Message: "We'll review the item shortly",
	}
	VideoReportFailed = comments.ReportFailed
)

// SubscribePrompt is shown when a video ends and the viewer does not
// subscribe to its channel.
var SubscribePrompt = dialog.Dialog{
	Title:   "Did you like this video?",
	Message: "Why not subscribe to this channel to view more",
}

// API is the part of the content API the screen uses.
type API interface {
	comments.API
	GetVideo(ctx context.Context, id string) (*backend.Video, error)
	ListSubscriptions(ctx context.Context, userID string) ([]backend.Subscription, error)
}

// Engine plays one clip at a time. Play blocks until ctx is done.
type Engine interface {
	playback.Engine
	Play(ctx context.Context, url string, l playback.Listener) error
}

// Navigator leaves the screen.
type Navigator interface {
	Dismiss()
	OpenChannel(channelID string)
	SignedOut()
}

// Config wires a Screen.
type Config struct {
	API       API
	Session   *session.Context
	Engine    Engine
	Dialogs   dialog.Presenter
	Navigator Navigator
	Reporter  *telemetry.Reporter
	Logger    log.Logger

	CommitInterval time.Duration
	LikeDebounce   time.Duration
	Now            func() time.Time

	// OnChange runs after anything on the screen changes. It may be called
	// from any goroutine.
	OnChange func()
}

// Screen is mounted for one video at a time; ChangeVideo swaps it in place.
type Screen struct {
	api      API
	session  *session.Context
	engine   Engine
	dialogs  dialog.Presenter
	nav      Navigator
	reporter *telemetry.Reporter
	log      *log.Helper
	debounce time.Duration
	onChange func()

	scope    *lifecycle.Scope
	playback *playback.Controller
	router   *slide.Router
	comments *comments.Thread
	replies  *comments.Thread

	// used from the UI loop only
	commentBox comments.Composer
	replyBox   comments.Composer

	unmount sync.Once

	mu         sync.RWMutex
	stopPlay   context.CancelFunc
	gen        uint64
	videoID    string
	video      *backend.Video
	err        error
	like       *engagement.Controller
	subscribed map[string]bool
}

// New builds a screen. Nothing is fetched until Mount.
func New(cfg Config) *Screen {
	logger := cfg.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	s := &Screen{
		api:      cfg.API,
		session:  cfg.Session,
		engine:   cfg.Engine,
		dialogs:  cfg.Dialogs,
		nav:      cfg.Navigator,
		reporter: cfg.Reporter,
		log:      log.NewHelper(log.With(logger, "module", "screen")),
		debounce: cfg.LikeDebounce,
		onChange: cfg.OnChange,
	}
	s.scope = lifecycle.New(context.Background(), cfg.Session, logger)

	s.playback = playback.New(playback.Config{
		Reporter:       cfg.Reporter,
		Logger:         logger,
		CommitInterval: cfg.CommitInterval,
		Entitled:       s.Entitled,
		OnPrompt:       s.promptSubscribe,
		OnChange:       func(playback.State) { s.emit() },
	})
	if cfg.Engine != nil {
		s.playback.SetEngine(cfg.Engine)
	}
	s.router = slide.NewRouter(func(slide.View) { s.emit() })

	threadCfg := comments.Config{
		Scope:        s.scope,
		API:          cfg.API,
		Viewer:       cfg.Session,
		Dialogs:      cfg.Dialogs,
		Reporter:     cfg.Reporter,
		Logger:       logger,
		LikeDebounce: cfg.LikeDebounce,
		Now:          cfg.Now,
		OnChange:     s.emit,
	}
	s.comments = comments.New(threadCfg, comments.Key{})
	threadCfg.Replies = true
	s.replies = comments.New(threadCfg, comments.Key{})

	s.like = s.newLike("")
	return s
}

func (s *Screen) newLike(videoID string) *engagement.Controller {
	return engagement.New(engagement.Config{
		Scope:    s.scope,
		API:      s.api,
		Ref:      backend.VideoRef(videoID),
		Notifier: s.dialogs,
		Reporter: s.reporter,
		Debounce: s.debounce,
		OnChange: func(engagement.State) { s.emit() },
	}, false, 0)
}

// Mount loads videoID and the viewer's subscriptions, and starts playback
// once the video record arrives.
func (s *Screen) Mount(videoID string) {
	s.loadSubscriptions()
	s.ChangeVideo(videoID)
}

// ChangeVideo replaces the video in place. The reply thread is forgotten and
// the view falls back to the comments if it was on the replies.
func (s *Screen) ChangeVideo(id string) {
	s.mu.Lock()
	if s.gen > 0 && id == s.videoID {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.videoID = id
	s.video = nil
	s.err = nil
	s.like = s.newLike(id)
	stop := s.stopPlay
	s.stopPlay = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.playback.Reset()
	s.router.ResetThread()
	s.commentBox.SetText("")
	s.replyBox.SetText("")
	s.replies.SetKey(comments.Key{VideoID: id})
	s.comments.SetKey(comments.Key{VideoID: id})

	s.scope.Go(func(ctx context.Context) func() {
		v, err := s.api.GetVideo(ctx, id)
		return func() { s.applyVideo(gen, v, err) }
	})
	s.emit()
}

func (s *Screen) applyVideo(gen uint64, v *backend.Video, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.log.Warnf("load video: %v", err)
		s.emit()
		return
	}
	s.video = v
	like := s.like
	s.mu.Unlock()

	like.Reset(v.Liked, v.Likes)
	s.play(gen, v.ClipURL)
	s.emit()
}

func (s *Screen) play(gen uint64, url string) {
	if s.engine == nil {
		return
	}
	l := listener{s: s, gen: gen}
	if url == "" {
		l.OnError(ErrNoMedia)
		return
	}
	ctx, cancel := context.WithCancel(s.scope.Context())
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		cancel()
		return
	}
	s.stopPlay = cancel
	s.mu.Unlock()

	started := s.scope.Go(func(context.Context) func() {
		defer cancel()
		if err := s.engine.Play(ctx, url, l); err != nil {
			l.OnError(err)
		}
		return nil
	})
	if !started {
		cancel()
	}
}

func (s *Screen) loadSubscriptions() {
	u := s.session.User()
	if u == nil {
		return
	}
	s.scope.Go(func(ctx context.Context) func() {
		subs, err := s.api.ListSubscriptions(ctx, u.ID)
		return func() {
			if err != nil {
				s.log.Warnf("load subscriptions: %v", err)
				return
			}
			set := make(map[string]bool, len(subs))
			for _, sub := range subs {
				if sub.Status == "" || sub.Status == "active" {
					set[sub.ChannelID] = true
				}
			}
			s.mu.Lock()
			s.subscribed = set
			s.mu.Unlock()
			s.emit()
		}
	})
}

// Unmount cancels everything in flight and stops the engine. The screen
// cannot be mounted again.
func (s *Screen) Unmount() {
	s.unmount.Do(func() {
		s.mu.Lock()
		stop := s.stopPlay
		s.stopPlay = nil
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		s.playback.Flush()
		s.scope.Close()
	})
}

// Video returns the loaded video, or nil while it is loading or failed.
func (s *Screen) Video() *backend.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.video == nil {
		return nil
	}
	v := *s.video
	return &v
}

// VideoID is the id of the video on screen.
func (s *Screen) VideoID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.videoID
}

// Err is the error of the last video fetch.
func (s *Screen) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func channelOf(v *backend.Video) string {
	if v.ChannelID != "" {
		return v.ChannelID
	}
	return v.Channel.ID
}

// Entitled reports whether the viewer is signed in and subscribes to the
// channel of the video.
func (s *Screen) Entitled() bool {
	if !s.session.SignedIn() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.video == nil {
		return false
	}
	return s.subscribed[channelOf(s.video)] || s.video.Channel.Subscribed
}

// CommentingEnabled reports whether the composer accepts input.
func (s *Screen) CommentingEnabled() bool {
	return s.Entitled()
}

func (s *Screen) promptSubscribe() {
	v := s.Video()
	if v == nil || s.dialogs == nil {
		return
	}
	channelID := channelOf(v)
	d := SubscribePrompt
	d.Buttons = []dialog.Button{
		{Label: "Subscribe", Action: func() {
			if s.nav != nil {
				s.nav.OpenChannel(channelID)
			}
		}},
		{Label: "Maybe later", Style: dialog.StyleCancel},
	}
	s.dialogs.Confirm(d)
}

// Playback is the scrub/progress controller.
func (s *Screen) Playback() *playback.Controller {
	return s.playback
}

// Like is the like button of the current video.
func (s *Screen) Like() *engagement.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.like
}

// ToggleLike presses the like button.
func (s *Screen) ToggleLike() error {
	if !s.session.SignedIn() {
		return ErrSignedOut
	}
	s.Like().Press()
	return nil
}

// View is the visible view of the strip.
func (s *Screen) View() slide.View {
	return s.router.View()
}

// Can reports whether ev would move the strip from the visible view.
func (s *Screen) Can(ev slide.Event) bool {
	return s.router.Can(ev)
}

// Offset is the strip offset for a viewport width wide.
func (s *Screen) Offset(width int) int {
	return s.router.Offset(width)
}

// Comments is the video's comment thread.
func (s *Screen) Comments() *comments.Thread {
	return s.comments
}

// Replies is the reply thread of the comment opened last.
func (s *Screen) Replies() *comments.Thread {
	return s.replies
}

// Composer is the input box of the visible thread.
func (s *Screen) Composer() *comments.Composer {
	if s.router.View() == slide.Replies {
		return &s.replyBox
	}
	return &s.commentBox
}

// OpenComments slides to the comments.
func (s *Screen) OpenComments() error {
	return s.router.OpenComments()
}

// OpenReplies slides to the replies under commentID.
func (s *Screen) OpenReplies(commentID string) error {
	if err := s.router.OpenReplies(commentID); err != nil {
		return err
	}
	s.replyBox.SetText("")
	s.replies.SetKey(comments.Key{VideoID: s.VideoID(), ParentID: commentID})
	return nil
}

// Back steps toward the player and leaves the screen from there.
func (s *Screen) Back() {
	if s.router.Back() && s.nav != nil {
		s.nav.Dismiss()
	}
}

// Thread is the comment list of the visible view.
func (s *Screen) Thread() *comments.Thread {
	if s.router.View() == slide.Replies {
		return s.replies
	}
	return s.comments
}

// Submit sends the composer of the visible thread.
func (s *Screen) Submit() error {
	if !s.CommentingEnabled() {
		return ErrNotEntitled
	}
	return s.Composer().Submit(s.Thread())
}

// Attach uploads the file at path and posts it to the visible thread,
// addressed to the composer's reply target if it has one.
func (s *Screen) Attach(path string) error {
	if !s.CommentingEnabled() {
		return ErrNotEntitled
	}
	box := s.Composer()
	var replyID string
	if t := box.Target(); t != nil {
		replyID = t.ID
	}
	if err := s.Thread().SendMedia(path, replyID); err != nil {
		return err
	}
	box.SetText("")
	return nil
}

// Reply addresses the next comment to commentID in the visible thread.
func (s *Screen) Reply(commentID string) {
	c, ok := s.Thread().Comment(commentID)
	if !ok {
		return
	}
	s.Composer().Reply(c.ID, c.User.Name())
}

// ReportVideo asks the viewer to confirm, then flags the video for review.
func (s *Screen) ReportVideo() error {
	if !s.session.SignedIn() {
		return ErrSignedOut
	}
	videoID := s.VideoID()
	if s.dialogs == nil || videoID == "" {
		return nil
	}
	s.dialogs.Confirm(dialog.Confirmation(
		"Please Confirm",
		"Are you sure you would like to report this video?",
		"Yes",
		func() { s.sendVideoReport(videoID) },
	))
	return nil
}

func (s *Screen) sendVideoReport(videoID string) {
	s.scope.Go(func(ctx context.Context) func() {
		err := s.api.Report(ctx, backend.ReportInput{
			Reason:  backend.ReportReasonVideo,
			VideoID: videoID,
		})
		return func() {
			if err != nil {
				s.log.Warnf("report video %s: %v", videoID, err)
				s.dialogs.Notify(VideoReportFailed)
				return
			}
			s.dialogs.Notify(VideoReportSent)
		}
	})
}

// Logout asks for confirmation, then signs out.
func (s *Screen) Logout() {
	if s.dialogs == nil {
		return
	}
	s.dialogs.Confirm(dialog.Confirmation(
		"Log Out",
		"Are you sure you would like to log out?",
		"Log Out",
		func() {
			s.session.Logout()
			if s.nav != nil {
				s.nav.SignedOut()
			}
		},
	))
}

func (s *Screen) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *Screen) emit() {
	if s.onChange != nil {
		s.onChange()
	}
}

// listener forwards engine events for one video and drops them once the
// screen has moved on.
type listener struct {
	s   *Screen
	gen uint64
}

func (l listener) live() bool {
	return l.s.scope.Active() && l.s.generation() == l.gen
}

func (l listener) OnLoad(d time.Duration) {
	if l.live() {
		l.s.playback.OnLoad(d)
	}
}

func (l listener) OnProgress(current, buffered time.Duration) {
	if l.live() {
		l.s.playback.OnProgress(current, buffered)
	}
}

func (l listener) OnEnd() {
	if l.live() {
		l.s.playback.OnEnd()
	}
}

func (l listener) OnError(err error) {
	if l.live() {
		l.s.playback.OnError(err)
	}
}
