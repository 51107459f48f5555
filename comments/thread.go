// Package comments keeps the comment thread of a video, or the replies under
// one comment, in display order.
//
// A Thread shows the last list fetched from the API merged with comments the
// viewer has sent but the server has not yet returned. A sent comment
// appears exactly once: as the local entry until a fetch returns the
// server's copy, then as the server's entry. The copy is recognised by the
// id in the acknowledgement, or by its author and content when the fetch
// lands before the acknowledgement does.
package comments

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/dialog"
	"github.com/njyeung/sofa/emoji"
	"github.com/njyeung/sofa/engagement"
	"github.com/njyeung/sofa/lifecycle"
	"github.com/njyeung/sofa/optimistic"
	"github.com/njyeung/sofa/session"
	"github.com/njyeung/sofa/telemetry"
)

var (
	// ErrEmptyComment is returned for blank text. Nothing is sent.
	ErrEmptyComment = errors.New("comments: comment is empty")
	// ErrNoParent is returned by a replies thread that has no parent set.
	ErrNoParent = errors.New("comments: no thread selected")
	// ErrSignedOut is returned when nobody is signed in to post as.
	ErrSignedOut = errors.New("comments: sign in to comment")
	// ErrClosed is returned after the owning screen has gone away.
	ErrClosed = errors.New("comments: thread closed")
)

// Notices shown by a thread.
var (
	PostFailed = dialog.Notice{
		Title:   "Couldn't post comment",
		Message: "Please try again later",
	}
	ReportSent = dialog.Notice{
		Title:   "Thank you for flagging this comment",
		Message: "We'll review the item shortly",
	}
	ReportFailed = dialog.Notice{
		Title:   "An error was encountered",
		Message: "Please try again later",
	}
)

const localPrefix = "local-"

// API is the part of the content API a thread uses.
type API interface {
	ListComments(ctx context.Context, ref backend.Ref) ([]backend.Comment, error)
	PostComment(ctx context.Context, ref backend.Ref, in backend.CommentInput) (*backend.PostedComment, error)
	Like(ctx context.Context, ref backend.Ref) error
	Unlike(ctx context.Context, ref backend.Ref) error
	Report(ctx context.Context, in backend.ReportInput) error
	Upload(ctx context.Context, path string) (*backend.Media, error)
}

// Viewer supplies the profile optimistic comments are attributed to.
// *session.Context satisfies it.
type Viewer interface {
	User() *session.User
}

// Key selects a thread: the comments on VideoID, or the replies under
// ParentID when it is set.
type Key struct {
	VideoID  string
	ParentID string
}

// Ref is the API address of the thread.
func (k Key) Ref() backend.Ref {
	return backend.ThreadRef(k.VideoID, k.ParentID)
}

func (k Key) String() string {
	return k.Ref().String()
}

// Config wires a Thread.
type Config struct {
	Scope    *lifecycle.Scope
	API      API
	Viewer   Viewer
	Dialogs  dialog.Presenter
	Reporter *telemetry.Reporter
	Logger   log.Logger

	// Replies makes a blank ParentID mean "no thread" instead of the
	// top-level comments.
	Replies bool
	// LikeDebounce is passed to each comment's like controller.
	LikeDebounce time.Duration
	// Now stamps optimistic comments. Defaults to time.Now.
	Now func() time.Time
	// OnChange runs after anything visible changes.
	OnChange func()
}

// Status describes the last fetch.
type Status struct {
	Loading bool
	Loaded  bool
	Err     error
}

// entry is a comment sent from this client. When replyTo is set the
// comment went to another thread and only bumps that comment's reply count
// here.
type entry struct {
	comment  backend.Comment
	replyTo  string
	acked    bool
	ackSeq   uint64
	serverID string

	// print is known once the input is ready; seen holds the server ids
	// shown when the comment was sent, which it can never match
	print fingerprint
	seen  map[string]bool
}

// fingerprint identifies a comment by author and content
type fingerprint struct {
	author string
	kind   backend.CommentKind
	text   string
	media  string
}

func fingerprintOf(c backend.Comment) fingerprint {
	media := c.ImageURL
	if c.Kind == backend.KindVideo {
		media = c.VideoURL
	}
	return fingerprint{author: c.User.ID, kind: c.Kind, text: c.Text, media: media}
}

func inputFingerprint(author string, in backend.CommentInput) fingerprint {
	fp := fingerprint{author: author, kind: in.Kind, text: emoji.Decode(in.Text)}
	if in.Media != nil {
		fp.media = in.Media.ImageURL
		if in.Kind == backend.KindVideo {
			fp.media = in.Media.VideoURL
		}
	}
	return fp
}

// Thread is one comment list.
type Thread struct {
	scope    *lifecycle.Scope
	api      API
	viewer   Viewer
	dialogs  dialog.Presenter
	reporter *telemetry.Reporter
	runner   *optimistic.Runner
	log      *log.Helper
	replies  bool
	debounce time.Duration
	now      func() time.Time
	onChange func()

	group singleflight.Group

	mu         sync.Mutex
	key        Key
	server     []backend.Comment
	pending    []*entry
	likes      map[string]*engagement.Controller
	fetchSeq   uint64
	appliedSeq uint64
	ackGen     uint64
	status     Status
}

// New returns an empty thread. Call SetKey or Load to fetch.
func New(cfg Config, key Key) *Thread {
	logger := cfg.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	var notifier dialog.Notifier
	if cfg.Dialogs != nil {
		notifier = cfg.Dialogs
	}
	return &Thread{
		scope:    cfg.Scope,
		api:      cfg.API,
		viewer:   cfg.Viewer,
		dialogs:  cfg.Dialogs,
		reporter: cfg.Reporter,
		runner:   optimistic.NewRunner(cfg.Scope, notifier, cfg.Reporter),
		log:      log.NewHelper(log.With(logger, "module", "comments")),
		replies:  cfg.Replies,
		debounce: cfg.LikeDebounce,
		now:      now,
		onChange: cfg.OnChange,
		key:      key,
		likes:    make(map[string]*engagement.Controller),
	}
}

// Key returns the thread being shown.
func (t *Thread) Key() Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.key
}

// Enabled reports whether the thread has something to fetch.
func (t *Thread) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabledLocked()
}

func (t *Thread) enabledLocked() bool {
	if t.key.VideoID == "" {
		return false
	}
	return !t.replies || t.key.ParentID != ""
}

// Status returns the state of the last fetch.
func (t *Thread) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetKey switches to another thread and fetches it. Everything shown for the
// previous key is dropped, and results still in flight for it are ignored.
func (t *Thread) SetKey(key Key) {
	t.mu.Lock()
	if key == t.key {
		t.mu.Unlock()
		return
	}
	t.key = key
	t.server = nil
	t.pending = nil
	t.likes = make(map[string]*engagement.Controller)
	t.status = Status{}
	t.mu.Unlock()

	t.emit()
	t.Load()
}

// Load fetches the thread in the background. It returns false when there is
// nothing to fetch or the scope is closed.
func (t *Thread) Load() bool {
	t.mu.Lock()
	if !t.enabledLocked() {
		t.mu.Unlock()
		return false
	}
	key := t.key
	t.fetchSeq++
	seq := t.fetchSeq
	flight := fmt.Sprintf("%s#%d", key, t.ackGen)
	t.status.Loading = true
	t.mu.Unlock()
	t.emit()

	return t.scope.Go(func(ctx context.Context) func() {
		v, err, _ := t.group.Do(flight, func() (any, error) {
			return t.api.ListComments(ctx, key.Ref())
		})
		list, _ := v.([]backend.Comment)
		return func() { t.applyFetch(key, seq, list, err) }
	})
}

func (t *Thread) applyFetch(key Key, seq uint64, list []backend.Comment, err error) {
	t.mu.Lock()
	if key != t.key || seq < t.appliedSeq {
		t.mu.Unlock()
		return
	}
	t.appliedSeq = seq
	t.status.Loading = seq < t.fetchSeq
	if err != nil {
		t.status.Err = err
		t.mu.Unlock()
		t.log.Warnf("load %s: %v", key, err)
		t.emit()
		return
	}
	t.status.Err = nil
	t.status.Loaded = true
	t.server = list

	ids := make(map[string]bool, len(list))
	for _, c := range list {
		ids[c.ID] = true
	}
	claimed := make(map[string]bool)
	for _, e := range t.pending {
		if e.serverID != "" && ids[e.serverID] {
			claimed[e.serverID] = true
		}
	}
	kept := t.pending[:0]
	for _, e := range t.pending {
		if e.acked && (seq > e.ackSeq || (e.serverID != "" && ids[e.serverID])) {
			continue
		}
		if e.serverID == "" && e.replyTo == "" && matchServer(e, list, claimed) {
			continue
		}
		kept = append(kept, e)
	}
	t.pending = kept

	type reset struct {
		ctrl  *engagement.Controller
		liked bool
		count int
	}
	var resets []reset
	for _, c := range list {
		if ctrl, ok := t.likes[c.ID]; ok {
			resets = append(resets, reset{ctrl, c.Liked, c.Likes})
		}
	}
	t.mu.Unlock()

	for _, r := range resets {
		r.ctrl.Reset(r.liked, r.count)
	}
	t.emit()
}

// matchServer claims the first unclaimed comment in list that has e's
// fingerprint and was not already shown when e was sent.
func matchServer(e *entry, list []backend.Comment, claimed map[string]bool) bool {
	if e.print.author == "" {
		return false
	}
	for _, c := range list {
		if claimed[c.ID] || e.seen[c.ID] || fingerprintOf(c) != e.print {
			continue
		}
		claimed[c.ID] = true
		return true
	}
	return false
}

// Comments returns the thread in display order: oldest first, ties broken
// by id.
func (t *Thread) Comments() []backend.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()

	bumps := make(map[string]int)
	out := make([]backend.Comment, 0, len(t.server)+len(t.pending))
	for _, e := range t.pending {
		if e.replyTo != "" {
			bumps[e.replyTo]++
			continue
		}
		out = append(out, e.comment)
	}
	for _, c := range t.server {
		c.Replies += bumps[c.ID]
		out = append(out, c)
	}
	for i := range out {
		if ctrl, ok := t.likes[out[i].ID]; ok {
			st := ctrl.State()
			out[i].Liked = st.Liked
			out[i].Likes = st.Count
		}
	}

	slices.SortStableFunc(out, func(a, b backend.Comment) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Comment returns the displayed comment with the given id.
func (t *Thread) Comment(id string) (backend.Comment, bool) {
	for _, c := range t.Comments() {
		if c.ID == id {
			return c, true
		}
	}
	return backend.Comment{}, false
}

// IsLocal reports whether id belongs to a comment the server has not
// returned yet.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, localPrefix)
}

// Send posts text to the thread, or as a reply to replyID when it names a
// comment other than the thread's parent. The comment is shown at once and
// removed again if the post fails.
func (t *Thread) Send(text, replyID string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyComment
	}
	in := backend.CommentInput{Kind: backend.KindText, Text: emoji.Encode(text)}
	shown := backend.Comment{Kind: backend.KindText, Text: text}
	return t.post(shown, replyID, func(context.Context) (backend.CommentInput, error) {
		return in, nil
	})
}

// SendMedia uploads the file at path and posts it as a comment. It is shown
// from the local file until the server returns it.
func (t *Thread) SendMedia(path, replyID string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyComment
	}
	shown := backend.Comment{Kind: mediaKind(path)}
	if shown.Kind == backend.KindVideo {
		shown.VideoURL = "file://" + path
	} else {
		shown.ImageURL = "file://" + path
	}
	return t.post(shown, replyID, func(ctx context.Context) (backend.CommentInput, error) {
		media, err := t.api.Upload(ctx, path)
		if err != nil {
			return backend.CommentInput{}, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
		}
		return backend.CommentInput{Kind: media.Kind, Media: media}, nil
	})
}

func mediaKind(path string) backend.CommentKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".m4v", ".webm", ".mkv":
		return backend.KindVideo
	}
	return backend.KindImage
}

func (t *Thread) post(shown backend.Comment, replyID string, input func(context.Context) (backend.CommentInput, error)) error {
	var user *session.User
	if t.viewer != nil {
		user = t.viewer.User()
	}
	if user == nil {
		return ErrSignedOut
	}

	t.mu.Lock()
	if !t.enabledLocked() {
		t.mu.Unlock()
		return ErrNoParent
	}
	key := t.key
	t.mu.Unlock()

	e := &entry{comment: shown}
	e.comment.ID = localPrefix + uuid.NewString()
	e.comment.Created = t.now()
	e.comment.User = backend.AuthorFromUser(*user)

	ref := key.Ref()
	if replyID != "" && replyID != key.ParentID {
		e.replyTo = replyID
		ref = backend.ThreadRef(key.VideoID, replyID)
	}

	var posted *backend.PostedComment
	failure := PostFailed
	ok := t.runner.Run(optimistic.Command{
		Resource: "comment",
		Apply: func() {
			t.mu.Lock()
			e.seen = make(map[string]bool, len(t.server))
			for _, c := range t.server {
				e.seen[c.ID] = true
			}
			t.pending = append(t.pending, e)
			t.mu.Unlock()
			t.emit()
		},
		Commit: func(ctx context.Context) error {
			in, err := input(ctx)
			if err != nil {
				return err
			}
			t.mu.Lock()
			e.print = inputFingerprint(user.ID, in)
			t.mu.Unlock()
			posted, err = t.api.PostComment(ctx, ref, in)
			return err
		},
		Rollback: func() {
			t.remove(key, e)
		},
		Done: func() {
			t.ack(key, e, posted)
		},
		Failure: &failure,
	})
	if !ok {
		return ErrClosed
	}
	return nil
}

func (t *Thread) remove(key Key, e *entry) {
	t.mu.Lock()
	if key == t.key {
		t.pending = slices.DeleteFunc(t.pending, func(p *entry) bool { return p == e })
	}
	t.mu.Unlock()
	t.emit()
}

func (t *Thread) ack(key Key, e *entry, posted *backend.PostedComment) {
	t.mu.Lock()
	if key != t.key {
		t.mu.Unlock()
		return
	}
	e.acked = true
	e.ackSeq = t.fetchSeq
	if posted != nil {
		e.serverID = posted.ID
	}
	if e.serverID != "" && slices.ContainsFunc(t.server, func(c backend.Comment) bool { return c.ID == e.serverID }) {
		t.pending = slices.DeleteFunc(t.pending, func(p *entry) bool { return p == e })
	}
	t.ackGen++
	t.mu.Unlock()

	t.emit()
	t.Load()
}

// ToggleLike presses the like button of a comment. Comments that are still
// local cannot be liked; ToggleLike reports false for them.
func (t *Thread) ToggleLike(commentID string) bool {
	if IsLocal(commentID) {
		return false
	}
	t.mu.Lock()
	ctrl, ok := t.likes[commentID]
	if !ok {
		var c *backend.Comment
		for i := range t.server {
			if t.server[i].ID == commentID {
				c = &t.server[i]
				break
			}
		}
		if c == nil {
			t.mu.Unlock()
			return false
		}
		var notifier dialog.Notifier
		if t.dialogs != nil {
			notifier = t.dialogs
		}
		ctrl = engagement.New(engagement.Config{
			Scope:    t.scope,
			API:      t.api,
			Ref:      backend.CommentRef(t.key.VideoID, commentID),
			Notifier: notifier,
			Reporter: t.reporter,
			Debounce: t.debounce,
			OnChange: func(engagement.State) { t.emit() },
		}, c.Liked, c.Likes)
		t.likes[commentID] = ctrl
	}
	t.mu.Unlock()

	ctrl.Press()
	return true
}

// Report asks the viewer to confirm, then flags the comment for review.
func (t *Thread) Report(commentID string) {
	if t.dialogs == nil || IsLocal(commentID) {
		return
	}
	t.dialogs.Confirm(dialog.Confirmation(
		"Please Confirm",
		"Are you sure you would like to report this comment?",
		"Yes",
		func() { t.sendReport(commentID) },
	))
}

func (t *Thread) sendReport(commentID string) {
	t.scope.Go(func(ctx context.Context) func() {
		err := t.api.Report(ctx, backend.ReportInput{
			Reason:    backend.ReportReasonComment,
			CommentID: commentID,
		})
		return func() {
			if err != nil {
				t.log.Warnf("report %s: %v", commentID, err)
				t.dialogs.Notify(ReportFailed)
				return
			}
			t.dialogs.Notify(ReportSent)
		}
	})
}

func (t *Thread) emit() {
	if t.onChange != nil {
		t.onChange()
	}
}
