package backend_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/backend/backendtest"
	"github.com/njyeung/sofa/session"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*backend.HTTPBackend, *backendtest.Server, *session.Context) {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)
	backendtest.Seed(srv.Store, "file:///tmp/clip.mp4")

	sess := session.New()
	b, err := backend.NewHTTPBackend(backend.Options{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Session: sess,
		Logger:  log.NewStdLogger(io.Discard),
	})
	require.NoError(t, err)
	return b, srv, sess
}

func signIn(t *testing.T, b *backend.HTTPBackend, sess *session.Context) {
	t.Helper()
	auth, err := b.Login(context.Background(), backendtest.DemoEmail, backendtest.DemoPassword)
	require.NoError(t, err)
	sess.Login(auth.Token, session.DomainEmail, auth.User)
}

func TestNewHTTPBackendRejectsRelativeURL(t *testing.T) {
	_, err := backend.NewHTTPBackend(backend.Options{BaseURL: "/api"})
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	b, _, _ := setup(t)
	ctx := context.Background()

	auth, err := b.Login(ctx, backendtest.DemoEmail, backendtest.DemoPassword)
	require.NoError(t, err)
	require.NotEmpty(t, auth.Token)
	require.Equal(t, backendtest.DemoUserID, auth.User.ID)
	require.Equal(t, "Vera", auth.User.FirstName)

	_, err = b.Login(ctx, backendtest.DemoEmail, "wrong")
	require.ErrorIs(t, err, backend.ErrUnauthorized)
}

func TestGetVideo(t *testing.T) {
	b, _, _ := setup(t)

	v, err := b.GetVideo(context.Background(), backendtest.DemoVideoID)
	require.NoError(t, err)
	require.Equal(t, "Midnight ramen", v.Title)
	require.Equal(t, 60*time.Second, v.Duration)
	require.Equal(t, "file:///tmp/clip.mp4", v.ClipURL)
	require.Equal(t, backendtest.DemoFeedID, v.ChannelID)
	require.Equal(t, backendtest.DemoFeedID, v.Channel.ID)
	require.Equal(t, 1204, v.Likes)
	require.Equal(t, 2, v.Comments)
	require.False(t, v.Liked)

	_, err = b.GetVideo(context.Background(), "missing")
	require.ErrorIs(t, err, backend.ErrNotFound)
}

func TestGetChannelAndSubscriptions(t *testing.T) {
	b, srv, sess := setup(t)
	ctx := context.Background()
	signIn(t, b, sess)

	ch, err := b.GetChannel(ctx, backendtest.DemoFeedID)
	require.NoError(t, err)
	require.Equal(t, "Night Kitchen", ch.Name)
	require.False(t, ch.Subscribed)
	require.InDelta(t, 4.99, ch.Price, 0.001)

	subs, err := b.ListSubscriptions(ctx, backendtest.DemoUserID)
	require.NoError(t, err)
	require.Empty(t, subs)

	srv.Store.Subscribe(backendtest.DemoUserID, backendtest.DemoFeedID)
	subs, err = b.ListSubscriptions(ctx, backendtest.DemoUserID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, backendtest.DemoFeedID, subs[0].ChannelID)

	reqs := srv.Handler.Requests(http.MethodGet, "/subscriptions")
	require.Len(t, reqs, 2)
	q := reqs[1].Query
	require.Equal(t, backendtest.DemoUserID, q.Get("user_id"))
	require.Equal(t, "50", q.Get("limit"))
}

func TestListCommentsQueryAndDecoding(t *testing.T) {
	b, srv, _ := setup(t)

	comments, err := b.ListComments(context.Background(), backend.ThreadRef(backendtest.DemoVideoID, ""))
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, "that egg 🍳", comments[0].Text)
	require.Equal(t, "alice", comments[0].User.Name())
	require.Equal(t, 1, comments[0].Replies)
	require.Equal(t, 3, comments[0].Likes)

	reqs := srv.Handler.Requests(http.MethodGet, "/engagements/comments")
	require.Len(t, reqs, 1)
	q := reqs[0].Query
	require.Equal(t, "all", q.Get("type"))
	require.Equal(t, "42", q.Get("ref"))
	require.Equal(t, "video", q.Get("resource_type"))
	require.Equal(t, "most_recent", q.Get("order"))
	require.Equal(t, "100", q.Get("limit"))

	replies, err := b.ListComments(context.Background(), backend.ThreadRef(backendtest.DemoVideoID, "c1"))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Equal(t, "c3", replies[0].ID)
}

func TestPostComment(t *testing.T) {
	b, srv, sess := setup(t)
	ctx := context.Background()
	ref := backend.ThreadRef(backendtest.DemoVideoID, "c1")

	_, err := b.PostComment(ctx, ref, backend.CommentInput{Text: "hi"})
	require.ErrorIs(t, err, backend.ErrUnauthorized)

	signIn(t, b, sess)
	posted, err := b.PostComment(ctx, ref, backend.CommentInput{Text: "@alice nice! [e-1f389]"})
	require.NoError(t, err)
	require.NotEmpty(t, posted.ID)

	reqs := srv.Handler.Requests(http.MethodPost, "/engagements/comments")
	last := reqs[len(reqs)-1]
	require.Equal(t, "42,c1", last.Query.Get("ref"))
	require.Equal(t, "video", last.Query.Get("resource_type"))

	var body backend.MessageSchema
	require.NoError(t, json.Unmarshal(last.Body, &body))
	require.Equal(t, "text", body.Type)
	require.Equal(t, "@alice nice! [e-1f389]", body.Text)

	stored := srv.Store.Comments("42,c1")
	require.Len(t, stored, 2)
}

func TestLikeUnlike(t *testing.T) {
	b, srv, sess := setup(t)
	ctx := context.Background()
	signIn(t, b, sess)
	ref := backend.VideoRef(backendtest.DemoVideoID)

	require.NoError(t, b.Like(ctx, ref))
	v, err := b.GetVideo(ctx, backendtest.DemoVideoID)
	require.NoError(t, err)
	require.True(t, v.Liked)
	require.Equal(t, 1205, v.Likes)

	require.NoError(t, b.Unlike(ctx, ref))
	v, err = b.GetVideo(ctx, backendtest.DemoVideoID)
	require.NoError(t, err)
	require.False(t, v.Liked)
	require.Equal(t, 1204, v.Likes)

	require.NoError(t, b.Like(ctx, backend.CommentRef(backendtest.DemoVideoID, "c1")))
	comments, err := b.ListComments(ctx, backend.ThreadRef(backendtest.DemoVideoID, ""))
	require.NoError(t, err)
	require.True(t, comments[0].Liked)
	require.Equal(t, 4, comments[0].Likes)

	srv.Handler.SetOffline(true)
	err = b.Like(ctx, ref)
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestReport(t *testing.T) {
	b, srv, sess := setup(t)
	signIn(t, b, sess)

	err := b.Report(context.Background(), backend.ReportInput{
		Reason:    backend.ReportReasonComment,
		CommentID: "c2",
	})
	require.NoError(t, err)

	reports := srv.Store.Reports()
	require.Len(t, reports, 1)
	require.Equal(t, "c2", reports[0].CommentID)
	require.Equal(t, "Innapropriate Comment", reports[0].Reason)
	require.Equal(t, backendtest.DemoUserID, reports[0].UserID)
}

func TestUpload(t *testing.T) {
	b, _, sess := setup(t)
	signIn(t, b, sess)

	path := filepath.Join(t.TempDir(), "dinner.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0644))

	m, err := b.Upload(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, backend.KindImage, m.Kind)
	require.Contains(t, m.ImageURL, "dinner.png")
	require.Equal(t, 800, m.Width)
	require.Equal(t, 600, m.Height)
	require.Equal(t, "4:3", m.AspectRatio)
}

func TestStaleSessionRejected(t *testing.T) {
	b, srv, sess := setup(t)
	signIn(t, b, sess)

	release := srv.Handler.Hold("/engagements/comments")
	errCh := make(chan error, 1)
	go func() {
		_, err := b.ListComments(context.Background(), backend.ThreadRef(backendtest.DemoVideoID, ""))
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return len(srv.Handler.Requests(http.MethodGet, "/engagements/comments")) == 1
	}, 2*time.Second, 5*time.Millisecond)

	sess.Logout()
	release()
	require.ErrorIs(t, <-errCh, backend.ErrStaleSession)
}

func TestRefString(t *testing.T) {
	require.Equal(t, "42", backend.ThreadRef("42", "").String())
	require.Equal(t, "42,c1", backend.ThreadRef("42", "c1").String())
	require.Equal(t, "42,c1", backend.CommentRef("42", "c1").String())
	require.Equal(t, backend.ResourceComment, backend.CommentRef("42", "c1").Type)
}
