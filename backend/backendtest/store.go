// Package backendtest is an in-memory implementation of the content API for
// tests and local development.
package backendtest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/njyeung/sofa/backend"
)

type account struct {
	password string
	user     backend.UserSchema
}

// Store holds the fake API's data. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	videos   map[string]backend.VideoSchema
	feeds    map[string]backend.FeedSchema
	subs     map[string][]backend.SubscriptionSchema
	comments map[string][]backend.CommentSchema
	accounts map[string]account
	tokens   map[string]string
	likes    map[string]bool
	reports  []backend.ReportSchema

	seq     int
	now     func() time.Time
	echoIDs bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		videos:   make(map[string]backend.VideoSchema),
		feeds:    make(map[string]backend.FeedSchema),
		subs:     make(map[string][]backend.SubscriptionSchema),
		comments: make(map[string][]backend.CommentSchema),
		accounts: make(map[string]account),
		tokens:   make(map[string]string),
		likes:    make(map[string]bool),
		now:      time.Now,
		echoIDs:  true,
	}
}

// SetEchoCommentID controls whether a posted comment is returned in the
// acknowledgement.
func (s *Store) SetEchoCommentID(echo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echoIDs = echo
}

func (s *Store) echoCommentID() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.echoIDs
}

// SetClock replaces the time source used for new comments.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddUser registers an account and returns its token.
func (s *Store) AddUser(email, password string, user backend.UserSchema) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = email
	s.accounts[email] = account{password: password, user: user}
	token := "token-" + user.ID
	s.tokens[token] = user.ID
	return token
}

// AddFeed stores a channel.
func (s *Store) AddFeed(f backend.FeedSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[f.ID] = f
}

// AddVideo stores a video. Its channel is filled from the stored feed when
// present.
func (s *Store) AddVideo(v backend.VideoSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.feeds[v.FeedID]; ok && v.Channel.ID == "" {
		v.Channel = f
	}
	s.videos[v.ID] = v
}

// Subscribe subscribes userID to feedID.
func (s *Store) Subscribe(userID, feedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	feed := s.feeds[feedID]
	feed.ID = feedID
	s.subs[userID] = append(s.subs[userID], backend.SubscriptionSchema{
		ID:     fmt.Sprintf("sub-%d", s.seq),
		Price:  feed.SubscriptionPrice,
		Status: "active",
		Feed:   feed,
	})
}

// AddComment stores a comment under ref, e.g. "42" or "42,c1".
func (s *Store) AddComment(ref string, c backend.CommentSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[ref] = append(s.comments[ref], c)
}

// Comments returns the comments stored under ref.
func (s *Store) Comments(ref string) []backend.CommentSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.CommentSchema(nil), s.comments[ref]...)
}

// Video returns a stored video.
func (s *Store) Video(id string) (backend.VideoSchema, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	return v, ok
}

// Reports returns every report received.
func (s *Store) Reports() []backend.ReportSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.ReportSchema(nil), s.reports...)
}

func (s *Store) login(email, password string) (string, backend.UserSchema, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[email]
	if !ok || acc.password != password {
		return "", backend.UserSchema{}, false
	}
	return "token-" + acc.user.ID, acc.user, true
}

func (s *Store) userForToken(token string) (backend.UserSchema, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tokens[token]
	if !ok {
		return backend.UserSchema{}, false
	}
	for _, acc := range s.accounts {
		if acc.user.ID == id {
			return acc.user, true
		}
	}
	return backend.UserSchema{ID: id}, true
}

func likeKey(userID, resourceType, ref string) string {
	return userID + "|" + resourceType + "|" + ref
}

func (s *Store) video(userID, id string) (backend.VideoSchema, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return v, false
	}
	v.Engagements.Liked = s.likes[likeKey(userID, string(backend.ResourceVideo), id)]
	v.Engagements.TotalComments = len(s.comments[id])
	for _, sub := range s.subs[userID] {
		if sub.Feed.ID == v.Channel.ID {
			v.Channel.Engagements.Subscribed = true
		}
	}
	return v, true
}

func (s *Store) feed(userID, id string) (backend.FeedSchema, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[id]
	if !ok {
		return f, false
	}
	for _, sub := range s.subs[userID] {
		if sub.Feed.ID == id {
			f.Engagements.Subscribed = true
		}
	}
	return f, true
}

func (s *Store) subscriptions(userID string) []backend.SubscriptionSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.SubscriptionSchema{}, s.subs[userID]...)
}

func (s *Store) listComments(userID, ref string) []backend.CommentSchema {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.CommentSchema, 0, len(s.comments[ref]))
	videoID, _, _ := strings.Cut(ref, ",")
	for _, c := range s.comments[ref] {
		c.Engagements.Liked = s.likes[likeKey(userID, string(backend.ResourceComment), videoID+","+c.ID)]
		c.Engagements.TotalComments = len(s.comments[videoID+","+c.ID])
		out = append(out, c)
	}
	return out
}

func (s *Store) postComment(user backend.UserSchema, ref string, msg backend.MessageSchema) backend.CommentSchema {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	c := backend.CommentSchema{
		ID:        fmt.Sprintf("c%d", 1000+s.seq),
		CreatedAt: s.now().UTC().Format(backend.TimeFormat),
		User:      user,
		Content:   msg,
	}
	s.comments[ref] = append(s.comments[ref], c)
	return c
}

// setLike applies a like or unlike and returns the resulting state.
func (s *Store) setLike(userID, resourceType, ref string, liked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := likeKey(userID, resourceType, ref)
	if s.likes[key] == liked {
		return liked
	}
	s.likes[key] = liked

	delta := 1
	if !liked {
		delta = -1
	}

	switch backend.ResourceType(resourceType) {
	case backend.ResourceVideo:
		if v, ok := s.videos[ref]; ok {
			v.Engagements.TotalLikes += delta
			s.videos[ref] = v
		}
	case backend.ResourceComment:
		videoID, commentID, _ := strings.Cut(ref, ",")
		for k, list := range s.comments {
			if k != videoID && !strings.HasPrefix(k, videoID+",") {
				continue
			}
			for i := range list {
				if list[i].ID == commentID {
					list[i].Engagements.TotalLikes += delta
				}
			}
		}
	}
	return liked
}

func (s *Store) report(r backend.ReportSchema) backend.ReportSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return r
}

func (s *Store) upload(filename, contentType string) backend.FileSchema {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	url := fmt.Sprintf("https://media.example.test/%d/%s", s.seq, filename)
	if strings.HasPrefix(contentType, "video/") {
		return backend.FileSchema{Type: "video", VideoURL: url, Height: "1080", Width: "1920", AspectRatio: []any{"16", "9"}}
	}
	return backend.FileSchema{Type: "image", ImageURL: url, Height: "600", Width: "800", AspectRatio: "4:3"}
}
