package backendtest

import (
	"time"

	"github.com/njyeung/sofa/backend"
)

// Demo fixture ids and credentials.
const (
	DemoEmail    = "viewer@example.test"
	DemoPassword = "password"
	DemoUserID   = "u-viewer"
	DemoVideoID  = "42"
	DemoFeedID   = "feed-1"
	DemoAliceID  = "u-alice"
)

// Seed fills store with one channel, one video, a viewer account and a short
// comment thread. clipURL is the media the video points at.
func Seed(store *Store, clipURL string) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	store.AddUser(DemoEmail, DemoPassword, backend.UserSchema{
		ID:        DemoUserID,
		Username:  "viewer",
		FirstName: "Vera",
		LastName:  "Viewer",
	})
	alice := backend.UserSchema{ID: DemoAliceID, Username: "alice", FirstName: "alice"}
	store.AddUser("alice@example.test", DemoPassword, alice)

	store.AddFeed(backend.FeedSchema{
		ID:                DemoFeedID,
		Name:              "Night Kitchen",
		Description:       "Late night cooking, one pan at a time.",
		CategoryIDs:       []string{"food"},
		Engagements:       backend.FeedEngagementSchema{TotalSubscribers: 1280},
		SubscriptionPrice: 4.99,
	})
	store.AddVideo(backend.VideoSchema{
		ID:          DemoVideoID,
		FeedID:      DemoFeedID,
		Duration:    60,
		CreatedAt:   base.Format(backend.TimeFormat),
		Title:       "Midnight ramen",
		Content:     "Broth, noodles and a soft egg in ten minutes.",
		Clips:       []backend.URLSchema{{URL: clipURL}},
		Engagements: backend.VideoEngagementSchema{TotalLikes: 1204, TotalViews: 50321},
	})

	store.AddComment(DemoVideoID, backend.CommentSchema{
		ID:        "c1",
		CreatedAt: base.Add(time.Minute).Format(backend.TimeFormat),
		User:      alice,
		Content:   backend.MessageSchema{Type: "text", Text: "that egg [e-1f373]"},
		Engagements: backend.VideoEngagementSchema{
			TotalLikes: 3,
		},
	})
	store.AddComment(DemoVideoID, backend.CommentSchema{
		ID:        "c2",
		CreatedAt: base.Add(2 * time.Minute).Format(backend.TimeFormat),
		User:      backend.UserSchema{ID: "u-bob", Username: "bob", FirstName: "bob"},
		Content:   backend.MessageSchema{Type: "text", Text: "making this tonight"},
	})
	store.AddComment(DemoVideoID+",c1", backend.CommentSchema{
		ID:        "c3",
		CreatedAt: base.Add(3 * time.Minute).Format(backend.TimeFormat),
		User:      backend.UserSchema{ID: "u-bob", Username: "bob", FirstName: "bob"},
		Content:   backend.MessageSchema{Type: "text", Text: "@alice agreed"},
	})
}
