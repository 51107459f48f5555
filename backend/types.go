package backend

import (
	"context"
	"strings"
	"time"

	"github.com/njyeung/sofa/session"
)

// Backend defines the interface between the UI and the content API
type Backend interface {

	// Login exchanges email and password for a token
	Login(ctx context.Context, email, password string) (*Auth, error)

	// GetVideo returns one video with its channel and engagement counts
	GetVideo(ctx context.Context, id string) (*Video, error)

	// GetChannel returns a channel's detail page
	GetChannel(ctx context.Context, id string) (*Channel, error)

	// ListSubscriptions returns the channels userID subscribes to
	ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error)

	// ListComments returns comments attached to ref, in server order
	ListComments(ctx context.Context, ref Ref) ([]Comment, error)

	// PostComment adds a comment under ref
	PostComment(ctx context.Context, ref Ref, in CommentInput) (*PostedComment, error)

	// Like and Unlike set the viewer's like on ref
	Like(ctx context.Context, ref Ref) error
	Unlike(ctx context.Context, ref Ref) error

	// Report flags a video or comment for review
	Report(ctx context.Context, in ReportInput) error

	// Upload sends a local media file and returns where it was stored
	Upload(ctx context.Context, path string) (*Media, error)
}

const (
	// DefaultTimeout bounds every API request
	DefaultTimeout = 20 * time.Second

	// CommentPageSize is the number of comments fetched per thread
	CommentPageSize = 100

	// SubscriptionPageSize is the number of subscriptions fetched per user
	SubscriptionPageSize = 50

	// ReportReasonComment is the reason sent when a comment is flagged
	ReportReasonComment = "Innapropriate Comment"
	// ReportReasonVideo is the reason sent when a video is flagged
	ReportReasonVideo = "Innapropriate Video"
)

// ResourceType names what an engagement is attached to
type ResourceType string

const (
	ResourceVideo   ResourceType = "video"
	ResourceComment ResourceType = "comment"
)

// Ref addresses a resource: [videoID] for a video, [videoID, commentID] for a
// comment or its replies.
type Ref struct {
	Type ResourceType
	IDs  []string
}

// VideoRef addresses a video
func VideoRef(videoID string) Ref {
	return Ref{Type: ResourceVideo, IDs: []string{videoID}}
}

// CommentRef addresses a comment on a video
func CommentRef(videoID, commentID string) Ref {
	return Ref{Type: ResourceComment, IDs: []string{videoID, commentID}}
}

// ThreadRef addresses the comments under a video, or the replies under
// parentID when it is set. Threads are always video resources.
func ThreadRef(videoID, parentID string) Ref {
	ids := []string{videoID}
	if parentID != "" {
		ids = append(ids, parentID)
	}
	return Ref{Type: ResourceVideo, IDs: ids}
}

// String joins the non-empty ids with commas, as the API expects
func (r Ref) String() string {
	ids := make([]string, 0, len(r.IDs))
	for _, id := range r.IDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return strings.Join(ids, ",")
}

// Auth is the result of a successful login
type Auth struct {
	Token string
	User  session.User
}

// Engagement holds a video's counters
type Engagement struct {
	Likes    int
	Views    int
	Comments int
	Liked    bool
}

// Channel is a feed that viewers subscribe to
type Channel struct {
	ID           string
	Name         string
	Description  string
	CoverURL     string
	ThumbnailURL string
	Subscribers  int
	Subscribed   bool
	Price        float64
	CategoryIDs  []string
}

// Video is a single playable item
type Video struct {
	ID           string
	ChannelID    string
	Title        string
	Content      string
	Duration     time.Duration
	Created      time.Time
	ClipURL      string
	ThumbnailURL string
	Channel      Channel
	Engagement
}

// Subscription links the user to a channel
type Subscription struct {
	ID        string
	ChannelID string
	Status    string
	Price     float64
}

// CommentKind is the content type of a comment
type CommentKind string

const (
	KindText  CommentKind = "text"
	KindImage CommentKind = "image"
	KindVideo CommentKind = "video"
)

// Author is the public profile attached to a comment
type Author struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	AvatarURL string
}

// Name returns the name shown next to a comment and used in reply mentions
func (a Author) Name() string {
	switch {
	case a.FirstName != "":
		return a.FirstName
	case a.Username != "":
		return a.Username
	default:
		return "someone"
	}
}

// AuthorFromUser converts the signed-in user to a comment author
func AuthorFromUser(u session.User) Author {
	return Author{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
	}
}

// Comment is one entry in a thread. Text is already emoji-decoded.
type Comment struct {
	ID       string
	Kind     CommentKind
	Text     string
	ImageURL string
	VideoURL string
	Created  time.Time
	Likes    int
	Liked    bool
	Replies  int
	User     Author
}

// Media describes an uploaded file
type Media struct {
	Kind        CommentKind
	ImageURL    string
	VideoURL    string
	Width       int
	Height      int
	AspectRatio string
}

// CommentInput is the body of a new comment. Text must already be
// emoji-encoded.
type CommentInput struct {
	Kind  CommentKind
	Text  string
	Media *Media
}

// PostedComment is the server's acknowledgement. ID may be empty when the
// API does not echo the new comment.
type PostedComment struct {
	ID string
}

// ReportInput flags a video or a comment
type ReportInput struct {
	Reason    string
	VideoID   string
	CommentID string
}
