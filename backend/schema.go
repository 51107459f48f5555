package backend

import (
	"strconv"
	"strings"
	"time"

	"github.com/njyeung/sofa/emoji"
	"github.com/njyeung/sofa/session"
)

// Wire schemas of the content API. Fields the client never reads are
// omitted; unknown members are ignored on decode.

type ImageSchema struct {
	ImageURL string `json:"image_url"`
	Height   any    `json:"height,omitempty"`
	Width    any    `json:"width,omitempty"`
}

type UserSchema struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email,omitempty"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Avatar    ImageSchema `json:"avatar"`
}

type FeedEngagementSchema struct {
	TotalSubscribers int  `json:"total_subscribers"`
	Subscribed       bool `json:"subscribed"`
}

type FeedSchema struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	CategoryIDs       []string             `json:"category_ids"`
	Cover             ImageSchema          `json:"cover"`
	Thumbnail         ImageSchema          `json:"thumbnail"`
	Engagements       FeedEngagementSchema `json:"engagements"`
	SubscriptionPrice float64              `json:"subscription_price"`
}

type VideoEngagementSchema struct {
	TotalLikes    int  `json:"total_likes"`
	TotalViews    int  `json:"total_views"`
	TotalComments int  `json:"total_comments"`
	Liked         bool `json:"liked"`
}

type URLSchema struct {
	URL string `json:"url"`
}

type VideoSchema struct {
	ID          string                `json:"id"`
	FeedID      string                `json:"feed_id"`
	Duration    float64               `json:"duration"`
	CreatedAt   string                `json:"created_at"`
	Title       string                `json:"title"`
	Content     string                `json:"content"`
	Clips       []URLSchema           `json:"clips"`
	Thumbnails  []URLSchema           `json:"thumbnails"`
	Channel     FeedSchema            `json:"channel"`
	Engagements VideoEngagementSchema `json:"engagements"`
}

type SubscriptionSchema struct {
	ID     string     `json:"id"`
	Price  float64    `json:"price"`
	Status string     `json:"status"`
	Feed   FeedSchema `json:"feed"`
}

// MessageSchema is the content of a comment, both on read and as the body of
// a new comment.
type MessageSchema struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	Height      any    `json:"height,omitempty"`
	Width       any    `json:"width,omitempty"`
	AspectRatio any    `json:"aspect_ratio,omitempty"`
}

type CommentSchema struct {
	ID          string                `json:"id"`
	CreatedAt   string                `json:"created_at"`
	User        UserSchema            `json:"user"`
	Content     MessageSchema         `json:"content"`
	Engagements VideoEngagementSchema `json:"engagements"`
}

type FileSchema struct {
	Type        string `json:"type"`
	ImageURL    string `json:"image_url,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	Height      any    `json:"height,omitempty"`
	Width       any    `json:"width,omitempty"`
	AspectRatio any    `json:"aspect_ratio,omitempty"`
}

type ReportSchema struct {
	Reason    string `json:"reason"`
	VideoID   string `json:"video_id,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FCMToken string `json:"fcm_token,omitempty"`
}

// Response envelopes

type AuthResponse struct {
	Token string     `json:"token"`
	User  UserSchema `json:"user"`
}

type VideoResponse struct {
	Video VideoSchema `json:"video"`
}

type FeedResponse struct {
	Feed FeedSchema `json:"feed"`
}

type SubscriptionsResponse struct {
	Subscriptions []SubscriptionSchema `json:"subscriptions"`
}

type CommentsResponse struct {
	Comments []CommentSchema `json:"comments"`
}

type StatusResponse struct {
	Status  string         `json:"status"`
	Comment *CommentSchema `json:"comment,omitempty"`
}

type ReportResponse struct {
	Report ReportSchema `json:"report"`
}

type UploadResponse struct {
	File FileSchema `json:"file"`
}

type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// TimeFormat is how the API writes timestamps.
const TimeFormat = time.RFC3339

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// intOf reads a number the API sends either as a JSON number or a string.
func intOf(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return int(f)
		}
	}
	return 0
}

// stringOf reads an aspect ratio sent as a string or a list of strings.
func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []any:
		parts := make([]string, 0, len(s))
		for _, p := range s {
			if str, ok := p.(string); ok {
				parts = append(parts, str)
			}
		}
		return strings.Join(parts, ",")
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func (u UserSchema) sessionUser() session.User {
	return session.User{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.Avatar.ImageURL,
	}
}

func (u UserSchema) author() Author {
	return Author{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.Avatar.ImageURL,
	}
}

// Channel converts the wire feed to a Channel.
func (f FeedSchema) Channel() Channel {
	return Channel{
		ID:           f.ID,
		Name:         f.Name,
		Description:  f.Description,
		CoverURL:     f.Cover.ImageURL,
		ThumbnailURL: f.Thumbnail.ImageURL,
		Subscribers:  f.Engagements.TotalSubscribers,
		Subscribed:   f.Engagements.Subscribed,
		Price:        f.SubscriptionPrice,
		CategoryIDs:  f.CategoryIDs,
	}
}

// Video converts the wire video to a Video.
func (v VideoSchema) Video() Video {
	out := Video{
		ID:        v.ID,
		ChannelID: v.FeedID,
		Title:     v.Title,
		Content:   v.Content,
		Duration:  time.Duration(v.Duration * float64(time.Second)),
		Created:   parseTime(v.CreatedAt),
		Channel:   v.Channel.Channel(),
		Engagement: Engagement{
			Likes:    v.Engagements.TotalLikes,
			Views:    v.Engagements.TotalViews,
			Comments: v.Engagements.TotalComments,
			Liked:    v.Engagements.Liked,
		},
	}
	if len(v.Clips) > 0 {
		out.ClipURL = v.Clips[0].URL
	}
	if len(v.Thumbnails) > 0 {
		out.ThumbnailURL = v.Thumbnails[0].URL
	}
	if out.ChannelID == "" {
		out.ChannelID = v.Channel.ID
	}
	return out
}

// Subscription converts the wire subscription to a Subscription.
func (s SubscriptionSchema) Subscription() Subscription {
	return Subscription{
		ID:        s.ID,
		ChannelID: s.Feed.ID,
		Status:    s.Status,
		Price:     s.Price,
	}
}

// Comment converts the wire comment to a Comment, decoding emoji escapes.
func (c CommentSchema) Comment() Comment {
	kind := CommentKind(c.Content.Type)
	if kind == "" {
		kind = KindText
	}
	return Comment{
		ID:       c.ID,
		Kind:     kind,
		Text:     emoji.Decode(c.Content.Text),
		ImageURL: c.Content.ImageURL,
		VideoURL: c.Content.VideoURL,
		Created:  parseTime(c.CreatedAt),
		Likes:    c.Engagements.TotalLikes,
		Liked:    c.Engagements.Liked,
		Replies:  c.Engagements.TotalComments,
		User:     c.User.author(),
	}
}

// Media converts the upload result to Media.
func (f FileSchema) Media() Media {
	return Media{
		Kind:        CommentKind(f.Type),
		ImageURL:    f.ImageURL,
		VideoURL:    f.VideoURL,
		Width:       intOf(f.Width),
		Height:      intOf(f.Height),
		AspectRatio: stringOf(f.AspectRatio),
	}
}

// Message converts a new comment to its wire body.
func (in CommentInput) Message() MessageSchema {
	kind := in.Kind
	if kind == "" {
		kind = KindText
	}
	m := MessageSchema{Type: string(kind), Text: in.Text}
	if in.Media != nil {
		m.ImageURL = in.Media.ImageURL
		m.VideoURL = in.Media.VideoURL
		if in.Media.Height > 0 {
			m.Height = strconv.Itoa(in.Media.Height)
		}
		if in.Media.Width > 0 {
			m.Width = strconv.Itoa(in.Media.Width)
		}
		if in.Media.AspectRatio != "" {
			m.AspectRatio = in.Media.AspectRatio
		}
	}
	return m
}
