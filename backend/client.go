package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/njyeung/sofa/session"
	"github.com/njyeung/sofa/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// HTTPBackend implements Backend against the REST content API
type HTTPBackend struct {
	base     *url.URL
	session  *session.Context
	authed   *http.Client
	anon     *http.Client
	reporter *telemetry.Reporter
	tracer   trace.Tracer
	log      *log.Helper
}

// Options configures NewHTTPBackend
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Session   *session.Context
	Reporter  *telemetry.Reporter
	Logger    log.Logger
	Transport http.RoundTripper
}

// NewHTTPBackend creates a client for the API at opts.BaseURL
func NewHTTPBackend(opts Options) (*HTTPBackend, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if opts.Session == nil {
		opts.Session = session.New()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	traced := otelhttp.NewTransport(transport)

	return &HTTPBackend{
		base:    base,
		session: opts.Session,
		authed: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &oauth2.Transport{Source: opts.Session, Base: traced},
		},
		anon:     &http.Client{Timeout: opts.Timeout, Transport: traced},
		reporter: opts.Reporter,
		tracer:   otel.Tracer("sofa.backend"),
		log:      log.NewHelper(log.With(opts.Logger, "module", "backend")),
	}, nil
}

type request struct {
	endpoint    string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	anonymous   bool
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// do sends req and decodes a 2xx body into out. Responses that arrive after
// the session changed are rejected with ErrStaleSession.
func (b *HTTPBackend) do(ctx context.Context, req request, out any) (err error) {
	ctx, span := b.tracer.Start(ctx, "backend."+req.endpoint, trace.WithAttributes(
		attribute.String("http.method", req.method),
		attribute.String("api.path", req.path),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		b.reporter.RecordRequest(ctx, req.endpoint, time.Since(start), err)
	}()

	u := b.base.ResolveReference(&url.URL{Path: req.path})
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), req.body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", req.endpoint, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	client := b.anon
	if !req.anonymous && b.session.SignedIn() {
		client = b.authed
	}
	stamp := b.session.Stamp()

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", req.endpoint, err)
	}
	defer resp.Body.Close()

	if !req.anonymous && !b.session.Valid(stamp) {
		io.Copy(io.Discard, resp.Body)
		return ErrStaleSession
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil {
			if e.Message != "" {
				msg = e.Message
			} else if e.Error != "" {
				msg = e.Error
			}
		}
		b.log.Warnf("%s %s: %d %s", req.method, req.path, resp.StatusCode, msg)
		return statusError(resp.StatusCode, msg)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.UnmarshalRead(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.endpoint, err)
	}
	return nil
}

// Login exchanges email and password for a token. The session is not
// modified; callers decide when to apply the result.
func (b *HTTPBackend) Login(ctx context.Context, email, password string) (*Auth, error) {
	body, err := jsonBody(LoginPayload{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var resp AuthResponse
	err = b.do(ctx, request{
		endpoint:    "login",
		method:      http.MethodPost,
		path:        "users/login",
		body:        body,
		contentType: "application/json",
		anonymous:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, ErrLoginFailed
	}
	return &Auth{Token: resp.Token, User: resp.User.sessionUser()}, nil
}

// GetVideo returns one video
func (b *HTTPBackend) GetVideo(ctx context.Context, id string) (*Video, error) {
	var resp VideoResponse
	if err := b.do(ctx, request{
		endpoint: "videos",
		method:   http.MethodGet,
		path:     "videos/" + url.PathEscape(id),
	}, &resp); err != nil {
		return nil, err
	}
	v := resp.Video.Video()
	return &v, nil
}

// GetChannel returns a channel
func (b *HTTPBackend) GetChannel(ctx context.Context, id string) (*Channel, error) {
	var resp FeedResponse
	if err := b.do(ctx, request{
		endpoint: "feeds",
		method:   http.MethodGet,
		path:     "feeds/" + url.PathEscape(id),
	}, &resp); err != nil {
		return nil, err
	}
	ch := resp.Feed.Channel()
	return &ch, nil
}

// ListSubscriptions returns userID's subscriptions
func (b *HTTPBackend) ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	var resp SubscriptionsResponse
	if err := b.do(ctx, request{
		endpoint: "subscriptions",
		method:   http.MethodGet,
		path:     "subscriptions",
		query: url.Values{
			"user_id": {userID},
			"page":    {"1"},
			"limit":   {strconv.Itoa(SubscriptionPageSize)},
		},
	}, &resp); err != nil {
		return nil, err
	}

	out := make([]Subscription, 0, len(resp.Subscriptions))
	for _, s := range resp.Subscriptions {
		out = append(out, s.Subscription())
	}
	return out, nil
}

// ListComments returns the first page of comments under ref
func (b *HTTPBackend) ListComments(ctx context.Context, ref Ref) ([]Comment, error) {
	var resp CommentsResponse
	if err := b.do(ctx, request{
		endpoint: "comments",
		method:   http.MethodGet,
		path:     "engagements/comments",
		query: url.Values{
			"type":          {"all"},
			"ref":           {ref.String()},
			"resource_type": {string(ref.Type)},
			"order":         {"most_recent"},
			"page":          {"1"},
			"limit":         {strconv.Itoa(CommentPageSize)},
		},
	}, &resp); err != nil {
		return nil, err
	}

	out := make([]Comment, 0, len(resp.Comments))
	for _, c := range resp.Comments {
		out = append(out, c.Comment())
	}
	return out, nil
}

// PostComment adds a comment under ref
func (b *HTTPBackend) PostComment(ctx context.Context, ref Ref, in CommentInput) (*PostedComment, error) {
	body, err := jsonBody(in.Message())
	if err != nil {
		return nil, err
	}

	var resp StatusResponse
	if err := b.do(ctx, request{
		endpoint:    "post_comment",
		method:      http.MethodPost,
		path:        "engagements/comments",
		query:       url.Values{"ref": {ref.String()}, "resource_type": {string(ref.Type)}},
		body:        body,
		contentType: "application/json",
	}, &resp); err != nil {
		return nil, err
	}

	posted := &PostedComment{}
	if resp.Comment != nil {
		posted.ID = resp.Comment.ID
	}
	return posted, nil
}

// Like likes ref
func (b *HTTPBackend) Like(ctx context.Context, ref Ref) error {
	return b.setLike(ctx, http.MethodPost, ref)
}

// Unlike removes the like on ref
func (b *HTTPBackend) Unlike(ctx context.Context, ref Ref) error {
	return b.setLike(ctx, http.MethodDelete, ref)
}

func (b *HTTPBackend) setLike(ctx context.Context, method string, ref Ref) error {
	var resp StatusResponse
	return b.do(ctx, request{
		endpoint: "likes",
		method:   method,
		path:     "engagements/likes",
		query:    url.Values{"ref": {ref.String()}, "resource_type": {string(ref.Type)}},
	}, &resp)
}

// Report flags a video or comment
func (b *HTTPBackend) Report(ctx context.Context, in ReportInput) error {
	body, err := jsonBody(ReportSchema{Reason: in.Reason, VideoID: in.VideoID, CommentID: in.CommentID})
	if err != nil {
		return err
	}
	var resp ReportResponse
	return b.do(ctx, request{
		endpoint:    "reports",
		method:      http.MethodPost,
		path:        "reports",
		body:        body,
		contentType: "application/json",
	}, &resp)
}

// Upload sends the file at path as multipart form data
func (b *HTTPBackend) Upload(ctx context.Context, path string) (*Media, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	var resp UploadResponse
	if err := b.do(ctx, request{
		endpoint:    "uploads",
		method:      http.MethodPost,
		path:        "uploads",
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, &resp); err != nil {
		return nil, err
	}
	m := resp.File.Media()
	if m.Kind == "" {
		m.Kind = kindFromContentType(contentType)
	}
	return &m, nil
}

func kindFromContentType(ct string) CommentKind {
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	default:
		return KindText
	}
}

var _ Backend = (*HTTPBackend)(nil)
