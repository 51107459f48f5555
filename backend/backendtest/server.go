package backendtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-json-experiment/json"
	"github.com/njyeung/sofa/backend"
)

// Request is a request the fake API received.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// Handler serves the content API from a Store.
type Handler struct {
	store *Store

	mu       sync.Mutex
	requests []Request
	failures map[string][]int
	offline  bool
	gates    map[string]chan struct{}
}

// NewHandler serves store.
func NewHandler(store *Store) *Handler {
	return &Handler{
		store:    store,
		failures: make(map[string][]int),
		gates:    make(map[string]chan struct{}),
	}
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(h.record)
	r.Post("/users/login", h.login)
	r.Get("/videos/{id}", h.getVideo)
	r.Get("/feeds/{id}", h.getFeed)
	r.Get("/subscriptions", h.listSubscriptions)
	r.Route("/engagements", func(r chi.Router) {
		r.Get("/comments", h.listComments)
		r.Post("/comments", h.postComment)
		r.Post("/likes", h.like)
		r.Delete("/likes", h.unlike)
	})
	r.Post("/reports", h.report)
	r.Post("/uploads", h.upload)
}

// Router returns a chi router with the API mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// SetOffline makes every request fail with 503 until reset.
func (h *Handler) SetOffline(offline bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offline = offline
}

// FailNext makes the next request to path ("/engagements/likes") answer
// with status.
func (h *Handler) FailNext(path string, status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[path] = append(h.failures[path], status)
}

// Hold blocks requests to path until the returned release func is called.
func (h *Handler) Hold(path string) (release func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan struct{})
	h.gates[path] = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if h.gates[path] == ch {
				delete(h.gates, path)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns the requests received so far, optionally filtered by
// method and path.
func (h *Handler) Requests(method, path string) []Request {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Request
	for _, r := range h.requests {
		if (method == "" || r.Method == method) && (path == "" || r.Path == path) {
			out = append(out, r)
		}
	}
	return out
}

func (h *Handler) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}

		h.mu.Lock()
		h.requests = append(h.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body})
		offline := h.offline
		gate := h.gates[r.URL.Path]
		status := 0
		if queue := h.failures[r.URL.Path]; len(queue) > 0 {
			status = queue[0]
			h.failures[r.URL.Path] = queue[1:]
		}
		h.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if offline {
			writeError(w, http.StatusServiceUnavailable, "offline")
			return
		}
		if status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.MarshalWrite(w, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, backend.ErrorResponse{Message: msg})
}

func (h *Handler) viewer(r *http.Request) (backend.UserSchema, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return backend.UserSchema{}, false
	}
	return h.store.userForToken(token)
}

func (h *Handler) requireViewer(w http.ResponseWriter, r *http.Request) (backend.UserSchema, bool) {
	user, ok := h.viewer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
	}
	return user, ok
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in backend.LoginPayload
	if err := json.UnmarshalRead(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, user, ok := h.store.login(in.Email, in.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, backend.AuthResponse{Token: token, User: user})
}

func (h *Handler) getVideo(w http.ResponseWriter, r *http.Request) {
	viewer, _ := h.viewer(r)
	v, ok := h.store.video(viewer.ID, chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	writeJSON(w, http.StatusOK, backend.VideoResponse{Video: v})
}

func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	viewer, _ := h.viewer(r)
	f, ok := h.store.feed(viewer.ID, chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "feed not found")
		return
	}
	writeJSON(w, http.StatusOK, backend.FeedResponse{Feed: f})
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireViewer(w, r); !ok {
		return
	}
	userID := r.URL.Query().Get("user_id")
	writeJSON(w, http.StatusOK, backend.SubscriptionsResponse{Subscriptions: h.store.subscriptions(userID)})
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	viewer, _ := h.viewer(r)
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "ref is required")
		return
	}
	writeJSON(w, http.StatusOK, backend.CommentsResponse{Comments: h.store.listComments(viewer.ID, ref)})
}

func (h *Handler) postComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	ref := r.URL.Query().Get("ref")
	var msg backend.MessageSchema
	if err := json.UnmarshalRead(r.Body, &msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ref == "" || (msg.Text == "" && msg.ImageURL == "" && msg.VideoURL == "") {
		writeError(w, http.StatusBadRequest, "empty comment")
		return
	}

	c := h.store.postComment(viewer, ref, msg)
	resp := backend.StatusResponse{Status: "created"}
	if h.store.echoCommentID() {
		resp.Comment = &c
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) like(w http.ResponseWriter, r *http.Request) {
	h.setLike(w, r, true)
}

func (h *Handler) unlike(w http.ResponseWriter, r *http.Request) {
	h.setLike(w, r, false)
}

func (h *Handler) setLike(w http.ResponseWriter, r *http.Request, liked bool) {
	viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	status := "unliked"
	if h.store.setLike(viewer.ID, q.Get("resource_type"), q.Get("ref"), liked) {
		status = "liked"
	}
	writeJSON(w, http.StatusOK, backend.StatusResponse{Status: status})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var in backend.ReportSchema
	if err := json.UnmarshalRead(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.UserID = viewer.ID
	writeJSON(w, http.StatusCreated, backend.ReportResponse{Report: h.store.report(in)})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireViewer(w, r); !ok {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()
	io.Copy(io.Discard, file)

	writeJSON(w, http.StatusCreated, backend.UploadResponse{
		File: h.store.upload(header.Filename, header.Header.Get("Content-Type")),
	})
}

// Server is a running fake API.
type Server struct {
	*httptest.Server
	Store   *Store
	Handler *Handler
}

// NewServer starts a fake API on a local port. Call Close when done.
func NewServer() *Server {
	store := NewStore()
	h := NewHandler(store)
	return &Server{
		Server:  httptest.NewServer(h.Router()),
		Store:   store,
		Handler: h,
	}
}
