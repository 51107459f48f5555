// Package session holds the signed-in user's credentials and profile.
//
// A Context is passed explicitly to whatever needs it instead of being read
// from a global store. Every login or logout advances the session generation;
// work that captured a Stamp before the change can check Valid and drop its
// result.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-json-experiment/json"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by Token when nobody is signed in.
var ErrNoToken = errors.New("session: not signed in")

// Domain identifies how the token was obtained.
type Domain string

const (
	DomainEmail    Domain = "email"
	DomainGoogle   Domain = "google"
	DomainFacebook Domain = "facebook"
	DomainApple    Domain = "apple"
	DomainWeb      Domain = "web"
)

// User is the signed-in user's profile.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName returns "First Last", falling back to the username.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// Stamp identifies one session generation.
type Stamp uint64

// Context is the current session. Safe for concurrent use.
type Context struct {
	mu         sync.RWMutex
	token      string
	domain     Domain
	user       *User
	visitor    bool
	generation uint64
}

// New returns a signed-out session.
func New() *Context {
	return &Context{}
}

// Login replaces the session with a signed-in one.
func (c *Context) Login(token string, domain Domain, user User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	c.domain = domain
	c.user = &user
	c.visitor = false
	c.generation++
}

// Visit marks the session as browsing without an account.
func (c *Context) Visit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.domain = ""
	c.user = nil
	c.visitor = true
	c.generation++
}

// Logout clears credentials and profile.
func (c *Context) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.domain = ""
	c.user = nil
	c.visitor = false
	c.generation++
}

// User returns a copy of the signed-in user, or nil.
func (c *Context) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// SignedIn reports whether a token is present.
func (c *Context) SignedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// IsVisitor reports whether the user chose to browse without an account.
func (c *Context) IsVisitor() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visitor
}

// Domain returns how the current token was obtained.
func (c *Context) Domain() Domain {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.domain
}

// Stamp returns the current generation.
func (c *Context) Stamp() Stamp {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stamp(c.generation)
}

// Valid reports whether s is still the current generation.
func (c *Context) Valid(s Stamp) bool {
	return c.Stamp() == s
}

// Token implements oauth2.TokenSource.
func (c *Context) Token() (*oauth2.Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}, nil
}

var _ oauth2.TokenSource = (*Context)(nil)

type persisted struct {
	Token   string `json:"token,omitempty"`
	Domain  Domain `json:"token_domain,omitempty"`
	User    *User  `json:"user,omitempty"`
	Visitor bool   `json:"is_visitor,omitempty"`
}

// Save writes the session to path.
func (c *Context) Save(path string) error {
	c.mu.RLock()
	p := persisted{Token: c.token, Domain: c.domain, User: c.user, Visitor: c.visitor}
	c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Load restores a session saved by Save. A missing file leaves the session
// signed out and is not an error.
func (c *Context) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = p.Token
	c.domain = p.Domain
	c.user = p.User
	c.visitor = p.Visitor
	c.generation++
	return nil
}
