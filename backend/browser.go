package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/njyeung/sofa/session"
)

// Local storage keys the web app writes after signing in.
const (
	storageToken  = "token"
	storageDomain = "domain"
	storageUser   = "user"
)

// ErrWebLoginClosed is returned when the browser window goes away before
// anyone signs in.
var ErrWebLoginClosed = errors.New("backend: login window closed")

// WebAuth is a session captured from the web app.
type WebAuth struct {
	Auth
	Domain session.Domain
}

// WebLogin signs in through the service's own login page in a visible
// Chrome window, for accounts that use a social provider.
type WebLogin struct {
	loginURL    string
	userDataDir string
	poll        time.Duration
	log         *log.Helper

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewWebLogin prepares a login window for loginURL. userDataDir keeps the
// browser profile so a previous web session is reused.
func NewWebLogin(loginURL, userDataDir string, logger log.Logger) *WebLogin {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &WebLogin{
		loginURL:    loginURL,
		userDataDir: userDataDir,
		poll:        time.Second,
		log:         log.NewHelper(log.With(logger, "module", "weblogin")),
	}
}

// Start opens Chrome on the login page
func (w *WebLogin) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.userDataDir, 0755); err != nil {
		return fmt.Errorf("failed to create user data dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(w.userDataDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("headless", false),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	w.allocCancel = allocCancel

	bctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(w.log.Debugf))
	w.ctx = bctx
	w.cancel = cancel

	if err := chromedp.Run(bctx,
		network.Enable(),
		chromedp.Navigate(w.loginURL),
	); err != nil {
		w.Stop()
		return fmt.Errorf("failed to open login page: %w", err)
	}
	return nil
}

// Wait polls the page's local storage until the web app has stored a token,
// the window closes, or ctx is done.
func (w *WebLogin) Wait(ctx context.Context) (*WebAuth, error) {
	if w.ctx == nil {
		return nil, ErrWebLoginClosed
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		storage, err := w.readStorage()
		if err != nil {
			if w.ctx.Err() != nil {
				return nil, ErrWebLoginClosed
			}
			// the page may be mid-navigation
			w.log.Debugf("read local storage: %v", err)
		} else if auth, ok, err := parseWebStorage(storage); err != nil {
			return nil, err
		} else if ok {
			return auth, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-w.ctx.Done():
			return nil, ErrWebLoginClosed
		case <-ticker.C:
		}
	}
}

func (w *WebLogin) readStorage() (map[string]string, error) {
	js := fmt.Sprintf(`
		(() => {
			const out = {};
			for (const k of [%q, %q, %q]) {
				const v = window.localStorage.getItem(k);
				if (v !== null) out[k] = v;
			}
			return out;
		})()
	`, storageToken, storageDomain, storageUser)

	var out map[string]string
	err := chromedp.Run(w.ctx, chromedp.Evaluate(js, &out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true)
	}))
	return out, err
}

// parseWebStorage turns the web app's local storage into a session. ok is
// false while no token has been stored.
func parseWebStorage(storage map[string]string) (*WebAuth, bool, error) {
	token := unquote(storage[storageToken])
	if token == "" {
		return nil, false, nil
	}

	auth := &WebAuth{
		Auth:   Auth{Token: token},
		Domain: session.Domain(unquote(storage[storageDomain])),
	}
	if auth.Domain == "" {
		auth.Domain = session.DomainWeb
	}
	if raw := storage[storageUser]; raw != "" {
		var u UserSchema
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, false, fmt.Errorf("decode stored user: %w", err)
		}
		auth.User = u.sessionUser()
	}
	return auth, true, nil
}

// unquote strips the JSON quoting some web apps store strings with
func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		var s string
		if json.Unmarshal([]byte(v), &s) == nil {
			return s
		}
	}
	return v
}

// Stop closes the browser
func (w *WebLogin) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.allocCancel != nil {
		w.allocCancel()
	}
}
