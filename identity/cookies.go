package identity

import (
	"net/http"
	"time"
)

type CookieOptions struct {
	Path     string
	MaxAge   int
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

// CookieStore is the cookie capability handed to a provider client. Each execution
// context (edge interceptor, server-rendered request, browser) implements it once.
type CookieStore interface {
	Get(name string) (string, bool)
	Set(name, value string, opts CookieOptions)
	Remove(name string, opts CookieOptions)
}

// CookieStorage persists a session as an access/refresh cookie pair, plus the PKCE
// verifier for flows started in this browser.
type CookieStorage struct {
	Prefix        string
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
	Secure        bool
}

const verifierMaxAge = time.Hour

func (cs CookieStorage) prefix() string {
	if cs.Prefix == "" {
		return "feed"
	}
	return cs.Prefix
}

func (cs CookieStorage) AccessCookie() string   { return cs.prefix() + "-access-token" }
func (cs CookieStorage) RefreshCookie() string  { return cs.prefix() + "-refresh-token" }
func (cs CookieStorage) VerifierCookie() string { return cs.prefix() + "-code-verifier" }

func (cs CookieStorage) options(maxAge time.Duration) CookieOptions {
	return CookieOptions{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (cs CookieStorage) AccessOptions() CookieOptions {
	if cs.AccessMaxAge <= 0 {
		return cs.options(7 * 24 * time.Hour)
	}
	return cs.options(cs.AccessMaxAge)
}

func (cs CookieStorage) RefreshOptions() CookieOptions {
	if cs.RefreshMaxAge <= 0 {
		return cs.options(30 * 24 * time.Hour)
	}
	return cs.options(cs.RefreshMaxAge)
}

// Save writes both halves of the session. A session missing either token is cleared instead.
func (cs CookieStorage) Save(store CookieStore, s *Session) {
	if s == nil || s.AccessToken == "" || s.RefreshToken == "" {
		cs.Clear(store)
		return
	}
	store.Set(cs.AccessCookie(), s.AccessToken, cs.AccessOptions())
	store.Set(cs.RefreshCookie(), s.RefreshToken, cs.RefreshOptions())
}

// Load returns the stored token pair. ok is false unless both are present.
func (cs CookieStorage) Load(store CookieStore) (access, refresh string, ok bool) {
	access, _ = store.Get(cs.AccessCookie())
	refresh, _ = store.Get(cs.RefreshCookie())
	return access, refresh, refresh != ""
}

func (cs CookieStorage) Clear(store CookieStore) {
	store.Remove(cs.AccessCookie(), cs.AccessOptions())
	store.Remove(cs.RefreshCookie(), cs.RefreshOptions())
}

func (cs CookieStorage) SaveVerifier(store CookieStore, verifier string) {
	store.Set(cs.VerifierCookie(), verifier, cs.options(verifierMaxAge))
}

// TakeVerifier returns the PKCE verifier and removes it; it is single use.
func (cs CookieStorage) TakeVerifier(store CookieStore) string {
	v, _ := store.Get(cs.VerifierCookie())
	if v != "" {
		store.Remove(cs.VerifierCookie(), cs.options(verifierMaxAge))
	}
	return v
}
