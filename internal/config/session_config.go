package config

import "time"

// Session controls the cookie pair that mirrors the provider session.
// Access and refresh cookies carry separate lifetimes; the browser drops the
// access cookie first and the bridge refreshes from the longer-lived one.
type Session struct {
	CookiePrefix     string        `env:"COOKIE_PREFIX" envDefault:"feed"`
	AccessCookieAge  time.Duration `env:"ACCESS_COOKIE_MAX_AGE" envDefault:"168h"`
	RefreshCookieAge time.Duration `env:"REFRESH_COOKIE_MAX_AGE" envDefault:"720h"`

	production bool
}

var _ SessionConfig = Session{}

func (s Session) GetCookiePrefix() string {
	if s.CookiePrefix == "" {
		return "feed"
	}
	return s.CookiePrefix
}

func (s Session) GetAccessCookieMaxAge() time.Duration {
	return s.AccessCookieAge
}

func (s Session) GetRefreshCookieMaxAge() time.Duration {
	return s.RefreshCookieAge
}

// GetSecureCookies is true in production only so local http development keeps working.
func (s Session) GetSecureCookies() bool {
	return s.production
}
