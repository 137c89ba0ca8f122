package bridge

import (
	"net/url"
	"strings"
)

type Class string

const (
	ClassPublic  Class = "public"
	ClassPrivate Class = "private"
	ClassNeutral Class = "neutral"
)

// Routes is the static admission table. Public entries match exactly; private entries
// match as a plain string prefix, so anything under them is private too.
type Routes struct {
	Public    []string
	Private   []string
	AuthPages []string
	Home      string
	Login     string
	Landing   string
}

func DefaultRoutes() Routes {
	return Routes{
		Public:    []string{"/", "/login", "/signup", "/forgot-password", "/reset-password"},
		Private:   []string{"/feed", "/messages", "/profile"},
		AuthPages: []string{"/login", "/signup"},
		Home:      "/",
		Login:     "/login",
		Landing:   "/feed",
	}
}

func (rt Routes) Classify(path string) Class {
	for _, p := range rt.Public {
		if path == p {
			return ClassPublic
		}
	}
	for _, p := range rt.Private {
		if strings.HasPrefix(path, p) {
			return ClassPrivate
		}
	}
	return ClassNeutral
}

func (rt Routes) isAuthPage(path string) bool {
	for _, p := range rt.AuthPages {
		if path == p {
			return true
		}
	}
	return false
}

// LoginURL is the login page remembering where the caller was headed.
func (rt Routes) LoginURL(original string) string {
	if original == "" || original == rt.Login {
		return rt.Login
	}
	return rt.Login + "?" + url.Values{"redirectTo": {original}}.Encode()
}

// SafeRedirect returns target when it is a same-origin relative path, else fallback.
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return target
}
