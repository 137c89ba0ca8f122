package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-feed-server/codeentry"
	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/verification"
	"github.com/rs/zerolog"
)

const (
	contentTypeJSON = "application/json"
	maxJSONBody     = 1 << 16
)

// PageData is the model shared by every page template.
type PageData struct {
	AppName    string
	Title      string
	User       *identity.User
	Error      string
	Notice     string
	Email      string
	Username   string
	FullName   string
	RedirectTo string
	Outcome    verification.Outcome
	CodeLength int
}

func pageData(r *http.Request, title string) PageData {
	return PageData{
		Title:      title,
		User:       identity.UserFromContext(r.Context()),
		CodeLength: codeentry.Length,
	}
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// wantsJSON is true for JSON request bodies and clients that only accept JSON.
func wantsJSON(r *http.Request) bool {
	if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && ct == contentTypeJSON {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), contentTypeJSON)
}

// decodeInput fills dst from a JSON body, or from the posted form when the request
// is a plain HTML form submission. form maps field names to their destinations.
func decodeInput(w http.ResponseWriter, r *http.Request, dst any, form map[string]*string) error {
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == contentTypeJSON {
		return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	for name, ptr := range form {
		*ptr = r.PostFormValue(name)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to write JSON response")
	}
}

// ActionResponse is the JSON shape of every credential action.
type ActionResponse struct {
	Success    bool           `json:"success"`
	RedirectTo string         `json:"redirectTo,omitempty"`
	User       *identity.User `json:"user,omitempty"`
	Error      string         `json:"error,omitempty"`
}
