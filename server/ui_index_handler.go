package server

import (
	"net/http"

	"github.com/rs/zerolog"
)

// IndexHandler renders the home page, which is reachable signed in or not
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "index.html", pageData(r, "Home"))
	}
}

// PrivatePageHandler renders a page only reachable through the bridge with a
// session. The ETag changes when views are revalidated, e.g. on sign-out.
func (s *Server) PrivatePageHandler(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData(r, title)
		if data.User == nil {
			zerolog.Ctx(r.Context()).Error().Str("path", r.URL.Path).Msg("Private page reached without a session")
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}
		if s.views.NotModified(w, r, data.User.ID) {
			return
		}
		s.render(w, r, http.StatusOK, name, data)
	}
}
