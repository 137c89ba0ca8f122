package server

import (
	"net/http"

	"github.com/jrsteele09/go-feed-server/bridge"
)

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		data := pageData(r, "Sign in")
		data.Email = q.Get("email")
		data.RedirectTo = bridge.SafeRedirect(q.Get("redirectTo"), "")
		if q.Get("reset") == "1" {
			data.Notice = "Your password has been updated."
		}
		s.render(w, r, http.StatusOK, "login.html", data)
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := r.PostFormValue("email")
		password := r.PostFormValue("password")
		redirectTo := bridge.SafeRedirect(r.PostFormValue("redirectTo"), "")

		data := pageData(r, "Sign in")
		data.Email = email
		data.RedirectTo = redirectTo

		if email == "" || password == "" {
			data.Error = "Email and password are required"
			s.render(w, r, http.StatusBadRequest, "login.html", data)
			return
		}

		_, store := s.client(w, r)
		res := s.gateway.SignIn(r.Context(), store, email, password)
		if !res.Success {
			data.Error = res.Error
			s.render(w, r, http.StatusUnauthorized, "login.html", data)
			return
		}
		redirectSuccess(w, r, bridge.SafeRedirect(redirectTo, res.RedirectTo))
	}
}

// LogoutHandler signs out and sends the browser to the login page
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, store := s.client(w, r)
		res := s.gateway.SignOut(r.Context(), store)
		if !res.Success {
			redirectSuccess(w, r, RouteLogin)
			return
		}
		redirectSuccess(w, r, res.RedirectTo)
	}
}
