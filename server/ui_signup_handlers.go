package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-feed-server/gateway"
)

// SignupPageHandler displays the signup page
func (s *Server) SignupPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData(r, "Create account")
		data.Email = r.URL.Query().Get("email")
		s.render(w, r, http.StatusOK, "signup.html", data)
	}
}

// SignupSubmissionHandler creates the account. Success never signs the user in;
// the browser is sent to the verification page instead.
func (s *Server) SignupSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		in := gateway.SignUpInput{
			Email:    strings.TrimSpace(r.PostFormValue("email")),
			Password: r.PostFormValue("password"),
			Username: strings.TrimSpace(r.PostFormValue("username")),
			FullName: strings.TrimSpace(r.PostFormValue("full_name")),
		}

		data := pageData(r, "Create account")
		data.Email = in.Email
		data.Username = in.Username
		data.FullName = in.FullName

		if in.Email == "" || in.Password == "" || in.Username == "" {
			data.Error = "Email, username and password are required"
			s.render(w, r, http.StatusBadRequest, "signup.html", data)
			return
		}

		_, store := s.client(w, r)
		res := s.gateway.SignUp(r.Context(), store, in)
		if !res.Success {
			data.Error = res.Error
			s.render(w, r, http.StatusUnprocessableEntity, "signup.html", data)
			return
		}
		redirectSuccess(w, r, res.RedirectTo)
	}
}
