package server

import (
	"net/http"

	"github.com/jrsteele09/go-feed-server/gateway"
)

const resetLinkSentNotice = "If an account exists for that email, a reset link is on its way."

func (s *Server) ForgotPasswordPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData(r, "Forgot password")
		data.Email = r.URL.Query().Get("email")
		s.render(w, r, http.StatusOK, "forgot_password.html", data)
	}
}

// ForgotPasswordSubmissionHandler requests a recovery email. The page reads the
// same whether or not the address has an account.
func (s *Server) ForgotPasswordSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		data := pageData(r, "Forgot password")
		data.Email = r.PostFormValue("email")
		if data.Email == "" {
			data.Error = "Email is required"
			s.render(w, r, http.StatusBadRequest, "forgot_password.html", data)
			return
		}

		_, store := s.client(w, r)
		res := s.gateway.SendPasswordReset(r.Context(), store, data.Email)
		if !res.Success {
			data.Error = res.Error
			s.render(w, r, http.StatusOK, "forgot_password.html", data)
			return
		}
		data.Notice = resetLinkSentNotice
		s.render(w, r, http.StatusOK, "forgot_password.html", data)
	}
}

// ResetPasswordPageHandler is reached from the recovery link once the verification
// page has exchanged the code, so the recovery session is already in the cookies.
func (s *Server) ResetPasswordPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "reset_password.html", pageData(r, "Reset password"))
	}
}

func (s *Server) ResetPasswordSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		password := r.PostFormValue("password")

		data := pageData(r, "Reset password")
		_, store := s.client(w, r)
		if data.User == nil {
			if sess, err := s.clients.Client(store).GetSession(r.Context()); err == nil && sess != nil {
				data.User = sess.User
			}
		}

		if password != r.PostFormValue("confirm_password") {
			data.Error = "Passwords do not match"
			s.render(w, r, http.StatusBadRequest, "reset_password.html", data)
			return
		}

		res := s.gateway.UpdatePassword(r.Context(), store, password)
		if !res.Success {
			data.Error = res.Error
			s.render(w, r, http.StatusUnprocessableEntity, "reset_password.html", data)
			return
		}
		s.views.Revalidate(gateway.FeedPath)
		redirectSuccess(w, r, res.RedirectTo)
	}
}
