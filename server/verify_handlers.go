package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-feed-server/bridge"
	"github.com/jrsteele09/go-feed-server/gateway"
	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/verification"
)

// VerifyAccountHandler is the target of the confirmation link. It shows exactly one
// of pending or error, and redirects for verified and recovery.
func (s *Server) VerifyAccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := verification.ParamsFromQuery(r.URL.Query())
		client, _ := s.client(w, r)
		out := s.verifier.Resolve(r.Context(), client, params)

		switch out.Kind {
		case verification.KindVerified, verification.KindRecovery:
			redirectSuccess(w, r, out.RedirectTo)
			return
		}

		data := pageData(r, "Verify your account")
		data.Outcome = out
		data.Email = params.EmailHint
		if data.Email == "" && out.Kind == verification.KindPending && out.Email != "" {
			data.Email = out.Email
		}
		status := http.StatusOK
		if out.Kind == verification.KindError {
			status = http.StatusBadRequest
		}
		s.render(w, r, status, "verify_account.html", data)
	}
}

type otpRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// VerifyOTPHandler confirms the account with the 6-digit code from the email. JSON
// callers get an ActionResponse; form posts get the page or a redirect.
func (s *Server) VerifyOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req otpRequest
		if err := decodeInput(w, r, &req, map[string]*string{"email": &req.Email, "token": &req.Token}); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		req.Token = strings.TrimSpace(req.Token)

		client, _ := s.client(w, r)
		out := s.verifier.VerifyCode(r.Context(), client, strings.TrimSpace(req.Email), req.Token)

		if wantsJSON(r) {
			if out.Kind == verification.KindError {
				writeJSON(w, r, http.StatusUnprocessableEntity, ActionResponse{Error: out.Reason})
				return
			}
			writeJSON(w, r, http.StatusOK, ActionResponse{Success: true, RedirectTo: out.RedirectTo, User: out.User})
			return
		}

		if out.Kind != verification.KindError {
			redirectSuccess(w, r, out.RedirectTo)
			return
		}
		data := pageData(r, "Verify your account")
		data.Email = req.Email
		data.Outcome = verification.Pending(req.Email)
		data.Error = out.Reason
		s.render(w, r, http.StatusUnprocessableEntity, "verify_account.html", data)
	}
}

type resendRequest struct {
	Email string `json:"email"`
}

func (s *Server) ResendVerificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resendRequest
		if err := decodeInput(w, r, &req, map[string]*string{"email": &req.Email}); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		_, store := s.client(w, r)
		res := s.gateway.ResendVerification(r.Context(), store, req.Email)

		if wantsJSON(r) {
			status := http.StatusOK
			if !res.Success {
				status = http.StatusUnprocessableEntity
			}
			writeJSON(w, r, status, ActionResponse{Success: res.Success, Error: res.Error})
			return
		}

		if !res.Success {
			data := pageData(r, "Verify your account")
			data.Email = req.Email
			data.Outcome = verification.Pending(req.Email)
			data.Error = res.Error
			s.render(w, r, http.StatusOK, "verify_account.html", data)
			return
		}
		redirectSuccess(w, r, gateway.VerifyAccountRedirect(req.Email))
	}
}

// AuthConfirmHandler redeems the token_hash form of an email link.
func (s *Server) AuthConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		tokenHash := q.Get("token_hash")
		typ := identity.ParseOTPType(q.Get("type"))
		if tokenHash == "" {
			http.Redirect(w, r, verification.ErrorURL(gateway.MsgInvalidLink), http.StatusSeeOther)
			return
		}

		client, _ := s.client(w, r)
		out := s.verifier.ConfirmTokenHash(r.Context(), client, tokenHash, typ, bridge.SafeRedirect(q.Get("next"), ""))
		if out.Kind == verification.KindError {
			http.Redirect(w, r, verification.ErrorURL(out.Reason), http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, out.RedirectTo, http.StatusSeeOther)
	}
}
