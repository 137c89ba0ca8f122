package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-feed-server/bridge"
	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/rs/zerolog"
)

type apiLoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// SessionResponse is the client mirror's view of the current session.
type SessionResponse struct {
	User            *identity.User `json:"user"`
	Loading         bool           `json:"loading"`
	IsAuthenticated bool           `json:"isAuthenticated"`
}

// APILoginHandler is the JSON form of the login action.
func (s *Server) APILoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiLoginRequest
		if err := decodeInput(w, r, &req, map[string]*string{
			"email": &req.Email, "password": &req.Password, "redirectTo": &req.RedirectTo,
		}); err != nil {
			writeJSON(w, r, http.StatusBadRequest, ActionResponse{Error: "Invalid request"})
			return
		}
		if req.Email == "" || req.Password == "" {
			writeJSON(w, r, http.StatusBadRequest, ActionResponse{Error: "Email and password are required"})
			return
		}

		_, store := s.client(w, r)
		res := s.gateway.SignIn(r.Context(), store, req.Email, req.Password)
		if !res.Success {
			writeJSON(w, r, http.StatusUnauthorized, ActionResponse{Error: res.Error})
			return
		}
		writeJSON(w, r, http.StatusOK, ActionResponse{
			Success:    true,
			User:       res.User,
			RedirectTo: bridge.SafeRedirect(req.RedirectTo, res.RedirectTo),
		})
	}
}

func (s *Server) APILogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, store := s.client(w, r)
		res := s.gateway.SignOut(r.Context(), store)
		status := http.StatusOK
		if !res.Success {
			status = http.StatusBadGateway
		}
		writeJSON(w, r, status, ActionResponse{Success: res.Success, RedirectTo: res.RedirectTo, Error: res.Error})
	}
}

// APISessionHandler reports the authoritative user for the cookies sent. A missing
// session is not an error.
func (s *Server) APISessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, _ := s.client(w, r)
		user, err := client.GetUser(r.Context())
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrNoSession) {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Session lookup failed")
			}
			user = nil
		}
		writeJSON(w, r, http.StatusOK, SessionResponse{User: user, IsAuthenticated: user != nil})
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
	Time   string `json:"time"`
}

// HealthHandler reports liveness and, when configured, store reachability.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)}
		status := http.StatusOK
		if s.store != nil {
			resp.Store = "ok"
			if err := s.store.Ping(r.Context()); err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("Account store unreachable")
				resp.Status, resp.Store = "degraded", "unreachable"
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, r, status, resp)
	}
}
