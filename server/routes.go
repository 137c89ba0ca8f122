package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func (s *Server) initRoutes() {
	page := func(h http.HandlerFunc) http.HandlerFunc {
		return ChainMiddleware(h, s.HTMLMiddleWare(s.bridge.Middleware)...)
	}
	form := func(route string, h http.HandlerFunc) http.HandlerFunc {
		return ChainMiddleware(h, s.HTMLMiddleWare(s.RateLimitMiddleware(route))...)
	}

	s.RegisterRouteFunc("GET /{$}", page(s.IndexHandler()))

	// Credentials
	s.RegisterRouteFunc("GET "+RouteLogin, page(s.LoginPageHandler()))
	s.RegisterRouteFunc("POST "+RouteLogin, form(RouteLogin, s.LoginSubmissionHandler()))
	s.RegisterRouteFunc("GET "+RouteSignup, page(s.SignupPageHandler()))
	s.RegisterRouteFunc("POST "+RouteSignup, form(RouteSignup, s.SignupSubmissionHandler()))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	s.RegisterRouteFunc("GET "+RouteForgotPassword, page(s.ForgotPasswordPageHandler()))
	s.RegisterRouteFunc("POST "+RouteForgotPassword, form(RouteForgotPassword, s.ForgotPasswordSubmissionHandler()))
	s.RegisterRouteFunc("GET "+RouteResetPassword, page(s.ResetPasswordPageHandler()))
	s.RegisterRouteFunc("POST "+RouteResetPassword, form(RouteResetPassword, s.ResetPasswordSubmissionHandler()))

	// Verification
	s.RegisterRouteFunc("GET "+RouteVerifyAccount, page(s.VerifyAccountHandler()))
	s.RegisterRouteFunc("POST "+RouteVerifyOTP, form(RouteVerifyOTP, s.VerifyOTPHandler()))
	s.RegisterRouteFunc("POST "+RouteResendVerification, form(RouteResendVerification, s.ResendVerificationHandler()))
	s.RegisterRouteFunc("GET "+RouteAuthConfirm, page(s.AuthConfirmHandler()))

	// Private pages
	s.RegisterRouteFunc("GET "+RouteFeed, page(s.PrivatePageHandler("feed.html", "Feed")))
	s.RegisterRouteFunc("GET "+RouteMessages, page(s.PrivatePageHandler("messages.html", "Messages")))
	s.RegisterRouteFunc("GET "+RouteMessagesThread, page(s.PrivatePageHandler("messages.html", "Messages")))
	s.RegisterRouteFunc("GET "+RouteProfile, page(s.PrivatePageHandler("profile.html", "Profile")))

	// API routes
	s.RegisterRouteFunc("POST "+RouteAPILogin, ChainMiddleware(s.APILoginHandler(), s.APIMiddleware(s.RateLimitMiddleware(RouteAPILogin))...))
	s.RegisterRouteFunc("POST "+RouteAPILogout, ChainMiddleware(s.APILogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAPISession, ChainMiddleware(s.APISessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("OPTIONS /api/", ChainMiddleware(func(http.ResponseWriter, *http.Request) {}, s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.RegisterRouteFunc("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		if err := ServeStatic(w, r, filePath); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("file", filePath).Msg("Static file not found")
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
