package server

// Route path constants
const (
	// Public pages
	RouteHome           = "/"
	RouteLogin          = "/login"
	RouteSignup         = "/signup"
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password"
	RouteLogout         = "/logout"

	// Verification
	RouteVerifyAccount      = "/verify-account"
	RouteVerifyOTP          = "/verify-account/otp"
	RouteResendVerification = "/verify-account/resend"
	RouteAuthConfirm        = "/auth/confirm"

	// Private pages
	RouteFeed           = "/feed"
	RouteMessages       = "/messages"
	RouteMessagesThread = "/messages/{id}"
	RouteProfile        = "/profile"

	// API Routes
	RouteAPILogin   = "/api/auth/login"
	RouteAPILogout  = "/api/auth/logout"
	RouteAPISession = "/api/auth/session"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)
