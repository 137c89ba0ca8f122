// Package gateway wraps the identity provider's credential operations for page and
// API handlers. Every operation returns a Result; provider failures never escape as
// errors, so callers can render them inline.
package gateway

import (
	"context"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/internal/metrics"
	"github.com/jrsteele09/go-feed-server/provisioning"
	"github.com/jrsteele09/go-feed-server/users"
	"github.com/rs/zerolog"
)

const (
	FeedPath          = "/feed"
	LoginPath         = "/login"
	VerifyAccountPath = "/verify-account"
)

// Result is the outcome of one gateway call. Error is safe to show to the user; Err
// keeps the underlying cause for logs.
type Result struct {
	Success    bool
	RedirectTo string
	User       *identity.User
	Error      string
	Err        error
}

// Revalidator drops cached renderings of authenticated views under a path.
type Revalidator interface {
	Revalidate(path string)
}

type SignUpInput struct {
	Email    string
	Password string
	Username string
	FullName string
}

type Gateway struct {
	clients     identity.ClientFactory
	baseURL     string
	provisioner provisioning.Provisioner
	revalidator Revalidator
	metrics     *metrics.Metrics
}

type Option func(*Gateway)

func WithProvisioner(p provisioning.Provisioner) Option {
	return func(g *Gateway) {
		g.provisioner = p
	}
}

func WithRevalidator(r Revalidator) Option {
	return func(g *Gateway) {
		g.revalidator = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New builds a gateway. baseURL is the public origin used for email callback links.
func New(clients identity.ClientFactory, baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		clients: clients,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// VerificationCallback is where sign-up and resend emails send the user back to.
func (g *Gateway) VerificationCallback() string {
	return g.baseURL + VerifyAccountPath + "?type=" + string(identity.OTPSignup)
}

// RecoveryCallback is where password reset emails send the user back to.
func (g *Gateway) RecoveryCallback() string {
	return g.baseURL + VerifyAccountPath + "?type=" + string(identity.OTPRecovery)
}

// SignIn authenticates with email and password. A user whose email is not yet
// confirmed is signed straight back out: no session is left behind for them.
func (g *Gateway) SignIn(ctx context.Context, cookies identity.CookieStore, email, password string) Result {
	client := g.clients.Client(cookies)

	sess, err := client.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return g.fail(ctx, "sign_in", err)
	}

	if sess.User == nil || !sess.User.IsConfirmed() {
		if serr := client.SignOut(ctx); serr != nil {
			zerolog.Ctx(ctx).Error().Err(serr).Msg("Failed to sign out unverified user")
		}
		return g.fail(ctx, "sign_in", apperrors.Wrapf(apperrors.ErrEmailNotVerified, "user %s", email))
	}

	g.reconcileAccount(ctx, sess.User)
	return g.succeed("sign_in", Result{RedirectTo: FeedPath, User: sess.User})
}

// reconcileAccount gives a verified user whose account row is missing another
// chance at provisioning. Failure never blocks the sign-in.
func (g *Gateway) reconcileAccount(ctx context.Context, user *identity.User) {
	if g.provisioner == nil {
		return
	}
	if _, err := g.provisioner.EnsureAccount(ctx, user); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("Account reconciliation on sign-in failed")
	}
}

// SignUp registers the user with the profile fields as provider metadata. The result
// always points at the verification page: the account is unusable until verified.
func (g *Gateway) SignUp(ctx context.Context, cookies identity.CookieStore, in SignUpInput) Result {
	email := strings.TrimSpace(in.Email)
	data := map[string]any{}
	if v := strings.TrimSpace(in.Username); v != "" {
		data["username"] = v
	}
	if v := strings.TrimSpace(in.FullName); v != "" {
		data["full_name"] = v
	}

	user, _, err := g.clients.Client(cookies).SignUp(ctx, identity.SignUpParams{
		Email:           email,
		Password:        in.Password,
		Data:            data,
		EmailRedirectTo: g.VerificationCallback(),
	})
	if err != nil {
		return g.fail(ctx, "sign_up", err)
	}
	return g.succeed("sign_up", Result{RedirectTo: VerifyAccountRedirect(email), User: user})
}

// VerifyAccountRedirect is the verification page with the email hint filled in.
func VerifyAccountRedirect(email string) string {
	return VerifyAccountPath + "?" + url.Values{"email": {email}}.Encode()
}

func (g *Gateway) SendPasswordReset(ctx context.Context, cookies identity.CookieStore, email string) Result {
	err := g.clients.Client(cookies).ResetPasswordForEmail(ctx, strings.TrimSpace(email), g.RecoveryCallback())
	if err != nil {
		return g.fail(ctx, "password_reset", err)
	}
	return g.succeed("password_reset", Result{})
}

// UpdatePassword sets a new password for the signed-in user, typically at the end of
// the recovery flow.
func (g *Gateway) UpdatePassword(ctx context.Context, cookies identity.CookieStore, newPassword string) Result {
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return g.fail(ctx, "update_password", err)
	}
	user, err := g.clients.Client(cookies).UpdateUser(ctx, identity.UserUpdate{Password: newPassword})
	if err != nil {
		return g.fail(ctx, "update_password", err)
	}
	return g.succeed("update_password", Result{RedirectTo: FeedPath, User: user})
}

// SignOut ends the session and invalidates cached authenticated views.
func (g *Gateway) SignOut(ctx context.Context, cookies identity.CookieStore) Result {
	if err := g.clients.Client(cookies).SignOut(ctx); err != nil {
		return g.fail(ctx, "sign_out", err)
	}
	if g.revalidator != nil {
		g.revalidator.Revalidate("/")
	}
	return g.succeed("sign_out", Result{RedirectTo: LoginPath})
}

// ResendVerification re-issues the sign-up email with the same callback as SignUp.
func (g *Gateway) ResendVerification(ctx context.Context, cookies identity.CookieStore, email string) Result {
	err := g.clients.Client(cookies).Resend(ctx, identity.ResendParams{
		Type:            identity.OTPSignup,
		Email:           strings.TrimSpace(email),
		EmailRedirectTo: g.VerificationCallback(),
	})
	if err != nil {
		return g.fail(ctx, "resend", err)
	}
	return g.succeed("resend", Result{})
}

func (g *Gateway) succeed(op string, r Result) Result {
	g.metrics.GatewayResults.WithLabelValues(op, "success").Inc()
	r.Success = true
	return r
}

func (g *Gateway) fail(ctx context.Context, op string, err error) Result {
	outcome := Outcome(err)
	g.metrics.GatewayResults.WithLabelValues(op, outcome).Inc()

	evt := zerolog.Ctx(ctx).Warn()
	if outcome == "unreachable" || outcome == "error" {
		evt = zerolog.Ctx(ctx).Error()
	}
	evt.Err(err).Str("op", op).Str("error_code", identity.ErrorCode(err)).Msg("Auth action failed")

	return Result{Error: UserMessage(err), Err: err}
}
