// Package identity defines the contract the feed server expects from the managed
// identity provider, together with the session and user shapes that cross it.
//
// A Provider is always bound to a CookieStore: the same provider logic runs at the
// edge (request interceptor), inside server-rendered handlers, and in browser-like
// clients, and only the cookie capability differs between them.
package identity

import (
	"context"
	"strings"
	"time"
)

// OTPType is the verification flow an emailed link or code belongs to.
type OTPType string

const (
	OTPSignup    OTPType = "signup"
	OTPRecovery  OTPType = "recovery"
	OTPInvite    OTPType = "invite"
	OTPEmail     OTPType = "email"
	OTPMagicLink OTPType = "magiclink"
)

// ParseOTPType accepts the values used in verification links. Unknown values map to "".
func ParseOTPType(s string) OTPType {
	switch t := OTPType(strings.ToLower(strings.TrimSpace(s))); t {
	case OTPSignup, OTPRecovery, OTPInvite, OTPEmail, OTPMagicLink:
		return t
	}
	return ""
}

type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
}

// IsConfirmed reports whether the provider has recorded a verified email for the user.
func (u *User) IsConfirmed() bool {
	return u != nil && u.EmailConfirmedAt != nil && !u.EmailConfirmedAt.IsZero()
}

// Session mirrors the provider session. User may be reconstructed from token claims;
// GetUser is the authoritative source for EmailConfirmedAt.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// Valid is true only for a complete session: both tokens, a user and an unexpired access token.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.User == nil {
		return false
	}
	if s.AccessToken == "" || s.RefreshToken == "" {
		return false
	}
	return now.Before(s.ExpiresAt)
}

type SignUpParams struct {
	Email           string
	Password        string
	Data            map[string]any
	EmailRedirectTo string
}

// VerifyOTPParams identifies a one-time credential either by TokenHash (from a link)
// or by Email and Token (the 6-digit code).
type VerifyOTPParams struct {
	TokenHash string
	Email     string
	Token     string
	Type      OTPType
}

type ResendParams struct {
	Type            OTPType
	Email           string
	EmailRedirectTo string
}

type UserUpdate struct {
	Password string
}

// Provider is the collaborator contract. Any identity service substituted in must satisfy it.
type Provider interface {
	SignUp(ctx context.Context, params SignUpParams) (*User, *Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	GetUser(ctx context.Context) (*User, error)
	// GetSession returns nil without error when no complete session is stored. It
	// refreshes an expiring access token and writes the new cookies.
	GetSession(ctx context.Context) (*Session, error)
	ExchangeCodeForSession(ctx context.Context, code string) (*Session, error)
	VerifyOTP(ctx context.Context, params VerifyOTPParams) (*Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, update UserUpdate) (*User, error)
	Resend(ctx context.Context, params ResendParams) error
	OnAuthStateChange(fn func(AuthChange)) Subscription
}

// ClientFactory binds a provider client to the cookie capability of one execution context.
type ClientFactory interface {
	Client(cookies CookieStore) Provider
}

type ClientFactoryFunc func(cookies CookieStore) Provider

func (f ClientFactoryFunc) Client(cookies CookieStore) Provider {
	return f(cookies)
}
