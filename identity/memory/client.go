package memory

import (
	"context"
	"net/http"
	"net/mail"

	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/token"
	"github.com/jrsteele09/go-feed-server/users"
	"github.com/pquerna/otp/totp"
	"golang.org/x/oauth2"
)

var _ identity.Provider = (*Client)(nil)

// Client is a provider session bound to one cookie store.
type Client struct {
	identity.Broadcaster
	b       *Backend
	cookies identity.CookieStore
}

func providerErr(op string, status int, code, msg string) error {
	return &identity.ProviderError{
		Op:      op,
		Status:  status,
		Code:    code,
		Message: msg,
		Kind:    identity.KindForCode(status, code),
	}
}

func (c *Client) SignUp(_ context.Context, params identity.SignUpParams) (*identity.User, *identity.Session, error) {
	email := users.NormalizeEmail(params.Email)
	if !validEmail(email) {
		return nil, nil, providerErr("signup", http.StatusBadRequest, "validation_failed", "Unable to validate email address: invalid format")
	}
	if err := users.ValidatePasswordStrength(params.Password); err != nil {
		return nil, nil, providerErr("signup", http.StatusUnprocessableEntity, "weak_password", err.Error())
	}

	hash, err := users.HashPassword(params.Password)
	if err != nil {
		return nil, nil, providerErr("signup", http.StatusInternalServerError, "unexpected_failure", err.Error())
	}
	u, created, err := c.createOrFindUser(email, hash, params.Data)
	switch {
	case err != nil:
		return nil, nil, providerErr("signup", http.StatusInternalServerError, "unexpected_failure", err.Error())
	case u.IsConfirmed():
		return nil, nil, providerErr("signup", http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
	case !created:
		// The latest sign-up owns an unconfirmed account: its password and profile replace the earlier ones.
		if err := c.b.users.SetProfile(u.ID, hash, params.Data); err != nil {
			return nil, nil, providerErr("signup", http.StatusInternalServerError, "unexpected_failure", err.Error())
		}
		u.PasswordHash = hash
		u.UserMetadata = params.Data
	}

	// An unconfirmed user signing up again gets a fresh confirmation, like GoTrue.
	if err := c.startPKCEFlow(u, identity.OTPSignup, params.EmailRedirectTo); err != nil {
		return nil, nil, err
	}
	return u.Identity(), nil, nil
}

// createOrFindUser inserts a new user for email, or returns the one already
// stored. A racing insert for the same email resolves to the stored user.
func (c *Client) createOrFindUser(email, hash string, metadata map[string]any) (*users.User, bool, error) {
	u, err := c.b.users.GetByEmail(email)
	if err == nil {
		return u, false, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}
	now := c.b.now()
	u = &users.User{
		Email:        email,
		PasswordHash: hash,
		UserMetadata: metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.b.users.Upsert(u); err != nil {
		if !apperrors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, false, err
		}
		existing, gerr := c.b.users.GetByEmail(email)
		if gerr != nil {
			return nil, false, gerr
		}
		return existing, false, nil
	}
	return u, true, nil
}

func (c *Client) startPKCEFlow(u *users.User, typ identity.OTPType, redirectTo string) error {
	verifier := oauth2.GenerateVerifier()
	c.b.storage.SaveVerifier(c.cookies, verifier)
	if err := c.b.startFlow(u, typ, redirectTo, oauth2.S256ChallengeFromVerifier(verifier)); err != nil {
		return providerErr(string(typ), http.StatusInternalServerError, "unexpected_failure", err.Error())
	}
	return nil
}

func (c *Client) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	u, err := c.b.users.GetByEmail(email)
	if err != nil || !u.CheckPassword(password) {
		return nil, providerErr("token", http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
	}
	sess, err := c.signIn(u)
	if err != nil {
		return nil, err
	}
	c.Emit(identity.EventSignedIn, sess)
	return sess, nil
}

// signIn starts a new session for u and stores it in the cookies.
func (c *Client) signIn(u *users.User) (*identity.Session, error) {
	now := c.b.now()
	_ = c.b.users.SetLastSignIn(u.Email, now)
	if fresh, err := c.b.users.GetByID(u.ID); err == nil {
		u = fresh
	}

	sid := token.NewSessionID()
	access, exp, err := c.b.tokens.CreateAccessToken(u.Identity(), sid)
	if err != nil {
		return nil, providerErr("token", http.StatusInternalServerError, "unexpected_failure", err.Error())
	}
	refresh, err := c.b.tokens.CreateRefreshToken(u.ID, sid)
	if err != nil {
		return nil, providerErr("token", http.StatusInternalServerError, "unexpected_failure", err.Error())
	}

	sess := &identity.Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, User: u.Identity()}
	c.b.storage.Save(c.cookies, sess)
	return sess, nil
}

func (c *Client) SignOut(_ context.Context) error {
	access, refresh, _ := c.b.storage.Load(c.cookies)
	if refresh != "" {
		c.b.tokens.InvalidateRefreshToken(refresh)
	}
	if access != "" {
		_ = c.b.tokens.RevokeAccessToken(access)
	}
	c.b.storage.Clear(c.cookies)
	c.Emit(identity.EventSignedOut, nil)
	return nil
}

func (c *Client) GetSession(_ context.Context) (*identity.Session, error) {
	access, refresh, ok := c.b.storage.Load(c.cookies)
	if !ok {
		if access != "" {
			c.b.storage.Clear(c.cookies)
		}
		return nil, nil
	}

	claims, err := c.b.tokens.ParseAccessToken(access)
	if err == nil && claims.ExpiresAtTime().Sub(c.b.now()) > refreshMargin {
		u, uerr := c.b.users.GetByID(claims.Subject)
		if uerr != nil {
			c.b.storage.Clear(c.cookies)
			return nil, nil
		}
		return &identity.Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: claims.ExpiresAtTime(), User: u.Identity()}, nil
	}

	return c.refresh(refresh)
}

func (c *Client) refresh(refresh string) (*identity.Session, error) {
	rt, err := c.b.tokens.ResolveRefreshToken(refresh)
	if err != nil {
		c.b.storage.Clear(c.cookies)
		return nil, nil
	}
	u, err := c.b.users.GetByID(rt.UserID)
	if err != nil {
		c.b.storage.Clear(c.cookies)
		return nil, nil
	}

	access, exp, err := c.b.tokens.CreateAccessToken(u.Identity(), rt.SessionID)
	if err != nil {
		return nil, providerErr("token", http.StatusInternalServerError, "unexpected_failure", err.Error())
	}
	sess := &identity.Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, User: u.Identity()}
	c.b.storage.Save(c.cookies, sess)
	c.Emit(identity.EventTokenRefreshed, sess)
	return sess, nil
}

func (c *Client) GetUser(ctx context.Context) (*identity.User, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, providerErr("user", http.StatusUnauthorized, "no_authorization", "Auth session missing!")
	}
	return sess.User, nil
}

func (c *Client) ExchangeCodeForSession(_ context.Context, code string) (*identity.Session, error) {
	verifier := c.b.storage.TakeVerifier(c.cookies)

	c.b.mu.Lock()
	f, ok := c.b.byCode[code]
	if !ok {
		c.b.mu.Unlock()
		return nil, providerErr("token", http.StatusNotFound, "flow_state_not_found", "invalid flow state, no valid flow state found")
	}
	if c.b.expired(f) {
		c.b.dropLocked(f)
		c.b.mu.Unlock()
		return nil, providerErr("token", http.StatusNotFound, "flow_state_expired", "invalid flow state, flow state has expired")
	}
	if verifier == "" || oauth2.S256ChallengeFromVerifier(verifier) != f.challenge {
		c.b.mu.Unlock()
		return nil, providerErr("token", http.StatusBadRequest, "bad_code_verifier", "code challenge does not match previously saved code verifier")
	}
	c.b.dropLocked(f)
	c.b.mu.Unlock()

	return c.complete(f)
}

func (c *Client) VerifyOTP(_ context.Context, params identity.VerifyOTPParams) (*identity.Session, error) {
	c.b.mu.Lock()
	var f *flow
	if params.TokenHash != "" {
		f = c.b.byHash[params.TokenHash]
	} else {
		f = c.b.byEmail[users.NormalizeEmail(params.Email)]
		if f != nil {
			valid, _ := totp.ValidateCustom(params.Token, f.secret, f.issuedAt, c.b.otpOpts())
			if !valid {
				f = nil
			}
		}
	}
	if f == nil || c.b.expired(f) || !compatibleTypes(params.Type, f.typ) {
		c.b.mu.Unlock()
		return nil, providerErr("verify", http.StatusForbidden, "otp_expired", "Token has expired or is invalid")
	}
	c.b.dropLocked(f)
	c.b.mu.Unlock()

	return c.complete(f)
}

// complete redeems a flow: confirmation flows confirm the email, then a session is issued.
func (c *Client) complete(f *flow) (*identity.Session, error) {
	if f.typ != identity.OTPRecovery {
		if err := c.b.users.SetConfirmed(f.email, c.b.now()); err != nil {
			return nil, providerErr("verify", http.StatusInternalServerError, "unexpected_failure", err.Error())
		}
	}
	u, err := c.b.users.GetByID(f.userID)
	if err != nil {
		return nil, providerErr("verify", http.StatusNotFound, "user_not_found", "User not found")
	}
	sess, err := c.signIn(u)
	if err != nil {
		return nil, err
	}
	if f.typ == identity.OTPRecovery {
		c.Emit(identity.EventPasswordRecovery, sess)
	} else {
		c.Emit(identity.EventSignedIn, sess)
	}
	return sess, nil
}

// ResetPasswordForEmail succeeds for unknown addresses so callers cannot probe for accounts.
func (c *Client) ResetPasswordForEmail(_ context.Context, email, redirectTo string) error {
	u, err := c.b.users.GetByEmail(email)
	if err != nil {
		return nil
	}
	return c.startPKCEFlow(u, identity.OTPRecovery, redirectTo)
}

func (c *Client) UpdateUser(ctx context.Context, update identity.UserUpdate) (*identity.User, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, providerErr("user", http.StatusUnauthorized, "no_authorization", "Auth session missing!")
	}

	if update.Password != "" {
		if err := users.ValidatePasswordStrength(update.Password); err != nil {
			return nil, providerErr("user", http.StatusUnprocessableEntity, "weak_password", err.Error())
		}
		hash, err := users.HashPassword(update.Password)
		if err != nil {
			return nil, providerErr("user", http.StatusInternalServerError, "unexpected_failure", err.Error())
		}
		if err := c.b.users.SetPasswordHash(sess.User.ID, hash); err != nil {
			return nil, providerErr("user", http.StatusInternalServerError, "unexpected_failure", err.Error())
		}
	}

	u, err := c.b.users.GetByID(sess.User.ID)
	if err != nil {
		return nil, providerErr("user", http.StatusNotFound, "user_not_found", "User not found")
	}
	sess.User = u.Identity()
	c.Emit(identity.EventUserUpdated, sess)
	return sess.User, nil
}

// Resend re-arms the outstanding confirmation. The previous link and code stop working.
func (c *Client) Resend(_ context.Context, params identity.ResendParams) error {
	email := users.NormalizeEmail(params.Email)
	if issued, ok := c.b.lastIssued(email); ok && c.b.now().Sub(issued) < c.b.resendInterval {
		return providerErr("resend", http.StatusTooManyRequests, "over_email_send_rate_limit", "For security purposes, you can only request this after 60 seconds.")
	}

	u, err := c.b.users.GetByEmail(email)
	if err != nil {
		return nil
	}
	typ := params.Type
	if typ == "" {
		typ = identity.OTPSignup
	}
	if typ == identity.OTPSignup && u.IsConfirmed() {
		return nil
	}
	return c.startPKCEFlow(u, typ, params.EmailRedirectTo)
}

func compatibleTypes(requested, issued identity.OTPType) bool {
	if requested == "" || requested == issued {
		return true
	}
	confirm := func(t identity.OTPType) bool {
		return t == identity.OTPSignup || t == identity.OTPEmail || t == identity.OTPInvite || t == identity.OTPMagicLink
	}
	return confirm(requested) && confirm(issued)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
