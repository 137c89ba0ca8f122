package gotrue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/token"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var _ identity.Provider = (*Client)(nil)

type Client struct {
	identity.Broadcaster
	f       *Factory
	cookies identity.CookieStore
}

func (c *Client) storage() identity.CookieStorage {
	return c.f.opts.Storage
}

func redirectQuery(redirectTo string) url.Values {
	if redirectTo == "" {
		return nil
	}
	return url.Values{"redirect_to": {redirectTo}}
}

// pkceChallenge stores a fresh verifier in the cookies and returns its S256 challenge.
func (c *Client) pkceChallenge() string {
	verifier := oauth2.GenerateVerifier()
	c.storage().SaveVerifier(c.cookies, verifier)
	return oauth2.S256ChallengeFromVerifier(verifier)
}

func (c *Client) SignUp(ctx context.Context, params identity.SignUpParams) (*identity.User, *identity.Session, error) {
	body := map[string]any{
		"email":                 params.Email,
		"password":              params.Password,
		"data":                  params.Data,
		"code_challenge":        c.pkceChallenge(),
		"code_challenge_method": "s256",
	}

	raw, err := c.send(ctx, request{op: "signup", method: http.MethodPost, path: "/signup", query: redirectQuery(params.EmailRedirectTo), body: body})
	if err != nil {
		return nil, nil, err
	}

	// With confirmations enabled the response is the bare user; with autoconfirm it is a session.
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err == nil && tr.AccessToken != "" {
		sess := tr.session(c.f.opts.Now())
		c.storage().Save(c.cookies, sess)
		c.Emit(identity.EventSignedIn, sess)
		return sess.User, sess, nil
	}
	var user identity.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil, &identity.ProviderError{Op: "signup", Message: "malformed response: " + err.Error(), Kind: apperrors.ErrProviderUnreachable}
	}
	return &user, nil, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	return c.grant(ctx, "password", map[string]any{"email": email, "password": password}, identity.EventSignedIn)
}

func (c *Client) grant(ctx context.Context, grantType string, body map[string]any, event identity.AuthEvent) (*identity.Session, error) {
	var tr tokenResponse
	err := c.do(ctx, request{
		op:     "token",
		method: http.MethodPost,
		path:   "/token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
	}, &tr)
	if err != nil {
		return nil, err
	}
	sess := tr.session(c.f.opts.Now())
	c.storage().Save(c.cookies, sess)
	c.Emit(event, sess)
	return sess, nil
}

// SignOut revokes the session at the provider when it can; the cookies are cleared
// regardless, so a local sign-out always takes effect.
func (c *Client) SignOut(ctx context.Context) error {
	access, _, _ := c.storage().Load(c.cookies)
	if access != "" {
		err := c.do(ctx, request{op: "logout", method: http.MethodPost, path: "/logout", query: url.Values{"scope": {"local"}}, bearer: access}, nil)
		if err != nil && !apperrors.Is(err, apperrors.ErrNoSession) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("error_code", identity.ErrorCode(err)).Msg("Provider sign-out failed")
		}
	}
	c.storage().Clear(c.cookies)
	c.Emit(identity.EventSignedOut, nil)
	return nil
}

func (c *Client) GetSession(ctx context.Context) (*identity.Session, error) {
	access, refresh, ok := c.storage().Load(c.cookies)
	if !ok {
		if access != "" {
			c.storage().Clear(c.cookies)
		}
		return nil, nil
	}

	if claims := c.inspect(ctx, access); claims != nil {
		exp := claims.ExpiresAtTime()
		if exp.Sub(c.f.opts.Now()) > refreshMargin {
			return &identity.Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, User: claims.User()}, nil
		}
	}
	return c.refresh(ctx, refresh)
}

// inspect returns the access token's claims, or nil when it cannot be trusted as is.
func (c *Client) inspect(ctx context.Context, access string) *token.Claims {
	if c.f.verifier == nil {
		claims, err := token.ParseUnverified(access)
		if err != nil {
			return nil
		}
		return claims
	}

	idToken, err := c.f.verifier.Verify(ctx, access)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Access token failed verification")
		return nil
	}
	claims := &token.Claims{}
	if err := idToken.Claims(claims); err != nil {
		return nil
	}
	return claims
}

// refresh trades the refresh token for a new session. A rejected refresh token ends
// the session; an unreachable provider leaves the cookies alone so the next request
// can try again.
func (c *Client) refresh(ctx context.Context, refresh string) (*identity.Session, error) {
	sess, err := c.grant(ctx, "refresh_token", map[string]any{"refresh_token": refresh}, identity.EventTokenRefreshed)
	if err == nil {
		return sess, nil
	}
	if apperrors.Is(err, apperrors.ErrProviderUnreachable) {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Err(err).Str("error_code", identity.ErrorCode(err)).Msg("Refresh rejected, clearing session")
	c.storage().Clear(c.cookies)
	return nil, nil
}

// GetUser asks the provider for the user behind the current session. Unlike the
// session's token claims it carries the confirmation timestamp.
func (c *Client) GetUser(ctx context.Context) (*identity.User, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &identity.ProviderError{Op: "user", Status: http.StatusUnauthorized, Message: "Auth session missing!", Kind: apperrors.ErrNoSession}
	}

	var user identity.User
	if err := c.do(ctx, request{op: "user", method: http.MethodGet, path: "/user", bearer: sess.AccessToken}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ExchangeCodeForSession(ctx context.Context, code string) (*identity.Session, error) {
	verifier := c.storage().TakeVerifier(c.cookies)
	return c.grant(ctx, "pkce", map[string]any{"auth_code": code, "code_verifier": verifier}, identity.EventSignedIn)
}

func (c *Client) VerifyOTP(ctx context.Context, params identity.VerifyOTPParams) (*identity.Session, error) {
	body := map[string]any{"type": string(params.Type)}
	if params.TokenHash != "" {
		body["token_hash"] = params.TokenHash
	} else {
		body["email"] = params.Email
		body["token"] = params.Token
	}

	var tr tokenResponse
	if err := c.do(ctx, request{op: "verify", method: http.MethodPost, path: "/verify", body: body}, &tr); err != nil {
		return nil, err
	}
	sess := tr.session(c.f.opts.Now())
	c.storage().Save(c.cookies, sess)
	if params.Type == identity.OTPRecovery {
		c.Emit(identity.EventPasswordRecovery, sess)
	} else {
		c.Emit(identity.EventSignedIn, sess)
	}
	return sess, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	body := map[string]any{
		"email":                 email,
		"code_challenge":        c.pkceChallenge(),
		"code_challenge_method": "s256",
	}
	return c.do(ctx, request{op: "recover", method: http.MethodPost, path: "/recover", query: redirectQuery(redirectTo), body: body}, nil)
}

func (c *Client) UpdateUser(ctx context.Context, update identity.UserUpdate) (*identity.User, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &identity.ProviderError{Op: "user", Status: http.StatusUnauthorized, Message: "Auth session missing!", Kind: apperrors.ErrNoSession}
	}

	body := map[string]any{}
	if update.Password != "" {
		body["password"] = update.Password
	}
	var user identity.User
	if err := c.do(ctx, request{op: "user", method: http.MethodPut, path: "/user", body: body, bearer: sess.AccessToken}, &user); err != nil {
		return nil, err
	}
	sess.User = &user
	c.Emit(identity.EventUserUpdated, sess)
	return &user, nil
}

func (c *Client) Resend(ctx context.Context, params identity.ResendParams) error {
	typ := params.Type
	if typ == "" {
		typ = identity.OTPSignup
	}
	body := map[string]any{"type": string(typ), "email": params.Email}
	return c.do(ctx, request{op: "resend", method: http.MethodPost, path: "/resend", query: redirectQuery(params.EmailRedirectTo), body: body}, nil)
}
