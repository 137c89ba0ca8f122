// Package token mints and checks the session tokens of the in-process identity
// provider, in the shape a GoTrue-compatible provider issues them.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
)

const authenticatedRole = "authenticated"

type RefreshToken struct {
	Token     string
	UserID    string
	SessionID string
	Iat       time.Time
}

// Claims is the access token payload. Field names follow GoTrue so the same
// struct decodes tokens from either provider.
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// User rebuilds the identity user carried by the claims. Confirmation state is not
// part of the token; callers needing it ask the provider.
func (c *Claims) User() *identity.User {
	return &identity.User{
		ID:           c.Subject,
		Email:        c.Email,
		UserMetadata: c.UserMetadata,
	}
}

// ExpiresAtTime returns the exp claim, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type Manager struct {
	signer             Signer
	issuer             string
	audience           string
	refreshrepo        RefreshTokenRepo
	revoked            RevocationList
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithAudience(audience string) ManagerOption {
	return func(m *Manager) {
		m.audience = audience
	}
}

func WithRevocationList(list RevocationList) ManagerOption {
	return func(m *Manager) {
		m.revoked = list
	}
}

func New(repo RefreshTokenRepo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		refreshrepo: repo,
		signer:      signer,
		audience:    authenticatedRole,
		revoked:     NewMemoryRevocationList(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 30 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

func (c *Manager) Now() time.Time {
	return c.nowFunc()
}

// CreateAccessToken signs an access token for user within sessionID and returns it with its expiry.
func (c *Manager) CreateAccessToken(user *identity.User, sessionID string) (string, time.Time, error) {
	now := c.nowFunc()
	exp := now.Add(c.accessTokenExpiry)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		Email:        user.Email,
		Role:         authenticatedRole,
		SessionID:    sessionID,
		UserMetadata: user.UserMetadata,
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, apperrors.Wrapf(err, "Manager.CreateAccessToken")
	}
	return signed, exp, nil
}

func (c *Manager) CreateRefreshToken(userID, sessionID string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", apperrors.Wrapf(err, "Manager.CreateRefreshToken rand.Read")
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := c.refreshrepo.Put(&RefreshToken{
		Token:     tokenStr,
		UserID:    userID,
		SessionID: sessionID,
		Iat:       c.nowFunc(),
	}); err != nil {
		return "", apperrors.Wrapf(err, "Manager.CreateRefreshToken Put")
	}
	return tokenStr, nil
}

// ResolveRefreshToken returns the stored refresh token. Refresh tokens are not
// rotated on use, so concurrent refreshes with the same token all succeed.
func (c *Manager) ResolveRefreshToken(raw string) (*RefreshToken, error) {
	rt, err := c.refreshrepo.Get(raw)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrNoSession, "refresh token not found")
	}
	if c.nowFunc().Sub(rt.Iat) > c.refreshTokenExpiry {
		_ = c.refreshrepo.Delete(raw)
		return nil, apperrors.Wrapf(apperrors.ErrNoSession, "refresh token expired")
	}
	return rt, nil
}

func (c *Manager) InvalidateRefreshToken(refreshToken string) {
	_ = c.refreshrepo.Delete(refreshToken)
}

// ParseAccessToken verifies signature, audience, issuer, expiry and revocation.
func (c *Manager) ParseAccessToken(raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.ErrNoSession
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(raw, claims, c.signer.GetVerificationKey, opts...); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrNoSession, "invalid access token: %v", err)
	}
	if claims.ID != "" && c.revoked.IsRevoked(claims.ID, c.nowFunc()) {
		return nil, apperrors.Wrapf(apperrors.ErrNoSession, "access token revoked")
	}
	return claims, nil
}

// RevokeAccessToken rejects a still-unexpired access token from now on.
func (c *Manager) RevokeAccessToken(raw string) error {
	claims, err := c.ParseAccessToken(raw)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return apperrors.New("token missing jti claim")
	}
	c.revoked.Revoke(c.nowFunc(), claims.ID, claims.ExpiresAtTime())
	return nil
}

// GetJWKS publishes the verification key. Only asymmetric signers have one.
func (c *Manager) GetJWKS() (*JWKS, error) {
	keyPairSigner, ok := c.signer.(*KeyPairSigner)
	if !ok {
		return nil, apperrors.New("JWKS only supported for asymmetric signing (RSA/ECDSA)")
	}
	return keyPairSigner.GetJWKS()
}

// ParseUnverified decodes the claims without checking the signature. Only use it
// on tokens the caller already trusts, or to decide whether one is worth verifying.
func ParseUnverified(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrNoSession, "malformed access token: %v", err)
	}
	return claims, nil
}

// PeekExpiry reads exp without verifying the signature.
func PeekExpiry(raw string) (time.Time, bool) {
	claims, err := ParseUnverified(raw)
	if err != nil {
		return time.Time{}, false
	}
	exp := claims.ExpiresAtTime()
	return exp, !exp.IsZero()
}

// NewSessionID identifies one sign-in across token refreshes.
func NewSessionID() string {
	return uuid.New().String()
}
