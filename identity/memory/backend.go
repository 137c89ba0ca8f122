// Package memory is an in-process identity provider used in development and tests.
// It behaves like a GoTrue instance with email confirmation and PKCE enabled: sign-up
// mails a link and a 6-digit code, and nothing is sent anywhere but the outbox.
package memory

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/token"
	"github.com/jrsteele09/go-feed-server/users"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"
)

const (
	defaultOTPValidity    = 10 * time.Minute
	defaultResendInterval = time.Minute
	refreshMargin         = 30 * time.Second
)

// Email is a message the provider would have delivered.
type Email struct {
	To        string
	Kind      identity.OTPType
	Link      string
	Code      string
	TokenHash string
	SentAt    time.Time
}

// flow is one outstanding confirmation: the link code, the token hash and the
// 6-digit code all redeem the same flow, once.
type flow struct {
	userID    string
	email     string
	typ       identity.OTPType
	code      string
	tokenHash string
	challenge string
	secret    string
	issuedAt  time.Time
}

type Backend struct {
	users          users.UserRepo
	tokens         *token.Manager
	storage        identity.CookieStorage
	otpValidity    time.Duration
	resendInterval time.Duration

	mu      sync.Mutex
	byCode  map[string]*flow
	byHash  map[string]*flow
	byEmail map[string]*flow
	outbox  []Email
}

type Option func(*Backend)

func WithOTPValidity(d time.Duration) Option {
	return func(b *Backend) {
		b.otpValidity = d
	}
}

func WithResendInterval(d time.Duration) Option {
	return func(b *Backend) {
		b.resendInterval = d
	}
}

func WithCookieStorage(cs identity.CookieStorage) Option {
	return func(b *Backend) {
		b.storage = cs
	}
}

func New(userRepo users.UserRepo, tokens *token.Manager, opts ...Option) *Backend {
	b := &Backend{
		users:          userRepo,
		tokens:         tokens,
		otpValidity:    defaultOTPValidity,
		resendInterval: defaultResendInterval,
		byCode:         make(map[string]*flow),
		byHash:         make(map[string]*flow),
		byEmail:        make(map[string]*flow),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ identity.ClientFactory = (*Backend)(nil)

// Client binds a provider client to cookies. Clients are cheap; create one per request.
func (b *Backend) Client(cookies identity.CookieStore) identity.Provider {
	return &Client{b: b, cookies: cookies}
}

func (b *Backend) now() time.Time {
	return b.tokens.Now()
}

// Outbox returns a copy of every email sent so far.
func (b *Backend) Outbox() []Email {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Email(nil), b.outbox...)
}

// LastEmail returns the most recent email sent to addr.
func (b *Backend) LastEmail(addr string) (Email, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	addr = users.NormalizeEmail(addr)
	for i := len(b.outbox) - 1; i >= 0; i-- {
		if b.outbox[i].To == addr {
			return b.outbox[i], true
		}
	}
	return Email{}, false
}

func (b *Backend) otpOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(b.otpValidity / time.Second),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// lastIssued reports when the outstanding flow for email was started.
func (b *Backend) lastIssued(email string) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.byEmail[email]
	if !ok {
		return time.Time{}, false
	}
	return f.issuedAt, true
}

// startFlow replaces any outstanding flow for the user and mails the new one.
func (b *Backend) startFlow(u *users.User, typ identity.OTPType, redirectTo, challenge string) error {
	secret, err := randomSecret()
	if err != nil {
		return err
	}
	hash, err := randomHex(28)
	if err != nil {
		return err
	}

	now := b.now()
	code, err := totp.GenerateCodeCustom(secret, now, b.otpOpts())
	if err != nil {
		return err
	}

	f := &flow{
		userID:    u.ID,
		email:     users.NormalizeEmail(u.Email),
		typ:       typ,
		code:      uuid.New().String(),
		tokenHash: hash,
		challenge: challenge,
		secret:    secret,
		issuedAt:  now,
	}

	mail := Email{
		To:        f.email,
		Kind:      typ,
		Link:      withQuery(redirectTo, "code", f.code),
		Code:      code,
		TokenHash: f.tokenHash,
		SentAt:    now,
	}

	b.mu.Lock()
	if prev, ok := b.byEmail[f.email]; ok {
		b.dropLocked(prev)
	}
	b.byCode[f.code] = f
	b.byHash[f.tokenHash] = f
	b.byEmail[f.email] = f
	b.outbox = append(b.outbox, mail)
	b.mu.Unlock()

	log.Info().Str("to", mail.To).Str("type", string(typ)).Str("link", mail.Link).Str("code", mail.Code).Msg("Sending email")
	return nil
}

func (b *Backend) dropLocked(f *flow) {
	delete(b.byCode, f.code)
	delete(b.byHash, f.tokenHash)
	if cur, ok := b.byEmail[f.email]; ok && cur == f {
		delete(b.byEmail, f.email)
	}
}

func (b *Backend) expired(f *flow) bool {
	return b.now().Sub(f.issuedAt) > b.otpValidity
}

func withQuery(raw, key, value string) string {
	if raw == "" {
		raw = "/verify-account"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func randomSecret() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
