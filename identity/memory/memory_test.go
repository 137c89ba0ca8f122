package memory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/identity/cookies"
	"github.com/jrsteele09/go-feed-server/identity/memory"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/token"
	tokenfakerepo "github.com/jrsteele09/go-feed-server/token/repofake"
	"github.com/jrsteele09/go-feed-server/users"
	fakeuserrepo "github.com/jrsteele09/go-feed-server/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@x.com"
	testPassword = "Password123"
	verifyURL    = "http://localhost:8080/verify-account?type=signup"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type testFixture struct {
	clock   *clock
	backend *memory.Backend
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	tokens := token.New(tokenfakerepo.NewFakeTokensRepo(), token.NewHMACSigner("secret"),
		token.WithNowFunc(c.Now),
		token.WithTokenExpiry(time.Hour, 30*24*time.Hour),
	)
	return &testFixture{
		clock:   c,
		backend: memory.New(fakeuserrepo.NewFakeUserRepo(), tokens),
	}
}

// browser returns a fresh cookie store standing in for one browser.
func browser() identity.CookieStore {
	return cookies.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
}

func codeFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("code")
}

func (f *testFixture) signUp(t *testing.T, jar identity.CookieStore) memory.Email {
	t.Helper()
	user, sess, err := f.backend.Client(jar).SignUp(context.Background(), identity.SignUpParams{
		Email:           testEmail,
		Password:        testPassword,
		EmailRedirectTo: verifyURL,
	})
	require.NoError(t, err)
	require.Nil(t, sess)
	require.False(t, user.IsConfirmed())

	mail, ok := f.backend.LastEmail(testEmail)
	require.True(t, ok)
	return mail
}

func TestSignUp_ExchangeConfirmsOnce(t *testing.T) {
	f := setupTestFixture(t)
	jar := browser()
	mail := f.signUp(t, jar)
	require.Equal(t, identity.OTPSignup, mail.Kind)
	require.Contains(t, mail.Link, "type=signup")
	require.Len(t, mail.Code, 6)

	client := f.backend.Client(jar)
	var events []identity.AuthEvent
	client.OnAuthStateChange(func(c identity.AuthChange) { events = append(events, c.Event) })

	sess, err := client.ExchangeCodeForSession(context.Background(), codeFromLink(t, mail.Link))
	require.NoError(t, err)
	require.True(t, sess.Valid(f.clock.now))
	require.True(t, sess.User.IsConfirmed())
	require.Equal(t, []identity.AuthEvent{identity.EventSignedIn}, events)

	_, err = client.ExchangeCodeForSession(context.Background(), codeFromLink(t, mail.Link))
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredLink)
}

func TestExchange_RequiresVerifierFromSameBrowser(t *testing.T) {
	f := setupTestFixture(t)
	mail := f.signUp(t, browser())

	_, err := f.backend.Client(browser()).ExchangeCodeForSession(context.Background(), codeFromLink(t, mail.Link))
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredLink)
	require.Equal(t, "bad_code_verifier", identity.ErrorCode(err))
}

func TestVerifyOTP_CodeWithinValidity(t *testing.T) {
	f := setupTestFixture(t)
	mail := f.signUp(t, browser())

	client := f.backend.Client(browser())
	_, err := client.VerifyOTP(context.Background(), identity.VerifyOTPParams{Email: testEmail, Token: "000000", Type: identity.OTPEmail})
	if mail.Code != "000000" {
		require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredLink)
	}

	f.clock.now = f.clock.now.Add(9 * time.Minute)
	sess, err := client.VerifyOTP(context.Background(), identity.VerifyOTPParams{Email: testEmail, Token: mail.Code, Type: identity.OTPEmail})
	require.NoError(t, err)
	require.True(t, sess.User.IsConfirmed())
}

func TestVerifyOTP_ExpiredCode(t *testing.T) {
	f := setupTestFixture(t)
	mail := f.signUp(t, browser())

	f.clock.now = f.clock.now.Add(11 * time.Minute)
	_, err := f.backend.Client(browser()).VerifyOTP(context.Background(), identity.VerifyOTPParams{Email: testEmail, Token: mail.Code})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredLink)
	require.Equal(t, "otp_expired", identity.ErrorCode(err))
}

func TestVerifyOTP_TokenHash(t *testing.T) {
	f := setupTestFixture(t)
	mail := f.signUp(t, browser())

	client := f.backend.Client(browser())
	_, err := client.VerifyOTP(context.Background(), identity.VerifyOTPParams{TokenHash: mail.TokenHash, Type: identity.OTPRecovery})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredLink)

	sess, err := client.VerifyOTP(context.Background(), identity.VerifyOTPParams{TokenHash: mail.TokenHash, Type: identity.OTPSignup})
	require.NoError(t, err)
	require.Equal(t, testEmail, sess.User.Email)
}

func TestSignIn(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t, browser())

	jar := browser()
	client := f.backend.Client(jar)
	_, err := client.SignInWithPassword(context.Background(), testEmail, "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// credentials are accepted before confirmation; the user carries no confirmation timestamp
	sess, err := client.SignInWithPassword(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.False(t, sess.User.IsConfirmed())

	got, err := client.GetSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, sess.RefreshToken, got.RefreshToken)
}

func TestGetSession_RefreshesExpiringToken(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t, browser())

	jar := browser()
	client := f.backend.Client(jar)
	sess, err := client.SignInWithPassword(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	var events []identity.AuthEvent
	client.OnAuthStateChange(func(c identity.AuthChange) { events = append(events, c.Event) })

	f.clock.now = f.clock.now.Add(59*time.Minute + 45*time.Second)

	refreshed, err := client.GetSession(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, sess.AccessToken, refreshed.AccessToken)
	require.Equal(t, sess.RefreshToken, refreshed.RefreshToken)
	require.True(t, refreshed.ExpiresAt.After(sess.ExpiresAt))
	require.Equal(t, []identity.AuthEvent{identity.EventTokenRefreshed}, events)
}

func TestSignOut_ClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t, browser())

	jar := browser()
	client := f.backend.Client(jar)
	_, err := client.SignInWithPassword(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, client.SignOut(context.Background()))
	sess, err := client.GetSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)

	_, err = client.GetUser(context.Background())
	require.ErrorIs(t, err, apperrors.ErrNoSession)
}

func TestResetPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t, browser())

	jar := browser()
	client := f.backend.Client(jar)
	require.NoError(t, client.ResetPasswordForEmail(context.Background(), "nobody@x.com", verifyURL))
	_, ok := f.backend.LastEmail("nobody@x.com")
	require.False(t, ok)

	require.NoError(t, client.ResetPasswordForEmail(context.Background(), testEmail, "http://localhost:8080/verify-account?type=recovery"))
	mail, ok := f.backend.LastEmail(testEmail)
	require.True(t, ok)
	require.Equal(t, identity.OTPRecovery, mail.Kind)

	var events []identity.AuthEvent
	client.OnAuthStateChange(func(c identity.AuthChange) { events = append(events, c.Event) })
	_, err := client.ExchangeCodeForSession(context.Background(), codeFromLink(t, mail.Link))
	require.NoError(t, err)
	require.Equal(t, []identity.AuthEvent{identity.EventPasswordRecovery}, events)

	_, err = client.UpdateUser(context.Background(), identity.UserUpdate{Password: "short"})
	require.ErrorIs(t, err, apperrors.ErrWeakPassword)

	_, err = client.UpdateUser(context.Background(), identity.UserUpdate{Password: "NewPassword456"})
	require.NoError(t, err)
	_, err = f.backend.Client(browser()).SignInWithPassword(context.Background(), testEmail, "NewPassword456")
	require.NoError(t, err)
}

func TestResend_RateLimitedThenRearms(t *testing.T) {
	f := setupTestFixture(t)
	jar := browser()
	first := f.signUp(t, jar)

	client := f.backend.Client(jar)
	params := identity.ResendParams{Type: identity.OTPSignup, Email: testEmail, EmailRedirectTo: verifyURL}
	err := client.Resend(context.Background(), params)
	require.ErrorIs(t, err, apperrors.ErrRateLimited)

	f.clock.now = f.clock.now.Add(61 * time.Second)
	require.NoError(t, client.Resend(context.Background(), params))

	second, _ := f.backend.LastEmail(testEmail)
	require.NotEqual(t, first.Link, second.Link)

	_, err = client.ExchangeCodeForSession(context.Background(), codeFromLink(t, first.Link))
	require.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredLink)
	require.Len(t, f.backend.Outbox(), 2)
}

func TestSignUp_Validation(t *testing.T) {
	f := setupTestFixture(t)
	client := f.backend.Client(browser())

	_, _, err := client.SignUp(context.Background(), identity.SignUpParams{Email: testEmail, Password: "weak"})
	require.ErrorIs(t, err, apperrors.ErrWeakPassword)

	_, _, err = client.SignUp(context.Background(), identity.SignUpParams{Email: "not-an-email", Password: testPassword})
	require.Error(t, err)

	jar := browser()
	mail := f.signUp(t, jar)
	_, err = f.backend.Client(jar).ExchangeCodeForSession(context.Background(), codeFromLink(t, mail.Link))
	require.NoError(t, err)

	_, _, err = client.SignUp(context.Background(), identity.SignUpParams{Email: testEmail, Password: testPassword})
	require.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestSignUp_AgainReplacesPasswordAndProfile(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, _, err := f.backend.Client(browser()).SignUp(ctx, identity.SignUpParams{
		Email:           testEmail,
		Password:        "Squatter123",
		Data:            map[string]any{"username": "squatter"},
		EmailRedirectTo: verifyURL,
	})
	require.NoError(t, err)

	jar := browser()
	_, _, err = f.backend.Client(jar).SignUp(ctx, identity.SignUpParams{
		Email:           testEmail,
		Password:        "Owner123456",
		Data:            map[string]any{"username": "owner"},
		EmailRedirectTo: verifyURL,
	})
	require.NoError(t, err)

	mail, ok := f.backend.LastEmail(testEmail)
	require.True(t, ok)
	sess, err := f.backend.Client(jar).ExchangeCodeForSession(ctx, codeFromLink(t, mail.Link))
	require.NoError(t, err)
	require.True(t, sess.User.IsConfirmed())
	require.Equal(t, "owner", sess.User.UserMetadata["username"])

	_, err = f.backend.Client(browser()).SignInWithPassword(ctx, testEmail, "Squatter123")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.backend.Client(browser()).SignInWithPassword(ctx, testEmail, "Owner123456")
	require.NoError(t, err)
}

// lateInsertRepo hides a user that another sign-up stores between the
// lookup and the insert.
type lateInsertRepo struct {
	*fakeuserrepo.FakeUserRepo
	once sync.Once
	user *users.User
}

func (r *lateInsertRepo) GetByEmail(email string) (*users.User, error) {
	hidden := false
	r.once.Do(func() {
		hidden = true
		if err := r.FakeUserRepo.Upsert(r.user); err != nil {
			panic(err)
		}
	})
	if hidden {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "user %s", email)
	}
	return r.FakeUserRepo.GetByEmail(email)
}

func TestSignUp_RacingInsertIsTreatedAsExistingUser(t *testing.T) {
	f := setupTestFixture(t)
	hash, err := users.HashPassword("Earlier1234")
	require.NoError(t, err)
	repo := &lateInsertRepo{
		FakeUserRepo: fakeuserrepo.NewFakeUserRepo(),
		user:         &users.User{Email: testEmail, PasswordHash: hash},
	}
	backend := memory.New(repo, token.New(tokenfakerepo.NewFakeTokensRepo(), token.NewHMACSigner("secret"),
		token.WithNowFunc(f.clock.Now),
	))

	user, sess, err := backend.Client(browser()).SignUp(context.Background(), identity.SignUpParams{
		Email:           testEmail,
		Password:        testPassword,
		EmailRedirectTo: verifyURL,
	})
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Equal(t, repo.user.ID, user.ID)

	_, ok := backend.LastEmail(testEmail)
	require.True(t, ok)
	_, err = backend.Client(browser()).SignInWithPassword(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
}

func TestSignUp_ConcurrentSameEmail(t *testing.T) {
	f := setupTestFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = f.backend.Client(browser()).SignUp(context.Background(), identity.SignUpParams{
				Email:           testEmail,
				Password:        testPassword,
				EmailRedirectTo: verifyURL,
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}
