package verification_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	fakeaccountrepo "github.com/jrsteele09/go-feed-server/accounts/repofake"
	"github.com/jrsteele09/go-feed-server/gateway"
	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/identity/cookies"
	"github.com/jrsteele09/go-feed-server/identity/memory"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/internal/metrics"
	"github.com/jrsteele09/go-feed-server/provisioning"
	"github.com/jrsteele09/go-feed-server/token"
	tokenfakerepo "github.com/jrsteele09/go-feed-server/token/repofake"
	fakeuserrepo "github.com/jrsteele09/go-feed-server/users/repofake"
	"github.com/jrsteele09/go-feed-server/verification"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@x.com"
	testPassword = "Password123"
)

func confirmedAt() *time.Time {
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &t
}

func TestClassify(t *testing.T) {
	confirmed := &identity.Session{User: &identity.User{ID: "u1", Email: testEmail, EmailConfirmedAt: confirmedAt()}}
	unconfirmed := &identity.Session{User: &identity.User{ID: "u1", Email: "b@x.com"}}

	tests := []struct {
		name     string
		signals  verification.Signals
		kind     verification.Kind
		email    string
		reason   string
		redirect string
	}{
		{
			name:    "error param wins over code and session",
			signals: verification.Signals{Params: verification.Params{Code: "abc", Error: "access_denied", ErrorDescription: "Email link is invalid or has expired"}, Session: confirmed},
			kind:    verification.KindError,
			reason:  "Email link is invalid or has expired",
		},
		{
			name:    "error param without description",
			signals: verification.Signals{Params: verification.Params{Code: "abc", FlowType: identity.OTPRecovery, Error: "access_denied"}},
			kind:    verification.KindError,
			reason:  "access_denied",
		},
		{
			name:    "failed exchange wins over session",
			signals: verification.Signals{Params: verification.Params{Code: "abc"}, ExchangeErr: apperrors.Wrapf(apperrors.ErrInvalidOrExpiredLink, "flow"), Session: confirmed},
			kind:    verification.KindError,
			reason:  gateway.MsgInvalidLink,
		},
		{
			name:     "recovery exchange",
			signals:  verification.Signals{Params: verification.Params{Code: "xyz", FlowType: identity.OTPRecovery}, Exchanged: confirmed},
			kind:     verification.KindRecovery,
			redirect: "/reset-password",
		},
		{
			name:    "no session uses hint",
			signals: verification.Signals{Params: verification.Params{EmailHint: testEmail}},
			kind:    verification.KindPending,
			email:   testEmail,
		},
		{
			name:  "no session no hint",
			kind:  verification.KindPending,
			email: "your email",
		},
		{
			name:    "unconfirmed session uses session email",
			signals: verification.Signals{Params: verification.Params{EmailHint: testEmail}, Session: unconfirmed},
			kind:    verification.KindPending,
			email:   "b@x.com",
		},
		{
			name:     "confirmed session",
			signals:  verification.Signals{Params: verification.Params{Code: "abc", FlowType: identity.OTPSignup}, Session: confirmed},
			kind:     verification.KindVerified,
			redirect: "/feed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := verification.Classify(tt.signals)
			require.Equal(t, tt.kind, out.Kind)
			require.Equal(t, tt.email, out.Email)
			require.Equal(t, tt.reason, out.Reason)
			require.Equal(t, tt.redirect, out.RedirectTo)
		})
	}
}

func TestClassify_ErrorPrecedence(t *testing.T) {
	sessions := []*identity.Session{
		nil,
		{User: &identity.User{Email: testEmail}},
		{User: &identity.User{Email: testEmail, EmailConfirmedAt: confirmedAt()}},
	}
	flows := []identity.OTPType{"", identity.OTPSignup, identity.OTPRecovery, identity.OTPInvite, identity.OTPEmail}
	exchangeErrs := []error{nil, apperrors.ErrExchangeFailed}

	for _, sess := range sessions {
		for _, flow := range flows {
			for _, exErr := range exchangeErrs {
				out := verification.Classify(verification.Signals{
					Params:      verification.Params{Code: "abc", Error: "server_error", FlowType: flow},
					Exchanged:   sess,
					ExchangeErr: exErr,
					Session:     sess,
				})
				require.Equal(t, verification.KindError, out.Kind)
			}
		}
	}
}

func TestParamsFromQuery(t *testing.T) {
	q := url.Values{
		"code":              {" abc "},
		"type":              {"Recovery"},
		"email":             {testEmail},
		"error":             {"access_denied"},
		"error_description": {"expired"},
	}
	require.Equal(t, verification.Params{
		Code:             "abc",
		Error:            "access_denied",
		ErrorDescription: "expired",
		FlowType:         identity.OTPRecovery,
		EmailHint:        testEmail,
	}, verification.ParamsFromQuery(q))
}

func TestErrorURL(t *testing.T) {
	u, err := url.Parse(verification.ErrorURL("This link is invalid or has expired"))
	require.NoError(t, err)
	require.Equal(t, "/verify-account", u.Path)
	require.Equal(t, "access_denied", u.Query().Get("error"))
	require.Equal(t, "This link is invalid or has expired", u.Query().Get("error_description"))
}

type countingProvider struct {
	identity.Provider
	exchanges int
}

func (p *countingProvider) ExchangeCodeForSession(context.Context, string) (*identity.Session, error) {
	p.exchanges++
	return nil, nil
}

func TestResolve_ErrorParamSkipsExchange(t *testing.T) {
	client := &countingProvider{}
	out := verification.New(nil).Resolve(context.Background(), client, verification.Params{Code: "abc", Error: "access_denied"})
	require.Equal(t, verification.KindError, out.Kind)
	require.Equal(t, 0, client.exchanges)
}

type testFixture struct {
	backend  *memory.Backend
	accounts *fakeaccountrepo.FakeAccountRepo
	gateway  *gateway.Gateway
	machine  *verification.Machine
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tokens := token.New(tokenfakerepo.NewFakeTokensRepo(), token.NewHMACSigner("secret"),
		token.WithNowFunc(func() time.Time { return now }),
	)
	backend := memory.New(fakeuserrepo.NewFakeUserRepo(), tokens)
	accountRepo := fakeaccountrepo.NewFakeAccountRepo()
	prov := provisioning.New(accountRepo, metrics.Discard())

	return &testFixture{
		backend:  backend,
		accounts: accountRepo,
		gateway:  gateway.New(backend, "http://localhost:8080", gateway.WithProvisioner(prov)),
		machine:  verification.New(prov),
	}
}

func browser() *cookies.Request {
	return cookies.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
}

func (f *testFixture) lastEmail(t *testing.T) memory.Email {
	t.Helper()
	mail, ok := f.backend.LastEmail(testEmail)
	require.True(t, ok)
	return mail
}

func linkParams(t *testing.T, link string) verification.Params {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return verification.ParamsFromQuery(u.Query())
}

func TestScenario_SignUpThenVerifyByLink(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	jar := browser()

	res := f.gateway.SignUp(ctx, jar, gateway.SignUpInput{Email: testEmail, Password: testPassword})
	require.True(t, res.Success)
	require.Equal(t, "/verify-account?email=a%40x.com", res.RedirectTo)

	landing, err := url.Parse(res.RedirectTo)
	require.NoError(t, err)
	out := f.machine.Resolve(ctx, f.backend.Client(jar), verification.ParamsFromQuery(landing.Query()))
	require.Equal(t, verification.KindPending, out.Kind)
	require.Equal(t, testEmail, out.Email)
	require.Equal(t, 0, f.accounts.Len())

	params := linkParams(t, f.lastEmail(t).Link)
	require.NotEmpty(t, params.Code)
	require.Equal(t, identity.OTPSignup, params.FlowType)

	out = f.machine.Resolve(ctx, f.backend.Client(jar), params)
	require.Equal(t, verification.KindVerified, out.Kind)
	require.Equal(t, "/feed", out.RedirectTo)
	require.True(t, out.User.IsConfirmed())

	account, err := f.accounts.Get(ctx, out.User.ID)
	require.NoError(t, err)
	require.Equal(t, "a", account.Username)
	require.Equal(t, testEmail, account.Email)
	require.Nil(t, account.FullName)

	// The code is single use.
	out = f.machine.Resolve(ctx, f.backend.Client(browser()), params)
	require.Equal(t, verification.KindError, out.Kind)
	require.Equal(t, gateway.MsgInvalidLink, out.Reason)
}

func TestScenario_RecoveryLink(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	signupJar := browser()
	require.True(t, f.gateway.SignUp(ctx, signupJar, gateway.SignUpInput{Email: testEmail, Password: testPassword}).Success)
	out := f.machine.Resolve(ctx, f.backend.Client(signupJar), linkParams(t, f.lastEmail(t).Link))
	require.Equal(t, verification.KindVerified, out.Kind)
	f.accounts = fakeaccountrepo.NewFakeAccountRepo()
	f.machine = verification.New(provisioning.New(f.accounts, metrics.Discard()))

	jar := browser()
	require.True(t, f.gateway.SendPasswordReset(ctx, jar, testEmail).Success)
	params := linkParams(t, f.lastEmail(t).Link)
	require.Equal(t, identity.OTPRecovery, params.FlowType)

	out = f.machine.Resolve(ctx, f.backend.Client(jar), params)
	require.Equal(t, verification.KindRecovery, out.Kind)
	require.Equal(t, "/reset-password", out.RedirectTo)
	require.Equal(t, testEmail, out.User.Email)
	require.Equal(t, 0, f.accounts.Len())

	sess, err := f.backend.Client(jar).GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
}

func TestVerifyCode(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.True(t, f.gateway.SignUp(ctx, browser(), gateway.SignUpInput{
		Email:    testEmail,
		Password: testPassword,
		Username: "alice",
	}).Success)
	mail := f.lastEmail(t)
	require.Len(t, mail.Code, 6)

	wrong := "000000"
	if mail.Code == wrong {
		wrong = "111111"
	}
	out := f.machine.VerifyCode(ctx, f.backend.Client(browser()), testEmail, wrong)
	require.Equal(t, verification.KindError, out.Kind)
	require.Equal(t, gateway.MsgInvalidCode, out.Reason)
	require.ErrorIs(t, out.Err, apperrors.ErrInvalidOrExpiredLink)

	out = f.machine.VerifyCode(ctx, f.backend.Client(browser()), testEmail, mail.Code)
	require.Equal(t, verification.KindVerified, out.Kind)

	account, err := f.accounts.Get(ctx, out.User.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", account.Username)
}

func TestConfirmTokenHash(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.True(t, f.gateway.SignUp(ctx, browser(), gateway.SignUpInput{Email: testEmail, Password: testPassword}).Success)
	mail := f.lastEmail(t)

	out := f.machine.ConfirmTokenHash(ctx, f.backend.Client(browser()), "nope", identity.OTPSignup, "")
	require.Equal(t, verification.KindError, out.Kind)
	require.Equal(t, gateway.MsgInvalidLink, out.Reason)

	out = f.machine.ConfirmTokenHash(ctx, f.backend.Client(browser()), mail.TokenHash, identity.OTPSignup, "/profile")
	require.Equal(t, verification.KindVerified, out.Kind)
	require.Equal(t, "/profile", out.RedirectTo)
	require.Equal(t, 1, f.accounts.Len())

	_, err := f.accounts.Get(ctx, out.User.ID)
	require.NoError(t, err)
}
