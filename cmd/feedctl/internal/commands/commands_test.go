package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-feed-server/identity/cookies"
	"github.com/jrsteele09/go-feed-server/identity/memory"
	"github.com/jrsteele09/go-feed-server/token"
	tokenfakerepo "github.com/jrsteele09/go-feed-server/token/repofake"
	fakeuserrepo "github.com/jrsteele09/go-feed-server/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@x.com"
	testPassword = "Password123"
)

type testFixture struct {
	backend *memory.Backend
	out     *bytes.Buffer
	globals *Globals
	jarPath string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	tokens := token.New(tokenfakerepo.NewFakeTokensRepo(), token.NewHMACSigner("secret"))
	backend := memory.New(fakeuserrepo.NewFakeUserRepo(), tokens)

	jarPath := filepath.Join(t.TempDir(), "cookies.json")
	jar, err := cookies.OpenJar(jarPath)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	g := &Globals{BaseURL: "http://localhost:8080"}
	g.UseProvider(backend, jar, out)
	return &testFixture{backend: backend, out: out, globals: g, jarPath: jarPath}
}

func (f *testFixture) signUp(t *testing.T) memory.Email {
	t.Helper()
	cmd := &SignupCmd{Email: testEmail, Username: "alice", Password: testPassword}
	require.NoError(t, cmd.Run(context.Background(), f.globals))
	mail, ok := f.backend.LastEmail(testEmail)
	require.True(t, ok)
	return mail
}

func TestVerifyWithCode(t *testing.T) {
	f := setupTestFixture(t)
	mail := f.signUp(t)

	err := (&VerifyCmd{Email: testEmail, Code: "12345"}).Run(context.Background(), f.globals)
	require.ErrorContains(t, err, "6 digits")

	f.out.Reset()
	require.NoError(t, (&VerifyCmd{Email: testEmail, Code: mail.Code}).Run(context.Background(), f.globals))
	require.Contains(t, f.out.String(), "Verified. Signed in as "+testEmail)

	f.out.Reset()
	require.NoError(t, (&WhoamiCmd{}).Run(context.Background(), f.globals))
	require.Contains(t, f.out.String(), testEmail)
	require.NotContains(t, f.out.String(), "unverified")
}

func TestVerifyPrompt_RetriesAfterWrongCode(t *testing.T) {
	f := setupTestFixture(t)
	mail := f.signUp(t)

	wrong := "000000"
	if mail.Code == wrong {
		wrong = "111111"
	}
	in := strings.NewReader(wrong + "\n" + mail.Code + "\n")
	require.NoError(t, (&VerifyCmd{Email: testEmail, In: in}).Run(context.Background(), f.globals))
	require.Contains(t, f.out.String(), "Invalid or expired code")
	require.Contains(t, f.out.String(), "Verified.")
}

func TestVerifyPrompt_EmptyLineGivesUp(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)
	err := (&VerifyCmd{Email: testEmail, In: strings.NewReader("\n")}).Run(context.Background(), f.globals)
	require.EqualError(t, err, "no code entered")
}

func TestLoginLogout_PersistsInJar(t *testing.T) {
	f := setupTestFixture(t)
	mail := f.signUp(t)

	err := (&LoginCmd{Email: testEmail, Password: testPassword}).Run(context.Background(), f.globals)
	require.EqualError(t, err, "Please verify your email before signing in")

	require.NoError(t, (&VerifyCmd{Email: testEmail, Code: mail.Code}).Run(context.Background(), f.globals))
	require.NoError(t, (&LogoutCmd{}).Run(context.Background(), f.globals))
	require.NoError(t, (&LoginCmd{Email: testEmail, Password: testPassword}).Run(context.Background(), f.globals))

	// a second invocation reads the same jar file
	jar, err := cookies.OpenJar(f.jarPath)
	require.NoError(t, err)
	out := &bytes.Buffer{}
	g := &Globals{BaseURL: f.globals.BaseURL}
	g.UseProvider(f.backend, jar, out)
	require.NoError(t, (&WhoamiCmd{}).Run(context.Background(), g))
	require.Contains(t, out.String(), testEmail)

	require.NoError(t, (&LogoutCmd{}).Run(context.Background(), g))
	out.Reset()
	require.NoError(t, (&WhoamiCmd{}).Run(context.Background(), g))
	require.Equal(t, "Not signed in\n", out.String())
}

func TestResend_RateLimited(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)
	err := (&ResendCmd{Email: testEmail}).Run(context.Background(), f.globals)
	require.EqualError(t, err, "Too many attempts. Please wait a moment and try again.")
}

func TestWatch_StopsOnCancel(t *testing.T) {
	f := setupTestFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, (&WatchCmd{Interval: 10 * time.Millisecond}).Run(ctx, f.globals))
	require.Contains(t, f.out.String(), "Not signed in")
}
