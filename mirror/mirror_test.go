package mirror_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/identity/cookies"
	"github.com/jrsteele09/go-feed-server/identity/memory"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/mirror"
	"github.com/jrsteele09/go-feed-server/token"
	tokenfakerepo "github.com/jrsteele09/go-feed-server/token/repofake"
	fakeuserrepo "github.com/jrsteele09/go-feed-server/users/repofake"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers GetUser only when told to.
type fakeProvider struct {
	identity.Provider
	identity.Broadcaster
	release chan struct{}
	user    *identity.User
	err     error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{release: make(chan struct{})}
}

func (p *fakeProvider) OnAuthStateChange(fn func(identity.AuthChange)) identity.Subscription {
	return p.Broadcaster.OnAuthStateChange(fn)
}

func (p *fakeProvider) GetUser(context.Context) (*identity.User, error) {
	<-p.release
	return p.user, p.err
}

func alice() *identity.User {
	return &identity.User{ID: "u1", Email: "a@x.com"}
}

func TestMount_LoadingUntilFetched(t *testing.T) {
	p := newFakeProvider()
	p.user = alice()
	m := mirror.Mount(context.Background(), p)
	defer m.Close()

	require.Equal(t, mirror.Snapshot{Loading: true}, m.Snapshot())
	require.False(t, m.IsAuthenticated())
	require.Equal(t, 1, p.ListenerCount())

	close(p.release)
	<-m.Ready()
	m.Wait()
	require.Equal(t, mirror.Snapshot{User: p.user}, m.Snapshot())
	require.True(t, m.IsAuthenticated())
}

func TestMount_NoSessionIsAnonymous(t *testing.T) {
	p := newFakeProvider()
	p.err = &identity.ProviderError{Op: "user", Status: http.StatusUnauthorized, Code: "no_authorization", Kind: apperrors.ErrNoSession}
	m := mirror.Mount(context.Background(), p)
	defer m.Close()

	close(p.release)
	m.Wait()
	require.Equal(t, mirror.Snapshot{}, m.Snapshot())
}

func TestLastArrivalWins(t *testing.T) {
	t.Run("event after fetch", func(t *testing.T) {
		p := newFakeProvider()
		m := mirror.Mount(context.Background(), p)
		defer m.Close()
		close(p.release)
		m.Wait()
		require.False(t, m.IsAuthenticated())

		p.Emit(identity.EventSignedIn, &identity.Session{User: alice()})
		require.Equal(t, "a@x.com", m.Snapshot().User.Email)
		require.False(t, m.Snapshot().Loading)
	})

	t.Run("fetch after event", func(t *testing.T) {
		p := newFakeProvider()
		m := mirror.Mount(context.Background(), p)
		defer m.Close()

		p.Emit(identity.EventSignedIn, &identity.Session{User: alice()})
		select {
		case <-m.Ready():
		default:
			t.Fatal("event should have made the mirror ready")
		}
		require.True(t, m.IsAuthenticated())

		close(p.release)
		m.Wait()
		require.False(t, m.IsAuthenticated())
	})
}

func TestSignedOutReplacesSnapshot(t *testing.T) {
	p := newFakeProvider()
	p.user = alice()
	m := mirror.Mount(context.Background(), p)
	defer m.Close()
	close(p.release)
	m.Wait()

	var mu sync.Mutex
	var seen []mirror.Snapshot
	unsubscribe := m.Subscribe(func(s mirror.Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	p.Emit(identity.EventSignedOut, &identity.Session{User: alice()})
	p.Emit(identity.EventTokenRefreshed, &identity.Session{User: alice()})
	unsubscribe()
	p.Emit(identity.EventSignedOut, nil)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []mirror.Snapshot{{}, {User: alice()}}, seen)
}

func TestClose_DropsSubscription(t *testing.T) {
	p := newFakeProvider()
	m := mirror.Mount(context.Background(), p)
	close(p.release)
	m.Wait()

	m.Close()
	m.Close()
	require.Equal(t, 0, p.ListenerCount())

	p.Emit(identity.EventSignedIn, &identity.Session{User: alice()})
	require.False(t, m.IsAuthenticated())
}

func TestMirrorsMemoryProvider(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tokens := token.New(tokenfakerepo.NewFakeTokensRepo(), token.NewHMACSigner("secret"),
		token.WithNowFunc(func() time.Time { return now }),
	)
	backend := memory.New(fakeuserrepo.NewFakeUserRepo(), tokens)
	ctx := context.Background()

	client := backend.Client(cookies.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))
	_, _, err := client.SignUp(ctx, identity.SignUpParams{Email: "a@x.com", Password: "Password123"})
	require.NoError(t, err)

	m := mirror.Mount(ctx, client)
	defer m.Close()
	m.Wait()
	require.False(t, m.IsAuthenticated())

	_, err = client.SignInWithPassword(ctx, "a@x.com", "Password123")
	require.NoError(t, err)
	require.True(t, m.IsAuthenticated())

	require.NoError(t, client.SignOut(ctx))
	require.False(t, m.IsAuthenticated())
}
