// Package mirror keeps a client-side copy of who is signed in, fed by one initial
// user fetch and then by the provider's auth-state-change events.
package mirror

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/rs/zerolog"
)

// Snapshot is replaced whole on every update; fields are never merged.
type Snapshot struct {
	User    *identity.User
	Loading bool
}

func (s Snapshot) IsAuthenticated() bool {
	return s.User != nil
}

type Mirror struct {
	mu        sync.Mutex
	snap      Snapshot
	sub       identity.Subscription
	nextID    int
	listeners map[int]func(Snapshot)
	ready     chan struct{}
	readyOnce sync.Once
	closed    bool
	done      chan struct{}
}

// Mount subscribes to client's auth changes and then fetches the current user in the
// background. Whichever result arrives last wins.
func Mount(ctx context.Context, client identity.Provider) *Mirror {
	m := &Mirror{
		snap:      Snapshot{Loading: true},
		listeners: make(map[int]func(Snapshot)),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	m.sub = client.OnAuthStateChange(m.onChange)

	go func() {
		defer close(m.done)
		user, err := client.GetUser(ctx)
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrNoSession) {
				zerolog.Ctx(ctx).Warn().Err(err).Str("error_code", identity.ErrorCode(err)).Msg("Initial user fetch failed")
			}
			user = nil
		}
		m.set(Snapshot{User: user})
	}()
	return m
}

func (m *Mirror) onChange(change identity.AuthChange) {
	var user *identity.User
	if change.Event != identity.EventSignedOut && change.Session != nil {
		user = change.Session.User
	}
	m.set(Snapshot{User: user})
}

func (m *Mirror) set(s Snapshot) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.snap = s
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.readyOnce.Do(func() { close(m.ready) })
	for _, fn := range fns {
		fn(s)
	}
}

func (m *Mirror) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Mirror) IsAuthenticated() bool {
	return m.Snapshot().IsAuthenticated()
}

// Ready is closed once the first snapshot with Loading false has been stored.
func (m *Mirror) Ready() <-chan struct{} {
	return m.ready
}

// Subscribe calls fn with every new snapshot until the returned func is called.
func (m *Mirror) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Close drops the provider subscription and every listener. Later events are ignored.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.listeners = map[int]func(Snapshot){}
	m.mu.Unlock()

	m.sub.Unsubscribe()
}

// Wait blocks until the initial fetch has returned, for callers about to exit.
func (m *Mirror) Wait() {
	<-m.done
}
