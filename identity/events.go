package identity

import "sync"

type AuthEvent string

const (
	EventInitialSession   AuthEvent = "INITIAL_SESSION"
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
)

type AuthChange struct {
	Event   AuthEvent
	Session *Session
}

type Subscription interface {
	Unsubscribe()
}

// Broadcaster fans auth-state changes out to listeners. Provider clients embed it.
type Broadcaster struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(AuthChange)
}

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.fn)
}

func (b *Broadcaster) OnAuthStateChange(fn func(AuthChange)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]func(AuthChange))
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return &subscription{fn: func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}}
}

// Emit delivers change to every listener registered at the time of the call,
// outside the lock so listeners may unsubscribe from inside the callback.
func (b *Broadcaster) Emit(event AuthEvent, session *Session) {
	b.mu.Lock()
	fns := make([]func(AuthChange), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	change := AuthChange{Event: event, Session: session}
	for _, fn := range fns {
		fn(change)
	}
}

func (b *Broadcaster) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
