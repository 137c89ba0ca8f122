package identity

import "context"

type contextKey string

const sessionContextKey contextKey = "session"

// WithSession stores the session admitted by the bridge for downstream handlers.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext returns the bridge-admitted session, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionContextKey).(*Session)
	return s
}

// UserFromContext returns the user of the bridge-admitted session, or nil.
func UserFromContext(ctx context.Context) *User {
	if s := SessionFromContext(ctx); s != nil {
		return s.User
	}
	return nil
}
