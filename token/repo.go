package token

// RefreshTokenRepo stores issued refresh tokens by their opaque value. Get returns
// ErrNotFound for unknown or deleted tokens.
type RefreshTokenRepo interface {
	Put(rt *RefreshToken) error
	Get(raw string) (*RefreshToken, error)
	Delete(raw string) error
}
