package users

import "time"

// UserRepo stores directory users. Lookups by email use NormalizeEmail.
type UserRepo interface {
	Upsert(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	SetConfirmed(email string, at time.Time) error
	SetLastSignIn(email string, at time.Time) error
	SetPasswordHash(id, hash string) error
	// SetProfile replaces the password hash and metadata of an unconfirmed sign-up.
	SetProfile(id, hash string, metadata map[string]any) error
}
