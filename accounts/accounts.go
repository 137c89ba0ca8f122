// Package accounts holds the local profile row kept for every verified user. The row
// is keyed by the identity provider's user id and is never created before the
// provider has confirmed the user's email.
package accounts

import (
	"context"
	"strings"
	"time"
)

type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  *string   `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repo is the local store contract: point lookup and insert. Get returns
// errors.ErrNotFound for a missing row and Insert returns errors.ErrAlreadyExists
// when a row with the same id is already present.
type Repo interface {
	Get(ctx context.Context, id string) (*Account, error)
	Insert(ctx context.Context, account *Account) error
}

// LocalPart returns the part of an email address before the last '@'.
func LocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
