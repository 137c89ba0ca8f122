// Package users is the user directory behind the in-process identity provider: the
// credential and confirmation state a managed provider keeps on its side.
package users

import (
	"strings"
	"time"
	"unicode"

	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID               string         `json:"id,omitempty"`
	Email            string         `json:"email,omitempty"`
	PasswordHash     string         `json:"-"` // never serialize
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
}

// NormalizeEmail is the key the directory indexes users by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return apperrors.Wrapf(apperrors.ErrWeakPassword, "password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return apperrors.Wrapf(apperrors.ErrWeakPassword, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		return apperrors.Wrapf(apperrors.ErrWeakPassword, "password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return apperrors.Wrapf(apperrors.ErrWeakPassword, "password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's stored hash
func (u *User) CheckPassword(password string) bool {
	return u.PasswordHash != "" && CheckPasswordHash(password, u.PasswordHash)
}

func (u *User) IsConfirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Identity is the user as the provider contract exposes it.
func (u *User) Identity() *identity.User {
	meta := make(map[string]any, len(u.UserMetadata))
	for k, v := range u.UserMetadata {
		meta[k] = v
	}
	return &identity.User{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: copyTime(u.EmailConfirmedAt),
		UserMetadata:     meta,
		CreatedAt:        u.CreatedAt,
		LastSignInAt:     copyTime(u.LastSignInAt),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return utils.Ptr(*t)
}
