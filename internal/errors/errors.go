package errors

import (
	"errors"
	"fmt"
)

var (
	// Credential errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrWeakPassword       = errors.New("weak password")
	ErrUserExists         = errors.New("user already registered")

	// Verification errors
	ErrExchangeFailed       = errors.New("code exchange failed")
	ErrInvalidOrExpiredLink = errors.New("invalid or expired link")

	// Provider errors
	ErrProviderUnreachable = errors.New("identity provider unreachable")
	ErrNoSession           = errors.New("no session")
	ErrRateLimited         = errors.New("rate limited")

	// Provisioning errors
	ErrProfileProvisioningFailed = errors.New("profile provisioning failed")
	ErrEmailUnconfirmed          = errors.New("email is not confirmed")

	// Store errors
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers only import this package.
func New(text string) error {
	return errors.New(text)
}
