package gateway

import (
	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
)

const (
	MsgGeneric            = "Something went wrong. Please try again."
	MsgInvalidCredentials = "Invalid email or password"
	MsgEmailNotVerified   = "Please verify your email before signing in"
	MsgWeakPassword       = "Password must be at least 8 characters and include upper and lower case letters and a number"
	MsgUserExists         = "An account with this email already exists"
	MsgRateLimited        = "Too many attempts. Please wait a moment and try again."
	MsgInvalidLink        = "This link is invalid or has expired"
	MsgInvalidCode        = "Invalid or expired code"
)

// UserMessage turns an auth failure into text fit for a form. Provider codes and
// transport details never reach the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		return MsgInvalidCredentials
	case apperrors.Is(err, apperrors.ErrEmailNotVerified):
		return MsgEmailNotVerified
	case apperrors.Is(err, apperrors.ErrWeakPassword):
		return MsgWeakPassword
	case apperrors.Is(err, apperrors.ErrUserExists):
		return MsgUserExists
	case apperrors.Is(err, apperrors.ErrRateLimited):
		return MsgRateLimited
	case apperrors.Is(err, apperrors.ErrInvalidOrExpiredLink), apperrors.Is(err, apperrors.ErrExchangeFailed):
		return MsgInvalidLink
	case apperrors.Is(err, apperrors.ErrProviderUnreachable):
		return MsgGeneric
	}

	var pe *identity.ProviderError
	if apperrors.As(err, &pe) && pe.Status >= 400 && pe.Status < 500 && pe.Message != "" {
		return pe.Message
	}
	return MsgGeneric
}

// Outcome is the metrics label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		return "invalid_credentials"
	case apperrors.Is(err, apperrors.ErrEmailNotVerified):
		return "email_not_verified"
	case apperrors.Is(err, apperrors.ErrWeakPassword):
		return "weak_password"
	case apperrors.Is(err, apperrors.ErrUserExists):
		return "user_exists"
	case apperrors.Is(err, apperrors.ErrRateLimited):
		return "rate_limited"
	case apperrors.Is(err, apperrors.ErrInvalidOrExpiredLink), apperrors.Is(err, apperrors.ErrExchangeFailed):
		return "invalid_link"
	case apperrors.Is(err, apperrors.ErrProviderUnreachable):
		return "unreachable"
	}
	return "error"
}
