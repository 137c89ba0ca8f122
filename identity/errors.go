package identity

import (
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
)

// ProviderError keeps the provider's own status and code for logging while
// unwrapping to the application error taxonomy.
type ProviderError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Kind    error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Kind
}

// ErrorCode extracts the provider's error code, if err carries one.
func ErrorCode(err error) string {
	var pe *ProviderError
	if apperrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// KindForCode maps provider error codes and HTTP statuses onto the taxonomy.
func KindForCode(status int, code string) error {
	switch code {
	case "invalid_credentials", "invalid_grant", "user_not_found":
		return apperrors.ErrInvalidCredentials
	case "email_not_confirmed":
		return apperrors.ErrEmailNotVerified
	case "otp_expired", "flow_state_expired", "flow_state_not_found", "bad_code_verifier", "otp_disabled", "bad_oauth_state":
		return apperrors.ErrInvalidOrExpiredLink
	case "weak_password":
		return apperrors.ErrWeakPassword
	case "user_already_exists", "email_exists":
		return apperrors.ErrUserExists
	case "over_email_send_rate_limit", "over_request_rate_limit":
		return apperrors.ErrRateLimited
	case "session_not_found", "session_expired", "refresh_token_not_found", "refresh_token_already_used", "bad_jwt", "no_authorization":
		return apperrors.ErrNoSession
	}
	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.ErrNoSession
	case status >= http.StatusInternalServerError || status == 0:
		return apperrors.ErrProviderUnreachable
	}
	return nil
}
